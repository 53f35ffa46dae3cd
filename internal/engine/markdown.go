package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"scribeq/internal/pipeline"
)

// defaultMinSegmentDuration drops sub-half-second fragments, which are
// usually diarization jitter rather than speech.
const defaultMinSegmentDuration = 0.5

// MarkdownRenderer formats aligned segments into Markdown with speaker
// headers, timestamps, and a metadata block.
type MarkdownRenderer struct {
	MinSegmentDuration float64
	now                func() time.Time
}

// NewMarkdownRenderer creates a renderer with the default minimum
// segment duration.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{
		MinSegmentDuration: defaultMinSegmentDuration,
		now:                time.Now,
	}
}

// Render produces the speaker-labeled Markdown transcript.
func (r *MarkdownRenderer) Render(segments []pipeline.AlignedSegment, meta pipeline.RenderMeta) (string, error) {
	minDuration := r.MinSegmentDuration
	now := r.now
	if now == nil {
		now = time.Now
	}

	var b strings.Builder
	b.WriteString("# Transcript\n\n")
	fmt.Fprintf(&b, "**Speakers:** %d detected\n", meta.SpeakerCount)
	fmt.Fprintf(&b, "**Duration:** %s\n", formatDuration(meta.Duration))
	fmt.Fprintf(&b, "**Created:** %s\n", now().Format("2006-01-02"))
	b.WriteString("\n---\n\n")

	currentSpeaker := ""
	for _, seg := range segments {
		if seg.End-seg.Start < minDuration {
			continue
		}

		label := speakerLabel(seg.Speaker)
		if label != currentSpeaker {
			if currentSpeaker != "" {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "### %s\n", label)
			currentSpeaker = label
		}

		fmt.Fprintf(&b, "[%s - %s]\n", pipeline.FormatTimestamp(seg.Start), pipeline.FormatTimestamp(seg.End))
		b.WriteString(seg.Text)
		b.WriteString("\n")
	}

	return b.String(), nil
}

func formatDuration(seconds float64) string {
	minutes := int(seconds) / 60
	secs := int(seconds) % 60
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// speakerLabel converts raw diarization labels to readable ones:
// SPEAKER_00 -> Speaker 1, UNKNOWN -> Unknown speaker. Anything else
// passes through untouched.
func speakerLabel(speaker string) string {
	switch {
	case speaker == pipeline.SpeakerMultiple:
		return pipeline.SpeakerMultiple
	case speaker == pipeline.SpeakerUnknown:
		return "Unknown speaker"
	case strings.HasPrefix(speaker, "SPEAKER_"):
		n, err := strconv.Atoi(strings.TrimPrefix(speaker, "SPEAKER_"))
		if err != nil {
			return speaker
		}
		return fmt.Sprintf("Speaker %d", n+1)
	default:
		return speaker
	}
}
