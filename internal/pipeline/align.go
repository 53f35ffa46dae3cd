package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// Speaker labels used when attribution is ambiguous.
const (
	SpeakerUnknown  = "UNKNOWN"
	SpeakerMultiple = "Multiple speakers"
)

// overlapThreshold is the pairwise overlap (seconds) above which two
// speakers inside one segment are treated as simultaneous speech.
const overlapThreshold = 0.5

// AlignedSegment is a transcription segment with a speaker label,
// produced between the diarize and format stages. It is not persisted
// independently; it folds into the job's final result.
type AlignedSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
}

// speakerOverlap is a speaker's active region inside one segment.
type speakerOverlap struct {
	speaker string
	start   float64
	end     float64
}

// AlignSegments assigns speaker labels to transcription segments by
// temporal intersection with diarization turns. Segments spanning
// sequential speakers are split at the turn boundaries with the text
// distributed proportionally by time; simultaneous speech is labeled
// SpeakerMultiple, and segments with no covering turn SpeakerUnknown.
func AlignSegments(segments []Segment, turns []SpeakerTurn) []AlignedSegment {
	aligned := make([]AlignedSegment, 0, len(segments))

	// Single speaker: every segment gets that speaker, no splitting.
	if count := countSpeakers(turns); count <= 1 {
		speaker := SpeakerUnknown
		if len(turns) > 0 {
			speaker = turns[0].Speaker
		}
		for _, seg := range segments {
			aligned = append(aligned, AlignedSegment{
				Start: seg.Start, End: seg.End, Speaker: speaker, Text: seg.Text,
			})
		}
		return aligned
	}

	for _, seg := range segments {
		overlaps := speakersInRange(seg.Start, seg.End, turns)

		switch {
		case len(overlaps) == 0:
			aligned = append(aligned, AlignedSegment{
				Start: seg.Start, End: seg.End, Speaker: SpeakerUnknown, Text: seg.Text,
			})

		case len(overlaps) == 1:
			aligned = append(aligned, AlignedSegment{
				Start: seg.Start, End: seg.End, Speaker: overlaps[0].speaker, Text: seg.Text,
			})

		case hasSimultaneousSpeech(overlaps):
			aligned = append(aligned, AlignedSegment{
				Start: seg.Start, End: seg.End, Speaker: SpeakerMultiple, Text: seg.Text,
			})

		default:
			aligned = append(aligned, splitAcrossSpeakers(seg, overlaps)...)
		}
	}

	return aligned
}

// CountSpeakers returns the number of distinct speakers in the turns.
func CountSpeakers(turns []SpeakerTurn) int {
	return countSpeakers(turns)
}

func countSpeakers(turns []SpeakerTurn) int {
	seen := make(map[string]struct{}, len(turns))
	for _, t := range turns {
		seen[t.Speaker] = struct{}{}
	}
	return len(seen)
}

func intersection(aStart, aEnd, bStart, bEnd float64) float64 {
	start := aStart
	if bStart > start {
		start = bStart
	}
	end := aEnd
	if bEnd < end {
		end = bEnd
	}
	if start < end {
		return end - start
	}
	return 0
}

func speakersInRange(start, end float64, turns []SpeakerTurn) []speakerOverlap {
	var overlaps []speakerOverlap
	for _, t := range turns {
		if intersection(start, end, t.Start, t.End) <= 0 {
			continue
		}
		oStart := start
		if t.Start > oStart {
			oStart = t.Start
		}
		oEnd := end
		if t.End < oEnd {
			oEnd = t.End
		}
		overlaps = append(overlaps, speakerOverlap{speaker: t.Speaker, start: oStart, end: oEnd})
	}
	return overlaps
}

func hasSimultaneousSpeech(overlaps []speakerOverlap) bool {
	for i := range overlaps {
		for j := i + 1; j < len(overlaps); j++ {
			if intersection(overlaps[i].start, overlaps[i].end, overlaps[j].start, overlaps[j].end) > overlapThreshold {
				return true
			}
		}
	}
	return false
}

// splitAcrossSpeakers breaks one segment at sequential speaker
// boundaries, distributing words proportionally by time. The last
// speaker absorbs any remainder so no words are dropped.
func splitAcrossSpeakers(seg Segment, overlaps []speakerOverlap) []AlignedSegment {
	sort.Slice(overlaps, func(i, j int) bool { return overlaps[i].start < overlaps[j].start })

	words := strings.Fields(seg.Text)
	total := seg.End - seg.Start
	wordIdx := 0

	var parts []AlignedSegment
	for i, o := range overlaps {
		var speakerWords []string
		if i == len(overlaps)-1 {
			speakerWords = words[wordIdx:]
		} else {
			proportion := 0.0
			if total > 0 {
				proportion = (o.end - o.start) / total
			}
			count := int(float64(len(words)) * proportion)
			if count < 1 {
				count = 1
			}
			if wordIdx+count > len(words) {
				count = len(words) - wordIdx
			}
			speakerWords = words[wordIdx : wordIdx+count]
			wordIdx += count
		}

		if len(speakerWords) == 0 {
			continue
		}
		parts = append(parts, AlignedSegment{
			Start:   o.start,
			End:     o.end,
			Speaker: o.speaker,
			Text:    strings.Join(speakerWords, " "),
		})
	}
	return parts
}

// FormatTimestamp renders seconds as MM:SS.d for transcript output.
func FormatTimestamp(seconds float64) string {
	minutes := int(seconds) / 60
	secs := seconds - float64(minutes*60)
	return fmt.Sprintf("%02d:%04.1f", minutes, secs)
}
