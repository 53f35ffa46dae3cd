package pipeline

// Stage names used in progress events, timings, and error messages.
const (
	StageDownload   = "download"
	StageTranscribe = "transcribe"
	StageDiarize    = "diarize"
	StageFormat     = "format"
)

// ProgressEvent reports stage-local progress. Fraction is within the
// named stage (0..1); consumers derive an overall value with Overall.
type ProgressEvent struct {
	Stage    string
	Fraction float64
}

// stageWeights is the static global weighting used to fold stage-local
// progress into a single overall value. Transcription dominates
// wall-clock time; formatting is near-instant. The weights are
// config-level constants, not measured per run.
var stageWeights = map[string]float64{
	StageDownload:   0.15,
	StageTranscribe: 0.60,
	StageDiarize:    0.20,
	StageFormat:     0.05,
}

var stageOrder = []string{StageDownload, StageTranscribe, StageDiarize, StageFormat}

// Overall converts a stage-local event into a 0..1 overall progress
// value by summing the weights of completed stages.
func (e ProgressEvent) Overall() float64 {
	done := 0.0
	for _, stage := range stageOrder {
		if stage == e.Stage {
			return done + stageWeights[stage]*clamp01(e.Fraction)
		}
		done += stageWeights[stage]
	}
	return clamp01(e.Fraction)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
