package domain

// Stage names a step of the discovery or synthesis pipeline.
type Stage string

// Pipeline stages reported through progress events.
const (
	StageClustering Stage = "clustering"
	StageLabeling   Stage = "labeling"
	StageRanking    Stage = "ranking"
	StagePlanning   Stage = "planning"
	StageChapter    Stage = "chapter"
	StageBatch      Stage = "batch"
	StageCitations  Stage = "citations"
	StageExport     Stage = "export"
	StageDone       Stage = "done"
)

// Progress is a single progress event.
type Progress struct {
	Stage   Stage
	Percent float64
	Message string
}

// ProgressFunc receives progress events. It may be nil.
type ProgressFunc func(Progress)

// Report emits an event if fn is set.
func (fn ProgressFunc) Report(stage Stage, percent float64, message string) {
	if fn == nil {
		return
	}
	fn(Progress{Stage: stage, Percent: percent, Message: message})
}

// DiscoveryState is the state of a theme discovery run.
type DiscoveryState string

// Discovery states. A run only moves forward.
const (
	DiscoveryIdle       DiscoveryState = "idle"
	DiscoveryClustering DiscoveryState = "clustering"
	DiscoveryLabeling   DiscoveryState = "labeling"
	DiscoveryRanking    DiscoveryState = "ranking"
	DiscoveryDone       DiscoveryState = "done"
)
