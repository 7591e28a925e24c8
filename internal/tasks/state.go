package tasks

// State is the status-specific part of a task. The concrete types below are
// the only implementations.
type State interface {
	Status() Status
	isState()
}

// Pending waits for the video to arrive, either from a signed upload or a
// remote fetch.
type Pending struct {
	FetchURL string `json:"fetch_url,omitempty"`
}

// Uploaded holds a stored video ready for analysis.
type Uploaded struct{}

// Processing runs the vision and audio phases.
type Processing struct {
	Request Request `json:"request"`
}

// ReadyForSynthesis holds the analysis checkpoint.
type ReadyForSynthesis struct {
	Analysis Analysis `json:"analysis"`
}

// GeneratingSummary is synthesis in flight over a checkpoint.
type GeneratingSummary struct {
	Analysis Analysis `json:"analysis"`
}

// Completed carries the checkpoint and the generated note.
type Completed struct {
	Analysis Analysis   `json:"analysis"`
	Note     NoteResult `json:"note"`
}

// Failed records the error verbatim. Checkpoint is set when the failure
// happened after analysis, so synthesis can be retried without re-analysis.
type Failed struct {
	Message    string    `json:"message"`
	Phase      Phase     `json:"phase,omitempty"`
	Checkpoint *Analysis `json:"checkpoint,omitempty"`
}

func (Pending) Status() Status           { return StatusPending }
func (Uploaded) Status() Status          { return StatusUploaded }
func (Processing) Status() Status        { return StatusProcessing }
func (ReadyForSynthesis) Status() Status { return StatusReadyForSynthesis }
func (GeneratingSummary) Status() Status { return StatusGeneratingSummary }
func (Completed) Status() Status         { return StatusCompleted }
func (Failed) Status() Status            { return StatusFailed }

func (Pending) isState()           {}
func (Uploaded) isState()          {}
func (Processing) isState()        {}
func (ReadyForSynthesis) isState() {}
func (GeneratingSummary) isState() {}
func (Completed) isState()         {}
func (Failed) isState()            {}
