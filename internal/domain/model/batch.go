package model

// BatchState tracks a batch through the pipeline.
type BatchState string

// Batch states, in pipeline order.
const (
	StateIdle       BatchState = "idle"
	StateValidating BatchState = "validating"
	StateParsing    BatchState = "parsing"
	StateScoring    BatchState = "scoring"
	StateCommitting BatchState = "committing"
	StateCompleted  BatchState = "completed"
	StateFailed     BatchState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s BatchState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// MirrorSummary counts mirror sync outcomes for one batch. Pending is the
// number of jobs that had not finished when the batch returned.
type MirrorSummary struct {
	Dispatched int `json:"dispatched"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	Pending    int `json:"pending"`
}

// BatchResult is the orchestrator's output for one upload.
type BatchResult struct {
	ID       string          `json:"batchId"`
	FileName string          `json:"fileName"`
	Outcomes []ScoredOutcome `json:"results"`
	Skipped  int             `json:"skipped"`
	State    BatchState      `json:"state"`
	Mirror   MirrorSummary   `json:"mirror"`
}

// PassCount returns how many outcomes were classified Pass.
func (b BatchResult) PassCount() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.Prediction == Pass {
			n++
		}
	}
	return n
}

// FailCount returns how many outcomes were classified Fail.
func (b BatchResult) FailCount() int {
	return len(b.Outcomes) - b.PassCount()
}
