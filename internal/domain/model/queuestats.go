package model

// QueueStats is a snapshot of the remote sync queue, polled while a run is
// in flight and rendered by the wizard's syncing view.
type QueueStats struct {
	Depths      map[string]int `json:"depths"`
	Pending     int            `json:"pending"`
	Processing  int            `json:"processing"`
	Completed   int            `json:"completed"`
	Failed      int            `json:"failed"`
	Skipped     int            `json:"skipped"`
	RateLimited bool           `json:"rate_limited"`
	RetryAfter  int            `json:"retry_after_seconds,omitempty"`
}

// Total returns the overall number of items the queue has seen this run.
func (q QueueStats) Total() int {
	return q.Pending + q.Processing + q.Completed + q.Failed + q.Skipped
}
