package dispatch

import (
	"github.com/allisson/eventflow/internal/queue"
)

// Report projects the collected results into the queue runtime's
// partial-failure response: only FAILURE results are listed, keyed by message
// identifier. Successful messages are acknowledged by their absence.
func Report(results []Result) queue.BatchResult {
	failures := []queue.BatchItemFailure{}
	for _, result := range results {
		if result.Status == StatusFailure {
			failures = append(failures, queue.BatchItemFailure{ItemIdentifier: result.Identifier})
		}
	}
	return queue.BatchResult{BatchItemFailures: failures}
}
