// Package queue defines the at-least-once queue delivery contract and the SQS
// runtime adapter that feeds delivered batches into the batch dispatcher.
package queue

// MessageAttribute is a typed SQS message attribute.
type MessageAttribute struct {
	DataType    string
	StringValue string
	BinaryValue []byte
}

// Message is one delivered queue message. It is owned by the queue runtime and
// read-only to handlers; MessageID is the unit of retry reporting.
type Message struct {
	MessageID         string
	ReceiptHandle     string
	Body              string
	Attributes        map[string]string
	MessageAttributes map[string]MessageAttribute
	SourceARN         string
	Region            string
}

// BatchItemFailure names one message, within a delivered batch, that should be
// redelivered because it was not durably applied.
type BatchItemFailure struct {
	ItemIdentifier string `json:"itemIdentifier"`
}

// BatchResult is the partial-failure response handed back to the queue
// runtime. An empty BatchItemFailures slice acknowledges the entire batch;
// every listed identifier is redelivered.
type BatchResult struct {
	BatchItemFailures []BatchItemFailure `json:"batchItemFailures"`
}

// Failed reports whether the given message identifier is present in the
// failure list.
func (r BatchResult) Failed(messageID string) bool {
	for _, f := range r.BatchItemFailures {
		if f.ItemIdentifier == messageID {
			return true
		}
	}
	return false
}
