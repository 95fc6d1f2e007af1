package kafka

import "errors"

var (
	ErrProducerClosed = errors.New("kafka producer is closed")
	ErrConsumerClosed = errors.New("kafka consumer is closed")
	ErrEmptyKey       = errors.New("message key cannot be empty")
	ErrEmptyValue     = errors.New("message value cannot be empty")
	ErrInvalidMessage = errors.New("no valid messages to publish")
)

// ShouldRetry reports whether a consumer handler error warrants another
// attempt. Context cancellation is permanent; everything else is retried
// until the budget is spent.
func ShouldRetry(err error, retries, maxRetries int) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConsumerClosed) {
		return false
	}
	return retries < maxRetries
}
