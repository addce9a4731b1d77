package nats

import (
	"context"
	"errors"

	"github.com/kirillkom/campus-search/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

// classifyPublishError sorts index-job publish failures. Connection-state
// errors are retried and count against the breaker. Payload and subject
// errors are caller mistakes and leave the breaker alone.
func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionReconnecting),
		errors.Is(err, nats.ErrDisconnected):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case errors.Is(err, nats.ErrBadSubject), errors.Is(err, nats.ErrMaxPayload):
		return resilience.ErrorClassification{}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func wrapPublishError(err error) error {
	return resilience.WrapTemporary("nats publish", err, classifyPublishError)
}
