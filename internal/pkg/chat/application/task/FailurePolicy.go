package task

import "go.uber.org/zap"

// FailurePolicy decides what happens to an event the ingestor could not turn
// into a message.
type FailurePolicy int

const (
	// LogAndDrop logs the failure and acknowledges the event. The
	// originating workflow is never blocked or rolled back by chat.
	LogAndDrop FailurePolicy = iota
)

func (p FailurePolicy) String() string {
	switch p {
	case LogAndDrop:
		return "log_and_drop"
	}
	return "unknown"
}

// handle returns the error to report to the queue for a failed event.
func (p FailurePolicy) handle(logger *zap.Logger, taskType string, err error) error {
	logger.Warn("recruit event dropped",
		zap.String("type", taskType),
		zap.String("policy", p.String()),
		zap.Error(err))
	return nil
}
