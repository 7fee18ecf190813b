package ports

import (
	"context"

	"github.com/novatrust/bio-gateway/internal/core/domain"
)

// CompletionDetector reconciles the event signal and the poll signal into a
// single terminal decision per operation
type CompletionDetector interface {
	// Start subscribes the detector to capture surface events
	Start(ctx context.Context)
	// Watch starts the polling fallback for an in-flight operation. It
	// returns immediately; polling runs until a terminal transition or
	// budget exhaustion.
	Watch(ctx context.Context, op *domain.Operation)
	// Resume re-attaches watchers for persisted pending operations after a
	// process restart.
	Resume(ctx context.Context) error
}
