package ports

import (
	"context"

	"github.com/novatrust/bio-gateway/internal/core/domain"
	"github.com/novatrust/bio-gateway/internal/pubsub"
)

// CredentialIssuer mints session credentials after a verified authentication
type CredentialIssuer interface {
	Issue(ctx context.Context, userID string) (*domain.Credentials, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Credentials, error)
}

// ProofValidator classifies a terminal proof result. Pure and deterministic.
type ProofValidator interface {
	Classify(result *domain.ProofResult) domain.Verdict
}

// NotificationService delivers terminal operation notifications
type NotificationService interface {
	SendOperationCompletedNotification(ctx context.Context, payload pubsub.Message) error
	SendOperationFailedNotification(ctx context.Context, payload pubsub.Message) error
}

// NotificationGateway posts a notification to the configured webhook
type NotificationGateway interface {
	Notify(ctx context.Context, msg []byte) error
}
