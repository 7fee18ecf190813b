package ports

import (
	"context"

	"github.com/novatrust/bio-gateway/internal/core/domain"
)

// EnrollmentsRepository is a repository for user enrollment records
type EnrollmentsRepository interface {
	Save(ctx context.Context, record *domain.EnrollmentRecord) error
	GetByUserID(ctx context.Context, userID string) ([]*domain.EnrollmentRecord, error)
	GetActive(ctx context.Context, userID string) (*domain.EnrollmentRecord, error)
}
