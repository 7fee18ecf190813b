package repositories

import (
	"context"
	"sync"

	"github.com/novatrust/bio-gateway/internal/core/domain"
)

type enrollmentKey struct {
	userID      string
	operationID string
}

type enrollmentsInMemory struct {
	mu      sync.RWMutex
	records map[enrollmentKey]domain.EnrollmentRecord
}

// NewEnrollmentsInMemory returns an EnrollmentsRepository implemented in memory convenient for testing
func NewEnrollmentsInMemory() *enrollmentsInMemory {
	return &enrollmentsInMemory{records: make(map[enrollmentKey]domain.EnrollmentRecord)}
}

func (s *enrollmentsInMemory) Save(_ context.Context, record *domain.EnrollmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[enrollmentKey{record.UserID, record.OperationID}] = *record
	return nil
}

func (s *enrollmentsInMemory) GetByUserID(_ context.Context, userID string) ([]*domain.EnrollmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []*domain.EnrollmentRecord
	for key, record := range s.records {
		if key.userID == userID {
			cp := record
			records = append(records, &cp)
		}
	}
	return records, nil
}

func (s *enrollmentsInMemory) GetActive(_ context.Context, userID string) (*domain.EnrollmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *domain.EnrollmentRecord
	for key, record := range s.records {
		if key.userID != userID || record.Status != domain.EnrollmentActive {
			continue
		}
		cp := record
		if latest == nil || cp.ModifiedAt.After(latest.ModifiedAt) {
			latest = &cp
		}
	}
	if latest == nil {
		return nil, ErrEnrollmentNotFound
	}
	return latest, nil
}
