package repositories

import (
	"context"
	"sync"

	"github.com/novatrust/bio-gateway/internal/core/domain"
)

type operationsInMemory struct {
	mu  sync.RWMutex
	ops map[string]domain.Operation
}

// NewOperationsInMemory returns an OperationsRepository implemented in memory convenient for testing
func NewOperationsInMemory() *operationsInMemory {
	return &operationsInMemory{ops: make(map[string]domain.Operation)}
}

func (s *operationsInMemory) Save(_ context.Context, op *domain.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, found := s.ops[op.OperationID]; found && stored.IsTerminal() {
		return nil
	}
	s.ops[op.OperationID] = *op
	return nil
}

func (s *operationsInMemory) SaveTerminal(_ context.Context, op *domain.Operation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, found := s.ops[op.OperationID]
	if !found {
		return false, ErrOperationNotFound
	}
	if stored.IsTerminal() {
		return false, nil
	}
	s.ops[op.OperationID] = *op
	return true, nil
}

func (s *operationsInMemory) GetByOperationID(_ context.Context, operationID string) (*domain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if op, found := s.ops[operationID]; found {
		cp := op
		return &cp, nil
	}
	return nil, ErrOperationNotFound
}

func (s *operationsInMemory) GetPending(_ context.Context) ([]*domain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pending []*domain.Operation
	for _, op := range s.ops {
		if op.State == domain.StateCreated || op.State == domain.StatePending {
			cp := op
			pending = append(pending, &cp)
		}
	}
	return pending, nil
}
