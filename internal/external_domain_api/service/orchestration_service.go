// Package service implements the external domain's orchestration: it owns
// lightweight sagas that delegate the actual movement processing to the
// transaction domain through the cross-domain relay.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/paymentops/transaction-saga/internal/domain/saga"
	"github.com/paymentops/transaction-saga/internal/saga/relay"
)

// StartRequest is the external domain's coarse start input; the full
// movement set is derived from it.
type StartRequest struct {
	ProfileID           int64
	ExternalOperationID string
	OperationType       string
	AppCaller           string
	CallbackURL         string
}

// Record is the in-memory view of an external domain saga
type Record struct {
	ID                  string
	RunID               string
	ProfileID           int64
	ExternalOperationID string
	OperationType       string
	State               saga.State
	Result              string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// OrchestrationService runs external domain sagas on a worker pool. State
// lives in memory only: the durable record of each operation is the remote
// transaction saga this domain delegates to.
type OrchestrationService struct {
	baseCtx context.Context
	relay   *relay.Relay
	pool    *ants.Pool
	logger  *slog.Logger

	mu      sync.RWMutex
	records map[string]*Record
}

// NewOrchestrationService creates the external domain orchestration service
func NewOrchestrationService(baseCtx context.Context, poolSize int, r *relay.Relay, logger *slog.Logger) (*OrchestrationService, error) {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	return &OrchestrationService{
		baseCtx: baseCtx,
		relay:   r,
		pool:    pool,
		logger:  logger,
		records: make(map[string]*Record),
	}, nil
}

// Start registers a new external domain saga and submits it for execution.
// Ids are deterministic, so a repeated start for the same operation returns
// saga.ErrDuplicateInstance while the first run is still alive or has
// completed.
func (s *OrchestrationService) Start(ctx context.Context, req *StartRequest) (*Record, error) {
	if req.ExternalOperationID == "" {
		return nil, fmt.Errorf("external operation id is required")
	}
	if req.OperationType == "" {
		return nil, fmt.Errorf("operation type is required")
	}

	id := saga.ExternalDomainID(req.OperationType, req.ExternalOperationID)
	now := time.Now().UTC()
	record := &Record{
		ID:                  id,
		RunID:               uuid.New().String(),
		ProfileID:           req.ProfileID,
		ExternalOperationID: req.ExternalOperationID,
		OperationType:       req.OperationType,
		State:               saga.StateRunning,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	s.mu.Lock()
	if _, exists := s.records[id]; exists {
		s.mu.Unlock()
		return nil, saga.ErrDuplicateInstance{ID: id}
	}
	s.records[id] = record
	s.mu.Unlock()

	s.logger.Info("External domain saga registered",
		"saga_id", id,
		"run_id", record.RunID,
	)

	if err := s.pool.Submit(func() {
		s.run(record.ID, req)
	}); err != nil {
		s.mu.Lock()
		delete(s.records, id)
		s.mu.Unlock()
		return nil, err
	}

	return record, nil
}

// Get returns the in-memory view of an external domain saga
func (s *OrchestrationService) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, saga.ErrInstanceNotFound
	}

	copied := *record
	return &copied, nil
}

// Shutdown releases the worker pool
func (s *OrchestrationService) Shutdown() {
	s.logger.Info("Shutting down external domain orchestration", "running", s.pool.Running())
	s.pool.Release()
}

func (s *OrchestrationService) run(id string, req *StartRequest) {
	txReq := relay.BuildTransactionRequest(
		req.ProfileID,
		req.ExternalOperationID,
		req.OperationType,
		req.AppCaller,
		req.CallbackURL,
	)

	result, err := s.relay.Invoke(s.baseCtx, txReq)
	if err != nil {
		s.complete(id, saga.StateFailed, fmt.Sprintf("Remote transaction saga failed: %s", err))
		return
	}

	// The remote saga folds its own business failures into the result
	// string, so a returned result always means this saga completed.
	s.complete(id, saga.StateCompleted, result)
}

func (s *OrchestrationService) complete(id string, state saga.State, result string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return
	}
	record.State = state
	record.Result = result
	record.UpdatedAt = time.Now().UTC()

	s.logger.Info("External domain saga completed",
		"saga_id", id,
		"state", state,
	)
}
