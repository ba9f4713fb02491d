package repository

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/examintel/internal/domain/model"
	"github.com/okian/examintel/pkg/metrics"
)

const defaultMetricsUpdateInterval = 5 * time.Second

type memRecord struct {
	assessmentID string
	generatedAt  time.Time
	body         []byte
	elem         *list.Element
}

// MemoryStore keeps encoded plans in memory. Callers never share plan
// pointers with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[string]*memRecord
	latest   map[string]string // assessment id -> plan id
	order    *list.List        // plan ids, oldest first
	capacity int

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore constructs an in-memory plan store.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byID:                  make(map[string]*memRecord),
		latest:                make(map[string]string),
		order:                 list.New(),
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Save stores a copy of plan.
func (s *MemoryStore) Save(ctx context.Context, plan *model.Plan) (id string, err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("save", time.Since(start), err) }()

	if plan == nil {
		return "", fmt.Errorf("save nil plan: %w", ErrInvalidPlan)
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	body, err := json.Marshal(plan)
	if err != nil {
		return "", fmt.Errorf("encode plan %s: %w", plan.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byID[plan.ID]; ok {
		s.order.Remove(old.elem)
		delete(s.byID, plan.ID)
		if s.latest[old.assessmentID] == plan.ID {
			delete(s.latest, old.assessmentID)
			s.relinkLatestLocked(old.assessmentID)
		}
	}
	rec := &memRecord{
		assessmentID: plan.AssessmentID,
		generatedAt:  plan.GeneratedAt,
		body:         body,
		elem:         s.order.PushBack(plan.ID),
	}
	s.byID[plan.ID] = rec
	if cur, ok := s.latest[plan.AssessmentID]; !ok || !s.byID[cur].generatedAt.After(plan.GeneratedAt) {
		s.latest[plan.AssessmentID] = plan.ID
	}
	s.evictLocked()
	return plan.ID, nil
}

// evictLocked drops the oldest plans beyond capacity.
func (s *MemoryStore) evictLocked() {
	for s.capacity > 0 && len(s.byID) > s.capacity {
		front := s.order.Front()
		id, _ := front.Value.(string)
		s.order.Remove(front)
		rec := s.byID[id]
		delete(s.byID, id)
		if s.latest[rec.assessmentID] == id {
			delete(s.latest, rec.assessmentID)
			s.relinkLatestLocked(rec.assessmentID)
		}
	}
}

func (s *MemoryStore) relinkLatestLocked(assessmentID string) {
	var (
		best string
		at   time.Time
	)
	for id, rec := range s.byID {
		if rec.assessmentID == assessmentID && (best == "" || rec.generatedAt.After(at)) {
			best, at = id, rec.generatedAt
		}
	}
	if best != "" {
		s.latest[assessmentID] = best
	}
}

// Get returns a copy of the plan with id.
func (s *MemoryStore) Get(ctx context.Context, planID string) (plan *model.Plan, err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("get", time.Since(start), err) }()

	s.mu.RLock()
	rec, ok := s.byID[planID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodePlan(rec.body)
}

// LatestForAssessment returns a copy of the newest plan for assessmentID.
func (s *MemoryStore) LatestForAssessment(ctx context.Context, assessmentID string) (plan *model.Plan, err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreOp("latest", time.Since(start), err) }()

	s.mu.RLock()
	var rec *memRecord
	if id, ok := s.latest[assessmentID]; ok {
		rec = s.byID[id]
	}
	s.mu.RUnlock()
	if rec == nil {
		return nil, ErrNotFound
	}
	return decodePlan(rec.body)
}

// Count returns the number of stored plans.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

// Close stops the background metrics updater.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// startMetricsUpdater starts a background goroutine that publishes the record count.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				n, _ := s.Count(ctx)
				metrics.UpdateStoreRecords(n)
			}
		}
	}()
}

func decodePlan(body []byte) (*model.Plan, error) {
	var p model.Plan
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &p, nil
}
