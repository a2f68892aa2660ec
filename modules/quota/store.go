package quota

import (
	"context"
	"sync"

	"wrap-render-server/modules/common/database"
	"wrap-render-server/modules/render"
)

// Store is the backing record of customer quotas. Load returns nil, nil when
// the customer has no record.
type Store interface {
	Load(ctx context.Context, customerID string) (*render.QuotaState, error)
	Save(ctx context.Context, customerID string, state render.QuotaState) error
}

// SupabaseStore - customer_quotas table
type SupabaseStore struct {
	db *database.Client
}

func NewSupabaseStore(db *database.Client) *SupabaseStore {
	return &SupabaseStore{db: db}
}

func (s *SupabaseStore) Load(ctx context.Context, customerID string) (*render.QuotaState, error) {
	record, err := s.db.FetchQuota(ctx, customerID)
	if err != nil || record == nil {
		return nil, err
	}
	state := record.State()
	return &state, nil
}

// Save only writes the consumed counter; tier and limit belong to billing.
func (s *SupabaseStore) Save(ctx context.Context, customerID string, state render.QuotaState) error {
	return s.db.UpdateQuotaConsumed(ctx, customerID, state.Consumed)
}

// MemoryStore - process local quotas for development and tests
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]render.QuotaState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]render.QuotaState)}
}

// Put seeds a record.
func (s *MemoryStore) Put(customerID string, state render.QuotaState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[customerID] = state
}

func (s *MemoryStore) Load(_ context.Context, customerID string) (*render.QuotaState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[customerID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *MemoryStore) Save(_ context.Context, customerID string, state render.QuotaState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[customerID] = state
	return nil
}
