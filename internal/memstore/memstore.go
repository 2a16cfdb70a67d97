package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchestd/internal/catalog"
)

// Common errors for memory operations.
var (
	ErrEmptyKey           = errors.New("memstore: key cannot be empty")
	ErrEmptyNamespace     = errors.New("memstore: namespace cannot be empty")
	ErrCheckpointExists   = errors.New("memstore: checkpoint already exists for phase")
	ErrCheckpointNotFound = errors.New("memstore: no checkpoint for phase")
)

// Checkpoint is an immutable snapshot of cumulative progress taken at a
// designated phase boundary, before any agent in that phase has run.
type Checkpoint struct {
	// ID is the unique checkpoint identifier.
	ID string `json:"id"`

	// Phase is the phase this checkpoint was taken at the entry of.
	Phase catalog.Phase `json:"phase"`

	// CumulativeReward is the XP accumulated before the phase started.
	CumulativeReward int `json:"cumulative_reward"`

	// CompletedAgents lists agent keys executed so far, in execution order.
	CompletedAgents []string `json:"completed_agents"`

	// Snapshot is a full copy of the memory store at checkpoint time,
	// keyed by namespaced key.
	Snapshot map[string]any `json:"snapshot"`

	// CreatedAt is when the checkpoint was taken.
	CreatedAt time.Time `json:"created_at"`
}

// Coordinator is the memory-coordination contract consumed by the scheduler.
// All keys are logical (un-prefixed); implementations namespace them under a
// configured prefix.
type Coordinator interface {
	// Store writes a value under the namespaced key.
	Store(ctx context.Context, key string, value any) error

	// Retrieve reads a value. The second return is false when the key is
	// absent, which is not an error.
	Retrieve(ctx context.Context, key string) (any, bool, error)

	// Snapshot returns a consistent point-in-time copy of the full store,
	// keyed by namespaced key.
	Snapshot(ctx context.Context) (map[string]any, error)

	// CreateCheckpoint records an immutable checkpoint for a phase.
	// A second checkpoint for the same phase is an error.
	CreateCheckpoint(ctx context.Context, cp *Checkpoint) error

	// GetCheckpoint returns the checkpoint for a phase, or nil when none
	// was taken.
	GetCheckpoint(ctx context.Context, phase catalog.Phase) (*Checkpoint, error)

	// RestoreCheckpoint replaces the live store with the phase's
	// checkpoint snapshot. Blocking and serialized; completes before any
	// retry begins.
	RestoreCheckpoint(ctx context.Context, phase catalog.Phase) error
}

// InMemory is the reference Coordinator backed by a map. Safe for concurrent
// use, although the scheduler serializes all writes during a run.
type InMemory struct {
	namespace string
	logger    *zap.Logger

	mu          sync.RWMutex
	data        map[string]any
	checkpoints map[catalog.Phase]*Checkpoint
}

// NewInMemory creates an in-memory coordinator namespacing every key under
// the given prefix (e.g. "coding").
func NewInMemory(namespace string, logger *zap.Logger) (*InMemory, error) {
	if namespace == "" {
		return nil, ErrEmptyNamespace
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemory{
		namespace:   namespace,
		logger:      logger.Named("memstore"),
		data:        make(map[string]any),
		checkpoints: make(map[catalog.Phase]*Checkpoint),
	}, nil
}

// Namespace returns the configured key prefix.
func (m *InMemory) Namespace() string { return m.namespace }

// qualify prefixes a logical key with the namespace.
func (m *InMemory) qualify(key string) string {
	return m.namespace + "/" + key
}

// Store implements Coordinator.
func (m *InMemory) Store(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[m.qualify(key)] = value

	m.logger.Debug("stored value", zap.String("key", m.qualify(key)))
	return nil
}

// Retrieve implements Coordinator.
func (m *InMemory) Retrieve(ctx context.Context, key string) (any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[m.qualify(key)]
	return v, ok, nil
}

// Snapshot implements Coordinator.
func (m *InMemory) Snapshot(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out, nil
}

// Keys returns all namespaced keys in sorted order. Intended for inspection
// and tests.
func (m *InMemory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CreateCheckpoint implements Coordinator.
func (m *InMemory) CreateCheckpoint(ctx context.Context, cp *Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cp == nil {
		return errors.New("memstore: checkpoint cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.checkpoints[cp.Phase]; exists {
		return fmt.Errorf("%w: %s", ErrCheckpointExists, cp.Phase)
	}

	stored := &Checkpoint{
		ID:               cp.ID,
		Phase:            cp.Phase,
		CumulativeReward: cp.CumulativeReward,
		CompletedAgents:  append([]string(nil), cp.CompletedAgents...),
		Snapshot:         make(map[string]any, len(cp.Snapshot)),
		CreatedAt:        cp.CreatedAt,
	}
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	for k, v := range cp.Snapshot {
		stored.Snapshot[k] = v
	}
	m.checkpoints[cp.Phase] = stored

	m.logger.Info("checkpoint created",
		zap.String("checkpoint_id", stored.ID),
		zap.String("phase", string(stored.Phase)),
		zap.Int("cumulative_reward", stored.CumulativeReward),
		zap.Int("agents_completed", len(stored.CompletedAgents)),
	)
	return nil
}

// GetCheckpoint implements Coordinator. The returned checkpoint is a defensive
// copy; the stored record is never mutated after creation.
func (m *InMemory) GetCheckpoint(ctx context.Context, phase catalog.Phase) (*Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.checkpoints[phase]
	if !ok {
		return nil, nil
	}

	out := &Checkpoint{
		ID:               cp.ID,
		Phase:            cp.Phase,
		CumulativeReward: cp.CumulativeReward,
		CompletedAgents:  append([]string(nil), cp.CompletedAgents...),
		Snapshot:         make(map[string]any, len(cp.Snapshot)),
		CreatedAt:        cp.CreatedAt,
	}
	for k, v := range cp.Snapshot {
		out.Snapshot[k] = v
	}
	return out, nil
}

// HasCheckpoints reports whether any checkpoint has been taken.
func (m *InMemory) HasCheckpoints() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.checkpoints) > 0
}

// RestoreCheckpoint implements Coordinator.
func (m *InMemory) RestoreCheckpoint(ctx context.Context, phase catalog.Phase) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.checkpoints[phase]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCheckpointNotFound, phase)
	}

	m.data = make(map[string]any, len(cp.Snapshot))
	for k, v := range cp.Snapshot {
		m.data[k] = v
	}

	m.logger.Info("checkpoint restored",
		zap.String("checkpoint_id", cp.ID),
		zap.String("phase", string(phase)),
		zap.Int("keys", len(cp.Snapshot)),
	)
	return nil
}
