package learning

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchestd/internal/catalog"
	"github.com/fyrsmithlabs/orchestd/internal/forensics"
)

// Pattern is a reusable record distilled from a phase review.
type Pattern struct {
	ID        string            `json:"id"`
	Phase     catalog.Phase     `json:"phase"`
	Verdict   forensics.Verdict `json:"verdict"`
	Quality   float64           `json:"quality"`
	Summary   string            `json:"summary"`
	CreatedAt time.Time         `json:"created_at"`
}

// Key groups patterns by phase and verdict type.
func (p *Pattern) Key() string {
	return string(p.Phase) + "/" + string(p.Verdict)
}

// PatternFromCaseFile distills a case file into a pattern record.
func PatternFromCaseFile(cf *forensics.CaseFile, quality float64) *Pattern {
	return &Pattern{
		ID:        cf.CaseID,
		Phase:     cf.Phase,
		Verdict:   cf.Verdict,
		Quality:   quality,
		Summary:   fmt.Sprintf("phase %s reviewed %s: %s", cf.Phase, cf.Verdict, cf.EvidenceSummary),
		CreatedAt: cf.CreatedAt,
	}
}

// PatternStore persists reusable patterns.
type PatternStore interface {
	RecordPattern(ctx context.Context, p *Pattern) error
}

// InMemoryPatternStore keeps patterns grouped by key. Useful as the local
// store and in tests.
type InMemoryPatternStore struct {
	mu       sync.RWMutex
	patterns map[string][]*Pattern
}

// NewInMemoryPatternStore creates an empty store.
func NewInMemoryPatternStore() *InMemoryPatternStore {
	return &InMemoryPatternStore{patterns: make(map[string][]*Pattern)}
}

// RecordPattern implements PatternStore.
func (s *InMemoryPatternStore) RecordPattern(ctx context.Context, p *Pattern) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[p.Key()] = append(s.patterns[p.Key()], p)
	return nil
}

// ByKey returns the patterns recorded under a phase/verdict key.
func (s *InMemoryPatternStore) ByKey(key string) []*Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Pattern(nil), s.patterns[key]...)
}

// Len returns the total pattern count.
func (s *InMemoryPatternStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, ps := range s.patterns {
		n += len(ps)
	}
	return n
}

// ChromemPatternStore persists patterns into an embedded chromem-go
// collection so past reviews are searchable by similarity. The embedding
// function is supplied by the caller; the embedding engine itself lives
// outside this module.
type ChromemPatternStore struct {
	collection *chromem.Collection
	logger     *zap.Logger
}

// chromemCollection is the collection name for promoted patterns.
const chromemCollection = "orchestd_patterns"

// NewChromemPatternStore opens (or creates) the pattern collection on the
// given database.
func NewChromemPatternStore(db *chromem.DB, embed chromem.EmbeddingFunc, logger *zap.Logger) (*ChromemPatternStore, error) {
	if db == nil {
		return nil, fmt.Errorf("learning: chromem db is required")
	}
	if embed == nil {
		return nil, fmt.Errorf("learning: embedding function is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	col, err := db.GetOrCreateCollection(chromemCollection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("learning: opening pattern collection: %w", err)
	}
	return &ChromemPatternStore{collection: col, logger: logger.Named("patterns")}, nil
}

// RecordPattern implements PatternStore.
func (s *ChromemPatternStore) RecordPattern(ctx context.Context, p *Pattern) error {
	doc := chromem.Document{
		ID:      p.ID,
		Content: p.Summary,
		Metadata: map[string]string{
			"phase":   string(p.Phase),
			"verdict": string(p.Verdict),
			"quality": strconv.FormatFloat(p.Quality, 'f', 3, 64),
		},
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("learning: storing pattern %s: %w", p.ID, err)
	}
	s.logger.Debug("pattern promoted",
		zap.String("pattern_id", p.ID),
		zap.String("key", p.Key()),
	)
	return nil
}

// Similar returns up to n patterns whose summaries are closest to the query.
func (s *ChromemPatternStore) Similar(ctx context.Context, query string, n int) ([]*Pattern, error) {
	if count := s.collection.Count(); count < n {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := s.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("learning: pattern query: %w", err)
	}

	out := make([]*Pattern, 0, len(results))
	for _, r := range results {
		quality, _ := strconv.ParseFloat(r.Metadata["quality"], 64)
		out = append(out, &Pattern{
			ID:      r.ID,
			Phase:   catalog.Phase(r.Metadata["phase"]),
			Verdict: forensics.Verdict(r.Metadata["verdict"]),
			Quality: quality,
			Summary: r.Content,
		})
	}
	return out, nil
}
