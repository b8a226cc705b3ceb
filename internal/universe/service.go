// Package universe wires the evolution engine to persistence, the
// relationship graph and the similarity index.
package universe

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/hack-pad/hackpadfs"
	"go.uber.org/zap"

	"github.com/kittclouds/lorecards/internal/catalog"
	"github.com/kittclouds/lorecards/internal/store"
	"github.com/kittclouds/lorecards/pkg/analysis"
	"github.com/kittclouds/lorecards/pkg/episode"
	"github.com/kittclouds/lorecards/pkg/evolution"
	"github.com/kittclouds/lorecards/pkg/graph"
	"github.com/kittclouds/lorecards/pkg/lineage"
	"github.com/kittclouds/lorecards/pkg/similarity"
)

// Service answers state queries for a stored universe.
// Safe for concurrent use.
type Service struct {
	store  store.Storer
	logger *zap.Logger

	indexFS   hackpadfs.FS
	indexPath string

	mu     sync.RWMutex
	layout episode.Layout
	engine *evolution.Engine
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLayout sets the season layout.
func WithLayout(l episode.Layout) Option {
	return func(s *Service) { s.layout = l }
}

// WithIndexFS persists the similarity index of each episode under dir on fs,
// one file per episode. Import empties dir.
func WithIndexFS(fs hackpadfs.FS, dir string) Option {
	return func(s *Service) {
		s.indexFS = fs
		s.indexPath = dir
	}
}

// New creates a service over st. Call Reload or Import before querying.
func New(st store.Storer, opts ...Option) *Service {
	s := &Service{
		store:  st,
		logger: zap.NewNop(),
		layout: episode.DefaultLayout(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Layout returns the active season layout.
func (s *Service) Layout() episode.Layout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layout
}

// Import replaces stored rules with the catalog's, upserts its characters and
// relationships, adopts its layout and rebuilds the engine. Stored snapshots
// of imported characters are dropped since they may be stale.
// The catalog is checked before anything is written, so a rejected catalog
// leaves the store untouched.
func (s *Service) Import(c *catalog.Catalog) error {
	if _, err := evolution.NewEngine(c.Characters, c.Rules, evolution.WithLayout(c.Layout)); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	if err := s.dropIndexes(); err != nil {
		return err
	}

	for _, ch := range c.Characters {
		if err := s.store.UpsertCharacter(ch); err != nil {
			return fmt.Errorf("import character %s: %w", ch.ID, err)
		}
		if err := s.store.DeleteSnapshots(ch.ID); err != nil {
			return fmt.Errorf("drop snapshots for %s: %w", ch.ID, err)
		}
	}
	if err := s.store.ClearRules(); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}
	if err := s.store.AppendRules(c.Rules...); err != nil {
		return fmt.Errorf("import rules: %w", err)
	}
	for _, r := range c.Relationships {
		if err := s.store.UpsertRelationship(r); err != nil {
			return fmt.Errorf("import relationship %s->%s: %w", r.SourceID, r.TargetID, err)
		}
	}

	s.mu.Lock()
	s.layout = c.Layout
	s.mu.Unlock()

	s.logger.Info("catalog imported",
		zap.Int("characters", len(c.Characters)),
		zap.Int("rules", len(c.Rules)),
		zap.Int("relationships", len(c.Relationships)))

	return s.Reload()
}

// Reload rebuilds the engine from the store, discarding cached states.
func (s *Service) Reload() error {
	characters, err := s.store.ListCharacters()
	if err != nil {
		return fmt.Errorf("list characters: %w", err)
	}
	rules, err := s.store.ListRules()
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	engine, err := evolution.NewEngine(characters, rules,
		evolution.WithLogger(s.logger.Named("engine")),
		evolution.WithLayout(s.layout))
	if err != nil {
		return err
	}
	s.engine = engine
	s.logger.Debug("engine rebuilt", zap.Int("characters", len(characters)), zap.Int("rules", len(rules)))
	return nil
}

// Engine returns the current engine, building it on first use.
func (s *Service) Engine() (*evolution.Engine, error) {
	s.mu.RLock()
	e := s.engine
	s.mu.RUnlock()
	if e != nil {
		return e, nil
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine, nil
}

// State computes a character's state and records it as a snapshot.
func (s *Service) State(characterID, episodeID string) (*evolution.State, error) {
	e, err := s.Engine()
	if err != nil {
		return nil, err
	}
	st, err := e.CalculateState(characterID, episodeID)
	if err != nil {
		return nil, err
	}
	if err := s.store.PutSnapshot(store.NewSnapshot(st)); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	return st, nil
}

// History returns states for every episode between from and to inclusive.
func (s *Service) History(characterID, from, to string) ([]*evolution.State, error) {
	e, err := s.Engine()
	if err != nil {
		return nil, err
	}
	ids, err := s.Layout().Range(from, to)
	if err != nil {
		return nil, err
	}
	return e.StateHistory(characterID, episode.Strings(ids))
}

// Diff compares a character between two episodes.
func (s *Service) Diff(characterID, from, to string) (evolution.Diff, error) {
	e, err := s.Engine()
	if err != nil {
		return evolution.Diff{}, err
	}
	a, err := e.CalculateState(characterID, from)
	if err != nil {
		return evolution.Diff{}, err
	}
	b, err := e.CalculateState(characterID, to)
	if err != nil {
		return evolution.Diff{}, err
	}
	return evolution.CompareStates(a, b), nil
}

// Interpolate blends a character's states at from and to.
func (s *Service) Interpolate(characterID, from, to string, progress float64) (*evolution.State, error) {
	e, err := s.Engine()
	if err != nil {
		return nil, err
	}
	a, err := e.CalculateState(characterID, from)
	if err != nil {
		return nil, err
	}
	b, err := e.CalculateState(characterID, to)
	if err != nil {
		return nil, err
	}
	return evolution.InterpolateStates(a, b, progress), nil
}

// Snapshot computes every character at episodeID in parallel, persists the
// results and returns them ordered by character id.
func (s *Service) Snapshot(ctx context.Context, episodeID string) ([]*evolution.State, error) {
	e, err := s.Engine()
	if err != nil {
		return nil, err
	}
	ids := e.CharacterIDs()
	if err := e.Warm(ctx, ids, []string{episodeID}); err != nil {
		return nil, err
	}

	states := make([]*evolution.State, 0, len(ids))
	for _, id := range ids {
		st, err := e.CalculateState(id, episodeID)
		if err != nil {
			return nil, err
		}
		if err := s.store.PutSnapshot(store.NewSnapshot(st)); err != nil {
			return nil, fmt.Errorf("save snapshot: %w", err)
		}
		states = append(states, st)
	}
	return states, nil
}

// Graph builds the relationship graph as of episodeID: stored relationships
// that have started by then, plus sire lineage from the computed states.
func (s *Service) Graph(ctx context.Context, episodeID string) (*graph.Graph, error) {
	at, err := episode.Parse(episodeID)
	if err != nil {
		return nil, err
	}
	states, err := s.Snapshot(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	rels, err := s.store.ListRelationships()
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}

	g := graph.NewGraph()
	for _, st := range states {
		g.EnsureNode(st.CharacterID, st.Name, lineage.Kind)
	}
	for _, r := range rels {
		if r.Since != "" {
			since, err := episode.Parse(r.Since)
			if err != nil {
				s.logger.Warn("relationship has invalid since, ignoring it",
					zap.String("id", r.ID), zap.String("since", r.Since))
				continue
			}
			if at.Before(since) {
				continue
			}
		}
		relation := RelationFor(r.Kind)
		g.EnsureNode(r.SourceID, r.SourceID, lineage.Kind)
		g.EnsureNode(r.TargetID, r.TargetID, lineage.Kind)
		g.AddEdge(r.SourceID, r.TargetID, &graph.Edge{Relation: relation, Weight: r.Weight, Since: r.Since})
		if r.Bidirectional {
			g.AddEdge(r.TargetID, r.SourceID, &graph.Edge{Relation: relation, Weight: r.Weight, Since: r.Since})
		}
	}
	added := lineage.AddLineageEdges(g, states)

	s.logger.Debug("graph built",
		zap.String("episode", at.String()),
		zap.Int("nodes", g.NodeCount()),
		zap.Int("edges", g.EdgeCount()),
		zap.Int("lineageEdges", added))
	return g, nil
}

// FamilyClusters groups characters connected by family or sire relations.
func (s *Service) FamilyClusters(ctx context.Context, episodeID string) ([][]string, error) {
	g, err := s.Graph(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	return g.Clusters(graph.FamilyRelations...), nil
}

// Similar returns the k characters whose states at episodeID are nearest to
// characterID's, using an HNSW index built over that episode. With an index
// filesystem configured, a stored index is reused while it still holds the
// episode's current states.
func (s *Service) Similar(ctx context.Context, characterID, episodeID string, k int) ([]similarity.Match, error) {
	at, err := episode.Parse(episodeID)
	if err != nil {
		return nil, err
	}
	e, err := s.Engine()
	if err != nil {
		return nil, err
	}
	if _, ok := e.Character(characterID); !ok {
		return nil, fmt.Errorf("similar %q: %w", characterID, evolution.ErrCharacterNotFound)
	}
	states, err := s.Snapshot(ctx, at.String())
	if err != nil {
		return nil, err
	}

	x, err := s.episodeIndex(at, states)
	if err != nil {
		return nil, err
	}
	return x.Similar(characterID, k)
}

// IndexFile is the path of the persisted similarity index for an episode.
func (s *Service) IndexFile(at episode.ID) string {
	return path.Join(s.indexPath, at.String()+".idx")
}

func (s *Service) episodeIndex(at episode.ID, states []*evolution.State) (*similarity.Index, error) {
	if s.indexFS == nil || s.indexPath == "" {
		return buildIndex(similarity.NewIndex(nil, ""), states)
	}

	file := s.IndexFile(at)
	stored, err := similarity.OpenIndex(s.indexFS, file)
	if err != nil {
		s.logger.Warn("similarity index unreadable, rebuilding it", zap.String("file", file), zap.Error(err))
	} else if indexHolds(stored, states) {
		s.logger.Debug("similarity index reused", zap.String("file", file), zap.Int("size", stored.Len()))
		return stored, nil
	}

	x, err := buildIndex(similarity.NewIndex(s.indexFS, file), states)
	if err != nil {
		return nil, err
	}
	if err := hackpadfs.MkdirAll(s.indexFS, s.indexPath, 0755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	if err := x.Save(); err != nil {
		return nil, err
	}
	s.logger.Debug("similarity index built", zap.String("file", file), zap.Int("size", x.Len()))
	return x, nil
}

func buildIndex(x *similarity.Index, states []*evolution.State) (*similarity.Index, error) {
	for _, st := range states {
		if err := x.AddState(st); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// indexHolds reports whether x indexes exactly states, with matching vectors.
func indexHolds(x *similarity.Index, states []*evolution.State) bool {
	if x.Len() != len(states) {
		return false
	}
	for _, st := range states {
		v, ok := x.Vector(st.CharacterID)
		if !ok || !slices.Equal(v, st.Vector()) {
			return false
		}
	}
	return true
}

// dropIndexes removes every persisted similarity index.
func (s *Service) dropIndexes() error {
	if s.indexFS == nil || s.indexPath == "" {
		return nil
	}
	if err := hackpadfs.RemoveAll(s.indexFS, s.indexPath); err != nil {
		return fmt.Errorf("drop similarity indexes: %w", err)
	}
	return nil
}

// NearestStored ranks stored snapshots at episodeID by cosine distance to
// characterID's state, excluding the character itself.
func (s *Service) NearestStored(ctx context.Context, characterID, episodeID string, k int) ([]store.Neighbor, error) {
	if _, err := s.Snapshot(ctx, episodeID); err != nil {
		return nil, err
	}
	e, err := s.Engine()
	if err != nil {
		return nil, err
	}
	st, err := e.CalculateState(characterID, episodeID)
	if err != nil {
		return nil, err
	}
	neighbors, err := s.store.NearestSnapshots(st.EpisodeID, st.Vector(), k+1)
	if err != nil {
		return nil, fmt.Errorf("nearest snapshots: %w", err)
	}
	out := make([]store.Neighbor, 0, k)
	for _, n := range neighbors {
		if n.CharacterID != characterID && len(out) < k {
			out = append(out, n)
		}
	}
	return out, nil
}

// Continuity scores how the cast carries over across episodes from..to,
// crediting links in the relationship graph as of to.
func (s *Service) Continuity(ctx context.Context, from, to string) (analysis.ContinuityResult, error) {
	ids, err := s.Layout().Range(from, to)
	if err != nil {
		return analysis.ContinuityResult{}, err
	}
	g, err := s.Graph(ctx, to)
	if err != nil {
		return analysis.ContinuityResult{}, err
	}
	e, err := s.Engine()
	if err != nil {
		return analysis.ContinuityResult{}, err
	}

	characters := make([]*evolution.Character, 0, len(e.CharacterIDs()))
	for _, id := range e.CharacterIDs() {
		if c, ok := e.Character(id); ok {
			characters = append(characters, c)
		}
	}
	return analysis.NewAnalyzer(g).Continuity(characters, ids), nil
}

// ClearCache drops the engine's cached states.
func (s *Service) ClearCache() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine != nil {
		s.engine.ClearCache()
	}
}

// RelationFor maps a stored relationship kind to a graph relation.
func RelationFor(kind string) string {
	switch strings.ToLower(kind) {
	case "sire", "sired":
		return graph.RelSired
	default:
		return strings.ToUpper(kind)
	}
}
