package evolution

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kittclouds/lorecards/pkg/episode"
)

// Engine computes and caches temporal character states.
// Safe for concurrent use.
type Engine struct {
	characters map[string]*Character
	rules      []compiledRule
	layout     episode.Layout
	roles      *RoleMatcher
	logger     *zap.Logger

	mu    sync.RWMutex
	cache map[string]*State
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithLayout sets the season layout used for presence.
func WithLayout(l episode.Layout) Option {
	return func(e *Engine) { e.layout = l }
}

// WithRoleRules replaces the default role rules.
func WithRoleRules(rules []RoleRule) Option {
	return func(e *Engine) { e.roles = NewRoleMatcher(rules) }
}

// NewEngine indexes characters by id and compiles rules, preserving their order.
func NewEngine(characters []*Character, rules []Rule, opts ...Option) (*Engine, error) {
	e := &Engine{
		characters: make(map[string]*Character, len(characters)),
		layout:     episode.DefaultLayout(),
		logger:     zap.NewNop(),
		cache:      make(map[string]*State),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.roles == nil {
		e.roles = NewRoleMatcher(DefaultRoleRules())
	}

	for _, c := range characters {
		if c == nil {
			continue
		}
		if _, dup := e.characters[c.ID]; dup {
			e.logger.Warn("duplicate character id, later record wins", zap.String("character", c.ID))
		}
		e.characters[c.ID] = c
	}

	e.rules = make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		cr, err := compileRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if cr.inert {
			e.logger.Debug("rule has unsupported trigger type and will never apply",
				zap.Int("index", i), zap.String("type", string(r.Trigger.Type)))
		}
		e.rules = append(e.rules, cr)
	}
	return e, nil
}

// Layout returns the season layout.
func (e *Engine) Layout() episode.Layout {
	return e.layout
}

// Character returns the base record for id.
func (e *Engine) Character(id string) (*Character, bool) {
	c, ok := e.characters[id]
	return c, ok
}

// CharacterIDs returns every roster id, sorted.
func (e *Engine) CharacterIDs() []string {
	ids := make([]string, 0, len(e.characters))
	for id := range e.characters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CalculateState returns the state of characterID at episodeID.
// Cached states are returned unchanged; callers must treat them as read-only.
func (e *Engine) CalculateState(characterID, episodeID string) (*State, error) {
	c, ok := e.characters[characterID]
	if !ok {
		return nil, characterNotFound(characterID)
	}
	at, err := episode.Parse(episodeID)
	if err != nil {
		return nil, err
	}

	key := cacheKey(characterID, at.String())
	e.mu.RLock()
	cached, hit := e.cache[key]
	e.mu.RUnlock()
	if hit {
		return cached, nil
	}

	s := e.baseline(c, at)
	applied := 0
	for _, r := range e.rules {
		if r.appliesTo(characterID, at) {
			r.apply(s)
			applied++
		}
	}
	s.Metrics.Presence = clampPercent(s.Metrics.Presence)
	s.Bloodline.Purity = clampPercent(s.Bloodline.Purity)

	e.logger.Debug("state computed",
		zap.String("character", characterID),
		zap.String("episode", s.EpisodeID),
		zap.Int("rulesApplied", applied))

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.cache[key]; ok {
		return existing, nil
	}
	e.cache[key] = s
	return s, nil
}

// StateHistory calculates states for each episode id in the given order.
func (e *Engine) StateHistory(characterID string, episodeIDs []string) ([]*State, error) {
	out := make([]*State, 0, len(episodeIDs))
	for _, ep := range episodeIDs {
		s, err := e.CalculateState(characterID, ep)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Warm precomputes every (character, episode) pair with bounded parallelism.
func (e *Engine) Warm(ctx context.Context, characterIDs, episodeIDs []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, id := range characterIDs {
		for _, ep := range episodeIDs {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				_, err := e.CalculateState(id, ep)
				return err
			})
		}
	}
	return g.Wait()
}

// ClearCache drops every cached state.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]*State)
}

// CacheLen returns the number of cached states.
func (e *Engine) CacheLen() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

// =============================================================================
// Baseline
// =============================================================================

func (e *Engine) baseline(c *Character, at episode.ID) *State {
	can := c.Canonical
	return &State{
		EpisodeID:   at.String(),
		Season:      at.Season,
		Episode:     at.Episode,
		CharacterID: c.ID,
		Name:        c.Name,
		Species:     deriveSpecies(can),
		Metrics: Metrics{
			Presence:         e.presence(c, at),
			AverageIntensity: can.Intensity,
			BondStrength:     can.BondStrength,
			SocialStanding:   can.SocialStanding,
		},
		Classification: Classification{
			Role:   e.roles.Infer(c.ArcTags),
			Rank:   can.Rank,
			Year:   can.Year,
			Status: can.Status,
		},
		Physical: Physical{
			Form:      can.Form,
			Condition: can.Condition,
			Marks:     slices.Clone(can.Marks),
		},
		Bloodline: Bloodline{
			Purity:     can.Purity,
			Generation: can.Generation,
			Sire:       can.Sire,
			Progeny:    slices.Clone(can.Progeny),
		},
		Feats:  []Feat{},
		Traits: slices.Clone(c.Traits),
		Visual: Visual{Tier: can.Tier},
	}
}

func deriveSpecies(can Canonical) string {
	switch {
	case can.Species != "":
		return strings.ToLower(can.Species)
	case can.Sire != "":
		return "vampire"
	}
	return "human"
}

// presence is the share of the queried season's episodes, up to and including
// at, in which the character appeared.
func (e *Engine) presence(c *Character, at episode.ID) float64 {
	seen := make(map[int]bool)
	for _, raw := range c.Appearances {
		id, err := episode.Parse(raw)
		if err != nil {
			continue
		}
		if id.Season == at.Season && id.Episode <= at.Episode {
			seen[id.Episode] = true
		}
	}
	total := e.layout.EpisodesIn(at.Season)
	return clampPercent(math.Round(float64(len(seen)) / float64(total) * 100))
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
