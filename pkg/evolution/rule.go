package evolution

import (
	"fmt"
	"math"
	"slices"
	"strings"

	apperrors "github.com/kittclouds/lorecards/internal/errors"
	"github.com/kittclouds/lorecards/pkg/episode"
)

// TriggerType selects how a Trigger's condition is read.
type TriggerType string

const (
	// TriggerEpisode fires for every character once the condition episode is reached.
	TriggerEpisode TriggerType = "episode"
	// TriggerCharacter fires for one character; condition is "characterID:episodeID".
	TriggerCharacter TriggerType = "character"
)

// Operation is the mutation an Effect performs.
type Operation string

const (
	OpSet      Operation = "set"
	OpAdd      Operation = "add"
	OpMultiply Operation = "multiply"
	OpUnlock   Operation = "unlock"
)

// Trigger decides when a rule becomes active.
type Trigger struct {
	Type      TriggerType `json:"type"`
	Condition string      `json:"condition"`
}

// Effect mutates one attribute of a working state.
//
// Number is used by numeric attributes, Text by text attributes and as the
// feat id for unlock, Values by list attributes. Label names an unlocked feat.
type Effect struct {
	Operation Operation `json:"operation"`
	Attribute Attribute `json:"attribute"`
	Number    float64   `json:"number,omitempty"`
	Text      string    `json:"text,omitempty"`
	Values    []string  `json:"values,omitempty"`
	Label     string    `json:"label,omitempty"`
}

// Rule pairs a trigger with an effect.
type Rule struct {
	ID      string  `json:"id,omitempty"`
	Trigger Trigger `json:"trigger"`
	Effect  Effect  `json:"effect"`
}

// Validate checks the trigger condition and that the operation suits the attribute.
func (r Rule) Validate() error {
	if _, err := compileRule(r); err != nil {
		return err
	}
	return nil
}

func invalidRule(r Rule, format string, args ...any) error {
	return apperrors.WithMetadata(
		apperrors.CodeInvalidRule,
		"invalid rule: "+fmt.Sprintf(format, args...),
		map[string]string{"ruleId": r.ID, "trigger": r.Trigger.Condition},
	)
}

// compiledRule is a Rule with its trigger pre-parsed.
type compiledRule struct {
	Rule
	character string
	at        episode.ID
	inert     bool // unknown trigger type, never applies
}

func compileRule(r Rule) (compiledRule, error) {
	c := compiledRule{Rule: r}

	switch r.Trigger.Type {
	case TriggerEpisode:
		id, err := episode.Parse(r.Trigger.Condition)
		if err != nil {
			return c, invalidRule(r, "trigger condition %q is not an episode id", r.Trigger.Condition)
		}
		c.at = id
	case TriggerCharacter:
		i := strings.LastIndex(r.Trigger.Condition, ":")
		if i <= 0 {
			return c, invalidRule(r, "character trigger %q must be characterID:episodeID", r.Trigger.Condition)
		}
		id, err := episode.Parse(r.Trigger.Condition[i+1:])
		if err != nil {
			return c, invalidRule(r, "character trigger %q has no valid episode id", r.Trigger.Condition)
		}
		c.character = r.Trigger.Condition[:i]
		c.at = id
	default:
		c.inert = true
	}

	e := r.Effect
	switch e.Attribute.kind() {
	case kindNumber:
		if e.Operation != OpSet && e.Operation != OpAdd && e.Operation != OpMultiply {
			return c, invalidRule(r, "operation %q not allowed on %s", e.Operation, e.Attribute)
		}
	case kindText:
		if e.Operation != OpSet {
			return c, invalidRule(r, "operation %q not allowed on %s", e.Operation, e.Attribute)
		}
	case kindList:
		if e.Operation != OpSet && e.Operation != OpAdd {
			return c, invalidRule(r, "operation %q not allowed on %s", e.Operation, e.Attribute)
		}
	case kindFeat:
		if e.Operation != OpUnlock {
			return c, invalidRule(r, "operation %q not allowed on %s", e.Operation, e.Attribute)
		}
		if e.Text == "" {
			return c, invalidRule(r, "unlock requires a feat id")
		}
	default:
		return c, invalidRule(r, "unknown attribute")
	}
	return c, nil
}

// appliesTo reports whether the rule is active for characterID at episode at.
func (c compiledRule) appliesTo(characterID string, at episode.ID) bool {
	if c.inert {
		return false
	}
	if c.character != "" && c.character != characterID {
		return false
	}
	return c.at.Compare(at) <= 0
}

// apply mutates s in place.
func (c compiledRule) apply(s *State) {
	e := c.Effect
	switch e.Attribute.kind() {
	case kindNumber:
		if p := s.floatField(e.Attribute); p != nil {
			*p = combine(e.Operation, *p, e.Number)
		} else if p := s.intField(e.Attribute); p != nil {
			*p = int(math.Round(combine(e.Operation, float64(*p), e.Number)))
		}
	case kindText:
		*s.textField(e.Attribute) = e.Text
	case kindList:
		list := s.listField(e.Attribute)
		values := e.Values
		if len(values) == 0 && e.Text != "" {
			values = []string{e.Text}
		}
		if e.Operation == OpSet {
			*list = slices.Clone(values)
			return
		}
		for _, v := range values {
			if !slices.Contains(*list, v) {
				*list = append(*list, v)
			}
		}
	case kindFeat:
		if s.HasFeat(e.Text) {
			return
		}
		s.Feats = append(s.Feats, Feat{ID: e.Text, Name: e.Label, UnlockedAt: c.at.String()})
	}
}

func combine(op Operation, cur, v float64) float64 {
	switch op {
	case OpSet:
		return v
	case OpAdd:
		return cur + v
	case OpMultiply:
		return cur * v
	}
	return cur
}
