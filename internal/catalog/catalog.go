// Package catalog loads the roster, evolution rules, relationships and season
// layout from YAML files on a hackpadfs filesystem.
package catalog

import (
	"errors"
	"fmt"
	"path"
	"strconv"

	"github.com/hack-pad/hackpadfs"
	"gopkg.in/yaml.v3"

	apperrors "github.com/kittclouds/lorecards/internal/errors"
	"github.com/kittclouds/lorecards/internal/store"
	"github.com/kittclouds/lorecards/pkg/episode"
	"github.com/kittclouds/lorecards/pkg/evolution"
)

// File names inside a catalog directory.
const (
	CharactersFile    = "characters.yaml"
	RulesFile         = "rules.yaml"
	RelationshipsFile = "relationships.yaml"
	SeasonsFile       = "seasons.yaml"
)

// Catalog is the full authored content of a universe.
type Catalog struct {
	Characters    []*evolution.Character
	Rules         []evolution.Rule
	Relationships []*store.Relationship
	Layout        episode.Layout
}

// rawRule mirrors the authored rule shape, where the effect carries a single
// untyped value.
type rawRule struct {
	ID      string `yaml:"id"`
	Trigger struct {
		Type      string `yaml:"type"`
		Condition string `yaml:"condition"`
	} `yaml:"trigger"`
	Effect struct {
		Operation string    `yaml:"operation"`
		Attribute string    `yaml:"attribute"`
		Value     yaml.Node `yaml:"value"`
	} `yaml:"effect"`
}

type rawRelationship struct {
	ID            string   `yaml:"id"`
	Source        string   `yaml:"source"`
	Target        string   `yaml:"target"`
	Kind          string   `yaml:"kind"`
	Weight        *float64 `yaml:"weight"`
	Since         string   `yaml:"since"`
	Bidirectional bool     `yaml:"bidirectional"`
}

// Load reads a catalog directory. characters.yaml is required; the other
// files are optional and yield empty collections when absent.
func Load(fsys hackpadfs.FS, dir string) (*Catalog, error) {
	c := &Catalog{Layout: episode.DefaultLayout()}

	if _, err := readYAML(fsys, path.Join(dir, CharactersFile), &c.Characters, true); err != nil {
		return nil, err
	}
	for i, ch := range c.Characters {
		if ch == nil || ch.ID == "" {
			return nil, fmt.Errorf("%s: entry %d has no id", CharactersFile, i)
		}
	}

	var rules []rawRule
	if _, err := readYAML(fsys, path.Join(dir, RulesFile), &rules, false); err != nil {
		return nil, err
	}
	c.Rules = make([]evolution.Rule, 0, len(rules))
	for i, raw := range rules {
		r, err := raw.toRule()
		if err == nil {
			err = r.Validate()
		}
		if err != nil {
			return nil, fmt.Errorf("%s: rule %d: %w", RulesFile, i, err)
		}
		c.Rules = append(c.Rules, r)
	}

	var rels []rawRelationship
	if _, err := readYAML(fsys, path.Join(dir, RelationshipsFile), &rels, false); err != nil {
		return nil, err
	}
	c.Relationships = make([]*store.Relationship, 0, len(rels))
	for i, raw := range rels {
		if raw.Source == "" || raw.Target == "" || raw.Kind == "" {
			return nil, fmt.Errorf("%s: entry %d needs source, target and kind", RelationshipsFile, i)
		}
		weight := 1.0
		if raw.Weight != nil {
			weight = *raw.Weight
		}
		id := raw.ID
		if id == "" {
			// stable across re-imports
			id = raw.Source + ":" + raw.Kind + ":" + raw.Target
		}
		c.Relationships = append(c.Relationships, &store.Relationship{
			ID:            id,
			SourceID:      raw.Source,
			TargetID:      raw.Target,
			Kind:          raw.Kind,
			Weight:        weight,
			Since:         raw.Since,
			Bidirectional: raw.Bidirectional,
		})
	}

	var layout episode.Layout
	found, err := readYAML(fsys, path.Join(dir, SeasonsFile), &layout, false)
	if err != nil {
		return nil, err
	}
	if found {
		if layout.Default <= 0 {
			layout.Default = episode.DefaultEpisodesPerSeason
		}
		c.Layout = layout
	}

	return c, nil
}

// readYAML decodes file into out. Reports whether the file existed.
func readYAML(fsys hackpadfs.FS, file string, out any, required bool) (bool, error) {
	content, err := hackpadfs.ReadFile(fsys, file)
	if err != nil {
		if errors.Is(err, hackpadfs.ErrNotExist) {
			if !required {
				return false, nil
			}
			return false, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("read %s: %v", file, err), err)
		}
		return false, fmt.Errorf("read %s: %w", file, err)
	}
	if err := yaml.Unmarshal(content, out); err != nil {
		return true, fmt.Errorf("parse %s: %w", file, err)
	}
	return true, nil
}

func (raw rawRule) toRule() (evolution.Rule, error) {
	attr, err := evolution.ParseAttribute(raw.Effect.Attribute)
	if err != nil {
		return evolution.Rule{}, err
	}

	r := evolution.Rule{
		ID: raw.ID,
		Trigger: evolution.Trigger{
			Type:      evolution.TriggerType(raw.Trigger.Type),
			Condition: raw.Trigger.Condition,
		},
		Effect: evolution.Effect{
			Operation: evolution.Operation(raw.Effect.Operation),
			Attribute: attr,
		},
	}

	v := &raw.Effect.Value
	switch v.Kind {
	case 0:
		// absent; rule validation reports what is missing
	case yaml.ScalarNode:
		switch v.Tag {
		case "!!null":
		case "!!int", "!!float":
			n, err := strconv.ParseFloat(v.Value, 64)
			if err != nil {
				return r, fmt.Errorf("value %q: %w", v.Value, err)
			}
			r.Effect.Number = n
		default:
			r.Effect.Text = v.Value
		}
	case yaml.SequenceNode:
		if err := v.Decode(&r.Effect.Values); err != nil {
			return r, fmt.Errorf("value: %w", err)
		}
	case yaml.MappingNode:
		var feat struct {
			ID   string `yaml:"id"`
			Name string `yaml:"name"`
		}
		if err := v.Decode(&feat); err != nil {
			return r, fmt.Errorf("value: %w", err)
		}
		r.Effect.Text = feat.ID
		r.Effect.Label = feat.Name
	default:
		return r, fmt.Errorf("unsupported value at line %d", v.Line)
	}

	return r, nil
}

// LoadLayout reads only seasons.yaml. Returns fallback when the file is absent.
func LoadLayout(fsys hackpadfs.FS, dir string, fallback episode.Layout) (episode.Layout, error) {
	var layout episode.Layout
	found, err := readYAML(fsys, path.Join(dir, SeasonsFile), &layout, false)
	if err != nil || !found {
		return fallback, err
	}
	if layout.Default <= 0 {
		layout.Default = fallback.Default
	}
	return layout, nil
}
