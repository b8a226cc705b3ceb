package evolution

import "slices"

// MetricDelta is a before/after pair for one changed metric.
type MetricDelta struct {
	Metric string  `json:"metric"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
	Delta  float64 `json:"delta"`
}

// Diff describes how b differs from a.
type Diff struct {
	Metrics       []MetricDelta `json:"metrics"`
	FeatsAdded    []Feat        `json:"featsAdded"`
	FeatsRemoved  []Feat        `json:"featsRemoved"`
	TraitsAdded   []string      `json:"traitsAdded"`
	TraitsRemoved []string      `json:"traitsRemoved"`
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return len(d.Metrics) == 0 &&
		len(d.FeatsAdded) == 0 && len(d.FeatsRemoved) == 0 &&
		len(d.TraitsAdded) == 0 && len(d.TraitsRemoved) == 0
}

// CompareStates compares the four metrics, feats by id and traits of two states.
func CompareStates(a, b *State) Diff {
	d := Diff{
		Metrics:       []MetricDelta{},
		FeatsAdded:    featsMissing(b.Feats, a.Feats),
		FeatsRemoved:  featsMissing(a.Feats, b.Feats),
		TraitsAdded:   stringsMissing(b.Traits, a.Traits),
		TraitsRemoved: stringsMissing(a.Traits, b.Traits),
	}

	pairs := []struct {
		name          string
		before, after float64
	}{
		{"presence", a.Metrics.Presence, b.Metrics.Presence},
		{"averageIntensity", a.Metrics.AverageIntensity, b.Metrics.AverageIntensity},
		{"bondStrength", a.Metrics.BondStrength, b.Metrics.BondStrength},
		{"socialStanding", a.Metrics.SocialStanding, b.Metrics.SocialStanding},
	}
	for _, p := range pairs {
		if p.before != p.after {
			d.Metrics = append(d.Metrics, MetricDelta{
				Metric: p.name,
				Before: p.before,
				After:  p.after,
				Delta:  p.after - p.before,
			})
		}
	}
	return d
}

// featsMissing returns feats in from whose id is absent from other.
func featsMissing(from, other []Feat) []Feat {
	out := []Feat{}
	for _, f := range from {
		if !slices.ContainsFunc(other, func(o Feat) bool { return o.ID == f.ID }) {
			out = append(out, f)
		}
	}
	return out
}

func stringsMissing(from, other []string) []string {
	out := []string{}
	for _, s := range from {
		if !slices.Contains(other, s) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// InterpolateStates blends metrics and bloodline purity between from and to.
// Every other field is copied from from. progress is clamped to [0, 1].
func InterpolateStates(from, to *State, progress float64) *State {
	switch {
	case progress < 0:
		progress = 0
	case progress > 1:
		progress = 1
	}

	out := from.Clone()
	out.Metrics.Presence = lerp(from.Metrics.Presence, to.Metrics.Presence, progress)
	out.Metrics.AverageIntensity = lerp(from.Metrics.AverageIntensity, to.Metrics.AverageIntensity, progress)
	out.Metrics.BondStrength = lerp(from.Metrics.BondStrength, to.Metrics.BondStrength, progress)
	out.Metrics.SocialStanding = lerp(from.Metrics.SocialStanding, to.Metrics.SocialStanding, progress)
	out.Bloodline.Purity = lerp(from.Bloodline.Purity, to.Bloodline.Purity, progress)
	return out
}

func lerp(a, b, t float64) float64 {
	if t == 1 {
		return b
	}
	return a + (b-a)*t
}
