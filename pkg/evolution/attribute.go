package evolution

import (
	"fmt"

	apperrors "github.com/kittclouds/lorecards/internal/errors"
)

// Attribute is a closed set of state fields a rule may target.
type Attribute uint8

const (
	AttrUnknown Attribute = iota
	AttrSpecies
	AttrPresence
	AttrAverageIntensity
	AttrBondStrength
	AttrSocialStanding
	AttrRole
	AttrRank
	AttrYear
	AttrStatus
	AttrForm
	AttrCondition
	AttrMarks
	AttrPurity
	AttrGeneration
	AttrSire
	AttrProgeny
	AttrFeats
	AttrTraits
	AttrVisualTier
	AttrVisualWear
)

type attrKind uint8

const (
	kindNone attrKind = iota
	kindNumber
	kindText
	kindList
	kindFeat
)

var attrPaths = map[Attribute]string{
	AttrSpecies:          "species",
	AttrPresence:         "metrics.presence",
	AttrAverageIntensity: "metrics.averageIntensity",
	AttrBondStrength:     "metrics.bondStrength",
	AttrSocialStanding:   "metrics.socialStanding",
	AttrRole:             "classification.role",
	AttrRank:             "classification.rank",
	AttrYear:             "classification.year",
	AttrStatus:           "classification.status",
	AttrForm:             "physical.form",
	AttrCondition:        "physical.condition",
	AttrMarks:            "physical.marks",
	AttrPurity:           "bloodline.purity",
	AttrGeneration:       "bloodline.generation",
	AttrSire:             "bloodline.sire",
	AttrProgeny:          "bloodline.progeny",
	AttrFeats:            "feats",
	AttrTraits:           "traits",
	AttrVisualTier:       "visual.tier",
	AttrVisualWear:       "visual.wear",
}

var pathAttrs = func() map[string]Attribute {
	m := make(map[string]Attribute, len(attrPaths))
	for a, p := range attrPaths {
		m[p] = a
	}
	return m
}()

// ParseAttribute maps a dotted path such as "metrics.bondStrength" to its Attribute.
func ParseAttribute(path string) (Attribute, error) {
	if a, ok := pathAttrs[path]; ok {
		return a, nil
	}
	return AttrUnknown, apperrors.WithMetadata(
		apperrors.CodeInvalidAttribute,
		fmt.Sprintf("unknown attribute path %q", path),
		map[string]string{"attribute": path},
	)
}

// String returns the dotted path.
func (a Attribute) String() string {
	if p, ok := attrPaths[a]; ok {
		return p
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (a Attribute) MarshalText() ([]byte, error) {
	if a == AttrUnknown {
		return nil, fmt.Errorf("marshal attribute: unknown attribute %d", a)
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Attribute) UnmarshalText(text []byte) error {
	parsed, err := ParseAttribute(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Attribute) kind() attrKind {
	switch a {
	case AttrPresence, AttrAverageIntensity, AttrBondStrength, AttrSocialStanding,
		AttrPurity, AttrGeneration, AttrVisualTier, AttrVisualWear:
		return kindNumber
	case AttrSpecies, AttrRole, AttrRank, AttrYear, AttrStatus, AttrForm, AttrCondition, AttrSire:
		return kindText
	case AttrMarks, AttrProgeny, AttrTraits:
		return kindList
	case AttrFeats:
		return kindFeat
	}
	return kindNone
}

// floatField returns the float-backed field for a, or nil.
func (s *State) floatField(a Attribute) *float64 {
	switch a {
	case AttrPresence:
		return &s.Metrics.Presence
	case AttrAverageIntensity:
		return &s.Metrics.AverageIntensity
	case AttrBondStrength:
		return &s.Metrics.BondStrength
	case AttrSocialStanding:
		return &s.Metrics.SocialStanding
	case AttrPurity:
		return &s.Bloodline.Purity
	}
	return nil
}

// intField returns the int-backed field for a, or nil.
func (s *State) intField(a Attribute) *int {
	switch a {
	case AttrGeneration:
		return &s.Bloodline.Generation
	case AttrVisualTier:
		return &s.Visual.Tier
	case AttrVisualWear:
		return &s.Visual.Wear
	}
	return nil
}

func (s *State) textField(a Attribute) *string {
	switch a {
	case AttrSpecies:
		return &s.Species
	case AttrRole:
		return &s.Classification.Role
	case AttrRank:
		return &s.Classification.Rank
	case AttrYear:
		return &s.Classification.Year
	case AttrStatus:
		return &s.Classification.Status
	case AttrForm:
		return &s.Physical.Form
	case AttrCondition:
		return &s.Physical.Condition
	case AttrSire:
		return &s.Bloodline.Sire
	}
	return nil
}

func (s *State) listField(a Attribute) *[]string {
	switch a {
	case AttrMarks:
		return &s.Physical.Marks
	case AttrProgeny:
		return &s.Bloodline.Progeny
	case AttrTraits:
		return &s.Traits
	}
	return nil
}
