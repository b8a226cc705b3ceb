package episode

import (
	"fmt"

	apperrors "github.com/kittclouds/lorecards/internal/errors"
)

// MaxRangeLen bounds how many episodes Range enumerates.
const MaxRangeLen = 10000

// ErrRangeTooLong matches (via errors.Is) ranges longer than MaxRangeLen.
var ErrRangeTooLong = apperrors.New(apperrors.CodeRangeTooLong, "episode range too long")

// Layout maps seasons to their episode counts.
type Layout struct {
	Default int         `yaml:"default" json:"default"`
	Seasons map[int]int `yaml:"seasons" json:"seasons,omitempty"`
}

// DefaultLayout returns a layout where every season has DefaultEpisodesPerSeason episodes.
func DefaultLayout() Layout {
	return Layout{Default: DefaultEpisodesPerSeason}
}

// EpisodesIn returns the episode count for season.
func (l Layout) EpisodesIn(season int) int {
	if n, ok := l.Seasons[season]; ok && n > 0 {
		return n
	}
	if l.Default > 0 {
		return l.Default
	}
	return DefaultEpisodesPerSeason
}

// Next returns the episode following id, rolling into the next season
// once id reaches the season's episode count.
func (l Layout) Next(id ID) ID {
	if id.Episode >= l.EpisodesIn(id.Season) {
		return ID{Season: id.Season + 1, Episode: 1}
	}
	return ID{Season: id.Season, Episode: id.Episode + 1}
}

// Contains reports whether id falls within its season's episode count.
func (l Layout) Contains(id ID) bool {
	return id.Episode <= l.EpisodesIn(id.Season)
}

// Range enumerates every episode from..to inclusive.
// A from later than to yields an empty slice. Both ends must exist in the
// layout, and the range may hold at most MaxRangeLen episodes.
func (l Layout) Range(from, to string) ([]ID, error) {
	start, err := Parse(from)
	if err != nil {
		return nil, err
	}
	end, err := Parse(to)
	if err != nil {
		return nil, err
	}
	for _, id := range []ID{start, end} {
		if !l.Contains(id) {
			return nil, apperrors.WithMetadata(
				apperrors.CodeInvalidEpisodeID,
				fmt.Sprintf("episode %s is past the end of season %d (%d episodes)", id, id.Season, l.EpisodesIn(id.Season)),
				map[string]string{"episodeId": id.String()},
			)
		}
	}

	var out []ID
	for cur := start; cur.Compare(end) <= 0; cur = l.Next(cur) {
		if len(out) == MaxRangeLen {
			return nil, fmt.Errorf("%s..%s: %w (limit %d)", start, end, ErrRangeTooLong, MaxRangeLen)
		}
		out = append(out, cur)
	}
	return out, nil
}

// Strings formats ids in canonical form.
func Strings(ids []ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
