// Package episode parses and orders season/episode identifiers such as "s01e03".
//
// Ordering is season-major, episode-minor and never depends on the raw string,
// so "s1e10" sorts after "s01e09".
package episode

import (
	"fmt"
	"regexp"
	"strconv"

	apperrors "github.com/kittclouds/lorecards/internal/errors"
)

// DefaultEpisodesPerSeason is used for any season a Layout does not list.
const DefaultEpisodesPerSeason = 7

// ErrInvalidID matches (via errors.Is) every malformed episode id error.
var ErrInvalidID = apperrors.New(apperrors.CodeInvalidEpisodeID, "invalid episode id")

var idPattern = regexp.MustCompile(`^[sS](\d+)[eE](\d+)$`)

// ID is a parsed episode identifier.
type ID struct {
	Season  int `json:"season"`
	Episode int `json:"episode"`
}

// Parse parses "sNNeNN". Both numbers must be positive.
func Parse(s string) (ID, error) {
	m := idPattern.FindStringSubmatch(s)
	if m == nil {
		return ID{}, invalid(s)
	}
	season, err := strconv.Atoi(m[1])
	if err != nil || season <= 0 {
		return ID{}, invalid(s)
	}
	ep, err := strconv.Atoi(m[2])
	if err != nil || ep <= 0 {
		return ID{}, invalid(s)
	}
	return ID{Season: season, Episode: ep}, nil
}

// MustParse is Parse for literals; it panics on malformed input.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Valid reports whether s parses.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

func invalid(s string) error {
	return apperrors.WithMetadata(
		apperrors.CodeInvalidEpisodeID,
		fmt.Sprintf("invalid episode id %q", s),
		map[string]string{"episodeId": s},
	)
}

// String returns the canonical zero-padded form.
func (id ID) String() string {
	return fmt.Sprintf("s%02de%02d", id.Season, id.Episode)
}

// Compare returns -1, 0 or +1.
func (id ID) Compare(other ID) int {
	switch {
	case id.Season < other.Season:
		return -1
	case id.Season > other.Season:
		return 1
	case id.Episode < other.Episode:
		return -1
	case id.Episode > other.Episode:
		return 1
	}
	return 0
}

// Before reports whether id is strictly earlier than other.
func (id ID) Before(other ID) bool {
	return id.Compare(other) < 0
}

// Compare parses both ids and compares them chronologically.
func Compare(a, b string) (int, error) {
	ida, err := Parse(a)
	if err != nil {
		return 0, err
	}
	idb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return ida.Compare(idb), nil
}
