package evolution

import (
	"fmt"

	apperrors "github.com/kittclouds/lorecards/internal/errors"
	"github.com/kittclouds/lorecards/pkg/episode"
)

// Sentinel errors for errors.Is. Matching is by code, so errors carrying
// metadata still match.
var (
	ErrCharacterNotFound = apperrors.New(apperrors.CodeCharacterNotFound, "character not found")
	ErrInvalidEpisodeID  = episode.ErrInvalidID
	ErrInvalidRule       = apperrors.New(apperrors.CodeInvalidRule, "invalid rule")
)

func characterNotFound(id string) error {
	return apperrors.WithMetadata(
		apperrors.CodeCharacterNotFound,
		fmt.Sprintf("character not found: %q", id),
		map[string]string{"characterId": id},
	)
}
