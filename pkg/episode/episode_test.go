package episode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want ID
	}{
		{"s01e01", ID{1, 1}},
		{"S02E07", ID{2, 7}},
		{"s1e10", ID{1, 10}},
		{"s12e003", ID{12, 3}},
	}
	for _, tc := range tests {
		got, err := Parse(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "s01", "e01", "s00e01", "s01e00", "s-1e02", "01e01", "s01e01x", "season1"} {
		_, err := Parse(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrInvalidID), in)
	}
}

func TestCompareOrdering(t *testing.T) {
	c, err := Compare("s01e07", "s02e01")
	require.NoError(t, err)
	assert.Less(t, c, 0)

	c, err = Compare("s01e03", "s01e01")
	require.NoError(t, err)
	assert.Greater(t, c, 0)

	c, err = Compare("s01e02", "s01e02")
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	// Numeric, not lexical.
	c, err = Compare("s1e10", "s01e09")
	require.NoError(t, err)
	assert.Greater(t, c, 0)

	_, err = Compare("s01e01", "bogus")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestString(t *testing.T) {
	assert.Equal(t, "s01e03", ID{1, 3}.String())
	assert.Equal(t, "s10e12", MustParse("s10e12").String())
}

func TestRangeDefaultLayout(t *testing.T) {
	ids, err := DefaultLayout().Range("s01e06", "s02e02")
	require.NoError(t, err)
	assert.Equal(t, []string{"s01e06", "s01e07", "s02e01", "s02e02"}, Strings(ids))
}

func TestRangeCustomLayout(t *testing.T) {
	l := Layout{Default: 7, Seasons: map[int]int{1: 3}}
	ids, err := l.Range("s01e02", "s02e01")
	require.NoError(t, err)
	assert.Equal(t, []string{"s01e02", "s01e03", "s02e01"}, Strings(ids))
	assert.Equal(t, 3, l.EpisodesIn(1))
	assert.Equal(t, 7, l.EpisodesIn(2))
}

func TestRangeEdges(t *testing.T) {
	ids, err := DefaultLayout().Range("s01e03", "s01e03")
	require.NoError(t, err)
	assert.Equal(t, []string{"s01e03"}, Strings(ids))

	ids, err = DefaultLayout().Range("s02e01", "s01e01")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = DefaultLayout().Range("nope", "s01e01")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestRangeRejectsEpisodesOutsideLayout(t *testing.T) {
	l := Layout{Default: 5}

	_, err := l.Range("s01e09", "s02e01")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.Contains(t, err.Error(), "past the end of season 1")

	_, err = l.Range("s01e01", "s01e06")
	assert.ErrorIs(t, err, ErrInvalidID)

	// An out-of-layout end is rejected even when the range would be empty.
	_, err = l.Range("s02e01", "s01e07")
	assert.ErrorIs(t, err, ErrInvalidID)

	assert.True(t, l.Contains(MustParse("s01e05")))
	assert.False(t, l.Contains(MustParse("s01e06")))
}

func TestRangeTooLong(t *testing.T) {
	l := Layout{Default: 1}

	ids, err := l.Range("s1e1", fmt.Sprintf("s%de1", MaxRangeLen))
	require.NoError(t, err)
	assert.Len(t, ids, MaxRangeLen)

	_, err = l.Range("s1e1", fmt.Sprintf("s%de1", MaxRangeLen+1))
	assert.ErrorIs(t, err, ErrRangeTooLong)
	assert.False(t, errors.Is(err, ErrInvalidID))

	_, err = DefaultLayout().Range("s1e1", "s99999999e1")
	assert.ErrorIs(t, err, ErrRangeTooLong)
}

func TestZeroLayoutFallsBack(t *testing.T) {
	assert.Equal(t, DefaultEpisodesPerSeason, Layout{}.EpisodesIn(4))
}
