package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/lorecards/internal/store"
	"github.com/kittclouds/lorecards/internal/universe"
	"github.com/kittclouds/lorecards/pkg/analysis"
	"github.com/kittclouds/lorecards/pkg/evolution"
	"github.com/kittclouds/lorecards/pkg/similarity"
)

const testCharacters = `
- id: kiara
  name: Kiara Vale
  canonical: {sire: morrow, purity: 40, bondStrength: 20}
  appearances: [s01e01, s01e02, s01e03]
- id: morrow
  name: Elias Morrow
  canonical: {species: Vampire, purity: 95}
  appearances: [s01e01]
`

const testRules = `
- trigger: {type: episode, condition: s01e02}
  effect: {operation: add, attribute: metrics.bondStrength, value: 10}
`

func setupDataDir(t *testing.T) (dataDir, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dataDir = filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "characters.yaml"), []byte(testCharacters), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "rules.yaml"), []byte(testRules), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "seasons.yaml"), []byte("default: 5\n"), 0644))
	return dataDir, filepath.Join(dir, "lorecards.db")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, a := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	err := a.execute(root, args)
	return out.String(), err
}

func TestImportThenState(t *testing.T) {
	dataDir, dbPath := setupDataDir(t)

	out, err := run(t, "import", "--data", dataDir, "--db", dbPath)
	require.NoError(t, err)
	var counts map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &counts))
	assert.Equal(t, 2, counts["characters"])
	assert.Equal(t, 1, counts["rules"])

	out, err = run(t, "state", "kiara", "s01e02", "--data", dataDir, "--db", dbPath)
	require.NoError(t, err)
	var st evolution.State
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "s01e02", st.EpisodeID)
	assert.Equal(t, float64(30), st.Metrics.BondStrength)
	// 2 of 5 episodes, per seasons.yaml
	assert.Equal(t, float64(40), st.Metrics.Presence)
	assert.Equal(t, "vampire", st.Species)
}

func TestRangeUsesLayout(t *testing.T) {
	dataDir, dbPath := setupDataDir(t)

	out, err := run(t, "range", "s01e04", "s02e01", "--data", dataDir, "--db", dbPath)
	require.NoError(t, err)
	var ids []string
	require.NoError(t, json.Unmarshal([]byte(out), &ids))
	assert.Equal(t, []string{"s01e04", "s01e05", "s02e01"}, ids)
}

func TestClustersAndDoctor(t *testing.T) {
	dataDir, dbPath := setupDataDir(t)
	_, err := run(t, "import", "--data", dataDir, "--db", dbPath)
	require.NoError(t, err)

	out, err := run(t, "clusters", "s01e03", "--data", dataDir, "--db", dbPath)
	require.NoError(t, err)
	var clusters [][]string
	require.NoError(t, json.Unmarshal([]byte(out), &clusters))
	assert.Equal(t, [][]string{{"kiara", "morrow"}}, clusters)

	out, err = run(t, "doctor", "--db", dbPath)
	require.NoError(t, err)
	var report doctorReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Characters)
	assert.Equal(t, 1, report.Rules)
	assert.NotEmpty(t, report.VecVersion)
}

func TestSettingsSetAndShow(t *testing.T) {
	t.Setenv("LORECARDS_SETTINGS_PATH", filepath.Join(t.TempDir(), "prefs", "settings.json"))

	out, err := run(t, "settings")
	require.NoError(t, err)
	assert.Contains(t, out, `"theme": "dark"`)

	_, err = run(t, "settings", "set", "--theme", "light", "--character", "kiara")
	require.NoError(t, err)

	out, err = run(t, "settings")
	require.NoError(t, err)
	assert.Contains(t, out, `"theme": "light"`)
	assert.Contains(t, out, `"selectedCharacter": "kiara"`)
	assert.Contains(t, out, `"viewMode": "grid"`)

	_, err = run(t, "settings", "set", "--view", "carousel")
	assert.Error(t, err)
}

func TestUnknownCharacterFails(t *testing.T) {
	dataDir, dbPath := setupDataDir(t)
	_, err := run(t, "import", "--data", dataDir, "--db", dbPath)
	require.NoError(t, err)

	_, err = run(t, "state", "nobody", "s01e01", "--data", dataDir, "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, "error [CHARACTER_NOT_FOUND]: "+err.Error(), formatError(err))
	assert.Equal(t, "error: boom", formatError(errors.New("boom")))
}

func TestFailedCommandReleasesStore(t *testing.T) {
	dataDir, dbPath := setupDataDir(t)
	_, err := run(t, "import", "--data", dataDir, "--db", dbPath)
	require.NoError(t, err)

	root, a := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	err = a.execute(root, []string{"state", "nobody", "s01e01", "--data", dataDir, "--db", dbPath})
	require.Error(t, err)
	assert.Nil(t, a.store, "store closed after a failing command")

	root, a = newRootCmd()
	root.SetOut(io.Discard)
	err = a.execute(root, []string{"state", "kiara", "s01e01", "--data", dataDir, "--db", dbPath})
	require.NoError(t, err)
	assert.Nil(t, a.store)
}

func TestQueryCommands(t *testing.T) {
	dataDir, dbPath := setupDataDir(t)
	t.Setenv("LORECARDS_INDEX_DIR", filepath.Join(t.TempDir(), "indexes"))
	_, err := run(t, "import", "--data", dataDir, "--db", dbPath)
	require.NoError(t, err)

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, out string)
	}{
		{
			name: "similar",
			args: []string{"similar", "kiara", "s01e03", "-k", "1"},
			check: func(t *testing.T, out string) {
				var matches []similarity.Match
				require.NoError(t, json.Unmarshal([]byte(out), &matches))
				require.Len(t, matches, 1)
				assert.Equal(t, "morrow", matches[0].CharacterID)
			},
		},
		{
			name: "similar stored",
			args: []string{"similar", "kiara", "s01e03", "--stored"},
			check: func(t *testing.T, out string) {
				var neighbors []store.Neighbor
				require.NoError(t, json.Unmarshal([]byte(out), &neighbors))
				require.Len(t, neighbors, 1)
				assert.Equal(t, "morrow", neighbors[0].CharacterID)
			},
		},
		{
			name: "history",
			args: []string{"history", "kiara", "s01e01", "s01e03"},
			check: func(t *testing.T, out string) {
				var states []evolution.State
				require.NoError(t, json.Unmarshal([]byte(out), &states))
				require.Len(t, states, 3)
				assert.Equal(t, "s01e03", states[2].EpisodeID)
				assert.Equal(t, float64(30), states[2].Metrics.BondStrength)
			},
		},
		{
			name: "diff",
			args: []string{"diff", "kiara", "s01e01", "s01e02"},
			check: func(t *testing.T, out string) {
				var d evolution.Diff
				require.NoError(t, json.Unmarshal([]byte(out), &d))
				var bond float64
				for _, m := range d.Metrics {
					if m.Metric == "bondStrength" {
						bond = m.Delta
					}
				}
				assert.Equal(t, float64(10), bond)
			},
		},
		{
			name: "interpolate",
			args: []string{"interpolate", "kiara", "s01e01", "s01e02", "--progress", "0.5"},
			check: func(t *testing.T, out string) {
				var st evolution.State
				require.NoError(t, json.Unmarshal([]byte(out), &st))
				assert.Equal(t, float64(25), st.Metrics.BondStrength)
			},
		},
		{
			name: "continuity",
			args: []string{"continuity", "s01e01", "s01e03"},
			check: func(t *testing.T, out string) {
				var res analysis.ContinuityResult
				require.NoError(t, json.Unmarshal([]byte(out), &res))
				assert.Equal(t, []string{"s01e01", "s01e02", "s01e03"}, res.Episodes)
				assert.Equal(t, []int{2, 1, 1}, res.CastSizes)
				assert.Len(t, res.FlowTrend, 3)
			},
		},
		{
			name: "graph",
			args: []string{"graph", "s01e03"},
			check: func(t *testing.T, out string) {
				var r universe.GraphReport
				require.NoError(t, json.Unmarshal([]byte(out), &r))
				assert.Equal(t, 1, r.Edges)
				assert.Empty(t, r.Orphans)
				assert.Equal(t, [][]string{{"kiara", "morrow"}}, r.Families)
				require.Len(t, r.Nodes, 2)
				assert.Equal(t, "morrow", r.Nodes[1].ID)
				assert.Equal(t, []universe.Link{{Target: "kiara", Relation: "SIRED", Weight: 1, Since: "s01e03"}}, r.Nodes[1].Links)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, append(tt.args, "--data", dataDir, "--db", dbPath)...)
			require.NoError(t, err)
			tt.check(t, out)
		})
	}

	// The similar run above persisted the episode index.
	_, err = os.Stat(filepath.Join(os.Getenv("LORECARDS_INDEX_DIR"), "s01e03.idx"))
	assert.NoError(t, err)
}

func TestQueryCommandErrors(t *testing.T) {
	dataDir, dbPath := setupDataDir(t)
	_, err := run(t, "import", "--data", dataDir, "--db", dbPath)
	require.NoError(t, err)

	for _, args := range [][]string{
		{"history", "kiara", "s01e09", "s01e10"},
		{"range", "s01e06", "s02e01"},
		{"graph", "finale"},
		{"similar", "nobody", "s01e01"},
	} {
		t.Run(args[0], func(t *testing.T) {
			_, err := run(t, append(args, "--data", dataDir, "--db", dbPath)...)
			assert.Error(t, err)
		})
	}
}
