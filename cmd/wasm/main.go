//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"github.com/hack-pad/hackpadfs/indexeddb"
	"go.uber.org/zap"

	"github.com/kittclouds/lorecards/internal/catalog"
	apperrors "github.com/kittclouds/lorecards/internal/errors"
	"github.com/kittclouds/lorecards/internal/settings"
	"github.com/kittclouds/lorecards/internal/store"
	"github.com/kittclouds/lorecards/internal/universe"
	"github.com/kittclouds/lorecards/pkg/episode"
	"github.com/kittclouds/lorecards/pkg/evolution"
)

// Version info
const Version = "0.3.0"

// Global state
var svc *universe.Service
var prefs *settings.Store

// loadPayload is the JSON accepted by load().
type loadPayload struct {
	Characters    []*evolution.Character `json:"characters"`
	Rules         []evolution.Rule       `json:"rules"`
	Relationships []*store.Relationship  `json:"relationships"`
	Layout        *episode.Layout        `json:"layout"`
}

func main() {
	println("[Lorecards] WASM Ready v" + Version)

	// Register exports
	js.Global().Set("Lorecards", js.ValueOf(map[string]interface{}{
		"version":           js.FuncOf(getVersion),
		"load":              js.FuncOf(load),
		"calculateState":    js.FuncOf(calculateState),
		"stateHistory":      js.FuncOf(stateHistory),
		"compareStates":     js.FuncOf(compareStates),
		"interpolateStates": js.FuncOf(interpolateStates),
		"clearCache":        js.FuncOf(clearCache),
		"familyClusters":    js.FuncOf(familyClusters),
		"similar":           js.FuncOf(similar),
		"graph":             js.FuncOf(graphReport),
		// Settings API (IndexedDB)
		"loadSettings": js.FuncOf(loadSettings),
		"saveSettings": js.FuncOf(saveSettings),
	}))

	select {}
}

func getVersion(this js.Value, args []js.Value) interface{} {
	return Version
}

// load: [payloadJSON string]
func load(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("load requires 1 arg: payloadJSON")
	}

	var p loadPayload
	if err := json.Unmarshal([]byte(args[0].String()), &p); err != nil {
		return errorResult("invalid payload json: " + err.Error())
	}

	c := &catalog.Catalog{
		Characters:    p.Characters,
		Rules:         p.Rules,
		Relationships: p.Relationships,
		Layout:        episode.DefaultLayout(),
	}
	if p.Layout != nil && p.Layout.Default > 0 {
		c.Layout = *p.Layout
	}

	next := universe.New(store.NewMemStore(), universe.WithLogger(zap.NewNop()))
	if err := next.Import(c); err != nil {
		return errResult(err)
	}
	svc = next
	return successResult("loaded")
}

// calculateState: [characterID, episodeID]
func calculateState(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("calculateState requires 2 args: characterID, episodeID")
	}
	if svc == nil {
		return errorResult("not loaded")
	}
	st, err := svc.State(args[0].String(), args[1].String())
	if err != nil {
		return errResult(err)
	}
	return jsonResult(st)
}

// stateHistory: [characterID, episodeIDsJSON]
func stateHistory(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("stateHistory requires 2 args: characterID, episodeIDsJSON")
	}
	if svc == nil {
		return errorResult("not loaded")
	}

	var eps []string
	if err := json.Unmarshal([]byte(args[1].String()), &eps); err != nil {
		return errorResult("invalid episode ids json: " + err.Error())
	}
	e, err := svc.Engine()
	if err != nil {
		return errResult(err)
	}
	states, err := e.StateHistory(args[0].String(), eps)
	if err != nil {
		return errResult(err)
	}
	return jsonResult(states)
}

// compareStates: [characterID, fromEpisode, toEpisode]
func compareStates(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return errorResult("compareStates requires 3 args: characterID, from, to")
	}
	if svc == nil {
		return errorResult("not loaded")
	}
	d, err := svc.Diff(args[0].String(), args[1].String(), args[2].String())
	if err != nil {
		return errResult(err)
	}
	return jsonResult(d)
}

// interpolateStates: [characterID, fromEpisode, toEpisode, progress]
func interpolateStates(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return errorResult("interpolateStates requires 4 args: characterID, from, to, progress")
	}
	if svc == nil {
		return errorResult("not loaded")
	}
	st, err := svc.Interpolate(args[0].String(), args[1].String(), args[2].String(), args[3].Float())
	if err != nil {
		return errResult(err)
	}
	return jsonResult(st)
}

func clearCache(this js.Value, args []js.Value) interface{} {
	if svc != nil {
		svc.ClearCache()
	}
	return successResult("cleared")
}

// familyClusters: [episodeID]
func familyClusters(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("familyClusters requires 1 arg: episodeID")
	}
	if svc == nil {
		return errorResult("not loaded")
	}
	clusters, err := svc.FamilyClusters(context.Background(), args[0].String())
	if err != nil {
		return errResult(err)
	}
	return jsonResult(clusters)
}

// graph: [episodeID]
func graphReport(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("graph requires 1 arg: episodeID")
	}
	if svc == nil {
		return errorResult("not loaded")
	}
	report, err := svc.GraphReport(context.Background(), args[0].String())
	if err != nil {
		return errResult(err)
	}
	return jsonResult(report)
}

// similar: [characterID, episodeID, k]
func similar(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return errorResult("similar requires 3 args: characterID, episodeID, k")
	}
	if svc == nil {
		return errorResult("not loaded")
	}
	matches, err := svc.Similar(context.Background(), args[0].String(), args[1].String(), args[2].Int())
	if err != nil {
		return errResult(err)
	}
	return jsonResult(matches)
}

// settingsStore opens the IndexedDB-backed settings store on first use.
func settingsStore() (*settings.Store, error) {
	if prefs != nil {
		return prefs, nil
	}
	fs, err := indexeddb.NewFS(context.Background(), "lorecards", indexeddb.Options{})
	if err != nil {
		return nil, err
	}
	prefs = settings.NewStore(fs, "settings.json")
	return prefs, nil
}

func loadSettings(this js.Value, args []js.Value) interface{} {
	s, err := settingsStore()
	if err != nil {
		return errorResult("failed to create idb fs: " + err.Error())
	}
	v, err := s.Load()
	if err != nil {
		return errResult(err)
	}
	return jsonResult(v)
}

// saveSettings: [settingsJSON]
func saveSettings(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("saveSettings requires 1 arg: settingsJSON")
	}
	s, err := settingsStore()
	if err != nil {
		return errorResult("failed to create idb fs: " + err.Error())
	}

	v := settings.Defaults()
	if err := json.Unmarshal([]byte(args[0].String()), &v); err != nil {
		return errorResult("invalid settings json: " + err.Error())
	}
	if err := s.Save(v); err != nil {
		return errResult(err)
	}
	return successResult("saved")
}

// Helper: Marshal a value as the result
func jsonResult(v any) interface{} {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return errorResult("marshal: " + err.Error())
	}
	return string(jsonBytes)
}

// Helper: Create error result
func errorResult(msg string) interface{} {
	result := map[string]interface{}{
		"error": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}

// Helper: Create error result from err, with its domain code when it has one
func errResult(err error) interface{} {
	result := map[string]interface{}{
		"error": err.Error(),
	}
	if code := apperrors.CodeOf(err); code != apperrors.CodeUnknown {
		result["code"] = string(code)
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}

// Helper: Create success result
func successResult(msg string) interface{} {
	result := map[string]interface{}{
		"success": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}
