// Command lorecards queries character evolution across episodes.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hack-pad/hackpadfs"
	osfs "github.com/hack-pad/hackpadfs/os"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kittclouds/lorecards/internal/catalog"
	"github.com/kittclouds/lorecards/internal/config"
	apperrors "github.com/kittclouds/lorecards/internal/errors"
	"github.com/kittclouds/lorecards/internal/store"
	"github.com/kittclouds/lorecards/internal/universe"
)

// Version info
const Version = "0.3.0"

// app carries flag values and lazily opened resources for one invocation.
type app struct {
	cfg     config.Config
	verbose bool
	dataDir string
	dbPath  string

	logger *zap.Logger
	fs     *osfs.FS
	store  store.Storer
}

func main() {
	root, a := newRootCmd()
	if err := a.execute(root, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(1)
	}
}

// execute runs root with args and releases the store and logger afterwards,
// whether or not the command failed.
func (a *app) execute(root *cobra.Command, args []string) error {
	defer a.close()
	root.SetArgs(args)
	return root.Execute()
}

// formatError renders err for stderr, prefixed with its domain code if it has one.
func formatError(err error) string {
	if code := apperrors.CodeOf(err); code != apperrors.CodeUnknown {
		return fmt.Sprintf("error [%s]: %v", code, err)
	}
	return fmt.Sprintf("error: %v", err)
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:           "lorecards",
		Short:         "Character evolution calculator for an episodic universe",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&a.dataDir, "data", "", "Catalog directory (default $LORECARDS_DATA_DIR)")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path, or :memory: (default $LORECARDS_DB_PATH)")

	root.AddCommand(
		a.stateCmd(),
		a.historyCmd(),
		a.diffCmd(),
		a.interpolateCmd(),
		a.rangeCmd(),
		a.clustersCmd(),
		a.graphCmd(),
		a.similarCmd(),
		a.continuityCmd(),
		a.importCmd(),
		a.doctorCmd(),
		a.settingsCmd(),
	)
	return root, a
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.dataDir == "" {
		a.dataDir = cfg.DataDir
	}
	if a.dbPath == "" {
		a.dbPath = cfg.DBPath
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	if a.verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	a.logger, err = zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.fs = osfs.NewFS()
	return nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
		a.store = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// fsPath converts an OS path into a path on the hackpadfs OS filesystem.
func (a *app) fsPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return a.fs.FromOSPath(abs)
}

func (a *app) openStore() (store.Storer, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.NewSQLiteStoreWithDSN(a.dbPath)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("store opened", zap.String("db", a.dbPath))
	a.store = s
	return s, nil
}

// service opens the store and a service using the catalog's season layout.
func (a *app) service() (*universe.Service, error) {
	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	dir, err := a.fsPath(a.dataDir)
	if err != nil {
		return nil, err
	}
	layout, err := catalog.LoadLayout(a.fs, dir, a.cfg.Layout())
	if err != nil {
		return nil, err
	}

	opts := []universe.Option{
		universe.WithLogger(a.logger),
		universe.WithLayout(layout),
	}
	if a.cfg.IndexDir != "" {
		p, err := a.fsPath(a.cfg.IndexDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, universe.WithIndexFS(a.fs, p))
	}
	return universe.New(st, opts...), nil
}

// catalogFS returns the filesystem and directory the catalog is read from.
func (a *app) catalogFS() (hackpadfs.FS, string, error) {
	dir, err := a.fsPath(a.dataDir)
	if err != nil {
		return nil, "", err
	}
	return a.fs, dir, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
