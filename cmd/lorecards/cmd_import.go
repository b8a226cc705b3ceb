package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kittclouds/lorecards/internal/catalog"
)

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Load the YAML catalog from --data into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys, dir, err := a.catalogFS()
			if err != nil {
				return err
			}
			c, err := catalog.Load(fsys, dir)
			if err != nil {
				return err
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			if err := svc.Import(c); err != nil {
				return err
			}
			a.logger.Debug("import finished", zap.String("data", a.dataDir))
			return printJSON(cmd.OutOrStdout(), map[string]int{
				"characters":    len(c.Characters),
				"rules":         len(c.Rules),
				"relationships": len(c.Relationships),
			})
		},
	}
}
