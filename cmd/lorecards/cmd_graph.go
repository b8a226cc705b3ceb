package main

import (
	"github.com/spf13/cobra"
)

func (a *app) clustersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clusters <episode>",
		Short: "Group characters into family clusters as of an episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			clusters, err := svc.FamilyClusters(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), clusters)
		},
	}
}

func (a *app) graphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph <episode>",
		Short: "Report the relationship graph as of an episode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			report, err := svc.GraphReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func (a *app) similarCmd() *cobra.Command {
	var (
		k      int
		stored bool
	)
	cmd := &cobra.Command{
		Use:   "similar <character> <episode>",
		Short: "Find characters with the closest state at an episode",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			if stored {
				neighbors, err := svc.NearestStored(cmd.Context(), args[0], args[1], k)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), neighbors)
			}
			matches, err := svc.Similar(cmd.Context(), args[0], args[1], k)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), matches)
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 3, "Number of matches")
	cmd.Flags().BoolVar(&stored, "stored", false, "Rank stored snapshots with sqlite-vec instead of the HNSW index")
	return cmd
}

func (a *app) continuityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "continuity <from> <to>",
		Short: "Score how the cast carries over between consecutive episodes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			res, err := svc.Continuity(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}
