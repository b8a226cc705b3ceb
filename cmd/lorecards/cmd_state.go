package main

import (
	"github.com/spf13/cobra"

	"github.com/kittclouds/lorecards/pkg/episode"
)

func (a *app) stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state <character> <episode>",
		Short: "Compute a character's state at an episode",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			st, err := svc.State(args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <character> <from> <to>",
		Short: "Compute a character's state for every episode in a range",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			states, err := svc.History(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), states)
		},
	}
}

func (a *app) diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <character> <from> <to>",
		Short: "Show what changed for a character between two episodes",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			d, err := svc.Diff(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), d)
		},
	}
}

func (a *app) interpolateCmd() *cobra.Command {
	var progress float64
	cmd := &cobra.Command{
		Use:   "interpolate <character> <from> <to>",
		Short: "Blend a character's metrics between two episodes",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			st, err := svc.Interpolate(args[0], args[1], args[2], progress)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().Float64Var(&progress, "progress", 0.5, "Blend factor, clamped to [0,1]")
	return cmd
}

func (a *app) rangeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "range <from> <to>",
		Short: "List episode ids between two episodes using the season layout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service()
			if err != nil {
				return err
			}
			ids, err := svc.Layout().Range(args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), episode.Strings(ids))
		},
	}
}
