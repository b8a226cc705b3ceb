package main

import (
	"github.com/spf13/cobra"

	"github.com/kittclouds/lorecards/internal/settings"
)

func (a *app) settingsStore() (*settings.Store, error) {
	p, err := a.fsPath(a.cfg.SettingsPath)
	if err != nil {
		return nil, err
	}
	return settings.NewStore(a.fs, p), nil
}

func (a *app) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show viewer settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settingsStore()
			if err != nil {
				return err
			}
			v, err := s.Load()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}

	var theme, view, character, ep string
	set := &cobra.Command{
		Use:   "set",
		Short: "Update viewer settings; unset flags keep their saved value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settingsStore()
			if err != nil {
				return err
			}
			v, err := s.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("theme") {
				v.Theme = theme
			}
			if cmd.Flags().Changed("view") {
				v.ViewMode = view
			}
			if cmd.Flags().Changed("character") {
				v.SelectedCharacter = character
			}
			if cmd.Flags().Changed("episode") {
				v.SelectedEpisode = ep
			}
			if err := s.Save(v); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
	set.Flags().StringVar(&theme, "theme", "", "dark or light")
	set.Flags().StringVar(&view, "view", "", "grid, list or timeline")
	set.Flags().StringVar(&character, "character", "", "Selected character id")
	set.Flags().StringVar(&ep, "episode", "", "Selected episode id")

	cmd.AddCommand(set)
	return cmd
}
