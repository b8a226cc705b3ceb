package main

import (
	"github.com/spf13/cobra"

	"github.com/kittclouds/lorecards/internal/store"
)

type doctorReport struct {
	DB            string `json:"db"`
	VecVersion    string `json:"vecVersion"`
	Characters    int    `json:"characters"`
	Rules         int    `json:"rules"`
	Relationships int    `json:"relationships"`
}

func (a *app) doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the database and report what it holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			report := doctorReport{DB: a.dbPath}

			if sq, ok := st.(*store.SQLiteStore); ok {
				if report.VecVersion, err = sq.VecVersion(); err != nil {
					return err
				}
			}
			if report.Characters, err = st.CountCharacters(); err != nil {
				return err
			}
			rules, err := st.ListRules()
			if err != nil {
				return err
			}
			report.Rules = len(rules)
			rels, err := st.ListRelationships()
			if err != nil {
				return err
			}
			report.Relationships = len(rels)

			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}
