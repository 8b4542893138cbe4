package cmd

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"reward-engine/calendar"
)

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Print the daily content selection",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd)
		if err != nil {
			return err
		}
		defer rt.close()

		cal, err := rt.calendar()
		if err != nil {
			return err
		}
		var date civil.Date
		if raw, _ := cmd.Flags().GetString("date"); raw != "" {
			if date, err = calendar.ParseDate(raw); err != nil {
				return fmt.Errorf("--date: %w", err)
			}
		}
		kind, _ := cmd.Flags().GetString("kind")

		engine, _ := rt.engine(cal)
		sel, err := engine.Daily.ForDate(cmd.Context(), date, kind)
		if err != nil {
			return err
		}
		out, err := sonic.ConfigStd.MarshalIndent(sel, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	dailyCmd.Flags().String("date", "", "Calendar day (YYYY-MM-DD); defaults to today in REWARD_TIMEZONE")
	dailyCmd.Flags().String("kind", "", "Restrict to one content kind")
}
