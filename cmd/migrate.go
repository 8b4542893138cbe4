package cmd

import (
	"github.com/spf13/cobra"

	"reward-engine/database"
	"reward-engine/models"
	"reward-engine/repos"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update tables and seed the badge catalogue",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd)
		if err != nil {
			return err
		}
		defer rt.close()
		defer rt.log.Sync()

		if err := database.AutoMigrate(rt.db, rt.log); err != nil {
			return err
		}
		store := repos.NewStore(rt.db, rt.log)
		if err := store.Badges.UpsertBadges(cmd.Context(), models.DefaultBadges); err != nil {
			return err
		}
		rt.log.Info("✅ Badge catalogue seeded", "count", len(models.DefaultBadges))
		return nil
	},
}
