package cmd

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"reward-engine/calendar"
	"reward-engine/config"
	"reward-engine/database"
	"reward-engine/logger"
	"reward-engine/models"
	"reward-engine/repos"
	"reward-engine/services"
)

var rootCmd = &cobra.Command{
	Use:   "reward-engine",
	Short: "Engagement and reward engine",
	Long:  "reward-engine credits learner actions, tracks streaks, badges, referrals and rankings, and picks the daily content.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("sqlite", "", "Use a SQLite database file instead of DATABASE_URL (local runs)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(dailyCmd)
}

// runtime is what every subcommand needs: configuration, a logger and an open store.
type runtime struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *gorm.DB
	close func() error
}

func setup(cmd *cobra.Command) (*runtime, error) {
	cfg := config.Load()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if path, _ := cmd.Flags().GetString("sqlite"); path != "" {
		db, err := database.OpenSQLite(path, log)
		if err != nil {
			return nil, err
		}
		return &runtime{cfg: cfg, log: log, db: db, close: func() error { return nil }}, nil
	}

	pg, err := database.NewPostgresService(cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	if err := pg.Ping(cmd.Context()); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &runtime{cfg: cfg, log: log, db: pg.DB(), close: pg.Close}, nil
}

func (rt *runtime) calendar() (*calendar.Calendar, error) {
	loc, err := calendar.LoadLocation(rt.cfg.Timezone)
	if err != nil {
		return nil, err
	}
	return calendar.New(clockwork.NewRealClock(), loc), nil
}

func (rt *runtime) engine(cal *calendar.Calendar) (*services.Engine, *repos.Store) {
	store := repos.NewStore(rt.db, rt.log)
	engine := services.NewEngine(store, cal, services.EngineConfig{
		Points:          rt.cfg.RewardPoints,
		MilestoneSource: models.RewardSource(rt.cfg.ReferralMilestoneSource),
		DailyCount:      rt.cfg.DailyContentCount,
	}, rt.log)
	return engine, store
}
