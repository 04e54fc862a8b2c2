package meetingctl

import (
	"context"
	"fmt"
	"time"

	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/config"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/database"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/reaper"
	"github.com/NguyenThaoVi0702/meeting-minutes-app/internal/repository"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func loadConfig() *config.Config {
	cfg := config.Load()
	if v := viper.GetString("database_path"); v != "" {
		cfg.DatabasePath = v
	}
	if v := viper.GetString("redis_addr"); v != "" {
		cfg.RedisAddr = v
	}
	return cfg
}

func openJobRepository(cfg *config.Config) (repository.JobRepository, error) {
	if err := database.Initialize(cfg.DatabasePath); err != nil {
		return nil, err
	}
	return repository.NewJobRepository(database.DB), nil
}

var statusCmd = &cobra.Command{
	Use:   "status <request-id>",
	Short: "Print a job's current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		jobs, err := openJobRepository(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		job, err := jobs.FindByRequestID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("request_id=%s status=%s active_language=%s owner=%s created_at=%s\n",
			job.RequestID, job.Status, job.ActiveLanguage, job.OwnerID, job.CreatedAt.Format(time.RFC3339))
		if job.ErrorMessage != nil {
			fmt.Printf("error=%s\n", *job.ErrorMessage)
		}
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <request-id>",
	Short: "Mark a job failed out-of-band (operator override, bypasses owner ownership checks)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		jobs, err := openJobRepository(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		job, err := jobs.FindByRequestID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := jobs.MarkFailed(cmd.Context(), job.ID, "cancelled by operator via meetingctl"); err != nil {
			return err
		}
		fmt.Printf("job %s marked failed\n", args[0])
		return nil
	},
}

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Run one reaper sweep immediately and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		jobs, err := openJobRepository(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		r := reaper.New(jobs, cfg.ReaperInterval, cfg.ReaperTimeout)
		r.SweepOnce(context.Background())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(reapCmd)
}
