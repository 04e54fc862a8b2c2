// Package meetingctl implements the admin CLI commands (inspect a job,
// cancel a job, trigger a reaper sweep), grounded on the teacher's
// internal/cli package: a cobra root command plus viper-backed
// configuration (internal/cli/root.go, internal/cli/config.go).
package meetingctl

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "meetingctl",
	Short: "Admin CLI for the meeting-processing backend",
	Long:  "Inspect jobs, cancel stuck jobs, and trigger reaper sweeps against the shared database and broker.",
}

// Execute runs the root command, exiting non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("database-path", "", "override DATABASE_PATH")
	rootCmd.PersistentFlags().String("redis-addr", "", "override REDIS_ADDR")
	_ = viper.BindPFlag("database_path", rootCmd.PersistentFlags().Lookup("database-path"))
	_ = viper.BindPFlag("redis_addr", rootCmd.PersistentFlags().Lookup("redis-addr"))
}

func initConfig() {
	home, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(home)
	}
	viper.SetConfigType("yaml")
	viper.SetConfigName(".meetingctl")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}
