package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"exchange-backend/config"
	"exchange-backend/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "exchange",
	Short: "Peer-to-peer exchange backend",
	Long: `exchange serves the reservation, meeting negotiation and reputation
API of the peer-to-peer marketplace, and runs the meeting reminder sweep.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (yaml)")
	rootCmd.AddCommand(serveCmd, sweepCmd, migrateCmd)
}

// loadConfig builds the config and logger shared by every subcommand.
func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	v := viper.New()
	config.SetDefaults(v)

	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(v, file)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
