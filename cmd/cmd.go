package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sadick14/ticket-flow/internal"
	"github.com/Sadick14/ticket-flow/pkg/logger"
)

var (
	configDir string
	clearData bool
)

var rootCmd = &cobra.Command{
	Use:   "ticketflow",
	Short: "Ticketflow settlement engine",
	Long:  `Splits ticket sale fees, tracks gateway settlement and groups creator earnings into scheduled payouts.`,

	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command context, which
// long running commands treat as the shutdown signal.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runningInContainer selects plain environment variables over config.yml.
func runningInContainer() bool {
	return os.Getenv("APP_ENV") == "production" || os.Getenv("DOCKER_ENV") == "true"
}

func loadConfig(path string) (*internal.Config, error) {
	var cfg *internal.Config
	if runningInContainer() {
		cfg = internal.LoadConfigFromEnv()
	} else {
		fromFile, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fromFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"), cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	return cfg, nil
}

// readConfigFile loads config.yml from path. ENV_ prefixed variables override
// file values, with dots in keys written as underscores.
func readConfigFile(path string) (*internal.Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	var cfg internal.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory holding config.yml")
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing demo data before seeding")

	rootCmd.AddCommand(httpServerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
