package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/porthole/porthole/internal/config"
	"github.com/porthole/porthole/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g. PORTHOLE_CAPTURE_FPS
const envPrefix = "PORTHOLE"

var (
	cfgFile string
	envFile string
	v       = newViper()

	rootCmd = &cobra.Command{
		Use:   "porthole",
		Short: "Porthole - mirror any window into a floating preview",
		Long: `Porthole lets you point at a window and mirrors it into a small,
always-on-top preview window that keeps the source's aspect ratio.

Run it, move the pointer over the window you want, and click. The click
is swallowed so the window underneath does not react to it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile()
		},
	}
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range config.Keys() {
		v.BindEnv(key)
	}
	return v
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/porthole/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load PORTHOLE_* variables from this .env file")

	// Bind flags to viper
	v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// loadEnvFile exports the variables of --env-file before viper reads the
// environment. Variables already set in the environment win.
func loadEnvFile() error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}
	return nil
}

// loadConfig reads the config file, applies flag and environment overrides
// and initializes logging from the result
func loadConfig() (*config.Manager, *config.Config, error) {
	configMgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := configMgr.ApplyOverrides(v); err != nil {
		return nil, nil, err
	}

	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	return configMgr, cfg, nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
