// internal/commands/root.go
// Package commands defines the llm-council CLI.
package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-viper/mapstructure/v2"
	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Zeetio/llm-council/internal/appconfig"
	"github.com/Zeetio/llm-council/internal/logging"
)

var (
	cfgFile       string
	currentConfig *appconfig.Config
)

var rootCmd = &cobra.Command{
	Use:   "llm-council",
	Short: "llm-council runs a council of LLMs: independent answers, anonymous peer ranking, chairman synthesis",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfigLoaded(); err != nil {
			return err
		}

		// Flags win, then config values, then defaults. Copy unchanged flag
		// values from viper so both reflect the same final state.
		if !cmd.Flags().Changed("debug") {
			_ = cmd.Flags().Set("debug", strconv.FormatBool(viper.GetBool("debug")))
		}

		var cfg appconfig.Config
		if err := viper.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
			dc.TagName = "json"
		}); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}
		cfg.ConfigPath = viper.ConfigFileUsed()
		cfg.OpenRouterAPIKey = os.Getenv("OPENROUTER_API_KEY")
		cfg.TavilyAPIKey = os.Getenv("TAVILY_API_KEY")
		currentConfig = &cfg

		if err := logging.Init(cfg.LogFilePath()); err != nil {
			return fmt.Errorf("init logging: %w", err)
		}

		if cfg.Debug {
			redacted := cfg
			redacted.OpenRouterAPIKey = ""
			redacted.TavilyAPIKey = ""
			pp.Println(redacted)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Close()
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (e.g., config/config.json)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func ensureConfigLoaded() error {
	viper.SetDefault("debug", false)
	viper.SetDefault("dataDir", "data")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			// An explicit --config pointing at a missing file still means
			// defaults; only a malformed file is fatal.
			return nil
		}
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

func getConfig() *appconfig.Config {
	return currentConfig
}
