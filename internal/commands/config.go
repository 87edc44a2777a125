// internal/commands/config.go
package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Zeetio/llm-council/internal/appconfig"
)

var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the merged configuration",
	Long:  `Shows the configuration after merging file values, flags and defaults, plus the council members that will deliberate.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		cfg := getConfig()

		file := viper.ConfigFileUsed()
		if file == "" {
			fmt.Fprintln(out, "No config file loaded (using defaults).")
		} else {
			fmt.Fprintf(out, "Config file: %s\n\n", file)
		}

		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintf(out, "  Listen:            %s\n", cfg.Listen())
		fmt.Fprintf(out, "  Data dir:          %s\n", cfg.DataDirPath())
		fmt.Fprintf(out, "  OpenRouter URL:    %s\n", cfg.APIURL())
		fmt.Fprintf(out, "  Request timeout:   %s\n", cfg.RequestTimeout())
		fmt.Fprintf(out, "  Stale job after:   %s\n", cfg.StaleJobThreshold())
		fmt.Fprintf(out, "  Tool iterations:   %d\n", cfg.ToolIterationLimit())
		fmt.Fprintf(out, "  Title generation:  %v\n", !cfg.DisableTitleGen)
		fmt.Fprintf(out, "  Debug:             %v\n", cfg.Debug)
		fmt.Fprintf(out, "  OpenRouter key:    %s\n", keyStatus(cfg.OpenRouterAPIKey))
		fmt.Fprintf(out, "  Tavily key:        %s\n", keyStatus(cfg.TavilyAPIKey))

		council := appconfig.LoadCouncil(cfg.CouncilConfigPath())
		fmt.Fprintln(out, "\nCouncil members:")
		for _, member := range council.Members {
			fmt.Fprintf(out, "  %s (%s)\n", member.Name, member.Model)
		}
		fmt.Fprintf(out, "Chairman: %s (%s)\n", council.Chairman.Name, council.Chairman.Model)
	},
}

func keyStatus(key string) string {
	if key == "" {
		return color.RedString("not set")
	}
	return color.GreenString("set")
}

func init() {
	rootCmd.AddCommand(showConfigCmd)
}
