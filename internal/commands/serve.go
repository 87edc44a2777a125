// internal/commands/serve.go
package commands

import (
	"log"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Zeetio/llm-council/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the council API server",
	Long:  `Starts the HTTP API: conversations, background deliberation jobs, SSE progress streams and council configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		rt, cleanup, err := newRuntime(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		srv := &http.Server{
			Addr:              cfg.Listen(),
			Handler:           server.New(cfg, rt.files, rt.ctrl).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if cfg.OpenRouterAPIKey == "" {
			color.Yellow("OPENROUTER_API_KEY is not set; model calls will fail")
		}
		color.Green("llm-council listening on %s", srv.Addr)
		log.Printf("data dir: %s", cfg.DataDirPath())
		return srv.ListenAndServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
