// internal/commands/runtime.go
package commands

import (
	"fmt"

	"github.com/Zeetio/llm-council/internal/appconfig"
	"github.com/Zeetio/llm-council/internal/council"
	"github.com/Zeetio/llm-council/internal/jobs"
	"github.com/Zeetio/llm-council/internal/openrouter"
	"github.com/Zeetio/llm-council/internal/storage"
	"github.com/Zeetio/llm-council/internal/tools"
	"github.com/Zeetio/llm-council/internal/usage"
)

// runtime bundles everything a command needs to run or inspect jobs.
type runtime struct {
	cfg   *appconfig.Config
	files *storage.Store
	store *jobs.Store
	ctrl  *jobs.Controller
}

// newRuntime opens the stores and wires the job controller. The returned
// cleanup func closes the job database.
func newRuntime(cfg *appconfig.Config) (*runtime, func(), error) {
	files, err := storage.New(cfg.DataDirPath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening data directory: %w", err)
	}
	store, err := jobs.OpenStore(cfg.JobDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening job database: %w", err)
	}

	client := openrouter.New(cfg.APIURL(), cfg.OpenRouterAPIKey, cfg.RequestTimeout(), cfg.ToolIterationLimit())

	// The council document is re-read per job so configuration updates take
	// effect without a restart.
	factory := func(acc *usage.Accumulator) jobs.Runner {
		var searcher *tools.WebSearcher
		if cfg.TavilyAPIKey != "" {
			searcher = tools.NewWebSearcher(cfg.TavilyAPIKey, acc)
		}
		return council.New(client, appconfig.LoadCouncil(cfg.CouncilConfigPath()), acc, searcher)
	}
	ctrl := jobs.NewController(store, files, factory, cfg.StaleJobThreshold())

	cleanup := func() { _ = store.Close() }
	return &runtime{cfg: cfg, files: files, store: store, ctrl: ctrl}, cleanup, nil
}
