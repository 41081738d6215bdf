package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/skyfield-labs/terralens/config"
	"github.com/skyfield-labs/terralens/internal/imagery"
	"github.com/skyfield-labs/terralens/internal/llm"
	"github.com/skyfield-labs/terralens/internal/satellite"
	"github.com/skyfield-labs/terralens/internal/telemetry"
)

// hintsFile is the optional --hints payload: geographic hints keyed by ticker
// (sites) and by industry (proxies). It exists only for the duration of the
// run; nothing from it is written anywhere.
type hintsFile struct {
	Sites   map[string][]satellite.Hint `json:"sites"`
	Proxies map[string][]satellite.Hint `json:"proxies"`
}

func observeCMD() *cobra.Command {
	var industry string
	var hintsPath string
	var cfgPath string

	var observe = &cobra.Command{
		Use:   "observe TICKER",
		Short: "Run one observation pass and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticker := strings.ToUpper(strings.TrimSpace(args[0]))
			cfg := config.LoadConfig(cfgPath)

			sites := map[string][]satellite.Hint{}
			proxies := map[string][]satellite.Hint{}
			if hintsPath != "" {
				raw, err := os.ReadFile(hintsPath)
				if err != nil {
					return err
				}
				var hf hintsFile
				if err := json.Unmarshal(raw, &hf); err != nil {
					return fmt.Errorf("parse hints file: %w", err)
				}
				if hf.Sites != nil {
					sites = hf.Sites
				}
				if hf.Proxies != nil {
					proxies = hf.Proxies
				}
			}

			tele := telemetry.NewTelemetry(cfg.Telemetry)
			defer tele.Shutdown()
			provider, err := llm.NewProvider(cfg.LLM)
			if err != nil {
				return err
			}
			logger := log.New(os.Stderr, "[OBSERVE] ", log.LstdFlags)
			fetcher := imagery.New(cfg.Imagery, logger, tele)
			planner := satellite.NewPlanner(provider, cfg.LLM.Routing.Planning, tele, logger)
			executor := satellite.NewExecutor(fetcher, tele, logger)
			summarizer := satellite.NewSummarizer(provider, cfg.LLM.Routing.Summarizing, tele, logger)
			pipeline := satellite.NewPipeline(planner, executor, summarizer, tele, logger)

			summary, err := pipeline.Run(context.Background(), ticker, industry, sites, proxies)
			if err != nil {
				return err
			}
			fmt.Print(satellite.RenderReport(summary, time.Now().UTC().Format("2006-01-02")))
			return nil
		},
	}
	observe.Flags().StringVar(&industry, "industry", "", "industry passed to the planner")
	observe.Flags().StringVar(&hintsPath, "hints", "", "JSON file with site/proxy hints for this run")
	observe.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return observe
}
