package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/listing-cli/internal/browser"
	"github.com/sells-group/listing-cli/internal/config"
	"github.com/sells-group/listing-cli/internal/enrich"
	"github.com/sells-group/listing-cli/internal/navigate"
	"github.com/sells-group/listing-cli/internal/pipeline"
	"github.com/sells-group/listing-cli/internal/source"
)

// pipelineEnv holds what the scrape and serve commands need.
type pipelineEnv struct {
	Pipeline  *pipeline.Pipeline
	Navigator *navigate.Navigator
}

// initPipeline validates the config for mode and builds the pipeline on a
// headless Chrome launcher.
func initPipeline(mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	launcher := browser.NewChromeLauncher(browser.ChromeOptions{
		ExecPath:      cfg.Browser.ExecPath,
		Headless:      cfg.Browser.Headless,
		UserAgent:     cfg.Browser.UserAgent,
		LaunchTimeout: time.Duration(cfg.Browser.LaunchTimeoutSecs) * time.Second,
	})
	return buildPipeline(cfg, launcher)
}

// buildPipeline wires every component from c around launcher.
func buildPipeline(c *config.Config, launcher browser.Launcher) (*pipelineEnv, error) {
	nav := navigate.New(c.Navigation)

	registry := source.NewRegistry()
	registry.Register(source.NewMapDirectory(c.Sources.MapDirectory, nav))
	registry.Register(source.NewListingDirectory(c.Sources.ListingDirectory, nav))
	registry.Register(source.NewSearchEngine(c.Sources.SearchEngine, nav))

	adapters, err := registry.Select(c.Pipeline.Sources)
	if err != nil {
		return nil, eris.Wrap(err, "init pipeline: select sources")
	}

	var verifier enrich.EmailVerifier
	if c.Enrich.VerifyMX {
		verifier = enrich.NewMXVerifier(c.Enrich.DNSServers, 0)
	}
	enricher := enrich.New(c.Enrich, nav, verifier)

	var resolver *enrich.Resolver
	if c.Fallback.Enabled {
		resolver = enrich.NewResolver(c.Fallback, c.Pipeline.Country, nav, enricher)
	}

	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, string(a.Source()))
	}
	zap.L().Info("pipeline initialized",
		zap.Strings("sources", names),
		zap.Bool("fallback", resolver != nil),
		zap.Bool("verify_mx", c.Enrich.VerifyMX),
	)

	return &pipelineEnv{
		Pipeline:  pipeline.New(c, launcher, adapters, enricher, resolver),
		Navigator: nav,
	}, nil
}
