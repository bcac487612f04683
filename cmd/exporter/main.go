// Package main is the entry point for the spatial data exporter.
package main

import (
	"flag"
	"log"

	"github.com/grllgrll/gaers.bio/internal/config"
	"github.com/grllgrll/gaers.bio/internal/data/demo"
	"github.com/grllgrll/gaers.bio/internal/extract"
	"github.com/grllgrll/gaers.bio/internal/pipeline"
	"github.com/grllgrll/gaers.bio/internal/render"
)

func main() {
	configPath := flag.String("config", "config/exporter.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting spatial data export for %d sample(s)", len(cfg.Samples))

	strategies := []extract.Strategy{
		&extract.Structured{
			TopNGenes:     cfg.Extraction.TopNGenes,
			GeneCacheSize: cfg.Extraction.GeneCacheSize,
		},
		extract.Introspection{},
		&extract.DemoFallback{
			Reader: demo.NewReader(cfg.Extraction.DemoDataDir),
		},
	}

	orchestrator := pipeline.NewOrchestrator(strategies, render.PreviewConfig{
		Gene:        cfg.Render.PreviewGene,
		Colormap:    cfg.Render.Colormap,
		PointRadius: cfg.Render.PointRadius,
	})

	results := pipeline.RunBatch(cfg.Samples, orchestrator)
	pipeline.LogSummary(results)
}
