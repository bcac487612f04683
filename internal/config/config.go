// Package config handles configuration loading for the spatial exporter.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the exporter configuration.
type Config struct {
	Extraction ExtractionConfig `yaml:"extraction"`
	Render     RenderConfig     `yaml:"render"`
	Samples    []Sample         `yaml:"samples"`
}

// ExtractionConfig contains extraction pipeline settings.
type ExtractionConfig struct {
	TopNGenes     int    `yaml:"top_n_genes"`
	DemoDataDir   string `yaml:"demo_data_dir"`
	GeneCacheSize int    `yaml:"gene_cache_size"`
}

// RenderConfig contains preview rendering settings.
type RenderConfig struct {
	PreviewGene string  `yaml:"preview_gene"`
	Colormap    string  `yaml:"colormap"`
	PointRadius float64 `yaml:"point_radius"`
}

// Sample describes one container file to export.
type Sample struct {
	Cloupe string `yaml:"cloupe"`
	Name   string `yaml:"name"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		return DefaultConfig(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Extraction: ExtractionConfig{
			TopNGenes:     50,
			DemoDataDir:   "assets/data/spatial",
			GeneCacheSize: 256,
		},
		Render: RenderConfig{
			Colormap:    "viridis",
			PointRadius: 3,
		},
		Samples: []Sample{
			{
				Cloupe: "downloads/loupe-browser/GAERS_P15_PreSeizure.cloupe",
				Name:   "p15",
				Output: "assets/data/spatial/p15",
			},
			{
				Cloupe: "downloads/loupe-browser/GAERS_P30_SeizureOnset.cloupe",
				Name:   "p30",
				Output: "assets/data/spatial/p30",
			},
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Extraction.TopNGenes == 0 {
		cfg.Extraction.TopNGenes = defaults.Extraction.TopNGenes
	}
	if cfg.Extraction.DemoDataDir == "" {
		cfg.Extraction.DemoDataDir = defaults.Extraction.DemoDataDir
	}
	if cfg.Extraction.GeneCacheSize == 0 {
		cfg.Extraction.GeneCacheSize = defaults.Extraction.GeneCacheSize
	}
	if cfg.Render.Colormap == "" {
		cfg.Render.Colormap = defaults.Render.Colormap
	}
	if cfg.Render.PointRadius == 0 {
		cfg.Render.PointRadius = defaults.Render.PointRadius
	}
	if len(cfg.Samples) == 0 {
		cfg.Samples = defaults.Samples
	}
}

func validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Samples))
	for i, s := range cfg.Samples {
		if s.Name == "" {
			return fmt.Errorf("sample %d has no name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate sample name %q", s.Name)
		}
		seen[s.Name] = true
		if s.Output == "" {
			return fmt.Errorf("sample %q has no output directory", s.Name)
		}
	}
	return nil
}
