// Package pipeline runs the ordered extraction strategies for each sample and
// writes the export artifacts of the first strategy that succeeds.
package pipeline

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/grllgrll/gaers.bio/internal/config"
	"github.com/grllgrll/gaers.bio/internal/extract"
	"github.com/grllgrll/gaers.bio/internal/render"
)

// Artifact file names inside each sample's output directory.
const (
	DatasetFileName = "spatial_data.json"
	ImageFileName   = "tissue_image.png"
	PreviewFileName = "preview.png"
)

// Attempt records why one strategy did not win.
type Attempt struct {
	Strategy string
	Reason   string
}

// Result is the outcome of processing one sample.
type Result struct {
	Sample    string
	Succeeded bool
	// Tier names the winning strategy; empty when the sample failed.
	Tier     string
	Attempts []Attempt
}

// Orchestrator tries extraction strategies in fixed order for one sample at a
// time. Adding a tier means appending to the strategy list; the loop does not
// change.
type Orchestrator struct {
	strategies []extract.Strategy
	preview    render.PreviewConfig
}

// NewOrchestrator creates an orchestrator over an ordered strategy list.
func NewOrchestrator(strategies []extract.Strategy, preview render.PreviewConfig) *Orchestrator {
	return &Orchestrator{strategies: strategies, preview: preview}
}

// Process runs the strategies for one sample until the first success, then
// writes the artifacts. Deferred outcomes and strategy errors advance to the
// next tier; a panicking strategy is recovered and treated the same way.
func (o *Orchestrator) Process(sample config.Sample) Result {
	log.Printf("processing sample %q (%s)", sample.Name, sample.Cloupe)

	result := Result{Sample: sample.Name}

	if err := os.MkdirAll(sample.Output, 0o755); err != nil {
		log.Printf("[%s] cannot create output directory: %v", sample.Name, err)
		result.Attempts = append(result.Attempts, Attempt{Strategy: "output", Reason: err.Error()})
		return result
	}

	req := extract.Request{ContainerPath: sample.Cloupe, SampleName: sample.Name}

	for _, strategy := range o.strategies {
		log.Printf("[%s] trying strategy: %s", sample.Name, strategy.Name())

		outcome, err := o.attempt(strategy, req)
		if err != nil {
			log.Printf("[%s] strategy %s failed: %v", sample.Name, strategy.Name(), err)
			result.Attempts = append(result.Attempts, Attempt{Strategy: strategy.Name(), Reason: err.Error()})
			continue
		}
		if outcome.Status != extract.StatusSuccess {
			log.Printf("[%s] strategy %s deferred: %s", sample.Name, strategy.Name(), outcome.Reason)
			result.Attempts = append(result.Attempts, Attempt{Strategy: strategy.Name(), Reason: outcome.Reason})
			continue
		}

		if err := o.writeArtifacts(sample, outcome); err != nil {
			log.Printf("[%s] strategy %s produced unwritable output: %v", sample.Name, strategy.Name(), err)
			result.Attempts = append(result.Attempts, Attempt{Strategy: strategy.Name(), Reason: err.Error()})
			continue
		}

		log.Printf("[%s] extracted using strategy %s", sample.Name, strategy.Name())
		result.Succeeded = true
		result.Tier = strategy.Name()
		return result
	}

	log.Printf("[%s] all extraction strategies failed", sample.Name)
	return result
}

// attempt isolates one strategy call, converting a panic into an error so one
// tier's defect never stops later tiers.
func (o *Orchestrator) attempt(s extract.Strategy, req extract.Request) (outcome extract.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = extract.Outcome{}
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return s.Extract(req)
}

// writeArtifacts persists the winning outcome. Every artifact is staged under
// a temporary name first and renamed only after all writes succeed, so a
// failing image or preview write never leaves a partial export behind. The
// dataset document is renamed last: its presence marks a complete export.
func (o *Orchestrator) writeArtifacts(sample config.Sample, outcome extract.Outcome) (err error) {
	ds := outcome.Dataset
	if ds == nil {
		return fmt.Errorf("strategy reported success without a dataset")
	}
	if err := ds.Validate(); err != nil {
		return fmt.Errorf("invalid dataset: %w", err)
	}

	var staged []string
	defer func() {
		if err != nil {
			for _, tmp := range staged {
				os.Remove(tmp)
			}
		}
	}()
	stage := func(name string) string {
		tmp := filepath.Join(sample.Output, name+".tmp")
		staged = append(staged, tmp)
		return tmp
	}

	imgTmp := ""
	switch {
	case outcome.Image != nil:
		imgTmp = stage(ImageFileName)
		if err := render.WritePNG(imgTmp, outcome.Image); err != nil {
			return fmt.Errorf("writing tissue image: %w", err)
		}
	case outcome.ImagePath != "":
		imgTmp = stage(ImageFileName)
		if err := copyFile(imgTmp, outcome.ImagePath); err != nil {
			return fmt.Errorf("copying tissue image: %w", err)
		}
	}

	previewTmp := ""
	if o.preview.Gene != "" {
		if _, ok := ds.Expression[o.preview.Gene]; ok {
			img, err := render.Preview(ds, o.preview)
			if err != nil {
				return fmt.Errorf("rendering preview: %w", err)
			}
			previewTmp = stage(PreviewFileName)
			if err := render.WritePNG(previewTmp, img); err != nil {
				return fmt.Errorf("writing preview: %w", err)
			}
		} else {
			log.Printf("[%s] preview gene %q not in dataset, skipping preview", sample.Name, o.preview.Gene)
		}
	}

	doc, err := ds.MarshalIndent()
	if err != nil {
		return fmt.Errorf("serializing dataset: %w", err)
	}
	jsonTmp := stage(DatasetFileName)
	if err := os.WriteFile(jsonTmp, doc, 0o644); err != nil {
		return fmt.Errorf("writing dataset: %w", err)
	}

	if imgTmp != "" {
		imgPath := filepath.Join(sample.Output, ImageFileName)
		if err := os.Rename(imgTmp, imgPath); err != nil {
			return fmt.Errorf("finalizing tissue image: %w", err)
		}
		log.Printf("[%s] wrote %s", sample.Name, imgPath)
	}
	if previewTmp != "" {
		previewPath := filepath.Join(sample.Output, PreviewFileName)
		if err := os.Rename(previewTmp, previewPath); err != nil {
			return fmt.Errorf("finalizing preview: %w", err)
		}
		log.Printf("[%s] wrote %s", sample.Name, previewPath)
	}
	jsonPath := filepath.Join(sample.Output, DatasetFileName)
	if err := os.Rename(jsonTmp, jsonPath); err != nil {
		return fmt.Errorf("finalizing dataset: %w", err)
	}
	log.Printf("[%s] wrote %s", sample.Name, jsonPath)

	return nil
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
