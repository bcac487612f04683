// Package schema defines the normalized spatial dataset written for the web viewer.
package schema

import (
	"encoding/json"
	"fmt"
)

// Point is a spot position in image pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ImageSize holds the pixel dimensions of the tissue image.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Dataset is the normalized export artifact. Coordinates are pre-scaled to
// image pixel space and Expression is sparse: only strictly positive values
// are stored. A Dataset is built once per sample and never mutated.
type Dataset struct {
	Coordinates map[string]Point              `json:"coordinates"`
	Expression  map[string]map[string]float64 `json:"expression"`
	ScaleFactor float64                       `json:"scale_factor"`
	ImageSize   ImageSize                     `json:"image_size"`
	NSpots      int                           `json:"n_spots"`
	NGenes      int                           `json:"n_genes"`
	// Source tags which fallback tier produced the data. Empty (and omitted
	// from JSON) when the primary extraction succeeded.
	Source string `json:"source,omitempty"`
}

// Validate checks the dataset invariants before it is written.
func (d *Dataset) Validate() error {
	if d.NSpots != len(d.Coordinates) {
		return fmt.Errorf("n_spots=%d does not match %d coordinates", d.NSpots, len(d.Coordinates))
	}
	if d.NGenes != len(d.Expression) {
		return fmt.Errorf("n_genes=%d does not match %d genes", d.NGenes, len(d.Expression))
	}
	if d.ImageSize.Width <= 0 || d.ImageSize.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", d.ImageSize.Width, d.ImageSize.Height)
	}
	for gene, spots := range d.Expression {
		for spot, v := range spots {
			if _, ok := d.Coordinates[spot]; !ok {
				return fmt.Errorf("gene %q references unknown spot %q", gene, spot)
			}
			if v <= 0 {
				return fmt.Errorf("gene %q spot %q has non-positive value %g", gene, spot, v)
			}
		}
	}
	return nil
}

// MarshalIndent serializes the dataset as human-readable JSON. Go serializes
// map keys in sorted order, so the output is byte-deterministic for a given
// dataset.
func (d *Dataset) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}
