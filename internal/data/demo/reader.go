// Package demo reads the pre-generated demo dataset used as the last
// extraction fallback. Each sample lives under a fixed directory convention:
//
//	<base>/<sample>/spatial_coordinates.json
//	<base>/<sample>/expression_matrix_subset.json
//	<base>/<sample>/tissue_lowres.png
//
// The JSON documents may alternatively be stored gzip-compressed with a
// .json.gz suffix.
package demo

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/grllgrll/gaers.bio/internal/schema"
)

// SampleData is the demo dataset for one sample. The documents are already in
// export shape and pre-scaled to image pixel space. ImagePath is empty when
// the sample has no tissue image.
type SampleData struct {
	Coordinates map[string]schema.Point
	Expression  map[string]map[string]float64
	ImagePath   string
}

// Reader resolves demo data under a base directory.
type Reader struct {
	baseDir string
}

// NewReader creates a demo data reader rooted at baseDir.
func NewReader(baseDir string) *Reader {
	return &Reader{baseDir: baseDir}
}

// Load reads the demo documents for a named sample. A missing coordinate
// document is an error; a missing tissue image is not.
func (r *Reader) Load(sample string) (*SampleData, error) {
	dir := filepath.Join(r.baseDir, sample)

	var coords map[string]schema.Point
	if err := readDocument(filepath.Join(dir, "spatial_coordinates.json"), &coords); err != nil {
		return nil, fmt.Errorf("demo data not found for %q: %w", sample, err)
	}

	var expr map[string]map[string]float64
	if err := readDocument(filepath.Join(dir, "expression_matrix_subset.json"), &expr); err != nil {
		return nil, fmt.Errorf("demo expression missing for %q: %w", sample, err)
	}

	data := &SampleData{Coordinates: coords, Expression: expr}

	imgPath := filepath.Join(dir, "tissue_lowres.png")
	if _, err := os.Stat(imgPath); err == nil {
		data.ImagePath = imgPath
	}

	return data, nil
}

// readDocument decodes a JSON document, falling back to a gzip-compressed
// sibling when the plain file is absent.
func readDocument(path string, v interface{}) error {
	f, err := os.Open(path)
	if err == nil {
		defer f.Close()
		return json.NewDecoder(f).Decode(v)
	}
	if !os.IsNotExist(err) {
		return err
	}

	gzf, gzErr := os.Open(path + ".gz")
	if gzErr != nil {
		return err
	}
	defer gzf.Close()

	zr, zErr := gzip.NewReader(gzf)
	if zErr != nil {
		return fmt.Errorf("opening %s.gz: %w", filepath.Base(path), zErr)
	}
	defer zr.Close()

	return json.NewDecoder(zr).Decode(v)
}
