package extract

import (
	"fmt"
	"log"

	"github.com/grllgrll/gaers.bio/internal/data/loupe"
	"github.com/grllgrll/gaers.bio/internal/encode"
	"github.com/grllgrll/gaers.bio/internal/render"
	"github.com/grllgrll/gaers.bio/internal/schema"
)

// DefaultTopNGenes is the number of most variable genes exported when the
// configuration does not say otherwise.
const DefaultTopNGenes = 50

// Structured extracts from a self-describing container: coordinates, the
// hi-res tissue image, a scale factor and the top-N most variable genes.
// It is the primary tier, so successful datasets carry no source tag.
type Structured struct {
	// TopNGenes caps the exported gene count; zero means DefaultTopNGenes.
	TopNGenes int
	// GeneCacheSize bounds the reader's gene column cache.
	GeneCacheSize int
}

func (s *Structured) Name() string { return "structured" }

func (s *Structured) Extract(req Request) (Outcome, error) {
	// Two reader entry points: the 10x matrix layout first, then AnnData.
	c, tenxErr := loupe.OpenTenX(req.ContainerPath, s.GeneCacheSize)
	if tenxErr != nil {
		var annErr error
		c, annErr = loupe.OpenAnnData(req.ContainerPath, s.GeneCacheSize)
		if annErr != nil {
			return Deferred(fmt.Sprintf("container not readable (10x matrix: %v; anndata: %v)", tenxErr, annErr)), nil
		}
	}

	log.Printf("[%s] loaded container: %d spots, %d genes", req.SampleName, len(c.Barcodes), len(c.Genes))

	if c.Spatial == nil {
		return Deferred("no spatial information found"), nil
	}

	topN := s.TopNGenes
	if topN <= 0 {
		topN = DefaultTopNGenes
	}
	ranked, err := loupe.TopVariableGenes(c.Matrix, topN)
	if err != nil {
		return Outcome{}, fmt.Errorf("ranking genes: %w", err)
	}
	selected := make([]encode.Gene, len(ranked))
	for i, g := range ranked {
		selected[i] = encode.Gene{Name: c.Genes[g], Index: g}
	}
	log.Printf("[%s] selected %d variable genes", req.SampleName, len(selected))

	expr, err := encode.Expression(c.Matrix, c.Barcodes, selected)
	if err != nil {
		return Outcome{}, fmt.Errorf("encoding expression: %w", err)
	}

	sf := c.Spatial.ScaleFactor
	coords := make(map[string]schema.Point, len(c.Barcodes))
	for i, barcode := range c.Barcodes {
		coords[barcode] = schema.Point{
			X: c.Spatial.Coords[i][0] * sf,
			Y: c.Spatial.Coords[i][1] * sf,
		}
	}

	img, err := render.ImageFromFloat(c.Spatial.Image)
	if err != nil {
		return Outcome{}, fmt.Errorf("converting tissue image: %w", err)
	}

	ds := &schema.Dataset{
		Coordinates: coords,
		Expression:  expr,
		ScaleFactor: sf,
		ImageSize: schema.ImageSize{
			Width:  c.Spatial.Image.Width,
			Height: c.Spatial.Image.Height,
		},
		NSpots: len(coords),
		NGenes: len(expr),
	}

	return Outcome{Status: StatusSuccess, Dataset: ds, Image: img}, nil
}
