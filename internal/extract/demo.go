package extract

import (
	"log"

	"github.com/grllgrll/gaers.bio/internal/data/demo"
	"github.com/grllgrll/gaers.bio/internal/schema"
)

// Demo image dimensions are fixed by the demo dataset generator.
const (
	demoImageWidth  = 600
	demoImageHeight = 600
)

// DemoSource is the provenance tag on datasets produced by the demo tier.
const DemoSource = "demo_data"

// DemoFallback republishes the pre-generated demo dataset for a sample. It is
// the last tier: a missing demo document is this strategy's failure, not a
// deferral, since nothing runs after it.
type DemoFallback struct {
	Reader *demo.Reader
}

func (d *DemoFallback) Name() string { return "demo" }

func (d *DemoFallback) Extract(req Request) (Outcome, error) {
	data, err := d.Reader.Load(req.SampleName)
	if err != nil {
		return Outcome{}, err
	}

	log.Printf("[%s] demo data: %d spots, %d genes", req.SampleName, len(data.Coordinates), len(data.Expression))

	ds := &schema.Dataset{
		Coordinates: data.Coordinates,
		Expression:  data.Expression,
		// Demo coordinates are pre-scaled.
		ScaleFactor: 1.0,
		ImageSize:   schema.ImageSize{Width: demoImageWidth, Height: demoImageHeight},
		NSpots:      len(data.Coordinates),
		NGenes:      len(data.Expression),
		Source:      DemoSource,
	}

	return Outcome{Status: StatusSuccess, Dataset: ds, ImagePath: data.ImagePath}, nil
}
