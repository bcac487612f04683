// Package extract implements the ordered extraction strategies that turn a
// spatial container file into the export dataset.
package extract

import (
	"image"

	"github.com/grllgrll/gaers.bio/internal/schema"
)

// Request identifies one sample's container for extraction.
type Request struct {
	ContainerPath string
	SampleName    string
}

// Status is the outcome kind of a strategy attempt.
type Status int

const (
	// StatusDeferred means this strategy cannot produce a result and the
	// next one should be tried. It is not a failure of the pipeline.
	StatusDeferred Status = iota
	// StatusSuccess means the strategy produced a complete dataset.
	StatusSuccess
)

// Outcome is the result of one strategy attempt. On success exactly one of
// Image and ImagePath may be set: Image carries an in-memory tissue image to
// encode, ImagePath points at an existing file to copy verbatim. Both empty
// means the sample has no tissue image artifact.
type Outcome struct {
	Status    Status
	Reason    string
	Dataset   *schema.Dataset
	Image     image.Image
	ImagePath string
}

// Deferred builds a deferral outcome with a human-readable reason.
func Deferred(reason string) Outcome {
	return Outcome{Status: StatusDeferred, Reason: reason}
}

// Strategy is one tier of the extraction pipeline. Extract returns a deferral
// outcome when the tier cannot handle the container, and an error only for
// this tier's own unrecoverable failures; neither aborts the pipeline.
type Strategy interface {
	Name() string
	Extract(req Request) (Outcome, error)
}
