// Package render converts tissue images to 8-bit artifacts and draws the
// optional expression preview using fogleman/gg.
package render

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/grllgrll/gaers.bio/internal/data/loupe"
)

// ImageFromFloat rescales a [0, 1] normalized float image to 8-bit depth.
// Single-channel images become grayscale, 3- and 4-channel images RGBA.
func ImageFromFloat(fi *loupe.FloatImage) (image.Image, error) {
	switch fi.Channels {
	case 1:
		img := image.NewGray(image.Rect(0, 0, fi.Width, fi.Height))
		for i, v := range fi.Pix {
			img.Pix[i] = clamp8(v)
		}
		return img, nil
	case 3:
		img := image.NewRGBA(image.Rect(0, 0, fi.Width, fi.Height))
		for p := 0; p < fi.Width*fi.Height; p++ {
			img.Pix[p*4+0] = clamp8(fi.Pix[p*3+0])
			img.Pix[p*4+1] = clamp8(fi.Pix[p*3+1])
			img.Pix[p*4+2] = clamp8(fi.Pix[p*3+2])
			img.Pix[p*4+3] = 255
		}
		return img, nil
	case 4:
		img := image.NewRGBA(image.Rect(0, 0, fi.Width, fi.Height))
		for i, v := range fi.Pix {
			img.Pix[i] = clamp8(v)
		}
		return img, nil
	default:
		return nil, fmt.Errorf("unsupported channel count %d", fi.Channels)
	}
}

func clamp8(v float64) uint8 {
	scaled := v * 255
	if scaled <= 0 {
		return 0
	}
	if scaled >= 255 {
		return 255
	}
	return uint8(scaled)
}

// WritePNG encodes an image as an 8-bit PNG file.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	if err := encoder.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
