package schema

import (
	"bytes"
	"strings"
	"testing"
)

func validDataset() *Dataset {
	return &Dataset{
		Coordinates: map[string]Point{
			"A1": {X: 10, Y: 20},
			"B2": {X: 30, Y: 40},
		},
		Expression: map[string]map[string]float64{
			"GENE1": {"A1": 3.5},
			"GENE2": {"A1": 1.0, "B2": 2.0},
		},
		ScaleFactor: 0.5,
		ImageSize:   ImageSize{Width: 600, Height: 600},
		NSpots:      2,
		NGenes:      2,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Dataset)
		wantErr string
	}{
		{"valid", func(d *Dataset) {}, ""},
		{
			"spot count mismatch",
			func(d *Dataset) { d.NSpots = 3 },
			"n_spots",
		},
		{
			"gene count mismatch",
			func(d *Dataset) { d.NGenes = 1 },
			"n_genes",
		},
		{
			"unknown spot in expression",
			func(d *Dataset) { d.Expression["GENE1"]["ZZ"] = 1.0 },
			"unknown spot",
		},
		{
			"zero expression value",
			func(d *Dataset) { d.Expression["GENE1"]["A1"] = 0 },
			"non-positive",
		},
		{
			"negative expression value",
			func(d *Dataset) { d.Expression["GENE1"]["A1"] = -2 },
			"non-positive",
		},
		{
			"empty image",
			func(d *Dataset) { d.ImageSize = ImageSize{} },
			"image size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDataset()
			tt.mutate(d)
			err := d.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestMarshalIndentDeterministic(t *testing.T) {
	d := validDataset()

	first, err := d.MarshalIndent()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	second, err := d.MarshalIndent()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("repeated serialization produced different bytes")
	}
}

func TestMarshalOmitsEmptySource(t *testing.T) {
	d := validDataset()

	doc, err := d.MarshalIndent()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if bytes.Contains(doc, []byte("source")) {
		t.Error("empty source should be omitted from JSON")
	}

	d.Source = "demo_data"
	doc, err = d.MarshalIndent()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !bytes.Contains(doc, []byte(`"source": "demo_data"`)) {
		t.Error("source tag missing from JSON")
	}
}
