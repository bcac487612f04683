// Package loupe reads spatial expression containers stored as HDF5 files,
// covering both the 10x filtered-matrix layout and the AnnData (h5ad) layout.
package loupe

import (
	"fmt"
	"sort"

	"github.com/robert-malhotra/go-hdf5/hdf5"
)

// FloatImage is a tissue image with pixel values normalized to [0, 1],
// stored row-major with interleaved channels.
type FloatImage struct {
	Width    int
	Height   int
	Channels int
	Pix      []float64
}

// SpatialInfo carries the spatial substructure of a container: per-spot
// coordinates in raw spatial units, the hi-res tissue image, and the factor
// that maps raw units into image pixel space.
type SpatialInfo struct {
	Coords      [][2]float64
	ScaleFactor float64
	Image       *FloatImage
}

// Container is a fully loaded expression container. All data is read eagerly
// at open time; no file handle is kept.
type Container struct {
	Barcodes []string
	Genes    []string
	Matrix   Matrix
	// Spatial is nil when the container has no spatial substructure.
	Spatial *SpatialInfo
}

// OpenTenX reads a 10x Genomics filtered-matrix HDF5 file (a /matrix group
// with CSC data, barcodes and feature names). The 10x matrix layout carries
// no embedded tissue image, so Spatial is always nil.
func OpenTenX(path string, geneCacheSize int) (*Container, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening container: %w", err)
	}
	defer f.Close()

	g, err := f.OpenGroup("matrix")
	if err != nil {
		return nil, fmt.Errorf("no /matrix group: %w", err)
	}

	shape, err := readInt64Dataset(g, "shape")
	if err != nil {
		return nil, fmt.Errorf("reading matrix shape: %w", err)
	}
	if len(shape) != 2 {
		return nil, fmt.Errorf("matrix shape has %d dims, expected 2", len(shape))
	}
	// 10x stores genes x barcodes with barcodes as CSC columns.
	nGenes, nSpots := int(shape[0]), int(shape[1])

	data, err := readFloat64Dataset(g, "data")
	if err != nil {
		return nil, fmt.Errorf("reading matrix data: %w", err)
	}
	indices, err := readInt64Dataset(g, "indices")
	if err != nil {
		return nil, fmt.Errorf("reading matrix indices: %w", err)
	}
	indptr, err := readInt64Dataset(g, "indptr")
	if err != nil {
		return nil, fmt.Errorf("reading matrix indptr: %w", err)
	}

	barcodes, err := readStringDataset(g, "barcodes")
	if err != nil {
		return nil, fmt.Errorf("reading barcodes: %w", err)
	}
	if len(barcodes) != nSpots {
		return nil, fmt.Errorf("%d barcodes for %d matrix columns", len(barcodes), nSpots)
	}

	genes, err := readTenXGeneNames(g)
	if err != nil {
		return nil, err
	}
	if len(genes) != nGenes {
		return nil, fmt.Errorf("%d gene names for %d matrix rows", len(genes), nGenes)
	}

	// Barcode columns hold gene-row indices: spot-major in export terms.
	m, err := NewSparseMatrix(data, indices, indptr, nSpots, nGenes, false)
	if err != nil {
		return nil, err
	}

	return &Container{
		Barcodes: barcodes,
		Genes:    genes,
		Matrix:   newCachedMatrix(m, geneCacheSize),
	}, nil
}

// OpenAnnData reads an AnnData (h5ad) HDF5 file: /X as a dense dataset or a
// CSR/CSC group, spot and gene names from /obs and /var, and the optional
// spatial substructure from /obsm/spatial and /uns/spatial.
func OpenAnnData(path string, geneCacheSize int) (*Container, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening container: %w", err)
	}
	defer f.Close()

	barcodes, err := readFrameIndex(f, "obs")
	if err != nil {
		return nil, fmt.Errorf("reading spot names: %w", err)
	}
	genes, err := readFrameIndex(f, "var")
	if err != nil {
		return nil, fmt.Errorf("reading gene names: %w", err)
	}

	m, err := readAnnDataX(f, len(barcodes), len(genes))
	if err != nil {
		return nil, fmt.Errorf("reading X: %w", err)
	}

	spatial, err := readAnnDataSpatial(f, len(barcodes))
	if err != nil {
		return nil, err
	}

	return &Container{
		Barcodes: barcodes,
		Genes:    genes,
		Matrix:   newCachedMatrix(m, geneCacheSize),
		Spatial:  spatial,
	}, nil
}

func readAnnDataX(f *hdf5.File, nSpots, nGenes int) (Matrix, error) {
	if ds, err := f.OpenDataset("X"); err == nil {
		values, err := ds.ReadFloat64()
		if err != nil {
			return nil, err
		}
		return NewDenseMatrix(values, nSpots, nGenes)
	}

	g, err := f.OpenGroup("X")
	if err != nil {
		return nil, fmt.Errorf("X is neither a dataset nor a group: %w", err)
	}

	format, err := sparseFormat(g)
	if err != nil {
		return nil, err
	}

	data, err := readFloat64Dataset(g, "data")
	if err != nil {
		return nil, err
	}
	indices, err := readInt64Dataset(g, "indices")
	if err != nil {
		return nil, err
	}
	indptr, err := readInt64Dataset(g, "indptr")
	if err != nil {
		return nil, err
	}

	switch format {
	case "csr":
		// Rows are spots, indices are gene columns.
		return NewSparseMatrix(data, indices, indptr, nSpots, nGenes, false)
	case "csc":
		// Columns are genes, indices are spot rows.
		return NewSparseMatrix(data, indices, indptr, nSpots, nGenes, true)
	default:
		return nil, fmt.Errorf("unsupported sparse format %q", format)
	}
}

// sparseFormat resolves the sparse layout from the group attributes, covering
// both the current AnnData encoding-type and the older h5sparse_format.
func sparseFormat(g *hdf5.Group) (string, error) {
	if attr := g.Attr("encoding-type"); attr != nil {
		vals, err := attr.ReadString()
		if err == nil && len(vals) > 0 {
			switch vals[0] {
			case "csr_matrix":
				return "csr", nil
			case "csc_matrix":
				return "csc", nil
			}
		}
	}
	if attr := g.Attr("h5sparse_format"); attr != nil {
		vals, err := attr.ReadString()
		if err == nil && len(vals) > 0 {
			return vals[0], nil
		}
	}
	return "", fmt.Errorf("sparse X group carries no recognizable format attribute")
}

// readFrameIndex reads the index column of an AnnData dataframe group
// (/obs or /var). Older files store the index as a plain dataset.
func readFrameIndex(f *hdf5.File, name string) ([]string, error) {
	g, err := f.OpenGroup(name)
	if err != nil {
		// Oldest layout: /obs is a compound dataset; not supported here.
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}

	indexName := "_index"
	if attr := g.Attr("_index"); attr != nil {
		if vals, err := attr.ReadString(); err == nil && len(vals) > 0 && vals[0] != "" {
			indexName = vals[0]
		}
	}

	ds, err := g.OpenDataset(indexName)
	if err != nil {
		ds, err = g.OpenDataset("index")
		if err != nil {
			return nil, fmt.Errorf("no index column in %s: %w", name, err)
		}
	}
	return ds.ReadString()
}

func readAnnDataSpatial(f *hdf5.File, nSpots int) (*SpatialInfo, error) {
	uns, err := f.OpenGroup("uns/spatial")
	if err != nil {
		return nil, nil
	}

	coordsDS, err := f.OpenDataset("obsm/spatial")
	if err != nil {
		return nil, nil
	}
	flat, err := coordsDS.ReadFloat64()
	if err != nil {
		return nil, fmt.Errorf("reading spatial coordinates: %w", err)
	}
	if len(flat) != nSpots*2 {
		return nil, fmt.Errorf("spatial coordinates hold %d values for %d spots", len(flat), nSpots)
	}
	coords := make([][2]float64, nSpots)
	for i := range coords {
		coords[i][0] = flat[i*2]
		coords[i][1] = flat[i*2+1]
	}

	libraries, err := uns.Members()
	if err != nil || len(libraries) == 0 {
		return nil, fmt.Errorf("uns/spatial has no library entries")
	}
	sort.Strings(libraries)
	lib, err := uns.OpenGroup(libraries[0])
	if err != nil {
		return nil, fmt.Errorf("opening spatial library %q: %w", libraries[0], err)
	}

	img, err := readHiresImage(lib)
	if err != nil {
		return nil, err
	}

	sfDS, err := lib.OpenDataset("scalefactors/tissue_hires_scalef")
	if err != nil {
		return nil, fmt.Errorf("no tissue_hires_scalef: %w", err)
	}
	sf, err := sfDS.ReadFloat64()
	if err != nil || len(sf) == 0 {
		return nil, fmt.Errorf("reading tissue_hires_scalef: %w", err)
	}

	return &SpatialInfo{Coords: coords, ScaleFactor: sf[0], Image: img}, nil
}

func readHiresImage(lib *hdf5.Group) (*FloatImage, error) {
	ds, err := lib.OpenDataset("images/hires")
	if err != nil {
		return nil, fmt.Errorf("no hires image: %w", err)
	}

	shape := ds.Shape()
	if len(shape) != 2 && len(shape) != 3 {
		return nil, fmt.Errorf("hires image has rank %d", len(shape))
	}
	height, width := int(shape[0]), int(shape[1])
	channels := 1
	if len(shape) == 3 {
		channels = int(shape[2])
	}

	pix, err := ds.ReadFloat64()
	if err != nil {
		return nil, fmt.Errorf("reading hires image: %w", err)
	}
	if len(pix) != height*width*channels {
		return nil, fmt.Errorf("hires image holds %d values for %dx%dx%d", len(pix), height, width, channels)
	}

	return &FloatImage{Width: width, Height: height, Channels: channels, Pix: pix}, nil
}

func readTenXGeneNames(g *hdf5.Group) ([]string, error) {
	// Current layout nests feature names; legacy files use flat datasets.
	if ds, err := g.OpenDataset("features/name"); err == nil {
		return ds.ReadString()
	}
	if ds, err := g.OpenDataset("gene_names"); err == nil {
		return ds.ReadString()
	}
	if ds, err := g.OpenDataset("genes"); err == nil {
		return ds.ReadString()
	}
	return nil, fmt.Errorf("no feature names in /matrix")
}

func readFloat64Dataset(g *hdf5.Group, name string) ([]float64, error) {
	ds, err := g.OpenDataset(name)
	if err != nil {
		return nil, err
	}
	return ds.ReadFloat64()
}

func readInt64Dataset(g *hdf5.Group, name string) ([]int64, error) {
	ds, err := g.OpenDataset(name)
	if err != nil {
		return nil, err
	}
	return ds.ReadInt64()
}

func readStringDataset(g *hdf5.Group, name string) ([]string, error) {
	ds, err := g.OpenDataset(name)
	if err != nil {
		return nil, err
	}
	return ds.ReadString()
}
