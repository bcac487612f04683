package loupe

import (
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Matrix is an expression matrix indexed by spot and by gene. Implementations
// cover both dense and compressed-sparse container layouts.
type Matrix interface {
	NSpots() int
	NGenes() int
	// GeneColumn materializes one gene's expression across all spots.
	GeneColumn(i int) ([]float64, error)
	// geneStats returns per-gene value sums and sums of squares over all spots.
	geneStats() (sum, sumSq []float64, err error)
}

// DenseMatrix holds a row-major spots x genes matrix.
type DenseMatrix struct {
	values []float64
	nSpots int
	nGenes int
}

// NewDenseMatrix wraps row-major values as a spots x genes matrix.
func NewDenseMatrix(values []float64, nSpots, nGenes int) (*DenseMatrix, error) {
	if len(values) != nSpots*nGenes {
		return nil, fmt.Errorf("dense matrix: %d values for %dx%d shape", len(values), nSpots, nGenes)
	}
	return &DenseMatrix{values: values, nSpots: nSpots, nGenes: nGenes}, nil
}

func (m *DenseMatrix) NSpots() int { return m.nSpots }
func (m *DenseMatrix) NGenes() int { return m.nGenes }

func (m *DenseMatrix) GeneColumn(i int) ([]float64, error) {
	if i < 0 || i >= m.nGenes {
		return nil, fmt.Errorf("gene index %d out of range (%d genes)", i, m.nGenes)
	}
	col := make([]float64, m.nSpots)
	for s := 0; s < m.nSpots; s++ {
		col[s] = m.values[s*m.nGenes+i]
	}
	return col, nil
}

func (m *DenseMatrix) geneStats() ([]float64, []float64, error) {
	sum := make([]float64, m.nGenes)
	sumSq := make([]float64, m.nGenes)
	for s := 0; s < m.nSpots; s++ {
		row := m.values[s*m.nGenes : (s+1)*m.nGenes]
		for g, v := range row {
			sum[g] += v
			sumSq[g] += v * v
		}
	}
	return sum, sumSq, nil
}

// SparseMatrix holds a compressed sparse matrix. When geneMajor is true the
// index pointer runs over genes (CSC over genes) and indices are spot indices;
// otherwise the pointer runs over spots and indices are gene indices.
type SparseMatrix struct {
	data      []float64
	indices   []int64
	indptr    []int64
	nSpots    int
	nGenes    int
	geneMajor bool
}

// NewSparseMatrix builds a compressed sparse spots x genes matrix.
func NewSparseMatrix(data []float64, indices, indptr []int64, nSpots, nGenes int, geneMajor bool) (*SparseMatrix, error) {
	if len(data) != len(indices) {
		return nil, fmt.Errorf("sparse matrix: %d values but %d indices", len(data), len(indices))
	}
	major := nSpots
	minor := nGenes
	if geneMajor {
		major, minor = nGenes, nSpots
	}
	if len(indptr) != major+1 {
		return nil, fmt.Errorf("sparse matrix: indptr length %d, expected %d", len(indptr), major+1)
	}
	if int(indptr[major]) != len(data) {
		return nil, fmt.Errorf("sparse matrix: indptr end %d does not match %d values", indptr[major], len(data))
	}
	if indptr[0] != 0 {
		return nil, fmt.Errorf("sparse matrix: indptr starts at %d, expected 0", indptr[0])
	}
	for i := 1; i < len(indptr); i++ {
		if indptr[i] < indptr[i-1] {
			return nil, fmt.Errorf("sparse matrix: indptr decreases at %d (%d -> %d)", i, indptr[i-1], indptr[i])
		}
	}
	for _, idx := range indices {
		if idx < 0 || int(idx) >= minor {
			return nil, fmt.Errorf("sparse matrix: index %d out of range (%d)", idx, minor)
		}
	}
	return &SparseMatrix{
		data:      data,
		indices:   indices,
		indptr:    indptr,
		nSpots:    nSpots,
		nGenes:    nGenes,
		geneMajor: geneMajor,
	}, nil
}

func (m *SparseMatrix) NSpots() int { return m.nSpots }
func (m *SparseMatrix) NGenes() int { return m.nGenes }

func (m *SparseMatrix) GeneColumn(i int) ([]float64, error) {
	if i < 0 || i >= m.nGenes {
		return nil, fmt.Errorf("gene index %d out of range (%d genes)", i, m.nGenes)
	}
	col := make([]float64, m.nSpots)
	if m.geneMajor {
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			col[m.indices[k]] = m.data[k]
		}
		return col, nil
	}
	// Spot-major layout has no per-gene index; scan every spot's entries.
	for s := 0; s < m.nSpots; s++ {
		for k := m.indptr[s]; k < m.indptr[s+1]; k++ {
			if int(m.indices[k]) == i {
				col[s] = m.data[k]
			}
		}
	}
	return col, nil
}

func (m *SparseMatrix) geneStats() ([]float64, []float64, error) {
	sum := make([]float64, m.nGenes)
	sumSq := make([]float64, m.nGenes)
	if m.geneMajor {
		for g := 0; g < m.nGenes; g++ {
			for k := m.indptr[g]; k < m.indptr[g+1]; k++ {
				v := m.data[k]
				sum[g] += v
				sumSq[g] += v * v
			}
		}
		return sum, sumSq, nil
	}
	for s := 0; s < m.nSpots; s++ {
		for k := m.indptr[s]; k < m.indptr[s+1]; k++ {
			g := m.indices[k]
			v := m.data[k]
			sum[g] += v
			sumSq[g] += v * v
		}
	}
	return sum, sumSq, nil
}

// cachedMatrix memoizes materialized gene columns. Spot-major sparse layouts
// pay a full scan per column, so repeated reads of the same gene go through
// the LRU instead.
type cachedMatrix struct {
	Matrix
	cache *lru.Cache[int, []float64]
}

func newCachedMatrix(m Matrix, size int) Matrix {
	if size <= 0 {
		return m
	}
	cache, err := lru.New[int, []float64](size)
	if err != nil {
		return m
	}
	return &cachedMatrix{Matrix: m, cache: cache}
}

func (c *cachedMatrix) GeneColumn(i int) ([]float64, error) {
	if col, ok := c.cache.Get(i); ok {
		return col, nil
	}
	col, err := c.Matrix.GeneColumn(i)
	if err != nil {
		return nil, err
	}
	c.cache.Add(i, col)
	return col, nil
}

// TopVariableGenes ranks genes by expression variance across spots and returns
// the indices of the n most variable ones, highest first. Ties resolve to the
// lower gene index so the ranking is deterministic. Fewer than n genes is not
// an error; all available genes are returned.
func TopVariableGenes(m Matrix, n int) ([]int, error) {
	nGenes := m.NGenes()
	nSpots := m.NSpots()
	if nSpots == 0 || nGenes == 0 {
		return nil, nil
	}

	sum, sumSq, err := m.geneStats()
	if err != nil {
		return nil, fmt.Errorf("computing gene statistics: %w", err)
	}

	variance := make([]float64, nGenes)
	for g := 0; g < nGenes; g++ {
		mean := sum[g] / float64(nSpots)
		variance[g] = sumSq[g]/float64(nSpots) - mean*mean
	}

	ranked := make([]int, nGenes)
	for g := range ranked {
		ranked[g] = g
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return variance[ranked[a]] > variance[ranked[b]]
	})

	if n < 0 {
		n = 0
	}
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked, nil
}
