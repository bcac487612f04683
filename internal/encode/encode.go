// Package encode converts expression matrices into the sparse per-gene map of
// the export schema.
package encode

import "fmt"

// GeneSource is any expression matrix that can materialize one gene's values
// across all spots as a dense vector. Both dense and compressed-sparse
// representations satisfy it.
type GeneSource interface {
	NSpots() int
	// GeneColumn returns the expression of gene i for every spot, in spot order.
	GeneColumn(i int) ([]float64, error)
}

// Gene pairs a gene identifier with its column index in the source matrix.
type Gene struct {
	Name  string
	Index int
}

// Expression builds the sparse expression map for the selected genes.
// Zero and negative values are dropped: the schema stores only strictly
// positive entries. On any column read error the partial map is discarded.
func Expression(src GeneSource, spotIDs []string, selected []Gene) (map[string]map[string]float64, error) {
	if len(spotIDs) != src.NSpots() {
		return nil, fmt.Errorf("spot id count %d does not match matrix spots %d", len(spotIDs), src.NSpots())
	}

	expr := make(map[string]map[string]float64, len(selected))
	for _, gene := range selected {
		col, err := src.GeneColumn(gene.Index)
		if err != nil {
			return nil, fmt.Errorf("reading gene %q: %w", gene.Name, err)
		}
		if len(col) != len(spotIDs) {
			return nil, fmt.Errorf("gene %q: column length %d does not match %d spots", gene.Name, len(col), len(spotIDs))
		}

		values := make(map[string]float64)
		for i, v := range col {
			if v > 0 {
				values[spotIDs[i]] = v
			}
		}
		expr[gene.Name] = values
	}
	return expr, nil
}
