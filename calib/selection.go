package calib

import (
	"gonum.org/v1/gonum/mat"
)

// BuildSelectionMatrix builds the masking operator over a flattened validity
// vector. For V true entries out of N, the result is (3V) x (3N), with a
// 3x3 identity block per valid flag: row-block r for the r-th valid entry in
// ascending index order, column-block at the entry's flat index. Multiplying
// it by a dense per-slot residual vector extracts exactly the valid
// 3-vectors, in the same relative order, so invalid slots contribute nothing
// to the cost.
func BuildSelectionMatrix(valid []bool) *mat.Dense {
	numValid := 0
	for _, v := range valid {
		if v {
			numValid++
		}
	}
	sel := mat.NewDense(3*numValid, 3*len(valid), nil)
	row := 0
	for col, v := range valid {
		if !v {
			continue
		}
		for i := 0; i < 3; i++ {
			sel.Set(3*row+i, 3*col+i, 1)
		}
		row++
	}
	return sel
}
