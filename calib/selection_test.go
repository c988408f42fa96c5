package calib

import (
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func TestBuildSelectionMatrixShape(t *testing.T) {
	valid := []bool{true, false, true, true, false}
	sel := BuildSelectionMatrix(valid)
	rows, cols := sel.Dims()
	test.That(t, rows, test.ShouldEqual, 3*3)
	test.That(t, cols, test.ShouldEqual, 3*len(valid))
}

func TestSelectionMatrixExtractsValidBlocks(t *testing.T) {
	valid := []bool{false, true, false, true}
	sel := BuildSelectionMatrix(valid)

	// dense residual: slot i holds (10i, 10i+1, 10i+2)
	dense := mat.NewVecDense(12, nil)
	for i := 0; i < 4; i++ {
		dense.SetVec(3*i, float64(10*i))
		dense.SetVec(3*i+1, float64(10*i+1))
		dense.SetVec(3*i+2, float64(10*i+2))
	}
	var masked mat.VecDense
	masked.MulVec(sel, dense)
	test.That(t, masked.Len(), test.ShouldEqual, 6)
	// slots 1 then 3, in ascending order
	want := []float64{10, 11, 12, 30, 31, 32}
	for i, w := range want {
		test.That(t, masked.AtVec(i), test.ShouldEqual, w)
	}
}

func TestSelectionMatrixAllValid(t *testing.T) {
	valid := []bool{true, true}
	sel := BuildSelectionMatrix(valid)
	rows, cols := sel.Dims()
	test.That(t, rows, test.ShouldEqual, cols)
	ident := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		ident.Set(i, i, 1)
	}
	test.That(t, mat.EqualApprox(sel, ident, 0), test.ShouldBeTrue)
}
