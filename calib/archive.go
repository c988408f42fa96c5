package calib

import (
	"archive/zip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	"go.uber.org/multierr"
	viamutils "go.viam.com/utils"
	"gonum.org/v1/gonum/mat"
)

// Archive entry names inside the npz solver-state file.
const (
	refEntry = "ref"
	selEntry = "sm"
	resEntry = "res"
)

// Archive is the persisted intermediate state of a solve: the raw per-scene
// 3D keypoints ("ref", scenes x 3 x keypoints), the selection matrix ("sm")
// and the flat solved vector ("res", laid out per State).
type Archive struct {
	Ref      []float64
	RefShape []int
	Sel      *mat.Dense
	Res      []float64
}

// NumScenes returns the scene count recorded in the ref array shape.
func (a *Archive) NumScenes() int {
	return a.RefShape[0]
}

// NumKeypoints returns the keypoint slot count recorded in the ref array shape.
func (a *Archive) NumKeypoints() int {
	return a.RefShape[2]
}

// ValidMask reconstructs the flattened per-slot validity mask from the
// selection matrix's identity block positions.
func (a *Archive) ValidMask() []bool {
	rows, cols := a.Sel.Dims()
	valid := make([]bool, cols/3)
	for c := range valid {
		for r := 0; r < rows; r++ {
			if a.Sel.At(r, 3*c) == 1 {
				valid[c] = true
				break
			}
		}
	}
	return valid
}

// State wraps the solved vector in the positional layout
// [t_1..t_{S-1}] ‖ [q_1..q_{S-1}] ‖ [model].
func (a *Archive) State() (*State, error) {
	return StateFromVector(a.Res, a.NumScenes(), a.NumKeypoints())
}

// Observations rebuilds the raw observation set from the ref array and the
// selection matrix's validity mask.
func (a *Archive) Observations() (*ObservationSet, error) {
	return ObservationSetFromRef(a.Ref, a.NumScenes(), a.NumKeypoints(), a.ValidMask())
}

// WriteArchive persists a solve's intermediate state as an npz zip of named
// NumPy arrays, interchangeable with the original tooling.
func WriteArchive(path string, obs *ObservationSet, sel *mat.Dense, state *State) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "cannot create archive")
	}
	defer viamutils.UncheckedErrorFunc(f.Close)
	zw := zip.NewWriter(f)
	// the central directory is only flushed on Close; swallowing its error
	// would leave a truncated archive behind
	defer func() {
		err = multierr.Combine(err, errors.Wrap(zw.Close(), "cannot finalize archive"))
	}()

	w, err := zw.Create(refEntry + ".npy")
	if err != nil {
		return errors.Wrap(err, "cannot create ref entry")
	}
	if err := writeNpy3D(w, [3]int{obs.NumScenes, 3, obs.NumKeypoints}, obs.RefArray()); err != nil {
		return errors.Wrap(err, "cannot write ref entry")
	}

	w, err = zw.Create(selEntry + ".npy")
	if err != nil {
		return errors.Wrap(err, "cannot create sm entry")
	}
	if err := npyio.Write(w, sel); err != nil {
		return errors.Wrap(err, "cannot write sm entry")
	}

	w, err = zw.Create(resEntry + ".npy")
	if err != nil {
		return errors.Wrap(err, "cannot create res entry")
	}
	if err := npyio.Write(w, state.Vector); err != nil {
		return errors.Wrap(err, "cannot write res entry")
	}
	return nil
}

// ReadArchive loads a solver-state npz archive.
func ReadArchive(path string) (*Archive, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open archive")
	}
	defer viamutils.UncheckedErrorFunc(zr.Close)

	a := &Archive{}
	for _, entry := range zr.File {
		name := strings.TrimSuffix(entry.Name, ".npy")
		rc, err := entry.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "cannot open archive entry %s", entry.Name)
		}
		switch name {
		case refEntry:
			r, err := npyio.NewReader(rc)
			if err == nil {
				a.RefShape = r.Header.Descr.Shape
				err = r.Read(&a.Ref)
			}
			if err != nil {
				viamutils.UncheckedErrorFunc(rc.Close)
				return nil, errors.Wrap(err, "cannot read ref entry")
			}
		case selEntry:
			var m mat.Dense
			if err := npyio.Read(rc, &m); err != nil {
				viamutils.UncheckedErrorFunc(rc.Close)
				return nil, errors.Wrap(err, "cannot read sm entry")
			}
			a.Sel = &m
		case resEntry:
			if err := npyio.Read(rc, &a.Res); err != nil {
				viamutils.UncheckedErrorFunc(rc.Close)
				return nil, errors.Wrap(err, "cannot read res entry")
			}
		}
		viamutils.UncheckedErrorFunc(rc.Close)
	}
	if a.Ref == nil || a.Sel == nil || a.Res == nil {
		return nil, errors.Errorf("archive %s is missing one of the %s/%s/%s entries",
			path, refEntry, selEntry, resEntry)
	}
	if len(a.RefShape) != 3 || a.RefShape[1] != 3 {
		return nil, errors.Errorf("ref entry has shape %v, expected (scenes, 3, keypoints)", a.RefShape)
	}
	return a, nil
}

// writeNpy3D emits a NumPy v1.0 .npy stream for a 3-dimensional float64
// array. npyio writes at most 2-D values, so the three-axis header for the
// ref array is emitted here and read back through npyio's generic reader.
func writeNpy3D(w io.Writer, shape [3]int, data []float64) error {
	if len(data) != shape[0]*shape[1]*shape[2] {
		return errors.Errorf("data length %d does not match shape %v", len(data), shape)
	}
	header := fmt.Sprintf(
		"{'descr': '<f8', 'fortran_order': False, 'shape': (%d, %d, %d), }",
		shape[0], shape[1], shape[2],
	)
	// pad so the data start is 64-byte aligned, newline terminated
	total := 10 + len(header) + 1
	if pad := total % 64; pad != 0 {
		header += strings.Repeat(" ", 64-pad)
	}
	header += "\n"

	if _, err := w.Write([]byte("\x93NUMPY\x01\x00")); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	if _, err := w.Write([]byte(header)); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, data)
}
