package dataset

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	viamutils "go.viam.com/utils"

	"github.com/mehdi-benallegue/RapidPoseLabels/camera"
)

// ReadPicks reads a scene's picks.txt: one "u v" line per keypoint slot,
// with "-1 -1" marking a slot that was not picked in this scene. The line
// count fixes the number of keypoint slots K and must match across scenes.
func ReadPicks(path string) ([]camera.Pick, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read picks")
	}
	defer viamutils.UncheckedErrorFunc(f.Close)
	var out []camera.Pick
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, errors.Errorf("malformed pick line %q in %s", line, path)
		}
		u, errU := strconv.ParseFloat(fields[0], 64)
		v, errV := strconv.ParseFloat(fields[1], 64)
		if errU != nil || errV != nil {
			return nil, errors.Errorf("malformed pick line %q in %s", line, path)
		}
		out = append(out, camera.Pick{U: u, V: v, Picked: u >= 0 && v >= 0})
	}
	return out, scanner.Err()
}

// ReadPoints3D reads a hand-authored 3D point list (the ground-truth object
// definition): one "x y z" line per keypoint.
func ReadPoints3D(path string) ([]r3.Vector, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read 3D points")
	}
	defer viamutils.UncheckedErrorFunc(f.Close)
	var out []r3.Vector
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, errors.Errorf("malformed point line %q in %s", line, path)
		}
		var vals [3]float64
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "malformed point line %q in %s", line, path)
			}
			vals[i] = v
		}
		out = append(out, r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]})
	}
	return out, scanner.Err()
}
