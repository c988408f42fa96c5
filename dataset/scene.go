// Package dataset reads multi-scene RGB-D capture directories and writes the
// generated training dataset. A dataset root holds camera.txt plus one
// subdirectory per scene; each scene carries associations.txt (frame file
// paths), camera.poses (per-frame camera trajectory) and picks.txt (the
// hand-identified keypoint slots on the scene's reference frame).
package dataset

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	viamutils "go.viam.com/utils"

	"github.com/mehdi-benallegue/RapidPoseLabels/camera"
	"github.com/mehdi-benallegue/RapidPoseLabels/spatial"
)

// associations.txt lines carry at least timestamp/path pairs for the depth
// and RGB streams; the 2nd token is the depth path and the 4th the RGB path.
const associationFields = 4

// Frame is one RGB-D frame of a scene with its camera pose in the scene's
// trajectory frame.
type Frame struct {
	RGBPath   string
	DepthPath string
	Pose      spatial.Pose
}

// Scene is one continuous capture session of the object.
type Scene struct {
	ID     string
	Dir    string
	Frames []Frame
	Picks  []camera.Pick
}

// ListSceneDirs lists the scene subdirectories of a dataset root, lexically
// sorted and truncated to maxScenes when maxScenes > 0.
func ListSceneDirs(root string, maxScenes int) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrap(err, "cannot list dataset root")
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	if maxScenes > 0 && len(dirs) > maxScenes {
		dirs = dirs[:maxScenes]
	}
	return dirs, nil
}

// LoadScene reads one scene directory. The frame list is the pairwise zip of
// associations.txt and camera.poses, truncated to the shorter of the two.
// picks.txt is optional at this layer: annotation-only runs read picks from
// the solver archive instead.
func LoadScene(root, id string) (*Scene, error) {
	dir := filepath.Join(root, id)
	assocs, err := readAssociations(filepath.Join(dir, "associations.txt"))
	if err != nil {
		return nil, errors.Wrapf(err, "scene %s", id)
	}
	poses, err := readPoses(filepath.Join(dir, "camera.poses"))
	if err != nil {
		return nil, errors.Wrapf(err, "scene %s", id)
	}
	n := len(assocs)
	if len(poses) < n {
		n = len(poses)
	}
	scene := &Scene{ID: id, Dir: dir, Frames: make([]Frame, n)}
	for i := 0; i < n; i++ {
		scene.Frames[i] = Frame{
			RGBPath:   filepath.Join(dir, assocs[i].rgbPath),
			DepthPath: filepath.Join(dir, assocs[i].depthPath),
			Pose:      poses[i],
		}
	}
	picksPath := filepath.Join(dir, "picks.txt")
	if _, err := os.Stat(picksPath); err == nil {
		scene.Picks, err = ReadPicks(picksPath)
		if err != nil {
			return nil, errors.Wrapf(err, "scene %s", id)
		}
	}
	return scene, nil
}

type association struct {
	depthPath string
	rgbPath   string
}

func readAssociations(path string) ([]association, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read associations")
	}
	defer viamutils.UncheckedErrorFunc(f.Close)
	var out []association
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < associationFields {
			return nil, errors.Errorf("malformed association line %q in %s", line, path)
		}
		out = append(out, association{depthPath: fields[1], rgbPath: fields[3]})
	}
	return out, scanner.Err()
}

func readPoses(path string) ([]spatial.Pose, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read camera poses")
	}
	defer viamutils.UncheckedErrorFunc(f.Close)
	var out []spatial.Pose
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		pose, err := spatial.PoseFromLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "in %s", path)
		}
		out = append(out, pose)
	}
	return out, scanner.Err()
}
