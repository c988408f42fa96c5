package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func writeSceneFiles(t *testing.T, root, id, assoc, poses, picks string) {
	t.Helper()
	dir := filepath.Join(root, id)
	test.That(t, os.MkdirAll(dir, 0o755), test.ShouldBeNil)
	if assoc != "" {
		test.That(t, os.WriteFile(filepath.Join(dir, "associations.txt"), []byte(assoc), 0o644), test.ShouldBeNil)
	}
	if poses != "" {
		test.That(t, os.WriteFile(filepath.Join(dir, "camera.poses"), []byte(poses), 0o644), test.ShouldBeNil)
	}
	if picks != "" {
		test.That(t, os.WriteFile(filepath.Join(dir, "picks.txt"), []byte(picks), 0o644), test.ShouldBeNil)
	}
}

func TestListSceneDirs(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"scene02", "scene00", "scene01"} {
		test.That(t, os.MkdirAll(filepath.Join(root, d), 0o755), test.ShouldBeNil)
	}
	test.That(t, os.WriteFile(filepath.Join(root, "camera.txt"), []byte("525 525 320 240\n"), 0o644), test.ShouldBeNil)

	dirs, err := ListSceneDirs(root, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dirs, test.ShouldResemble, []string{"scene00", "scene01", "scene02"})

	dirs, err = ListSceneDirs(root, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dirs, test.ShouldResemble, []string{"scene00", "scene01"})

	_, err = ListSceneDirs(filepath.Join(root, "nope"), 0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadScene(t *testing.T) {
	root := t.TempDir()
	assoc := "0.0 depth/0.png 0.0 rgb/0.jpg\n1.0 depth/1.png 1.0 rgb/1.jpg\n"
	poses := "0.0 1 2 3 0 0 0 1\n1.0 4 5 6 0 0 0 1\n2.0 7 8 9 0 0 0 1\n"
	picks := "10.5 20.5\n-1 -1\n30 40\n"
	writeSceneFiles(t, root, "scene00", assoc, poses, picks)

	scene, err := LoadScene(root, "scene00")
	test.That(t, err, test.ShouldBeNil)
	// frame list is the zip of associations and poses, truncated to the shorter
	test.That(t, len(scene.Frames), test.ShouldEqual, 2)
	test.That(t, scene.Frames[0].RGBPath, test.ShouldEqual, filepath.Join(root, "scene00", "rgb/0.jpg"))
	test.That(t, scene.Frames[0].DepthPath, test.ShouldEqual, filepath.Join(root, "scene00", "depth/0.png"))
	test.That(t, scene.Frames[1].Pose.Translation.X, test.ShouldEqual, 4.0)

	test.That(t, len(scene.Picks), test.ShouldEqual, 3)
	test.That(t, scene.Picks[0].Picked, test.ShouldBeTrue)
	test.That(t, scene.Picks[0].U, test.ShouldEqual, 10.5)
	test.That(t, scene.Picks[1].Picked, test.ShouldBeFalse)
	test.That(t, scene.Picks[2].V, test.ShouldEqual, 40.0)
}

func TestLoadSceneMissingFiles(t *testing.T) {
	root := t.TempDir()
	test.That(t, os.MkdirAll(filepath.Join(root, "scene00"), 0o755), test.ShouldBeNil)
	_, err := LoadScene(root, "scene00")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadSceneMalformed(t *testing.T) {
	root := t.TempDir()
	writeSceneFiles(t, root, "scene00", "0.0 only three tokens\n0.0 a\n", "0.0 1 2 3 0 0 0 1\n", "")
	_, err := LoadScene(root, "scene00")
	test.That(t, err, test.ShouldNotBeNil)

	root = t.TempDir()
	writeSceneFiles(t, root, "scene00", "0.0 d.png 0.0 r.jpg\n", "0.0 1 2 3 0 0 1\n", "")
	_, err = LoadScene(root, "scene00")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadPicksMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "picks.txt")
	test.That(t, os.WriteFile(path, []byte("1 2 3\n"), 0o644), test.ShouldBeNil)
	_, err := ReadPicks(path)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, os.WriteFile(path, []byte("a b\n"), 0o644), test.ShouldBeNil)
	_, err = ReadPicks(path)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadPoints3D(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.txt")
	test.That(t, os.WriteFile(path, []byte("0 0 0\n0.1 -0.2 0.3\n"), 0o644), test.ShouldBeNil)
	pts, err := ReadPoints3D(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(pts), test.ShouldEqual, 2)
	test.That(t, pts[1].Y, test.ShouldEqual, -0.2)

	test.That(t, os.WriteFile(path, []byte("0 0\n"), 0o644), test.ShouldBeNil)
	_, err = ReadPoints3D(path)
	test.That(t, err, test.ShouldNotBeNil)
}
