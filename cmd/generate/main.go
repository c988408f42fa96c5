// Package main generates the training dataset: it reads the solver-state
// archive written by the optimize step, reprojects the solved object model
// into every scene's frames, and writes labeled samples (keypoints, center,
// scale, YOLO bbox and resized frames) to the output directory.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	viamutils "go.viam.com/utils"

	"github.com/mehdi-benallegue/RapidPoseLabels/annotate"
	"github.com/mehdi-benallegue/RapidPoseLabels/calib"
	"github.com/mehdi-benallegue/RapidPoseLabels/camera"
	"github.com/mehdi-benallegue/RapidPoseLabels/dataset"
)

var logger = golog.NewDevelopmentLogger("generate")

func main() {
	viamutils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Dataset     string `flag:"dataset,required,usage=path to root dir of raw dataset"`
	Input       string `flag:"input,required,usage=path to input npz archive"`
	Output      string `flag:"output,required,usage=path to output directory"`
	GroundTruth string `flag:"gt,usage=path to hand-authored ground-truth 3D points"`
	Visualize   bool   `flag:"visualize,usage=write label overlay images"`
	Policy      string `flag:"policy,default=minmax,usage=bounding-box policy (minmax or pairwise)"`
	Config      string `flag:"config,usage=optional YAML generation config"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := viamutils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg := annotate.DefaultConfig()
	if argsParsed.Config != "" {
		var err error
		if cfg, err = annotate.LoadConfig(argsParsed.Config); err != nil {
			return err
		}
	}
	policy, ok := annotate.PolicyByName(argsParsed.Policy)
	if !ok {
		return errors.Errorf("unknown bounding-box policy %q", argsParsed.Policy)
	}

	archive, err := calib.ReadArchive(argsParsed.Input)
	if err != nil {
		return err
	}
	state, err := archive.State()
	if err != nil {
		return err
	}
	logger.Infow("loaded solver state",
		"scenes", archive.NumScenes(), "keypoints", archive.NumKeypoints())

	intr, err := camera.NewIntrinsicsFromFile(
		filepath.Join(argsParsed.Dataset, "camera.txt"), cfg.Width, cfg.Height)
	if err != nil {
		return err
	}
	dirs, err := dataset.ListSceneDirs(argsParsed.Dataset, archive.NumScenes())
	if err != nil {
		return err
	}
	if len(dirs) < archive.NumScenes() {
		return errors.Errorf("dataset has %d scene dirs but the archive was solved over %d",
			len(dirs), archive.NumScenes())
	}
	logger.Infow("list of scenes", "scenes", dirs)

	if argsParsed.GroundTruth != "" {
		if err := evaluateGroundTruth(argsParsed.GroundTruth, archive, logger); err != nil {
			return err
		}
	}

	generator, err := annotate.NewGenerator(
		cfg, intr, state.Model(), state.SceneTransforms(), policy, logger)
	if err != nil {
		return err
	}
	writer, err := dataset.NewWriter(argsParsed.Output, cfg.ClassID)
	if err != nil {
		return err
	}
	overlayDir := filepath.Join(argsParsed.Output, "overlay")
	if argsParsed.Visualize {
		if err := os.MkdirAll(overlayDir, 0o755); err != nil {
			return errors.Wrap(err, "cannot create overlay directory")
		}
	}

	var mu sync.Mutex
	total := 0
	emit := func(index int, s annotate.Sample) error {
		if err := writer.WriteSample(index, s.Image, s.Label.Keypoints, s.Label.Center, s.Label.Scale); err != nil {
			return err
		}
		if argsParsed.Visualize {
			overlayPath := filepath.Join(overlayDir, fmt.Sprintf("frame_%05d.png", index))
			if err := annotate.SaveOverlayPNG(overlayPath, s.Image, s.Label); err != nil {
				return err
			}
		}
		mu.Lock()
		total++
		mu.Unlock()
		return nil
	}

	nextIndex := 0
	for sceneIdx, id := range dirs {
		scene, err := dataset.LoadScene(argsParsed.Dataset, id)
		if err != nil {
			return err
		}
		n, err := generator.GenerateScene(ctx, scene, sceneIdx, nextIndex, emit)
		if err != nil {
			return err
		}
		nextIndex += n
	}
	logger.Infow("total number of samples generated", "samples", total)
	return ctx.Err()
}

// evaluateGroundTruth aligns the hand-authored model against each scene's
// raw back-projections, scene by scene in ascending order.
func evaluateGroundTruth(path string, archive *calib.Archive, logger golog.Logger) error {
	groundTruth, err := dataset.ReadPoints3D(path)
	if err != nil {
		return err
	}
	obs, err := archive.Observations()
	if err != nil {
		return err
	}
	alignments, err := calib.EvaluateScenes(groundTruth, obs)
	if err != nil {
		return err
	}
	for _, a := range alignments {
		logger.Infow("ground-truth alignment",
			"scene", a.Scene,
			"packedOffset", a.Offset,
			"disparity", a.Alignment.Disparity,
			"scale", a.Alignment.Scale,
		)
	}
	return nil
}
