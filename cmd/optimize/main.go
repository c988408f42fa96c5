// Package main runs the joint calibration step: it back-projects the picked
// keypoints of every scene, solves for the shared object model and the
// per-scene registrations, and persists the result as an npz archive for the
// generate step.
package main

import (
	"context"
	"path/filepath"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	viamutils "go.viam.com/utils"

	"github.com/mehdi-benallegue/RapidPoseLabels/annotate"
	"github.com/mehdi-benallegue/RapidPoseLabels/calib"
	"github.com/mehdi-benallegue/RapidPoseLabels/camera"
	"github.com/mehdi-benallegue/RapidPoseLabels/dataset"
)

var logger = golog.NewDevelopmentLogger("optimize")

func main() {
	viamutils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Dataset    string `flag:"dataset,required,usage=path to root dir of raw dataset"`
	Output     string `flag:"output,required,usage=path to output npz archive"`
	Config     string `flag:"config,usage=optional YAML generation config"`
	Scenes     int    `flag:"scenes,usage=max number of scenes to use (0 = all)"`
	Iterations int    `flag:"iterations,usage=cap on solver iterations (0 = solver default)"`
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
	maxScenes := argsParsed.Scenes
	if maxScenes == 0 {
		maxScenes = cfg.MaxScenes
	}

	intr, err := camera.NewIntrinsicsFromFile(
		filepath.Join(argsParsed.Dataset, "camera.txt"), cfg.Width, cfg.Height)
	if err != nil {
		return err
	}

	dirs, err := dataset.ListSceneDirs(argsParsed.Dataset, maxScenes)
	if err != nil {
		return err
	}
	logger.Infow("list of scenes", "scenes", dirs)

	var points [][]r3.Vector
	var valid [][]bool
	for _, id := range dirs {
		scene, err := dataset.LoadScene(argsParsed.Dataset, id)
		if err != nil {
			return err
		}
		if len(scene.Picks) == 0 {
			return errors.Errorf("scene %s has no picks.txt; pick keypoints before optimizing", id)
		}
		if len(scene.Frames) == 0 {
			return errors.Errorf("scene %s has no frames", id)
		}
		// picks refer to the scene's reference frame, the first of the
		// trajectory; its camera pose moves them into the trajectory frame
		dm, err := camera.NewDepthMapFromFile(scene.Frames[0].DepthPath)
		if err != nil {
			return err
		}
		pts, val := camera.UnprojectPicksInFrame(
			scene.Picks, dm, intr, cfg.DepthScale, scene.Frames[0].Pose)
		points = append(points, pts)
		valid = append(valid, val)
	}

	obs, err := calib.NewObservationSet(points, valid)
	if err != nil {
		return err
	}
	result, err := calib.Solve(obs, calib.SolverOptions{MaxIterations: argsParsed.Iterations}, logger)
	if err != nil {
		return err
	}
	if !result.Success {
		return errors.New("calibration solve did not converge; discarding poses and model")
	}

	sel := calib.BuildSelectionMatrix(obs.Valid)
	if err := calib.WriteArchive(argsParsed.Output, obs, sel, result.State); err != nil {
		return err
	}
	logger.Infow("wrote solver state", "path", argsParsed.Output, "cost", result.FinalCost)
	return ctx.Err()
}
