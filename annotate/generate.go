package annotate

import (
	"context"
	"image"

	"github.com/disintegration/imaging"
	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/mehdi-benallegue/RapidPoseLabels/camera"
	"github.com/mehdi-benallegue/RapidPoseLabels/dataset"
	"github.com/mehdi-benallegue/RapidPoseLabels/spatial"
)

// Label is the per-frame annotation: projected 2D keypoints, the crop
// center, and the crop scale (box side over 200).
type Label struct {
	Keypoints []r2.Point
	Center    r2.Point
	Scale     float64
}

// Sample pairs a resized RGB frame with its label.
type Sample struct {
	Image image.Image
	Label Label
}

// Generator reprojects the solved object model into scene frames. It only
// reads the solved state, so one generator may label scenes and frames
// concurrently.
type Generator struct {
	cfg      Config
	intr     *camera.PinholeCameraIntrinsics
	model    []r3.Vector
	sceneTFs []*mat.Dense
	policy   BoxPolicy
	logger   golog.Logger
}

// NewGenerator builds a generator from a solved model and the per-scene
// registrations (identity first, per the gauge).
func NewGenerator(
	cfg Config,
	intr *camera.PinholeCameraIntrinsics,
	model []r3.Vector,
	sceneTFs []*mat.Dense,
	policy BoxPolicy,
	logger golog.Logger,
) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := intr.CheckValid(); err != nil {
		return nil, err
	}
	if len(model) == 0 {
		return nil, errors.New("empty object model")
	}
	if len(sceneTFs) == 0 {
		return nil, errors.New("no scene registrations")
	}
	return &Generator{
		cfg:      cfg,
		intr:     intr,
		model:    model,
		sceneTFs: sceneTFs,
		policy:   policy,
		logger:   logger,
	}, nil
}

// LabelForPose labels a single frame given its camera pose within a scene.
// The model is brought into the frame's camera via
//
//	point_in_camera = invert(camera_pose) · scene_registration · point
//
// in exactly that composition order, then projected through the pinhole
// model.
func (g *Generator) LabelForPose(camPose spatial.Pose, sceneIdx int) Label {
	tf := spatial.Chain(spatial.Invert(camPose.Matrix()), g.sceneTFs[sceneIdx])
	pts := spatial.TransformPoints(tf, g.model)
	keypoints := make([]r2.Point, len(pts))
	for i, pt := range pts {
		u, v := g.intr.PointToPixel(pt.X, pt.Y, pt.Z)
		keypoints[i] = r2.Point{X: u, Y: v}
	}
	center, scale := g.policy.BoundingBox(keypoints, g.cfg.Width, g.cfg.Height, g.cfg.BBoxScale)
	return Label{Keypoints: keypoints, Center: center, Scale: scale}
}

// GenerateScene labels every FrameStride-th frame of a scene and hands each
// sample to emit together with its global output index, starting at
// startIndex. Frames are processed concurrently; emit must be safe to call
// from multiple goroutines. Returns the number of samples produced.
func (g *Generator) GenerateScene(
	ctx context.Context,
	scene *dataset.Scene,
	sceneIdx, startIndex int,
	emit func(index int, s Sample) error,
) (int, error) {
	var strided []dataset.Frame
	for i := 0; i < len(scene.Frames); i += g.cfg.FrameStride {
		strided = append(strided, scene.Frames[i])
	}
	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for i, frame := range strided {
		i, frame := i, frame
		group.Go(func() error {
			img, err := imaging.Open(frame.RGBPath)
			if err != nil {
				return errors.Wrapf(err, "cannot read frame %s", frame.RGBPath)
			}
			resized := imaging.Resize(img, g.cfg.Width, g.cfg.Height, imaging.Linear)
			label := g.LabelForPose(frame.Pose, sceneIdx)
			return emit(startIndex+i, Sample{Image: resized, Label: label})
		})
	}
	if err := group.Wait(); err != nil {
		return 0, err
	}
	g.logger.Infof("created %d labeled samples from scene %s (with %d raw frames)",
		len(strided), scene.ID, len(scene.Frames))
	return len(strided), nil
}
