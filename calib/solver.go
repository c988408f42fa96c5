package calib

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/mehdi-benallegue/RapidPoseLabels/spatial"
)

// SolverOptions tune the minimizer.
type SolverOptions struct {
	// MaxIterations bounds the number of major iterations; 0 leaves the
	// minimizer's own stopping criteria in charge.
	MaxIterations int
}

// Result is the outcome of a joint calibration solve. When Success is false
// the state must be discarded, not exported or visualized.
type Result struct {
	State     *State
	Success   bool
	FinalCost float64
}

// Solve runs the joint nonlinear least-squares estimation of the shared
// object model and the per-scene registrations. The cost is the squared norm
// of the selection-masked residual
//
//	sel · vec(R(q_s)·model[k] + t_s − observed[s][k])
//
// over the free parameters {t_s, q_s for s = 1..S-1; model[0..K-1]}, with
// scene 0 pinned to identity. The gradient is a central finite difference of
// the cost; the forward formula is too coarse for the LBFGS line search near
// the optimum.
//
// Two deliberate caveats: quaternions are
// NOT renormalized between iterations, relying on the homogeneous
// quaternion-to-rotation form to absorb the drift; and well-posedness
// (3V >= 7(S-1)+3K) is not checked, so an under-determined system can still
// report success with an unreliable solution.
func Solve(obs *ObservationSet, opts SolverOptions, logger golog.Logger) (*Result, error) {
	if obs.NumScenes < 2 {
		return nil, errors.Errorf("need at least 2 scenes to calibrate, got %d", obs.NumScenes)
	}
	sel := BuildSelectionMatrix(obs.Valid)
	init := NewState(obs.NumScenes, obs.NumKeypoints)
	logger.Infow("starting joint calibration",
		"scenes", obs.NumScenes,
		"keypoints", obs.NumKeypoints,
		"observed", obs.NumValid(),
		"unknowns", init.Len(),
	)

	scratch := &State{NumScenes: obs.NumScenes, NumKeypoints: obs.NumKeypoints}
	dense := mat.NewVecDense(3*obs.NumScenes*obs.NumKeypoints, nil)
	masked := mat.NewVecDense(sel.RawMatrix().Rows, nil)
	cost := func(x []float64) float64 {
		scratch.Vector = x
		model := scratch.Model()
		for s := 0; s < obs.NumScenes; s++ {
			pose := scratch.Pose(s)
			rot := spatial.RotationMatrix(pose.Rotation)
			t := pose.Translation
			for k := 0; k < obs.NumKeypoints; k++ {
				m := model[k]
				o := obs.Points[s][k]
				i := 3 * (s*obs.NumKeypoints + k)
				dense.SetVec(i, rot.At(0, 0)*m.X+rot.At(0, 1)*m.Y+rot.At(0, 2)*m.Z+t.X-o.X)
				dense.SetVec(i+1, rot.At(1, 0)*m.X+rot.At(1, 1)*m.Y+rot.At(1, 2)*m.Z+t.Y-o.Y)
				dense.SetVec(i+2, rot.At(2, 0)*m.X+rot.At(2, 1)*m.Y+rot.At(2, 2)*m.Z+t.Z-o.Z)
			}
		}
		masked.MulVec(sel, dense)
		return mat.Dot(masked, masked)
	}
	problem := optimize.Problem{
		Func: cost,
		Grad: func(grad, x []float64) {
			// cost shares its scratch buffers, so the differencing must
			// stay sequential
			fd.Gradient(grad, cost, x, &fd.Settings{Formula: fd.Central})
		},
	}

	settings := &optimize.Settings{MajorIterations: opts.MaxIterations}
	res, err := optimize.Minimize(problem, init.Vector, settings, &optimize.LBFGS{})
	if err != nil {
		logger.Warnw("calibration solve failed", "error", err)
		out := &Result{State: init, Success: false}
		if res != nil {
			out.FinalCost = res.F
			init.Vector = res.X
		}
		return out, nil
	}
	init.Vector = res.X
	logger.Infow("calibration solve finished",
		"status", res.Status.String(),
		"cost", res.F,
		"evaluations", res.FuncEvaluations,
	)
	return &Result{State: init, Success: true, FinalCost: res.F}, nil
}
