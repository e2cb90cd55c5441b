package netcode

import (
	"tankarena/sim"
)

const (
	// CorrectionThreshold is the distance in pixels past which the
	// reconciled pose is worth correcting toward. Below it the drift
	// is imperceptible float noise.
	CorrectionThreshold = 5.0

	// SelfCorrectionLerp blends the local tank toward its reconciled
	// pose. Remote tanks are interpolated by the renderer with its own
	// factor; the two are deliberately separate knobs.
	SelfCorrectionLerp = 0.3
)

// Predictor applies the server's movement rule locally ahead of
// confirmation and reconciles against authoritative snapshots.
type Predictor struct {
	tmap   *sim.TileMap
	buffer *InputBuffer
}

// NewPredictor creates a predictor over the given map and buffer.
func NewPredictor(m *sim.TileMap, buf *InputBuffer) *Predictor {
	return &Predictor{tmap: m, buffer: buf}
}

// Buffer returns the predictor's input buffer.
func (p *Predictor) Buffer() *InputBuffer { return p.buffer }

// Predict advances a pose by one input using the exact rule the server
// ticks with. Any divergence here is permanent, so it delegates to the
// shared sim implementation rather than duplicating it.
func (p *Predictor) Predict(pose sim.Pose, in Input, dt float64) sim.Pose {
	return sim.Integrate(p.tmap, pose, sim.Intent{
		DX:       in.DX,
		DY:       in.DY,
		Rotation: in.Rotation,
	}, dt)
}

// Reconcile acknowledges the server's input watermark, then replays
// every still-unacknowledged input in sequence order starting from the
// authoritative pose. With an empty buffer it degrades to accepting
// the server pose directly.
func (p *Predictor) Reconcile(serverPose sim.Pose, ackSeq int) sim.Pose {
	p.buffer.Acknowledge(ackSeq)

	pending := p.buffer.Unacknowledged()
	if len(pending) == 0 {
		return serverPose
	}

	pose := serverPose
	for _, pi := range pending {
		pose = p.Predict(pose, pi.Input, sim.TickDelta)
	}
	return pose
}

// ShouldCorrect reports whether the gap between the currently rendered
// pose and the reconciled pose exceeds the threshold.
func (p *Predictor) ShouldCorrect(current, reconciled sim.Pose, threshold float64) bool {
	return sim.Distance(current.X, current.Y, reconciled.X, reconciled.Y) > threshold
}

// SmoothCorrection moves the current pose a fraction of the way toward
// the target: linear for position, shortest-path for rotation. Applied
// once per received snapshot instead of snapping, which is what hides
// corrections from the player.
func (p *Predictor) SmoothCorrection(current, target sim.Pose, factor float64) sim.Pose {
	return sim.Pose{
		X:        current.X + (target.X-current.X)*factor,
		Y:        current.Y + (target.Y-current.Y)*factor,
		Rotation: sim.LerpAngle(current.Rotation, target.Rotation, factor),
	}
}
