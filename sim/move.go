package sim

import "math"

// Pose is a tank's position and facing.
type Pose struct {
	X        float64
	Y        float64
	Rotation float64
}

// Intent is one frame of movement input. DX/DY come off the wire in
// [-1, 1] per axis and are not necessarily normalized by the sender.
type Intent struct {
	DX       float64
	DY       float64
	Rotation float64
}

// Velocity converts a raw intent vector into a tank velocity. The
// vector is normalized first so diagonal input is not faster.
func Velocity(dx, dy float64) (vx, vy float64) {
	mag := math.Sqrt(dx*dx + dy*dy)
	if mag == 0 {
		return 0, 0
	}
	return dx / mag * TankSpeed, dy / mag * TankSpeed
}

// Integrate applies one movement step to a pose. This is the single
// movement rule shared by the authoritative tick and the client
// predictor: normalize the intent, integrate by dt, reject the whole
// move on wall collision (no sliding), then clamp into bounds. Facing
// only follows the intent while actually moving.
func Integrate(m *TileMap, p Pose, in Intent, dt float64) Pose {
	vx, vy := Velocity(in.DX, in.DY)

	newX := p.X + vx*dt
	newY := p.Y + vy*dt
	if m.Blocked(newX, newY, TankRadius) {
		newX = p.X
		newY = p.Y
	}
	newX, newY = m.ClampToBounds(newX, newY, TankRadius)

	rot := p.Rotation
	if vx != 0 || vy != 0 {
		rot = in.Rotation
	}
	return Pose{X: newX, Y: newY, Rotation: rot}
}
