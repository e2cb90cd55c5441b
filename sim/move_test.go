package sim

import (
	"math"
	"testing"
)

func TestVelocityNormalizes(t *testing.T) {
	vx, vy := Velocity(1, 1)
	speed := math.Hypot(vx, vy)
	if math.Abs(speed-TankSpeed) > 1e-9 {
		t.Errorf("diagonal speed = %.6f, want %v", speed, TankSpeed)
	}

	vx, vy = Velocity(1, 0)
	if vx != TankSpeed || vy != 0 {
		t.Errorf("Velocity(1, 0) = (%v, %v), want (%v, 0)", vx, vy, TankSpeed)
	}

	vx, vy = Velocity(0, 0)
	if vx != 0 || vy != 0 {
		t.Errorf("Velocity(0, 0) = (%v, %v), want (0, 0)", vx, vy)
	}
}

func TestIntegrateMovesByTickDelta(t *testing.T) {
	m := Arena()
	p := Pose{X: 200, Y: 80, Rotation: 0}
	got := Integrate(m, p, Intent{DX: 1, DY: 0, Rotation: 0.5}, TickDelta)
	wantX := 200 + TankSpeed*TickDelta
	if math.Abs(got.X-wantX) > 1e-9 || got.Y != 80 {
		t.Errorf("pose = (%.4f, %.4f), want (%.4f, 80)", got.X, got.Y, wantX)
	}
	if got.Rotation != 0.5 {
		t.Errorf("rotation = %v, want 0.5 (facing follows intent while moving)", got.Rotation)
	}
}

func TestIntegrateIdleKeepsFacing(t *testing.T) {
	m := Arena()
	p := Pose{X: 200, Y: 80, Rotation: 1.2}
	got := Integrate(m, p, Intent{DX: 0, DY: 0, Rotation: 2.5}, TickDelta)
	if got != p {
		t.Errorf("idle pose = %+v, want unchanged %+v", got, p)
	}
}

func TestIntegrateRejectsWholeMove(t *testing.T) {
	m := Arena()
	// Standing just clear of the left border wall, pushing into it.
	// The move is rejected outright, there is no sliding. Facing still
	// follows the intent: the tank turns in place against the wall.
	p := Pose{X: TileSize + TankRadius + 1, Y: 80, Rotation: 0}
	got := Integrate(m, p, Intent{DX: -1, DY: 0, Rotation: math.Pi}, TickDelta)
	if got.X != p.X || got.Y != p.Y {
		t.Errorf("pose = (%.4f, %.4f), want unchanged (%.4f, %.4f)", got.X, got.Y, p.X, p.Y)
	}
	if got.Rotation != math.Pi {
		t.Errorf("rotation = %v, want %v", got.Rotation, math.Pi)
	}
}

func TestIntegrateRejectsDiagonalIntoWall(t *testing.T) {
	m := Arena()
	// Moving up-left into the border: even though the vertical half of
	// the motion alone would be legal, the whole move is refused.
	p := Pose{X: TileSize + TankRadius + 1, Y: 120, Rotation: 0}
	got := Integrate(m, p, Intent{DX: -1, DY: -1, Rotation: 0}, TickDelta)
	if got.X != p.X || got.Y != p.Y {
		t.Errorf("pose = (%.4f, %.4f), want unchanged (%.4f, %.4f)", got.X, got.Y, p.X, p.Y)
	}
}

func TestIntegrateClampsToBounds(t *testing.T) {
	m := Arena()
	// A pose that somehow ended up outside the playable band gets
	// pinned back in even with no input.
	p := Pose{X: 5, Y: 5, Rotation: 0}
	got := Integrate(m, p, Intent{}, TickDelta)
	if got.X != TileSize+TankRadius || got.Y != TileSize+TankRadius {
		t.Errorf("clamped pose = (%.4f, %.4f), want (%v, %v)",
			got.X, got.Y, float64(TileSize+TankRadius), float64(TileSize+TankRadius))
	}
}

func TestIntegrateDeterministic(t *testing.T) {
	m := Arena()
	a := Pose{X: 100, Y: 200, Rotation: 0}
	b := a
	in := Intent{DX: 0.7, DY: -0.3, Rotation: 1.1}
	for i := 0; i < 100; i++ {
		a = Integrate(m, a, in, TickDelta)
		b = Integrate(m, b, in, TickDelta)
	}
	if a != b {
		t.Errorf("identical input sequences diverged: %+v vs %+v", a, b)
	}
}
