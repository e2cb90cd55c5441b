package sim

import (
	"math"
	"time"
)

// Fixed gameplay parameters. The server tick loop and the client
// predictor both read these; changing one side only breaks convergence.
const (
	TickRate     = 20 // authoritative ticks per second
	TickInterval = time.Second / TickRate

	TileSize = 32.0

	TankSpeed   = 150.0 // pixels/s
	TankRadius  = 12.0
	BulletSpeed = 300.0
	// Bullet radius against walls; against players the larger hit
	// radius applies.
	BulletRadius = 3.0
	HitRadius    = 16.0

	MaxLives        = 3
	FireCooldown    = 500 * time.Millisecond
	Invulnerability = 2000 * time.Millisecond
	RoundDuration   = 3 * time.Minute
	CountdownSecs   = 3

	MaxPlayers = 8

	// Bullets leave the barrel at rotation - pi/2: rotation 0 is the
	// sprite's rest orientation, not the +X axis.
	FireAngleOffset = -math.Pi / 2
)

// TickDelta is the fixed integration step in seconds.
const TickDelta = 1.0 / float64(TickRate)
