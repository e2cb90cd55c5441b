package sim

import "math"

// Blocked reports whether a circle at (x, y) with the given radius
// overlaps any wall tile. Only the tile containing the point and its
// 8 neighbors are tested; entities are smaller than one tile and move
// less than one tile per tick, so a wider search can never add hits.
// Pure function of map + point + radius, no allocation.
func (m *TileMap) Blocked(x, y, radius float64) bool {
	tileX := int(math.Floor(x / TileSize))
	tileY := int(math.Floor(y / TileSize))

	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			cx := tileX + dx
			cy := tileY + dy
			if cx < 0 || cx >= m.Width || cy < 0 || cy >= m.Height {
				continue
			}
			if m.tiles[cy][cx] != TileWall {
				continue
			}
			// Circle vs. tile rectangle: closest point on the rect.
			left := float64(cx) * TileSize
			top := float64(cy) * TileSize
			closestX := math.Max(left, math.Min(x, left+TileSize))
			closestY := math.Max(top, math.Min(y, top+TileSize))

			distX := x - closestX
			distY := y - closestY
			if distX*distX+distY*distY < radius*radius {
				return true
			}
		}
	}
	return false
}

// CircleHit reports whether two circles overlap (projectile vs. player).
func CircleHit(x1, y1, x2, y2, radius float64) bool {
	dx := x2 - x1
	dy := y2 - y1
	return dx*dx+dy*dy < radius*radius
}
