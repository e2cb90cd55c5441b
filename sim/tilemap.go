package sim

// Tile kinds in the arena grid.
const (
	TileEmpty = 0
	TileWall  = 1
	TileSpawn = 2
)

// SpawnPoint is a tile coordinate a player may spawn on.
type SpawnPoint struct {
	X, Y int
}

// TileMap is the static arena grid. Immutable for the lifetime of a
// room; safe to share between rooms and with the client predictor.
type TileMap struct {
	Width  int
	Height int
	tiles  [][]int
	spawns []SpawnPoint
}

// arenaTiles is the standard 20x15 arena layout.
var arenaTiles = [][]int{
	{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
	{1, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 1},
	{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 1, 1, 0, 0, 0, 0, 1, 1, 0, 0, 0, 0, 1, 1, 0, 0, 1},
	{1, 0, 0, 1, 1, 0, 0, 0, 0, 1, 1, 0, 0, 0, 0, 1, 1, 0, 0, 1},
	{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 0, 1, 1, 0, 0, 0, 0, 1, 1, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 0, 1, 1, 0, 0, 0, 0, 1, 1, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 1, 1, 0, 0, 0, 0, 1, 1, 0, 0, 0, 0, 1, 1, 0, 0, 1},
	{1, 0, 0, 1, 1, 0, 0, 0, 0, 1, 1, 0, 0, 0, 0, 1, 1, 0, 0, 1},
	{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
	{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
	{1, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 1},
	{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
}

// arenaSpawns lists spawn tiles in join order. The list includes the
// four marked corners plus interior points so 8 players never stack.
var arenaSpawns = []SpawnPoint{
	{1, 1}, {18, 1}, {1, 13}, {18, 13},
	{9, 7}, {10, 7}, {5, 5}, {14, 9},
}

// Arena returns the standard arena map.
func Arena() *TileMap {
	return &TileMap{
		Width:  len(arenaTiles[0]),
		Height: len(arenaTiles),
		tiles:  arenaTiles,
		spawns: arenaSpawns,
	}
}

// NewTileMap builds a map from a grid of tile kinds. Spawn points are
// collected row-major from TileSpawn cells.
func NewTileMap(tiles [][]int) *TileMap {
	m := &TileMap{
		Width:  len(tiles[0]),
		Height: len(tiles),
		tiles:  tiles,
	}
	for y, row := range tiles {
		for x, t := range row {
			if t == TileSpawn {
				m.spawns = append(m.spawns, SpawnPoint{x, y})
			}
		}
	}
	return m
}

// At returns the tile kind at grid coordinates, TileWall outside the grid.
func (m *TileMap) At(x, y int) int {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return TileWall
	}
	return m.tiles[y][x]
}

// SpawnCount returns the number of spawn points.
func (m *TileMap) SpawnCount() int { return len(m.spawns) }

// Spawn returns the pixel-space center of spawn point i (wrapping).
func (m *TileMap) Spawn(i int) (x, y float64) {
	s := m.spawns[i%len(m.spawns)]
	return float64(s.X)*TileSize + TileSize/2, float64(s.Y)*TileSize + TileSize/2
}

// PixelWidth returns the map width in pixels.
func (m *TileMap) PixelWidth() float64 { return float64(m.Width) * TileSize }

// PixelHeight returns the map height in pixels.
func (m *TileMap) PixelHeight() float64 { return float64(m.Height) * TileSize }

// InBounds reports whether a point lies inside the map rectangle.
func (m *TileMap) InBounds(x, y float64) bool {
	return x >= 0 && x <= m.PixelWidth() && y >= 0 && y <= m.PixelHeight()
}

// ClampToBounds pins a point inside the playable area, one tile plus
// margin in from each border wall.
func (m *TileMap) ClampToBounds(x, y, margin float64) (float64, float64) {
	x = Clamp(x, TileSize+margin, m.PixelWidth()-TileSize-margin)
	y = Clamp(y, TileSize+margin, m.PixelHeight()-TileSize-margin)
	return x, y
}
