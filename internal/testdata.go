// Package internal generates synthetic tilesets shared by tests.
package internal

import (
	"fmt"
	"math/rand/v2"

	"github.com/eak1mov/tilerange/tile"
)

// TestCase is a named tileset.
type TestCase struct {
	Name  string
	Tiles map[tile.ID][]byte
}

// TestCases returns tilesets of increasing size. "large" is big enough to
// force leaf directories in a written archive, "ocean" repeats a single tile
// so that neighbouring entries collapse into runs.
func TestCases() []TestCase {
	return []TestCase{
		{Name: "empty", Tiles: map[tile.ID][]byte{}},
		{Name: "single", Tiles: fullPyramid(0, 0)},
		{Name: "full5", Tiles: fullPyramid(0, 5)},
		{Name: "full08", Tiles: fullPyramid(8, 8)},
		{Name: "sparse", Tiles: sparse(12, 2000, 1)},
		{Name: "ocean", Tiles: ocean(7)},
		{Name: "large", Tiles: sparse(14, 60000, 2)},
	}
}

func tileData(tileID tile.ID) []byte {
	return fmt.Appendf(nil, "tile-%d-%d-%d", tileID.Z, tileID.X, tileID.Y)
}

func fullPyramid(minZoom, maxZoom uint32) map[tile.ID][]byte {
	tiles := make(map[tile.ID][]byte)
	for z := minZoom; z <= maxZoom; z++ {
		for x := range uint32(1) << z {
			for y := range uint32(1) << z {
				tileID := tile.ID{X: x, Y: y, Z: z}
				tiles[tileID] = tileData(tileID)
			}
		}
	}
	return tiles
}

func sparse(zoom uint32, count int, seed uint64) map[tile.ID][]byte {
	rng := rand.New(rand.NewPCG(seed, seed))
	tiles := make(map[tile.ID][]byte, count)
	for len(tiles) < count {
		tileID := tile.ID{
			X: rng.Uint32N(1 << zoom),
			Y: rng.Uint32N(1 << zoom),
			Z: zoom,
		}
		tiles[tileID] = tileData(tileID)
	}
	return tiles
}

func ocean(zoom uint32) map[tile.ID][]byte {
	water := []byte("water")
	tiles := make(map[tile.ID][]byte)
	for x := range uint32(1) << zoom {
		for y := range uint32(1) << zoom {
			tileID := tile.ID{X: x, Y: y, Z: zoom}
			if x%16 == 0 && y%16 == 0 {
				tiles[tileID] = tileData(tileID)
			} else {
				tiles[tileID] = water
			}
		}
	}
	return tiles
}
