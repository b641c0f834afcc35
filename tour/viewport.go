package tour

import (
	"cmp"
	"math"
	"slices"

	"github.com/eak1mov/tilerange/tile"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"
)

const maxLatitude = 85.05112878

// Size is the viewport extent measured in tiles.
type Size struct {
	Width  float64
	Height float64
}

var DefaultSize = Size{Width: 4, Height: 3}

// Viewport is what the camera sees at one moment.
type Viewport struct {
	Center orb.Point
	Zoom   float64
	Size   Size
}

// TileZoom is the zoom of the tiles a renderer would request for the viewport.
func (v Viewport) TileZoom() maptile.Zoom {
	return maptile.Zoom(max(0, min(math.Floor(v.Zoom), 30)))
}

// Bound approximates the geographic extent of the viewport.
func (v Viewport) Bound() orb.Bound {
	z := v.TileZoom()
	center := orb.Point{v.Center[0], clamp(v.Center[1], -maxLatitude, maxLatitude)}
	centerTile := maptile.At(center, z).Bound()

	scale := math.Exp2(v.Zoom - float64(z))
	halfWidth := (centerTile.Max[0] - centerTile.Min[0]) * v.Size.Width / scale / 2
	halfHeight := (centerTile.Max[1] - centerTile.Min[1]) * v.Size.Height / scale / 2

	return orb.Bound{
		Min: orb.Point{
			clamp(center[0]-halfWidth, -180, 180),
			clamp(center[1]-halfHeight, -maxLatitude, maxLatitude),
		},
		Max: orb.Point{
			clamp(center[0]+halfWidth, -180, 180),
			clamp(center[1]+halfHeight, -maxLatitude, maxLatitude),
		},
	}
}

// CoveringTiles returns the tiles intersecting the viewport, ordered by
// row then column.
func (v Viewport) CoveringTiles() []tile.ID {
	z := v.TileZoom()
	set := tilecover.Bound(v.Bound(), z)

	limit := uint32(1) << z
	tiles := make([]tile.ID, 0, len(set))
	for t := range set {
		if t.X >= limit || t.Y >= limit {
			continue
		}
		tiles = append(tiles, tile.ID{X: t.X, Y: t.Y, Z: uint32(t.Z)})
	}
	slices.SortFunc(tiles, func(a, b tile.ID) int {
		return cmp.Or(cmp.Compare(a.Y, b.Y), cmp.Compare(a.X, b.X))
	})
	return tiles
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
