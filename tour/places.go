// Package tour replays a camera tour over a list of places and resolves,
// for every frame, where the tiles in view live inside one or more archives.
package tour

import (
	"math"

	"github.com/paulmach/orb"
)

// Place is a camera stop.
type Place struct {
	Name   string
	Center orb.Point // lon, lat
	Zoom   float64
}

var DefaultPlaces = []Place{
	{Name: "Lausanne", Center: orb.Point{6.634012, 46.520457}, Zoom: 16},
	{Name: "Paris", Center: orb.Point{2.34918, 48.85366}, Zoom: 16},
	{Name: "Madrid", Center: orb.Point{-3.715176, 40.417034}, Zoom: 16},
	{Name: "Reykjavik", Center: orb.Point{-21.944152, 64.146756}, Zoom: 16},
	{Name: "Montreal", Center: orb.Point{-73.570012, 45.503256}, Zoom: 16},
}

// Start is where the camera sits before the first flight.
var Start = Place{Name: "start", Center: orb.Point{0, 0}, Zoom: 3}

// Flight returns the viewports of an animated flight from one place to
// another, ending exactly at the destination. The camera zooms out mid-flight,
// further for longer flights.
func Flight(from, to Place, frames int, size Size) []Viewport {
	if frames < 1 {
		frames = 1
	}
	distance := math.Hypot(to.Center[0]-from.Center[0], to.Center[1]-from.Center[1])
	dip := math.Min(math.Log2(1+distance)*1.5, math.Min(from.Zoom, to.Zoom))

	viewports := make([]Viewport, 0, frames)
	for i := 1; i <= frames; i++ {
		f := float64(i) / float64(frames)
		zoom := from.Zoom + (to.Zoom-from.Zoom)*f - dip*math.Sin(math.Pi*f)
		viewports = append(viewports, Viewport{
			Center: orb.Point{
				from.Center[0] + (to.Center[0]-from.Center[0])*f,
				from.Center[1] + (to.Center[1]-from.Center[1])*f,
			},
			Zoom: math.Max(zoom, 0),
			Size: size,
		})
	}
	return viewports
}
