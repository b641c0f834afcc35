package tour

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/eak1mov/tilerange/tile"
)

// Frame is one camera position of the tour together with lookup results.
type Frame struct {
	Place    Place
	Viewport Viewport
	Tiles    []tile.ID
	// Results[i] holds results for Probes[i], one per tile.
	Results [][]Result
	// Arrived is set on the last frame of a flight.
	Arrived bool
}

type Config struct {
	Probes []Probe
	Places []Place
	// Frames per flight.
	Frames int
	// Pause after each arrival.
	Interval time.Duration
	// Number of flights, zero for no limit.
	Stops       int
	Size        Size
	Concurrency int
	Logger      *slog.Logger
	// Report is called for every frame, in order.
	Report func(Frame)
}

// Run flies through the places until ctx is cancelled or cfg.Stops flights
// are done. The next stop is (last + counter) % len(places), where counter
// counts completed flights.
func Run(ctx context.Context, cfg Config) error {
	places := cfg.Places
	if len(places) == 0 {
		places = DefaultPlaces
	}
	size := cfg.Size
	if size.Width <= 0 || size.Height <= 0 {
		size = DefaultSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	report := cfg.Report
	if report == nil {
		report = func(Frame) {}
	}

	current := Start
	last := 0
	for counter := 0; cfg.Stops == 0 || counter < cfg.Stops; counter++ {
		last = (last + counter) % len(places)
		next := places[last]
		logger.Info("tilerange: flying", "from", current.Name, "to", next.Name)

		viewports := Flight(current, next, cfg.Frames, size)
		for i, viewport := range viewports {
			if err := ctx.Err(); err != nil {
				return err
			}
			tiles := viewport.CoveringTiles()
			report(Frame{
				Place:    next,
				Viewport: viewport,
				Tiles:    tiles,
				Results:  LocateAll(ctx, cfg.Probes, tiles, cfg.Concurrency, logger),
				Arrived:  i == len(viewports)-1,
			})
		}
		current = next

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Interval):
		}
	}
	return nil
}

// RenderBar draws positions in [0, 1] as marks on a bar of the given width.
func RenderBar(width int, positions []float64) string {
	if width <= 0 {
		return ""
	}
	bar := []byte(strings.Repeat(".", width))
	for _, p := range positions {
		i := int(Indicator(p) * float64(width-1))
		bar[i] = '|'
	}
	return string(bar)
}
