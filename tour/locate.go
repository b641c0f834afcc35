package tour

import (
	"context"
	"log/slog"
	"math"

	"github.com/eak1mov/tilerange/tile"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the lookups in flight during one LocateAll call.
const DefaultConcurrency = 16

// Probe is an archive whose tile locations are tracked during the tour.
type Probe struct {
	Name    string
	Locator tile.Locator
	// Size is the archive size used to turn offsets into positions.
	Size uint64
}

// Result is the outcome of one lookup. Failed lookups count as absent,
// Err keeps the cause.
type Result struct {
	Tile     tile.ID
	Location tile.Location
	Found    bool
	Err      error
}

// Position returns where the tile starts inside the archive, in [0, 1].
func (r Result) Position(size uint64) float64 {
	if !r.Found || size == 0 {
		return 0
	}
	return min(float64(r.Location.Offset)/float64(size), 1)
}

// Indicator maps a relative position onto an ease-out curve, spreading out
// the start of the archive where low zoom tiles are packed.
func Indicator(position float64) float64 {
	p := math.Max(0, math.Min(1, position))
	return 1 - math.Pow(1-p, 3)
}

// LocateAll looks up every tile in every probe concurrently and waits for all
// lookups to finish. results[i][j] belongs to probes[i] and tiles[j].
// A failing lookup does not affect its siblings.
func LocateAll(ctx context.Context, probes []Probe, tiles []tile.ID, concurrency int, logger *slog.Logger) [][]Result {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	results := make([][]Result, len(probes))
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, probe := range probes {
		results[i] = make([]Result, len(tiles))
		for j, tileID := range tiles {
			g.Go(func() error {
				location, found, err := probe.Locator.Locate(ctx, tileID)
				if err != nil {
					logger.Debug("tilerange: lookup failed", "archive", probe.Name, "tile", tileID, "err", err)
					results[i][j] = Result{Tile: tileID, Err: err}
					return nil
				}
				results[i][j] = Result{Tile: tileID, Location: location, Found: found}
				return nil
			})
		}
	}

	_ = g.Wait()
	return results
}
