package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/eak1mov/tilerange/pm"
	"github.com/eak1mov/tilerange/tour"
	"github.com/google/subcommands"
)

const (
	defaultBasemap = "https://fsn1.your-objectstorage.com/public-map-data/pmtiles/planet.pmtiles"
	defaultTerrain = "https://fsn1.your-objectstorage.com/public-map-data/pmtiles/terrain-mapterhorn.pmtiles"
)

type tourCmd struct {
	basemapPath string
	terrainPath string
	frames      int
	stops       int
	interval    time.Duration
	width       float64
	height      float64
	barWidth    int
	cacheSize   int
}

func (c *tourCmd) Name() string { return "tour" }
func (c *tourCmd) Synopsis() string {
	return "fly through world places and show where visible tiles live in the archives"
}
func (c *tourCmd) Usage() string {
	return "tilerange tour [-basemap <path|url>] [-terrain <path|url>] [-stops <n>] [-frames <n>]\n"
}
func (c *tourCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.basemapPath, "basemap", defaultBasemap, "Basemap archive path or URL")
	f.StringVar(&c.terrainPath, "terrain", defaultTerrain, "Terrain archive path or URL, empty to skip")
	f.IntVar(&c.frames, "frames", 20, "Frames per flight")
	f.IntVar(&c.stops, "stops", 0, "Number of flights, 0 to fly until interrupted")
	f.DurationVar(&c.interval, "interval", time.Second, "Pause at each place")
	f.Float64Var(&c.width, "width", tour.DefaultSize.Width, "Viewport width in tiles")
	f.Float64Var(&c.height, "height", tour.DefaultSize.Height, "Viewport height in tiles")
	f.IntVar(&c.barWidth, "bar", 60, "Indicator bar width")
	f.IntVar(&c.cacheSize, "cache", pm.DefaultCacheSize, "Directory cache size shared by both archives")
}

func (c *tourCmd) openProbes(ctx context.Context) ([]tour.Probe, func(), error) {
	cache := pm.NewLRUCache(c.cacheSize)
	var archives []*pm.Archive
	closeAll := func() {
		for _, archive := range archives {
			archive.Close()
		}
	}

	var probes []tour.Probe
	for _, p := range []struct{ name, path string }{
		{"basemap", c.basemapPath},
		{"terrain", c.terrainPath},
	} {
		if p.path == "" {
			continue
		}
		archive, err := pm.Open(ctx, p.path, pm.WithDirectoryCache(cache), pm.WithLogger(logger()))
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		archives = append(archives, archive)

		size, err := archive.Size(ctx)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		log.Printf("%v: %v", p.name, humanize.IBytes(size))
		probes = append(probes, tour.Probe{Name: p.name, Locator: archive, Size: size})
	}
	return probes, closeAll, nil
}

func (c *tourCmd) report(probes []tour.Probe) func(tour.Frame) {
	return func(frame tour.Frame) {
		var line strings.Builder
		fmt.Fprintf(&line, "%-10s z%5.2f %3d tiles", frame.Place.Name, frame.Viewport.Zoom, len(frame.Tiles))
		for i, probe := range probes {
			positions := make([]float64, 0, len(frame.Tiles))
			for _, result := range frame.Results[i] {
				if result.Found {
					positions = append(positions, result.Position(probe.Size))
				}
			}
			fmt.Fprintf(&line, "  %s [%s]", probe.Name, tour.RenderBar(c.barWidth, positions))
		}
		if frame.Arrived {
			line.WriteString(" *")
		}
		fmt.Println(line.String())
	}
}

func (c *tourCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	probes, closeAll, err := c.openProbes(ctx)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer closeAll()

	err = tour.Run(ctx, tour.Config{
		Probes:   probes,
		Frames:   c.frames,
		Interval: c.interval,
		Stops:    c.stops,
		Size:     tour.Size{Width: c.width, Height: c.height},
		Logger:   logger(),
		Report:   c.report(probes),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
