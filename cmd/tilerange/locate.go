package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/eak1mov/tilerange/index"
	"github.com/eak1mov/tilerange/pm"
	"github.com/eak1mov/tilerange/tile"
	"github.com/google/subcommands"
)

type locateCmd struct {
	archivePath string
	indexPath   string
	z, x, y     uint
	read        bool
}

func (c *locateCmd) Name() string     { return "locate" }
func (c *locateCmd) Synopsis() string { return "print the byte range of a tile inside an archive" }
func (c *locateCmd) Usage() string {
	return "tilerange locate (-a <path|url> | -i <index>) -z <zoom> -x <column> -y <row> [-read]\n"
}
func (c *locateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.archivePath, "a", "", "Archive path or http(s) URL")
	f.StringVar(&c.indexPath, "i", "", "Exported index file path, used instead of the archive directories")
	f.UintVar(&c.z, "z", 0, "Tile zoom")
	f.UintVar(&c.x, "x", 0, "Tile column")
	f.UintVar(&c.y, "y", 0, "Tile row")
	f.BoolVar(&c.read, "read", false, "Also fetch the tile and print its length")
}

func tileIDFromFlags(z, x, y uint) (tile.ID, error) {
	if z > math.MaxUint32 || x > math.MaxUint32 || y > math.MaxUint32 {
		return tile.ID{}, fmt.Errorf("tile %d/%d/%d: coordinates out of range", z, x, y)
	}
	return tile.ID{X: uint32(x), Y: uint32(y), Z: uint32(z)}, nil
}

func (c *locateCmd) locateInIndex(ctx context.Context, tileID tile.ID) (tile.Location, bool, error) {
	indexData, err := os.ReadFile(c.indexPath)
	if err != nil {
		return tile.Location{}, false, err
	}
	items, err := index.ReadAll(indexData)
	if err != nil {
		return tile.Location{}, false, err
	}
	return index.NewLocator(items).Locate(ctx, tileID)
}

func (c *locateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	tileID, err := tileIDFromFlags(c.z, c.x, c.y)
	if err != nil {
		log.Println(err)
		return subcommands.ExitUsageError
	}

	if c.indexPath != "" {
		location, found, err := c.locateInIndex(ctx, tileID)
		if err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
		if !found {
			fmt.Printf("%v: not found\n", tileID)
			return subcommands.ExitSuccess
		}
		fmt.Printf("%v: offset=%d length=%d\n", tileID, location.Offset, location.Length)
		return subcommands.ExitSuccess
	}

	archive, err := pm.Open(ctx, c.archivePath, pm.WithLogger(logger()))
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer archive.Close()

	location, found, err := archive.Locate(ctx, tileID)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	if !found {
		fmt.Printf("%v: not found\n", tileID)
		return subcommands.ExitSuccess
	}
	fmt.Printf("%v: offset=%d length=%d\n", tileID, location.Offset, location.Length)

	if c.read {
		tileData, err := archive.ReadTile(ctx, tileID)
		if err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
		fmt.Printf("%v: read %d bytes\n", tileID, len(tileData))
	}

	return subcommands.ExitSuccess
}
