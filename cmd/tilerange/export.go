package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/eak1mov/tilerange/index"
	"github.com/eak1mov/tilerange/pm"
	"github.com/eak1mov/tilerange/tile"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
)

type exportCmd struct {
	archivePath     string
	outputIndexPath string
}

func (c *exportCmd) Name() string     { return "export_index" }
func (c *exportCmd) Synopsis() string { return "export locations of all tiles in an archive" }
func (c *exportCmd) Usage() string {
	return "tilerange export_index -a <path|url> -o <path>\n"
}
func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.archivePath, "a", "", "Archive path or http(s) URL")
	f.StringVar(&c.outputIndexPath, "o", "", "Output index file path")
}

func (c *exportCmd) exportLocations(ctx context.Context, visitor tile.LocationVisitor) error {
	file, err := os.Create(c.outputIndexPath)
	if err != nil {
		return err
	}
	defer file.Close()
	indexWriter := bufio.NewWriter(file)

	bar := progressbar.NewOptions(-1, progressbar.OptionShowIts(), progressbar.OptionShowCount())

	err = visitor.VisitLocations(ctx, func(tileID tile.ID, location tile.Location) error {
		bar.Add(1)
		return binary.Write(indexWriter, binary.LittleEndian, index.ItemAt(tileID, location))
	})

	bar.Finish()
	fmt.Println()

	if err != nil {
		return err
	}
	if err := indexWriter.Flush(); err != nil {
		return err
	}
	return file.Close()
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	archive, err := pm.Open(ctx, c.archivePath, pm.WithLogger(logger()))
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer archive.Close()

	if err := c.exportLocations(ctx, archive); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}
