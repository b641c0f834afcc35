package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/dustin/go-humanize"
	"github.com/eak1mov/tilerange/pm"
	"github.com/google/subcommands"
)

type sizeCmd struct {
	archivePath string
}

func (c *sizeCmd) Name() string     { return "size" }
func (c *sizeCmd) Synopsis() string { return "print the archive size computed from its header" }
func (c *sizeCmd) Usage() string {
	return "tilerange size -a <path|url>\n"
}
func (c *sizeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.archivePath, "a", "", "Archive path or http(s) URL")
}

func (c *sizeCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	archive, err := pm.Open(ctx, c.archivePath, pm.WithLogger(logger()))
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer archive.Close()

	size, err := archive.Size(ctx)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%d bytes (%s)\n", size, humanize.IBytes(size))
	return subcommands.ExitSuccess
}
