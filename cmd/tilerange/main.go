package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/google/subcommands"
)

var verbose = flag.Bool("v", false, "Enable debug logging")

func logger() *slog.Logger {
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(&locateCmd{}, "")
	subcommands.Register(&sizeCmd{}, "")
	subcommands.Register(&exportCmd{}, "")
	subcommands.Register(&tourCmd{}, "")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	status := subcommands.Execute(ctx)
	stop()
	os.Exit(int(status))
}
