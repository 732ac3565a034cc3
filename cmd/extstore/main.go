// Package main is a command-line front end for the extension store: it
// scans an extensions directory, prints the resulting manifest, and can
// keep watching for changes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dshills/extstore/internal/extension"
	"github.com/dshills/extstore/internal/extension/registry"
	"github.com/dshills/extstore/internal/vfs"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		root        = flag.String("root", "", "extensions root directory (required)")
		watch       = flag.Bool("watch", false, "keep running and reload on changes")
		verbose     = flag.Bool("verbose", false, "enable debug logging")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("extstore %s (%s)\n", version, commit)
		return 0
	}
	if *root == "" {
		fmt.Fprintln(os.Stderr, "Error: -root is required")
		flag.Usage()
		return 1
	}

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck // stderr sync failure is harmless

	fsys := vfs.NewOSFS()
	languages := registry.NewLanguages()
	themes := registry.NewThemes(fsys)
	servers := registry.NewServers()

	store, err := extension.New(*root, fsys, http.DefaultClient, languages, themes,
		extension.WithLogger(logger),
		extension.WithLanguageServerTracker(servers),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := printManifest(store); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	for id, scanErr := range store.Errors() {
		fmt.Fprintf(os.Stderr, "Warning: skipped extension %s: %v\n", id, scanErr)
	}

	if !*watch {
		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop, err := store.Watch(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to watch %s: %v\n", *root, err)
		return 1
	}
	defer stop()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
	return 0
}

// newLogger builds a console logger.
func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stderr"}
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return config.Build()
}

// printManifest writes the current manifest to stdout as indented JSON.
func printManifest(store *extension.Store) error {
	data, err := json.MarshalIndent(store.Manifest(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
