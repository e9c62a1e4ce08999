package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/filedepot/filedepot/pkg/filedepot/config"
	"github.com/filedepot/filedepot/pkg/filedepot/sweep"
)

const usage = `Filedepot Sweep CLI

Reconciles the blob store against the catalog and removes blobs no
catalog record references. Run it during quiet periods; an upload whose
catalog insert has not landed yet looks orphaned to the sweeper.

USAGE:
  sweep [options]

ENVIRONMENT VARIABLES:
  DATABASE_URL    "memory" or PostgreSQL connection string
  STORAGE_URL     "memory://", "file://..." or "s3://..."

  Configuration can be loaded from a .env file in the current directory.
  Command line environment variables override .env file values.

EXAMPLES:
  # Report what would be removed, without removing anything
  sweep --dry-run

  # Remove orphaned blobs
  sweep

  # Machine-readable summary
  sweep --json

OPTIONS:
  --dry-run    Report orphaned blobs without removing them
  --timeout    Abort the sweep after this duration (default: 1h)
  --json       Output the summary as JSON
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }

	dryRun := flag.Bool("dry-run", false, "report orphaned blobs without removing them")
	timeout := flag.Duration("timeout", time.Hour, "abort the sweep after this duration")
	asJSON := flag.Bool("json", false, "output the summary as JSON")
	flag.Parse()

	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	catalog, err := cfg.BuildCatalog()
	if err != nil {
		log.Fatalf("Failed to build catalog: %v", err)
	}
	blobs, err := cfg.BuildBlobStore()
	if err != nil {
		log.Fatalf("Failed to build blob store: %v", err)
	}

	sweeper, err := sweep.New(catalog, blobs)
	if err != nil {
		log.Fatalf("Failed to create sweeper: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := sweeper.Sweep(ctx, sweep.Options{DryRun: *dryRun})
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	if *asJSON {
		if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
			log.Fatalf("Failed to encode result: %v", err)
		}
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Scanned:\t%d\n", result.Scanned)
	if *dryRun {
		fmt.Fprintf(w, "Would remove:\t%d (%d bytes)\n", result.Removed, result.RemovedBytes)
	} else {
		fmt.Fprintf(w, "Removed:\t%d (%d bytes)\n", result.Removed, result.RemovedBytes)
	}
	fmt.Fprintf(w, "Failed:\t%d\n", result.Failed)
	w.Flush()

	for _, hash := range result.FailedHashes {
		fmt.Fprintf(os.Stderr, "failed to remove %s\n", hash)
	}
	if result.Failed > 0 {
		os.Exit(1)
	}
}
