package main

import (
	"flag"
	"fmt"
	"os"

	"bgzfiltra/cmd/mockgen/engine"
	"bgzfiltra/internal/cache"
)

func main() {
	product := flag.String("product", "MOCKTEST", "Product name the snapshot is written for")
	scenario := flag.String("scenario", "calm", "Scenario to generate: calm, escalated")
	outDir := flag.String("out", ".", "Directory the snapshot file is written to")
	count := flag.Int("count", 200, "Number of records to generate")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario: *scenario,
		Count:    *count,
		Seed:     *seed,
	}

	fmt.Printf("Generating scenario '%s' (Count: %d) for product '%s' to %s...\n", cfg.Scenario, cfg.Count, *product, *outDir)

	records, err := engine.Generate(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate mock data: %v\n", err)
		os.Exit(1)
	}

	store := cache.NewStore(nil, *outDir)
	if err := store.Save(*product, records); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done. Run with --use-cache to aggregate %s.\n", store.Path(*product))
}
