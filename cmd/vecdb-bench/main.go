// vecdb-bench seeds a store with random vectors using a fixed worker pool
// and reports insert throughput and the time of one search pass.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/nyxdb/vecdb"
)

func main() {
	var (
		dir        string
		dimension  uint32
		count      int
		numWorkers int
		searchK    int
	)

	flag.StringVarP(&dir, "dir", "p", "", "store directory (required)")
	flag.Uint32VarP(&dimension, "dimension", "d", 128, "vector dimension")
	flag.IntVarP(&count, "count", "n", 10_000, "number of vectors to insert")
	flag.IntVarP(&numWorkers, "workers", "w", 8, "number of concurrent writer goroutines")
	flag.IntVarP(&searchK, "search-k", "k", 10, "k for the post-insert search benchmark")
	flag.Parse()

	if dir == "" {
		fmt.Fprintln(os.Stderr, "vecdb-bench: --dir is required")
		os.Exit(2)
	}

	if err := run(dir, dimension, count, numWorkers, searchK); err != nil {
		fmt.Fprintf(os.Stderr, "vecdb-bench: %v\n", err)
		os.Exit(1)
	}
}

func run(dir string, dimension uint32, count, numWorkers, searchK int) error {
	db, err := vecdb.Open(dir, dimension)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	start := time.Now()

	if err := seedVectors(db, dimension, count, numWorkers); err != nil {
		return fmt.Errorf("seeding vectors: %w", err)
	}

	elapsed := time.Since(start)

	fmt.Printf("put %d vectors (dim=%d) in %s (%.0f/sec)\n",
		count, dimension, elapsed, float64(count)/elapsed.Seconds())

	stats, err := db.Stats()
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}

	fmt.Printf("total=%d active=%d deleted=%d\n", stats.TotalVectors, stats.ActiveVectors, stats.DeletedVectors)

	query := randomVector(dimension, rand.New(rand.NewSource(1))) //nolint:gosec // benchmark data, not security-sensitive

	searchStart := time.Now()

	results, err := db.Search(query, searchK)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	fmt.Printf("search k=%d took %s, %d results\n", searchK, time.Since(searchStart), len(results))

	return nil
}

func seedVectors(db *vecdb.DB, dimension uint32, count, numWorkers int) error {
	type job struct {
		index int
	}

	jobs := make(chan job, numWorkers*2)
	errs := make(chan error, numWorkers)

	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)

		go func(seed int64) {
			defer wg.Done()

			rng := rand.New(rand.NewSource(seed)) //nolint:gosec // benchmark data, not security-sensitive

			for j := range jobs {
				key := fmt.Sprintf("vec-%d", j.index)
				vec := randomVector(dimension, rng)

				if err := db.Put(key, vec, map[string]int{"seq": j.index}); err != nil {
					select {
					case errs <- err:
					default:
					}
				}
			}
		}(int64(w))
	}

	for i := 0; i < count; i++ {
		jobs <- job{index: i}
	}

	close(jobs)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}

func randomVector(dimension uint32, rng *rand.Rand) []float32 {
	v := make([]float32, dimension)

	for i := range v {
		v[i] = rng.Float32()
	}

	return v
}
