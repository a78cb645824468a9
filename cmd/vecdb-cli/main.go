// vecdb-cli is an interactive REPL for exploring a vecdb store.
//
// Usage:
//
//	vecdb-cli [flags] <store-dir>
//
// Flags:
//
//	-d, --dimension   Vector dimension for a newly created store (default 128)
//	-c, --config      Path to a JSONC config file (default <store-dir>/.vecdb.jsonc)
//
// Commands (in REPL):
//
//	put <key> <v1,v2,...> <json-metadata>   Insert or update a vector
//	get <key>                                Retrieve metadata by key
//	del <key>                                Delete a key
//	search <k> <v1,v2,...>                   Top-k nearest neighbours
//	stats                                    Show store statistics
//	compact                                  Force a compaction
//	help                                     Show this help
//	exit / quit / q                          Exit
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/nyxdb/vecdb"
)

func main() {
	var (
		dimension  uint32
		configPath string
	)

	flag.Uint32VarP(&dimension, "dimension", "d", 0, "vector dimension for a newly created store (default 128)")
	flag.StringVarP(&configPath, "config", "c", "", "path to a JSONC config file")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: vecdb-cli [flags] <store-dir>")
		os.Exit(2)
	}

	dir := flag.Arg(0)

	if configPath == "" {
		configPath = filepath.Join(dir, ".vecdb.jsonc")
	}

	_, statErr := os.Stat(configPath)
	configExisted := statErr == nil

	cfg, err := loadCLIConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vecdb-cli: %v\n", err)
		os.Exit(1)
	}

	if dimension != 0 {
		cfg.Dimension = dimension
	}

	if !configExisted {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "vecdb-cli: creating store dir: %v\n", err)
			os.Exit(1)
		}

		if err := saveCLIConfig(configPath, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "vecdb-cli: %v\n", err)
			os.Exit(1)
		}
	}

	db, err := vecdb.OpenWithOptions(dir, vecdb.Options{
		Dimension:             cfg.Dimension,
		CompactThresholdRatio: cfg.CompactRatio,
		CompactThresholdCount: cfg.CompactCount,
		EnableAutoCompact:     cfg.EnableAutoCompact,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "vecdb-cli: opening %s: %v\n", dir, err)
		os.Exit(1)
	}
	defer db.Close()

	repl := &repl{db: db, dimension: cfg.Dimension}
	if err := repl.run(); err != nil {
		fmt.Fprintf(os.Stderr, "vecdb-cli: %v\n", err)
		os.Exit(1)
	}
}

type repl struct {
	db        *vecdb.DB
	dimension uint32
	liner     *liner.State
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".vecdb_cli_history")
}

func (r *repl) run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)

	if f, err := os.Open(historyFilePath()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		_ = f.Close()
	}

	fmt.Printf("vecdb-cli (dimension=%d)\n", r.dimension)
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("vecdb> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")

				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			r.saveHistory()

			fmt.Println("Bye!")

			return nil
		case "help", "?":
			printHelp()
		case "put":
			r.cmdPut(args)
		case "get":
			r.cmdGet(args)
		case "del", "delete":
			r.cmdDelete(args)
		case "search":
			r.cmdSearch(args)
		case "stats":
			r.cmdStats()
		case "compact":
			r.cmdCompact()
		default:
			fmt.Printf("unknown command: %s (type 'help')\n", cmd)
		}
	}
}

func (r *repl) saveHistory() {
	path := historyFilePath()
	if path == "" {
		return
	}

	f, err := os.Create(path) //nolint:gosec
	if err != nil {
		return
	}
	defer f.Close()

	_, _ = r.liner.WriteHistory(f)
}

func (r *repl) cmdPut(args []string) {
	if len(args) < 3 {
		fmt.Println("usage: put <key> <v1,v2,...> <json-metadata>")

		return
	}

	key := args[0]

	vec, err := parseVector(args[1])
	if err != nil {
		fmt.Printf("bad vector: %v\n", err)

		return
	}

	metadataJSON := strings.Join(args[2:], " ")

	if err := r.db.Put(key, vec, rawJSON(metadataJSON)); err != nil {
		fmt.Printf("error: %v\n", err)

		return
	}

	fmt.Println("ok")
}

func (r *repl) cmdGet(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: get <key>")

		return
	}

	value, err := r.db.Get(args[0])
	if err != nil {
		fmt.Printf("error: %v\n", err)

		return
	}

	fmt.Println(string(value))
}

func (r *repl) cmdDelete(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: del <key>")

		return
	}

	if err := r.db.Delete(args[0]); err != nil {
		fmt.Printf("error: %v\n", err)

		return
	}

	fmt.Println("ok")
}

func (r *repl) cmdSearch(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: search <k> <v1,v2,...>")

		return
	}

	k, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("bad k: %v\n", err)

		return
	}

	vec, err := parseVector(args[1])
	if err != nil {
		fmt.Printf("bad vector: %v\n", err)

		return
	}

	results, err := r.db.Search(vec, k)
	if err != nil {
		fmt.Printf("error: %v\n", err)

		return
	}

	for _, res := range results {
		fmt.Printf("%s\t%.6f\n", res.Key, res.Distance)
	}
}

func (r *repl) cmdStats() {
	stats, err := r.db.Stats()
	if err != nil {
		fmt.Printf("error: %v\n", err)

		return
	}

	fmt.Printf("total=%d active=%d deleted=%d index_size=%d free_list=%d ratio=%.4f data_bytes=%d vector_bytes=%d\n",
		stats.TotalVectors, stats.ActiveVectors, stats.DeletedVectors, stats.IndexSize,
		stats.FreeListSize, stats.DeletionRatio, stats.DataFileSize, stats.VectorFileSize)
}

func (r *repl) cmdCompact() {
	if err := r.db.Compact(); err != nil {
		fmt.Printf("error: %v\n", err)

		return
	}

	fmt.Println("ok")
}

func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	vec := make([]float32, len(parts))

	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}

		vec[i] = float32(f)
	}

	return vec, nil
}

func rawJSON(s string) json.RawMessage { return json.RawMessage(s) }

func printHelp() {
	fmt.Println(`commands:
  put <key> <v1,v2,...> <json-metadata>   insert or update a vector
  get <key>                                retrieve metadata by key
  del <key>                                delete a key
  search <k> <v1,v2,...>                   top-k nearest neighbours
  stats                                    show store statistics
  compact                                  force a compaction
  help                                     show this help
  exit / quit / q                          exit`)
}
