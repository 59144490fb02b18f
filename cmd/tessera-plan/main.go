// Package main implements the tessera-plan command line tool.
// It resolves segments for a datasource, classifies a predicate list,
// and prints the resulting read plan as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tessera-io/tessera/internal/catalog"
	"github.com/tessera-io/tessera/internal/config"
	"github.com/tessera-io/tessera/internal/filter"
	"github.com/tessera-io/tessera/internal/planner"
)

// Options holds the tool configuration.
type Options struct {
	ConfigPath string
	DataSource string
	Columns    string
	FilterPath string
	Timeout    time.Duration
}

func main() {
	opts := parseFlags()

	// A .env file in the working directory seeds TESSERA_* variables
	// for local runs; absence is not an error.
	_ = godotenv.Load()

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	predicates, err := loadPredicates(opts.FilterPath)
	if err != nil {
		log.Fatalf("Failed to load filter: %v", err)
	}

	var client *catalog.Client
	if cfg.ExplicitSegments == nil {
		client, err = catalog.NewClient(cfg, catalog.DefaultRegistry())
		if err != nil {
			log.Fatalf("Failed to connect to catalog: %v", err)
		}
		defer client.Close()
		log.Printf("Connected to %s catalog", client.Kind())
	}

	p, err := planner.New(cfg, client)
	if err != nil {
		log.Fatalf("Failed to initialize planner: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	var projection []string
	if opts.Columns != "" {
		projection = strings.Split(opts.Columns, ",")
	}

	plan, err := p.Plan(ctx, opts.DataSource, projection, predicates)
	if err != nil {
		log.Fatalf("Planning failed: %v", err)
	}
	log.Printf("Planned %d task(s) over %s", len(plan.Tasks), plan.Interval)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(plan.Tasks); err != nil {
		log.Fatalf("Failed to encode plan: %v", err)
	}
}

func parseFlags() Options {
	opts := Options{}

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to YAML or JSON configuration file (optional; environment used otherwise)")
	flag.StringVar(&opts.DataSource, "datasource", "", "Datasource to plan against (required)")
	flag.StringVar(&opts.Columns, "columns", "", "Comma-separated projection; all segment columns when empty")
	flag.StringVar(&opts.FilterPath, "filter", "", "Path to a JSON file holding a predicate array; '-' reads stdin")
	flag.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Overall planning timeout")

	flag.Parse()

	if opts.DataSource == "" {
		log.Fatalf("-datasource is required")
	}
	return opts
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	props := make(map[string]string)
	config.LoadFromEnv(props)
	return config.FromProperties(props)
}

func loadPredicates(path string) ([]filter.Predicate, error) {
	if path == "" {
		return nil, nil
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}

	predicates := make([]filter.Predicate, 0, len(raws))
	for _, raw := range raws {
		pred, err := filter.DecodeJSON(raw)
		if err != nil {
			return nil, err
		}
		predicates = append(predicates, pred)
	}
	return predicates, nil
}
