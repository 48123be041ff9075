// Command seed loads a CSV or JSON ratings file into a named in-memory
// dataset and serves it over the REST API, for demos and local testing.
// It replaces the teacher's interactive cmd/cli REPL with a non-interactive
// batch loader; spec.md excludes the interactive CLI from scope but not
// batch ingestion.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/arvelius/recoengine/pkg/api/rest"
	"github.com/arvelius/recoengine/pkg/api/rest/middleware"
	"github.com/arvelius/recoengine/pkg/dataset"
	"github.com/arvelius/recoengine/pkg/store"
)

func main() {
	var (
		file     = flag.String("file", "", "path to a ratings file (CSV or JSON)")
		format   = flag.String("format", "csv", "file format: csv or json")
		name     = flag.String("dataset", "seeded", "name to register the dataset under")
		host     = flag.String("host", "0.0.0.0", "REST server host")
		port     = flag.Int("port", 8081, "REST server port")
		scoreMin = flag.Float64("score-min", 1, "minimum rating value")
		scoreMax = flag.Float64("score-max", 5, "maximum rating value")
	)
	flag.Parse()

	if *file == "" {
		log.Fatal("missing required -file flag")
	}

	s := store.NewMemoryStore[string, string](*scoreMin, *scoreMax, nil, nil)

	ratings, err := loadRatings(*file, *format)
	if err != nil {
		log.Fatalf("failed to load ratings file: %v", err)
	}

	ctx := context.Background()
	users := make(map[string]struct{})
	items := make(map[string]struct{})
	for _, r := range ratings {
		if _, seen := users[r.User]; !seen {
			if err := s.InsertUser(ctx, store.Entity[string]{ID: r.User, Name: r.User}); err != nil {
				log.Fatalf("failed to register user %q: %v", r.User, err)
			}
			users[r.User] = struct{}{}
		}
		if _, seen := items[r.Item]; !seen {
			if err := s.InsertItem(ctx, store.Entity[string]{ID: r.Item, Name: r.Item}); err != nil {
				log.Fatalf("failed to register item %q: %v", r.Item, err)
			}
			items[r.Item] = struct{}{}
		}
		if err := s.InsertRating(ctx, r.User, r.Item, r.Score); err != nil {
			log.Fatalf("failed to insert rating (%s,%s,%v): %v", r.User, r.Item, r.Score, err)
		}
	}
	log.Printf("loaded %d ratings, %d users, %d items into dataset %q", len(ratings), len(users), len(items), *name)

	manager := dataset.NewManager()
	if _, err := manager.CreateDataset(*name, s, dataset.DefaultQuota()); err != nil {
		log.Fatalf("failed to register dataset: %v", err)
	}

	restConfig := rest.Config{
		Host:     *host,
		Port:     *port,
		Auth:     middleware.AuthConfig{Enabled: false, PublicPaths: []string{"/v1/health", "/docs"}},
		RateLimit: middleware.RateLimitConfig{Enabled: false},
		ScoreMin: *scoreMin,
		ScoreMax: *scoreMax,
	}

	server, err := rest.NewServer(restConfig, manager, nil, nil)
	if err != nil {
		log.Fatalf("failed to create REST server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	errChan := make(chan error, 1)
	go func() {
		log.Printf("serving dataset %q at http://%s:%d", *name, *host, *port)
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Printf("received signal: %v", sig)
	case err := <-errChan:
		log.Printf("server error: %v", err)
	}

	if err := server.Stop(context.Background()); err != nil {
		log.Printf("error stopping server: %v", err)
	}
}

// rating is a single parsed row from a ratings file.
type rating struct {
	User  string
	Item  string
	Score float64
}

// loadRatings parses a CSV or JSON ratings file. CSV rows are
// "user,item,score" with an optional header row (detected by an
// unparseable score in the first row); JSON is an array of
// {"user":"...","item":"...","score":N} objects.
func loadRatings(path, format string) ([]rating, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(format) {
	case "json":
		return loadRatingsJSON(f)
	case "csv":
		return loadRatingsCSV(f)
	default:
		return nil, fmt.Errorf("unsupported format %q (expected csv or json)", format)
	}
}

func loadRatingsJSON(r io.Reader) ([]rating, error) {
	var rows []struct {
		User  string  `json:"user"`
		Item  string  `json:"item"`
		Score float64 `json:"score"`
	}
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, err
	}
	out := make([]rating, 0, len(rows))
	for _, row := range rows {
		out = append(out, rating{User: row.User, Item: row.Item, Score: row.Score})
	}
	return out, nil
}

func loadRatingsCSV(r io.Reader) ([]rating, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	out := make([]rating, 0, len(records))
	for i, rec := range records {
		score, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			if i == 0 {
				// header row ("user,item,score"); skip it.
				continue
			}
			return nil, fmt.Errorf("row %d: invalid score %q: %w", i+1, rec[2], err)
		}
		out = append(out, rating{User: rec[0], Item: rec[1], Score: score})
	}
	return out, nil
}
