// Command docdb-load inserts random user documents into a running go-docdb
// server through the batch insert endpoint and reports throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// User represents the structure of a user document to insert
type User struct {
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Email string `json:"email"`
}

// generateRandomName generates a random 6-letter capitalized name
func generateRandomName(rng *rand.Rand) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	name := make([]byte, 6)
	for i := range name {
		name[i] = letters[rng.Intn(len(letters))]
	}
	name[0] = name[0] - 32
	return string(name)
}

func randomUsers(rng *rand.Rand, n int) []User {
	users := make([]User, n)
	for i := range users {
		name := generateRandomName(rng)
		users[i] = User{
			Name:  name,
			Age:   rng.Intn(82) + 18,
			Email: fmt.Sprintf("%s@example.com", strings.ToLower(name)),
		}
	}
	return users
}

type loadConfig struct {
	URL        string
	Database   string
	Collection string
	Users      int
	BatchSize  int
	Workers    int
	Seed       int64
}

type loadResult struct {
	Inserted int64
	Failed   int64
	Elapsed  time.Duration
}

// insertBatch posts users to the batch endpoint and returns how many were
// inserted.
func insertBatch(ctx context.Context, client *http.Client, endpoint string, users []User) (int64, error) {
	body, err := json.Marshal(map[string][]User{"documents": users})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal users: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		InsertedCount int64 `json:"insertedCount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusCreated {
		return result.InsertedCount, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return result.InsertedCount, nil
}

// runLoad splits cfg.Users into batches and sends them with cfg.Workers
// concurrent requests. Failed batches are counted, not fatal.
func runLoad(ctx context.Context, client *http.Client, cfg loadConfig) loadResult {
	endpoint := fmt.Sprintf("%s/databases/%s/collections/%s/documents/batch?ordered=false",
		strings.TrimRight(cfg.URL, "/"), cfg.Database, cfg.Collection)
	users := randomUsers(rand.New(rand.NewSource(cfg.Seed)), cfg.Users)

	var inserted, failed atomic.Int64
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for lo := 0; lo < len(users); lo += cfg.BatchSize {
		batch := users[lo:min(lo+cfg.BatchSize, len(users))]
		g.Go(func() error {
			n, err := insertBatch(gctx, client, endpoint, batch)
			inserted.Add(n)
			failed.Add(int64(len(batch)) - n)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error inserting batch of %d: %v\n", len(batch), err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return loadResult{Inserted: inserted.Load(), Failed: failed.Load(), Elapsed: time.Since(start)}
}

func main() {
	var cfg loadConfig
	flag.StringVar(&cfg.URL, "url", "http://localhost:8080", "Server URL")
	flag.StringVar(&cfg.Database, "db", "load", "Target database")
	flag.StringVar(&cfg.Collection, "coll", "users", "Target collection")
	flag.IntVar(&cfg.Users, "n", 1000, "Number of users to insert")
	flag.IntVar(&cfg.BatchSize, "batch", 100, "Documents per batch request (max 1000)")
	flag.IntVar(&cfg.Workers, "workers", 4, "Concurrent requests")
	flag.Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	if cfg.Users <= 0 || cfg.BatchSize <= 0 || cfg.BatchSize > 1000 || cfg.Workers <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -n, -batch and -workers must be positive and -batch at most 1000")
		os.Exit(1)
	}

	fmt.Printf("Starting load test: inserting %d users to %s\n", cfg.Users, cfg.URL)
	res := runLoad(context.Background(), &http.Client{Timeout: 30 * time.Second}, cfg)

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("LOAD TEST COMPLETE")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Total users attempted: %d\n", cfg.Users)
	fmt.Printf("Successful inserts:    %d\n", res.Inserted)
	fmt.Printf("Failed inserts:        %d\n", res.Failed)
	fmt.Printf("Total time:            %v\n", res.Elapsed)
	fmt.Printf("Average rate:          %.2f users/sec\n", float64(res.Inserted)/res.Elapsed.Seconds())

	if res.Failed > 0 {
		os.Exit(1)
	}
}
