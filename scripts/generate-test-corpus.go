//go:build ignore

// Package main generates a synthetic transcript tree for benchmarking rebuilds.
// Usage: go run scripts/generate-test-corpus.go -sessions 500 -output testdata/bench
//
// Point CHATSEARCH_PROJECTS_DIR at the output directory and run
// 'chatsearch index --no-tui' to time a rebuild.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	numSessions = flag.Int("sessions", 500, "Number of session files to generate")
	numProjects = flag.Int("projects", 20, "Number of project directories")
	turns       = flag.Int("turns", 40, "Messages per session")
	outputDir   = flag.String("output", "testdata/bench", "Output directory")
	seed        = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var (
	verbs   = []string{"refactor", "debug", "deploy", "migrate", "profile", "document", "test", "review", "benchmark", "rollback"}
	nouns   = []string{"handler", "scheduler", "cache", "pipeline", "migration", "websocket", "parser", "index", "router", "worker"}
	domains = []string{"billing", "auth", "search", "ingest", "notifications", "reporting", "inventory", "analytics"}
	tools   = []string{"sqlite", "postgres", "redis", "kafka", "docker", "kubernetes", "nginx", "grafana"}
)

// record is the subset of the transcript line format chatsearch reads.
type record struct {
	Type      string  `json:"type"`
	SessionID string  `json:"sessionId"`
	Timestamp string  `json:"timestamp"`
	Message   message `json:"message"`
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type block struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func main() {
	flag.Parse()
	rand.Seed(*seed)

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output dir: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generating %d sessions across %d projects in %s...\n", *numSessions, *numProjects, *outputDir)

	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	messages := 0
	for i := 0; i < *numSessions; i++ {
		project := fmt.Sprintf("-Users-dev-code-%s-%d", randomWord(domains), i%*numProjects)
		n, err := generateSession(project, i, start.Add(time.Duration(i)*time.Hour))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating session %d: %v\n", i, err)
			continue
		}
		messages += n
	}

	fmt.Printf("Generated %d messages successfully.\n", messages)
}

func randomWord(pool []string) string {
	return pool[rand.Intn(len(pool))]
}

func sentence() string {
	return fmt.Sprintf("Can we %s the %s %s so it stops hammering %s?",
		randomWord(verbs), randomWord(domains), randomWord(nouns), randomWord(tools))
}

func answer() string {
	var sb strings.Builder
	for i := 0; i < 3+rand.Intn(6); i++ {
		fmt.Fprintf(&sb, "The %s %s should %s before the %s step. ",
			randomWord(domains), randomWord(nouns), randomWord(verbs), randomWord(tools))
	}
	return strings.TrimSpace(sb.String())
}

func generateSession(project string, index int, at time.Time) (int, error) {
	dir := filepath.Join(*outputDir, project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	sessionID := fmt.Sprintf("%08x-0000-4000-8000-%012x", rand.Uint32(), index)
	f, err := os.Create(filepath.Join(dir, sessionID+".jsonl"))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)

	// non-message records are skipped by the indexer
	if err := enc.Encode(map[string]string{"type": "summary", "summary": sentence()}); err != nil {
		return 0, err
	}

	for t := 0; t < *turns; t++ {
		rec := record{
			SessionID: sessionID,
			Timestamp: at.Add(time.Duration(t) * 30 * time.Second).Format(time.RFC3339),
		}
		if t%2 == 0 {
			rec.Type = "user"
			rec.Message = message{Role: "user", Content: sentence()}
		} else {
			rec.Type = "assistant"
			rec.Message = message{Role: "assistant", Content: []block{
				{Type: "text", Text: answer()},
				{Type: "tool_use"},
			}}
		}
		if err := enc.Encode(rec); err != nil {
			return 0, err
		}
	}
	return *turns, w.Flush()
}
