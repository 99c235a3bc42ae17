package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/chatsearch/internal/errors"
)

const (
	// ChatAnalyzerName mirrors the FTS5 porter tokenizer: unicode word
	// boundaries, lower-casing, porter stemming, no stop words.
	ChatAnalyzerName = "chat_porter"

	metadataInternalKey = "chatsearch:metadata"
	conversationPage    = 1000
)

// BleveStore implements Store on a Bleve index.
type BleveStore struct {
	// mu is held exclusively only while Reset swaps the index.
	mu      sync.RWMutex
	writeMu sync.Mutex
	index   bleve.Index
	path    string
	config  Config
	closed  bool
	seq     atomic.Uint64
}

var _ Store = (*BleveStore)(nil)

// bleveMessage is the indexed document shape.
type bleveMessage struct {
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Project   string `json:"project"`
	FilePath  string `json:"file_path"`
}

// validateIndexIntegrity checks index_meta.json of an existing index.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(path, "index_meta.json"))
	if err != nil {
		return fmt.Errorf("index_meta.json unreadable: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return err == bleve.ErrorIndexMetaCorrupt ||
		strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt")
}

// NewBleveStore opens or creates a Bleve index at path.
// An empty path creates an in-memory index.
func NewBleveStore(path string, config Config) (*BleveStore, error) {
	idx, err := openBleve(path)
	if err != nil {
		return nil, err
	}

	s := &BleveStore{index: idx, path: path, config: config.withDefaults()}
	count, err := idx.DocCount()
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	s.seq.Store(count)
	return s, nil
}

func openBleve(path string) (bleve.Index, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	if path == "" {
		return bleve.NewMemOnly(indexMapping)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.New(errors.ErrCodeFilePermission,
			fmt.Sprintf("failed to create directory for %s", path), err)
	}

	if validErr := validateIndexIntegrity(path); validErr != nil {
		slog.Warn("bleve_index_corrupted",
			slog.String("path", path),
			slog.String("error", validErr.Error()))
		if err := os.RemoveAll(path); err != nil {
			return nil, errors.New(errors.ErrCodeCorruptIndex,
				fmt.Sprintf("index corrupted at %s and cannot be removed", path), err)
		}
	}

	idx, err := bleve.Open(path)
	switch {
	case err == bleve.ErrorIndexPathDoesNotExist:
		idx, err = bleve.New(path, indexMapping)
	case isCorruptionError(err):
		slog.Warn("bleve_index_open_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return nil, errors.New(errors.ErrCodeCorruptIndex, "index corrupted and cannot be cleared", rmErr)
		}
		idx, err = bleve.New(path, indexMapping)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}
	return idx, nil
}

func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(ChatAnalyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name, porter.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add analyzer: %w", err)
	}

	content := bleve.NewTextFieldMapping()
	content.Analyzer = ChatAnalyzerName
	content.Store = true
	content.IncludeTermVectors = true

	keyword := func() *mapping.FieldMapping {
		fm := bleve.NewKeywordFieldMapping()
		fm.Store = true
		fm.IncludeInAll = false
		return fm
	}

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("content", content)
	doc.AddFieldMappingsAt("session_id", keyword())
	doc.AddFieldMappingsAt("timestamp", keyword())
	doc.AddFieldMappingsAt("role", keyword())
	doc.AddFieldMappingsAt("project", keyword())
	doc.AddFieldMappingsAt("file_path", keyword())

	indexMapping.DefaultMapping = doc
	indexMapping.DefaultAnalyzer = ChatAnalyzerName
	return indexMapping, nil
}

// Reset deletes the index and creates an empty one in its place.
func (b *BleveStore) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}

	if err := b.index.Close(); err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}
	if b.path != "" {
		if err := os.RemoveAll(b.path); err != nil {
			return fmt.Errorf("failed to remove index: %w", err)
		}
	}

	idx, err := openBleve(b.path)
	if err != nil {
		b.closed = true
		return err
	}
	b.index = idx
	b.seq.Store(0)
	return nil
}

// Insert indexes one batch.
func (b *BleveStore) Insert(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errClosed
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	batch := b.index.NewBatch()
	for _, m := range msgs {
		id := fmt.Sprintf("%012d", b.seq.Add(1))
		doc := bleveMessage{
			SessionID: m.SessionID,
			Timestamp: m.Timestamp,
			Role:      m.Role,
			Content:   m.Content,
			Project:   m.Project,
			FilePath:  m.FilePath,
		}
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("failed to index message from %s: %w", m.FilePath, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Search requires every term; terms ending in '*' match as prefixes of
// either the stemmed or the raw lower-cased term.
func (b *BleveStore) Search(ctx context.Context, match string, limit int) ([]*Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errClosed
	}

	terms := strings.Fields(match)
	if len(terms) == 0 {
		return []*Hit{}, nil
	}

	q, err := b.buildQuery(terms)
	if err != nil {
		return nil, errors.QueryError(match, err)
	}
	if q == nil {
		return []*Hit{}, nil
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"*"}
	req.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, errors.New(errors.ErrCodeSearchFailed, "search failed", err)
	}

	hits := make([]*Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		content := fieldString(h.Fields, "content")
		hits = append(hits, &Hit{
			SessionID: fieldString(h.Fields, "session_id"),
			Timestamp: fieldString(h.Fields, "timestamp"),
			Role:      fieldString(h.Fields, "role"),
			Snippet:   buildSnippet(content, matchedSpans(h), b.config),
			Project:   fieldString(h.Fields, "project"),
			FilePath:  fieldString(h.Fields, "file_path"),
			Score:     h.Score,
		})
	}
	return hits, nil
}

func (b *BleveStore) buildQuery(terms []string) (query.Query, error) {
	analyzer := b.index.Mapping().AnalyzerNamed(ChatAnalyzerName)
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer %s not registered", ChatAnalyzerName)
	}

	clauses := make([]query.Query, 0, len(terms))
	for _, term := range terms {
		prefix := strings.HasSuffix(term, "*")
		word := strings.TrimSuffix(term, "*")
		if word == "" || strings.Contains(word, "*") {
			return nil, fmt.Errorf("syntax error near %q", term)
		}

		if !prefix {
			mq := bleve.NewMatchQuery(word)
			mq.SetField("content")
			mq.Analyzer = ChatAnalyzerName
			clauses = append(clauses, mq)
			continue
		}

		variants := map[string]struct{}{strings.ToLower(word): {}}
		for _, tok := range analyzer.Analyze([]byte(word)) {
			variants[string(tok.Term)] = struct{}{}
		}
		alts := make([]query.Query, 0, len(variants))
		for v := range variants {
			pq := bleve.NewPrefixQuery(v)
			pq.SetField("content")
			alts = append(alts, pq)
		}
		clauses = append(clauses, bleve.NewDisjunctionQuery(alts...))
	}

	if len(clauses) == 0 {
		return nil, nil
	}
	return bleve.NewConjunctionQuery(clauses...), nil
}

// Conversation pages through all messages of a session and sorts them.
func (b *BleveStore) Conversation(ctx context.Context, sessionID string) ([]*Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errClosed
	}

	tq := bleve.NewTermQuery(sessionID)
	tq.SetField("session_id")

	type row struct {
		id  string
		msg *Message
	}
	var rows []row
	for from := 0; ; from += conversationPage {
		req := bleve.NewSearchRequestOptions(tq, conversationPage, from, false)
		req.Fields = []string{"*"}

		result, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation: %w", err)
		}
		for _, h := range result.Hits {
			rows = append(rows, row{id: h.ID, msg: &Message{
				SessionID: fieldString(h.Fields, "session_id"),
				Timestamp: fieldString(h.Fields, "timestamp"),
				Role:      fieldString(h.Fields, "role"),
				Content:   fieldString(h.Fields, "content"),
				Project:   fieldString(h.Fields, "project"),
				FilePath:  fieldString(h.Fields, "file_path"),
			}})
		}
		if len(result.Hits) < conversationPage {
			break
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].msg.Timestamp != rows[j].msg.Timestamp {
			return rows[i].msg.Timestamp < rows[j].msg.Timestamp
		}
		return rows[i].id < rows[j].id
	})

	msgs := make([]*Message, len(rows))
	for i, r := range rows {
		msgs[i] = r.msg
	}
	return msgs, nil
}

// SetMetadata merges kv into the stored metadata blob.
func (b *BleveStore) SetMetadata(ctx context.Context, kv map[string]string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errClosed
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	meta, err := b.readMetadata()
	if err != nil {
		return err
	}
	for k, v := range kv {
		meta[k] = v
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	return b.index.SetInternal([]byte(metadataInternalKey), data)
}

// Metadata returns the stored metadata, empty when never set.
func (b *BleveStore) Metadata(ctx context.Context) (map[string]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errClosed
	}
	return b.readMetadata()
}

func (b *BleveStore) readMetadata() (map[string]string, error) {
	meta := make(map[string]string)
	data, err := b.index.GetInternal([]byte(metadataInternalKey))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	if len(data) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return meta, nil
}

// Stats counts documents and distinct session_id terms.
func (b *BleveStore) Stats(ctx context.Context) (*Stats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errClosed
	}

	count, err := b.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	st := &Stats{Messages: int(count)}

	dict, err := b.index.FieldDict("session_id")
	if err != nil {
		return nil, fmt.Errorf("failed to read session dictionary: %w", err)
	}
	defer func() { _ = dict.Close() }()
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate sessions: %w", err)
		}
		if entry == nil {
			break
		}
		st.Sessions++
	}
	return st, nil
}

// Close closes the index. Idempotent.
func (b *BleveStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

// matchedSpans collects byte offsets of every matched content term.
func matchedSpans(hit *search.DocumentMatch) []span {
	var spans []span
	for term := range hit.Locations["content"] {
		for _, loc := range hit.Locations["content"][term] {
			spans = append(spans, span{start: int(loc.Start), end: int(loc.End)})
		}
	}
	return spans
}

func fieldString(fields map[string]any, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}
