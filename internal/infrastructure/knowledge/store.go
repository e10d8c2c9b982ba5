package knowledge

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/partselect/backend/internal/domain"
	"gopkg.in/yaml.v3"
)

// SourceName identifies the knowledge store in the source registry
const SourceName = "knowledge"

// Relevance scoring
const (
	defaultLimit     = 10
	minKeywordLength = 2
	keywordScore     = 0.1
	fullMatchScore   = 0.5
	maxScore         = 1.0

	// DefaultDebounce is how long Watch waits for more changes before reloading
	DefaultDebounce = 250 * time.Millisecond
)

// Store is a file-backed part index. It satisfies domain.CatalogSource and
// domain.AlternativeLookup. Files ending in .json are written as JSON,
// anything else as YAML.
type Store struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry
	hash    [sha256.Size]byte
}

// Open loads the index at path. A missing file yields an empty store.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:    path,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	logger.Info("Knowledge store initialized", "path", path, "parts", s.Len())
	return s, nil
}

// Name implements domain.CatalogSource
func (s *Store) Name() string {
	return SourceName
}

// Len returns the number of indexed parts
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Reload re-reads the index file, replacing the in-memory index
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.mu.Lock()
		s.entries = make(map[string]Entry)
		s.hash = [sha256.Size]byte{}
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read knowledge index: %w", err)
	}

	entries, err := decodeIndex(data)
	if err != nil {
		return fmt.Errorf("decode knowledge index %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.entries = entries
	s.hash = sha256.Sum256(data)
	s.mu.Unlock()
	return nil
}

// Search scores every entry against the query and applies the category,
// voltage, current and package filters. An empty query matches everything.
func (s *Store) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	query := strings.ToLower(strings.TrimSpace(req.Term))

	type scored struct {
		entry Entry
		score float64
	}
	var results []scored

	s.mu.RLock()
	for _, e := range s.entries {
		score := relevance(query, e.content())
		if score <= 0 || !e.matches(req) {
			continue
		}
		results = append(results, scored{entry: e, score: score})
	}
	s.mu.RUnlock()

	// Map iteration is random; break score ties by part number
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].entry.PartNumber < results[j].entry.PartNumber
	})
	if len(results) > limit {
		results = results[:limit]
	}

	records := make([]domain.RawRecord, 0, len(results))
	for _, r := range results {
		records = append(records, r.entry.toRawRecord())
	}
	s.logger.Debug("Knowledge search", "term", req.Term, "results", len(records))
	return records, nil
}

// PriceAndStock returns the offers recorded with a part's datasheet
func (s *Store) PriceAndStock(ctx context.Context, partNumber string) ([]domain.PriceQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := s.Get(partNumber)
	if !ok {
		return []domain.PriceQuote{}, nil
	}
	return e.quotes(), nil
}

// Alternatives returns the substitutes recorded for a part
func (s *Store) Alternatives(ctx context.Context, partNumber string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, ok := s.Get(partNumber)
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, e.Data.Alternatives...), nil
}

// Get returns the entry for a part number, case-insensitively
func (s *Store) Get(partNumber string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[domain.CanonicalID(partNumber)]
	return e, ok
}

// PartNumbers returns the indexed part numbers in sorted order
func (s *Store) PartNumbers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Put indexes a datasheet under the upper-cased part number and saves the
// index. The in-memory index only changes once the save succeeded.
func (s *Store) Put(partNumber string, data Datasheet) error {
	id := domain.CanonicalID(partNumber)
	if id == "" {
		return fmt.Errorf("%w: part number is required", domain.ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cloneLocked()
	next[id] = Entry{
		PartNumber: id,
		Data:       data,
		AddedAt:    s.now().UTC().Format(time.RFC3339),
	}
	if err := s.commitLocked(next); err != nil {
		return err
	}
	s.logger.Info("Added part to knowledge store", "part_number", id)
	return nil
}

// Import indexes many datasheets keyed by part number and saves once.
// Blank part numbers are skipped. A failed save leaves the index untouched.
func (s *Store) Import(parts map[string]Datasheet) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cloneLocked()
	added := s.now().UTC().Format(time.RFC3339)
	count := 0
	for pn, data := range parts {
		id := domain.CanonicalID(pn)
		if id == "" {
			continue
		}
		next[id] = Entry{PartNumber: id, Data: data, AddedAt: added}
		count++
	}
	if err := s.commitLocked(next); err != nil {
		return 0, err
	}
	s.logger.Info("Bulk imported parts", "count", count)
	return count, nil
}

// Delete removes a part and saves the index. It reports whether the part existed.
func (s *Store) Delete(partNumber string) (bool, error) {
	id := domain.CanonicalID(partNumber)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false, nil
	}
	next := s.cloneLocked()
	delete(next, id)
	if err := s.commitLocked(next); err != nil {
		return true, err
	}
	s.logger.Info("Deleted part from knowledge store", "part_number", id)
	return true, nil
}

func (s *Store) cloneLocked() map[string]Entry {
	next := make(map[string]Entry, len(s.entries)+1)
	for id, e := range s.entries {
		next[id] = e
	}
	return next
}

// commitLocked saves entries and swaps them in; the caller holds mu
func (s *Store) commitLocked(entries map[string]Entry) error {
	if err := s.saveLocked(entries); err != nil {
		return err
	}
	s.entries = entries
	return nil
}

// saveLocked writes the index atomically; the caller holds mu
func (s *Store) saveLocked(entries map[string]Entry) error {
	data, err := encodeIndex(s.path, entries)
	if err != nil {
		return fmt.Errorf("encode knowledge index: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create knowledge dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".index-*")
	if err != nil {
		return fmt.Errorf("write knowledge index: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write knowledge index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write knowledge index: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write knowledge index: %w", err)
	}

	s.hash = sha256.Sum256(data)
	return nil
}

// Watch reloads the index whenever the file changes on disk, until ctx is
// cancelled. Writes made by this store do not trigger a reload.
func (s *Store) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	// Watch the directory; editors and saveLocked replace the file by rename
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := fsw.Add(dir); err != nil {
		return err
	}
	s.logger.Info("Knowledge watcher started", "path", s.path, "debounce", debounce)

	target := filepath.Clean(s.path)
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) == target {
				pending = true
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			if !pending {
				continue
			}
			pending = false
			s.reloadIfChanged()
		}
	}
}

func (s *Store) reloadIfChanged() {
	data, err := os.ReadFile(s.path)
	if err == nil {
		s.mu.RLock()
		unchanged := sha256.Sum256(data) == s.hash
		s.mu.RUnlock()
		if unchanged {
			return
		}
	}

	if err := s.Reload(); err != nil {
		s.logger.Warn("Knowledge reload failed; keeping previous index", "error", err)
		return
	}
	s.logger.Info("Knowledge store reloaded", "parts", s.Len())
}

// content is the lower-cased text the relevance score is computed over
func (e Entry) content() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return strings.ToLower(e.PartNumber)
	}
	return strings.ToLower(buf.String())
}

// matches applies the filters the built-in catalog applies: exact category,
// substring voltage, package and current over the merged specs
func (e Entry) matches(req domain.SearchRequest) bool {
	if c := strings.TrimSpace(req.Category); c != "" && !strings.EqualFold(e.Data.Category, c) {
		return false
	}
	specs := e.toRawRecord().Specs
	for _, key := range []string{domain.SpecVoltage, domain.SpecPackage, domain.SpecCurrent} {
		want := strings.TrimSpace(req.Constraints[key])
		if want == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(specs.Get(key)), strings.ToLower(want)) {
			return false
		}
	}
	return true
}

// relevance adds keywordScore per query word found in content and
// fullMatchScore when the whole query appears, capped at maxScore
func relevance(query, content string) float64 {
	score := 0.0
	for _, kw := range strings.Fields(query) {
		if len([]rune(kw)) < minKeywordLength {
			continue
		}
		if strings.Contains(content, kw) {
			score += keywordScore
		}
	}
	if strings.Contains(content, query) {
		score += fullMatchScore
	}
	if score > maxScore {
		score = maxScore
	}
	return score
}

func decodeIndex(data []byte) (map[string]Entry, error) {
	raw := make(map[string]Entry)
	// JSON is a subset of YAML, so one decoder reads both layouts
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	entries := make(map[string]Entry, len(raw))
	for key, e := range raw {
		if e.PartNumber == "" {
			e.PartNumber = key
		}
		id := domain.CanonicalID(e.PartNumber)
		if id == "" {
			continue
		}
		e.PartNumber = id
		entries[id] = e
	}
	return entries, nil
}

func encodeIndex(path string, entries map[string]Entry) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.MarshalIndent(entries, "", "  ")
	}
	return yaml.Marshal(entries)
}
