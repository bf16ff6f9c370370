// Package fs implements the document store on plain files: one JSON or YAML
// file per record under <root>/<kind>/<owner>/<id>.<ext>. Files are written
// atomically and may be edited by other tools; Watch reports such changes.
package fs

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/fieldbook/pkg/core"
)

// DefaultSystemDir holds the store's own bookkeeping files.
const DefaultSystemDir = ".fieldbook"

// Config holds the configuration for the filesystem store.
type Config struct {
	Path string
	// Format is the serialization used for new writes: "json" (default) or "yaml".
	// Files in either format are read regardless.
	Format string
	// Strict decodes JSON numbers as json.Number.
	Strict    bool
	MustExist bool
	SystemDir string
	Logger    *slog.Logger
	// ErrorHandler receives asynchronous watcher errors.
	ErrorHandler func(error)
}

// Store is a core.Store over a directory tree. Writes are serialized by the
// store; seq numbers persist inside each file so insertion order survives
// restarts.
type Store struct {
	config      Config
	serializers map[string]Serializer
	ext         string
	cache       *cache

	mu  sync.Mutex
	seq map[core.Kind]int64

	watcherActive atomic.Bool
}

// NewStore creates a new filesystem store.
func NewStore(config Config) (*Store, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("fs store path is empty")
	}
	if config.Format == "" {
		config.Format = "json"
	}
	ext, ok := Formats[config.Format]
	if !ok {
		return nil, fmt.Errorf("unknown format: %s", config.Format)
	}
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Store{
		config:      config,
		serializers: DefaultSerializers(config.Strict),
		ext:         ext,
		cache:       newCache(config.Path, config.SystemDir),
		seq:         make(map[core.Kind]int64),
	}, nil
}

// Initialize ensures the root directory exists and loads the index.
func (s *Store) Initialize(ctx context.Context) error {
	info, err := os.Stat(s.config.Path)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("%s is not a directory", s.config.Path)
	case os.IsNotExist(err) && s.config.MustExist:
		return fmt.Errorf("store directory does not exist: %s", s.config.Path)
	case os.IsNotExist(err):
		if err := os.MkdirAll(s.config.Path, 0755); err != nil {
			return core.StorageFault("fs init", err)
		}
	case err != nil:
		return core.StorageFault("fs init", err)
	}

	if err := s.cache.Load(); err != nil {
		s.config.Logger.Warn("index unreadable, rebuilding", "error", err)
	}
	return nil
}

// Close persists the index.
func (s *Store) Close() error {
	return s.cache.Save()
}

func (s *Store) Put(ctx context.Context, kind core.Kind, row core.Row) error {
	if err := s.checkKey(kind, row.Key()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prevRel, found := s.locate(kind, row.Key())
	if found {
		prev, err := s.header(prevRel)
		if err != nil {
			return core.StorageFault("fs put", err)
		}
		row.Seq = prev.Seq
	} else {
		seq, err := s.nextSeq(kind)
		if err != nil {
			return err
		}
		row.Seq = seq
	}

	data, err := s.serializers[s.ext].Encode(documentFromRow(row))
	if err != nil {
		return core.StorageFault("fs encode", err)
	}

	rel := s.relPath(kind, row.Key(), s.ext)
	if err := writeFileAtomic(s.abs(rel), data, 0644); err != nil {
		return core.StorageFault("fs put", err)
	}
	if found && prevRel != rel {
		if err := os.Remove(s.abs(prevRel)); err != nil && !os.IsNotExist(err) {
			return core.StorageFault("fs put", err)
		}
	}

	info, err := os.Stat(s.abs(rel))
	if err != nil {
		return core.StorageFault("fs put", err)
	}
	s.cache.Set(rel, &indexEntry{
		Kind:         kind,
		Owner:        row.Owner,
		ID:           row.ID,
		Seq:          row.Seq,
		Synced:       row.Synced,
		Size:         info.Size(),
		LastModified: info.ModTime(),
	})
	return nil
}

func (s *Store) Get(ctx context.Context, kind core.Kind, key core.Key) (core.Row, error) {
	if err := s.checkKey(kind, key); err != nil {
		if core.IsValidation(err) && (key.ID == "" || key.Owner == "") {
			return core.Row{}, core.NotFound("get", kind, key.ID)
		}
		return core.Row{}, err
	}
	rel, found := s.locate(kind, key)
	if !found {
		return core.Row{}, core.NotFound("get", kind, key.ID)
	}
	row, err := s.read(rel)
	if os.IsNotExist(err) {
		return core.Row{}, core.NotFound("get", kind, key.ID)
	}
	if err != nil {
		return core.Row{}, core.StorageFault("fs get", err)
	}
	return row, nil
}

func (s *Store) Scan(ctx context.Context, kind core.Kind, filter core.Filter) iter.Seq2[core.Row, error] {
	return func(yield func(core.Row, error) bool) {
		headers, err := s.headers(kind, filter)
		if err != nil {
			yield(core.Row{}, err)
			return
		}
		for _, h := range headers {
			if err := ctx.Err(); err != nil {
				yield(core.Row{}, err)
				return
			}
			row, err := s.read(h.rel)
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				yield(core.Row{}, core.StorageFault("fs scan", err))
				return
			}
			if filter.Match != nil && !filter.Match(row) {
				continue
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

func (s *Store) Count(ctx context.Context, kind core.Kind, filter core.Filter) (int, error) {
	if filter.Match == nil {
		headers, err := s.headers(kind, filter)
		return len(headers), err
	}
	n := 0
	for _, err := range s.Scan(ctx, kind, filter) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

type header struct {
	rel string
	indexEntry
}

// headers lists the files of kind that pass the owner and synced parts of
// filter, ordered by seq. The index is refreshed along the way.
func (s *Store) headers(kind core.Kind, filter core.Filter) ([]header, error) {
	if !kind.Valid() {
		return nil, core.Validation("fs scan", kind, "", fmt.Sprintf("invalid kind %q", kind))
	}

	pattern := string(kind) + "/*/*.{json,yaml,yml}"
	if filter.Owner != "" {
		pattern = string(kind) + "/" + escapeSegment(filter.Owner) + "/*.{json,yaml,yml}"
	}
	matches, err := doublestar.Glob(os.DirFS(s.config.Path), pattern)
	if err != nil {
		return nil, core.StorageFault("fs scan", err)
	}

	keep := make(map[string]bool, len(matches))
	out := make([]header, 0, len(matches))
	for _, rel := range matches {
		if isTempFile(rel) {
			continue
		}
		entry, err := s.header(rel)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, core.StorageFault("fs scan", err)
		}
		keep[rel] = true
		if filter.Owner != "" && entry.Owner != filter.Owner {
			continue
		}
		if filter.Unsynced && entry.Synced {
			continue
		}
		out = append(out, header{rel: rel, indexEntry: *entry})
	}
	if filter.Owner == "" {
		s.cache.Prune(kind, keep)
	}

	slices.SortFunc(out, func(a, b header) int {
		if filter.Order == core.OrderInsertionDesc {
			return compareSeq(b, a)
		}
		return compareSeq(a, b)
	})
	return out, nil
}

func compareSeq(a, b header) int {
	switch {
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	}
	return strings.Compare(a.rel, b.rel)
}

// header returns the index entry for rel, decoding the file on a cache miss.
func (s *Store) header(rel string) (*indexEntry, error) {
	info, err := os.Stat(s.abs(rel))
	if err != nil {
		return nil, err
	}
	if entry, ok := s.cache.Get(rel, info.ModTime(), info.Size()); ok {
		return entry, nil
	}

	row, err := s.read(rel)
	if err != nil {
		return nil, err
	}
	kind, _, _ := strings.Cut(rel, "/")
	entry := &indexEntry{
		Kind:         core.Kind(kind),
		Owner:        row.Owner,
		ID:           row.ID,
		Seq:          row.Seq,
		Synced:       row.Synced,
		Size:         info.Size(),
		LastModified: info.ModTime(),
	}
	s.cache.Set(rel, entry)
	return entry, nil
}

func (s *Store) read(rel string) (core.Row, error) {
	data, err := os.ReadFile(s.abs(rel))
	if err != nil {
		return core.Row{}, err
	}
	serializer, ok := s.serializers[path.Ext(rel)]
	if !ok {
		return core.Row{}, fmt.Errorf("no serializer for %s", rel)
	}
	doc, err := serializer.Decode(data)
	if err != nil {
		return core.Row{}, fmt.Errorf("%s: %w", rel, err)
	}
	return doc.row(), nil
}

// nextSeq allocates the next insertion position. Callers hold s.mu.
func (s *Store) nextSeq(kind core.Kind) (int64, error) {
	if _, ok := s.seq[kind]; !ok {
		if _, err := s.headers(kind, core.Filter{}); err != nil {
			return 0, err
		}
		s.seq[kind] = s.cache.MaxSeq(kind)
	}
	s.seq[kind]++
	return s.seq[kind], nil
}

// locate finds the file holding key in any supported format, preferring the
// configured one.
func (s *Store) locate(kind core.Kind, key core.Key) (string, bool) {
	exts := []string{s.ext}
	for ext := range s.serializers {
		if ext != s.ext {
			exts = append(exts, ext)
		}
	}
	for _, ext := range exts {
		rel := s.relPath(kind, key, ext)
		if _, err := os.Stat(s.abs(rel)); err == nil {
			return rel, true
		}
	}
	return "", false
}

func (s *Store) checkKey(kind core.Kind, key core.Key) error {
	if !kind.Valid() {
		return core.Validation("fs", kind, key.ID, fmt.Sprintf("invalid kind %q", kind))
	}
	if key.ID == "" || key.Owner == "" {
		return core.Validation("fs", kind, key.ID, "row needs an owner and an id")
	}
	return nil
}

func (s *Store) relPath(kind core.Kind, key core.Key, ext string) string {
	return path.Join(string(kind), escapeSegment(key.Owner), escapeSegment(key.ID)+ext)
}

func (s *Store) abs(rel string) string {
	return filepath.Join(s.config.Path, filepath.FromSlash(rel))
}

// resolve maps an absolute file path back to the row it holds.
func (s *Store) resolve(name string) (core.Kind, core.Key, bool) {
	rel, err := filepath.Rel(s.config.Path, name)
	if err != nil {
		return "", core.Key{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 {
		return "", core.Key{}, false
	}
	ext := path.Ext(parts[2])
	if _, ok := s.serializers[ext]; !ok {
		return "", core.Key{}, false
	}
	kind := core.Kind(parts[0])
	if !kind.Valid() {
		return "", core.Key{}, false
	}
	owner, err := url.PathUnescape(parts[1])
	if err != nil {
		return "", core.Key{}, false
	}
	id, err := url.PathUnescape(strings.TrimSuffix(parts[2], ext))
	if err != nil {
		return "", core.Key{}, false
	}
	return kind, core.Key{Owner: owner, ID: id}, true
}

// escapeSegment makes s safe as a single path element.
func escapeSegment(s string) string {
	e := url.PathEscape(s)
	if strings.HasPrefix(e, ".") {
		e = "%2E" + e[1:]
	}
	return e
}

func (s *Store) setWatcherActive(active bool) {
	s.watcherActive.Store(active)
}

var _ core.Store = (*Store)(nil)
var _ core.Initializer = (*Store)(nil)
var _ core.Watchable = (*Store)(nil)
