// Package loader fetches one or more JSON documents and merges them into a
// single validated scene.Dataset.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/rayscope/rayscope/backend-go/internal/scene"
)

// ErrLoad is matched by every error Load returns.
var ErrLoad = errors.New("load dataset")

// MaxDocumentSize caps the size of a single source document.
const MaxDocumentSize = 64 << 20

const pgdocScheme = "pgdoc://"

// MediumKeys are the keys the medium document supplies in a two-document load.
var MediumKeys = []string{"parameters", "medium"}

// Source is one document of a dataset.
type Source struct {
	// Name labels the source in logs, e.g. "ray data".
	Name string
	// Location is an http(s) URL, a pgdoc://<name> reference or a file path.
	Location string
	// Data, when non-nil, is used instead of fetching Location.
	Data []byte
	// Keys lists the top-level keys this source contributes. A nil list
	// takes every key. A listed key replaces the value from earlier sources
	// even when this source lacks it.
	Keys []string
}

// Sources builds the source list for the configured locations. An empty
// medium location means the ray document carries everything.
func Sources(rayLocation, mediumLocation string) []Source {
	srcs := []Source{{Name: "ray data", Location: rayLocation}}
	if mediumLocation != "" {
		srcs = append(srcs, Source{Name: "medium data", Location: mediumLocation, Keys: MediumKeys})
	}
	return srcs
}

// Error is a failed load. Its message does not say which source failed, so
// a failure reads the same whichever document caused it; Source carries that
// detail for logs.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return ErrLoad.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	return []error{ErrLoad, e.Err}
}

// Querier is the subset of pgxpool.Pool the pgdoc source needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Loader fetches and merges dataset documents.
type Loader struct {
	client  *http.Client
	db      Querier
	timeout time.Duration
}

// New creates a loader. db may be nil when no pgdoc sources are used; a zero
// timeout disables the overall deadline.
func New(client *http.Client, db Querier, timeout time.Duration) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{client: client, db: db, timeout: timeout}
}

// Load fetches every source concurrently, merges them in order and decodes
// the result. Any failure fails the whole load; no partial dataset is
// returned.
func (l *Loader) Load(ctx context.Context, sources ...Source) (*scene.Dataset, error) {
	if len(sources) == 0 {
		return nil, &Error{Err: errors.New("no sources configured")}
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	docs := make([]map[string]json.RawMessage, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			data, err := l.fetch(gctx, src)
			if err != nil {
				return &Error{Source: src.Name, Err: err}
			}
			doc, err := decodeObject(data)
			if err != nil {
				return &Error{Source: src.Name, Err: err}
			}
			slog.Debug("fetched dataset source", "source", src.Name, "bytes", len(data))
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged, err := json.Marshal(Merge(docs, sources))
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("encode merged document: %w", err)}
	}
	ds, err := scene.Decode(merged)
	if err != nil {
		return nil, &Error{Err: err}
	}
	return ds, nil
}

// Merge combines decoded documents in order. docs[i] contributes the keys
// listed in sources[i].Keys, or all of its keys when that list is nil.
func Merge(docs []map[string]json.RawMessage, sources []Source) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage)
	for i, doc := range docs {
		if sources[i].Keys == nil {
			for k, v := range doc {
				out[k] = v
			}
			continue
		}
		for _, k := range sources[i].Keys {
			if v, ok := doc[k]; ok {
				out[k] = v
			} else {
				delete(out, k)
			}
		}
	}
	return out
}

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		return nil, errors.New("decode document: not a JSON object")
	}
	return doc, nil
}

func (l *Loader) fetch(ctx context.Context, src Source) ([]byte, error) {
	switch loc := src.Location; {
	case src.Data != nil:
		return src.Data, nil
	case loc == "":
		return nil, errors.New("no location")
	case strings.HasPrefix(loc, "http://"), strings.HasPrefix(loc, "https://"):
		return l.fetchHTTP(ctx, loc)
	case strings.HasPrefix(loc, pgdocScheme):
		return l.fetchRow(ctx, strings.TrimPrefix(loc, pgdocScheme))
	default:
		return readFile(strings.TrimPrefix(loc, "file://"))
	}
}

func (l *Loader) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP status %d", resp.StatusCode)
	}
	return readLimited(resp.Body)
}

func (l *Loader) fetchRow(ctx context.Context, name string) ([]byte, error) {
	if l.db == nil {
		return nil, errors.New("no database configured")
	}
	var doc []byte
	err := l.db.QueryRow(ctx, "SELECT document FROM simulation_documents WHERE name = $1", name).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("document %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	return doc, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return readLimited(f)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if len(data) > MaxDocumentSize {
		return nil, fmt.Errorf("document larger than %d bytes", MaxDocumentSize)
	}
	return data, nil
}
