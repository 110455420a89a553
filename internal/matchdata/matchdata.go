// Package matchdata persists the match log as whole-file rewrites keyed by
// match id: <dir>/<match-id>.json with an optional .zst or .lz4 suffix.
package matchdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/territory-controller/internal/logging"
	"github.com/signalsfoundry/territory-controller/kb"
	"github.com/signalsfoundry/territory-controller/model"
)

// ErrDigestMismatch is returned by Load when the stored digest does not match
// the stored entries.
var ErrDigestMismatch = errors.New("match data digest mismatch")

// Document is the persisted match-data payload. Exactly one of
// TerritoryClaims and TokenScores is set.
type Document struct {
	MatchID         string                `json:"match_id"`
	Arena           string                `json:"arena"`
	WrittenAt       time.Time             `json:"written_at"`
	Digest          string                `json:"digest"`
	TerritoryClaims []model.ClaimLogEntry `json:"territory_claims,omitempty"`
	TokenScores     []model.TokenLogEntry `json:"token_scores,omitempty"`
}

// Revision describes one completed write.
type Revision struct {
	MatchID   string
	Revision  int
	Entries   int
	Digest    string
	Path      string
	WrittenAt time.Time
}

// Indexer is told about every completed write. index.Index satisfies it.
type Indexer interface {
	RecordRevision(ctx context.Context, rev Revision) error
}

// WriteObserver counts write attempts. *observability.MatchCollector
// satisfies it.
type WriteObserver interface {
	ObserveMatchDataWrite(err error)
}

// Writer rewrites the match-data file on every call. It implements
// kb.Recorder for claim logs and RecordTokens for token logs.
type Writer struct {
	dir      string
	matchID  string
	arena    string
	codec    Codec
	now      func() time.Time
	index    Indexer
	observer WriteObserver
	log      logging.Logger
	tracer   trace.Tracer

	revision int
}

// WriterOption customises a Writer.
type WriterOption func(*Writer)

// WithCodec selects the file compression.
func WithCodec(c Codec) WriterOption {
	return func(w *Writer) { w.codec = c }
}

// WithIndexer records every revision in idx.
func WithIndexer(idx Indexer) WriterOption {
	return func(w *Writer) { w.index = idx }
}

// WithWriteObserver attaches a write counter.
func WithWriteObserver(o WriteObserver) WriterOption {
	return func(w *Writer) { w.observer = o }
}

// WithWriterLogger sets the writer logger.
func WithWriterLogger(l logging.Logger) WriterOption {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

// WithClock overrides the wall clock used for written_at.
func WithClock(now func() time.Time) WriterOption {
	return func(w *Writer) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWriter creates dir if needed and returns a writer for matchID.
func NewWriter(dir, matchID, arena string, opts ...WriterOption) (*Writer, error) {
	if matchID == "" {
		return nil, errors.New("match id is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create match data dir: %w", err)
	}
	w := &Writer{
		dir:     dir,
		matchID: matchID,
		arena:   arena,
		now:     func() time.Time { return time.Now().UTC() },
		log:     logging.Noop(),
		tracer:  otel.Tracer("territory-controller/matchdata"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Path returns the file every write replaces.
func (w *Writer) Path() string {
	return PathFor(w.dir, w.matchID, w.codec)
}

// PathFor returns the match-data path for matchID under dir.
func PathFor(dir, matchID string, codec Codec) string {
	return filepath.Join(dir, matchID+".json"+codec.Ext())
}

// Revisions returns the number of completed writes.
func (w *Writer) Revisions() int { return w.revision }

// RecordClaims rewrites the file with the full claim log.
func (w *Writer) RecordClaims(ctx context.Context, entries []model.ClaimLogEntry) error {
	digest, err := kb.Digest(entries)
	if err != nil {
		return err
	}
	return w.write(ctx, &Document{TerritoryClaims: entries, Digest: digest}, len(entries))
}

// RecordTokens rewrites the file with the full token log.
func (w *Writer) RecordTokens(ctx context.Context, entries []model.TokenLogEntry) error {
	digest, err := kb.Digest(entries)
	if err != nil {
		return err
	}
	return w.write(ctx, &Document{TokenScores: entries, Digest: digest}, len(entries))
}

func (w *Writer) write(ctx context.Context, doc *Document, n int) (err error) {
	ctx, span := w.tracer.Start(ctx, "matchdata.Write",
		trace.WithAttributes(
			attribute.String("match.id", w.matchID),
			attribute.Int("match.entries", n),
			attribute.String("match.codec", w.codec.String()),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if w.observer != nil {
			w.observer.ObserveMatchDataWrite(err)
		}
	}()

	doc.MatchID = w.matchID
	doc.Arena = w.arena
	doc.WrittenAt = w.now()

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal match data: %w", err)
	}
	path := w.Path()
	if err := writeFileAtomic(path, raw, w.codec); err != nil {
		return fmt.Errorf("write match data %s: %w", path, err)
	}
	w.revision++

	rev := Revision{
		MatchID:   w.matchID,
		Revision:  w.revision,
		Entries:   n,
		Digest:    doc.Digest,
		Path:      path,
		WrittenAt: doc.WrittenAt,
	}
	if w.index != nil {
		if err := w.index.RecordRevision(ctx, rev); err != nil {
			return fmt.Errorf("index match data: %w", err)
		}
	}
	w.log.Debug(ctx, "match data written",
		logging.String("path", path),
		logging.Int("revision", w.revision),
		logging.Int("entries", n),
	)
	return nil
}

// writeFileAtomic writes to a temp file in the target directory, syncs it
// and renames it over path.
func writeFileAtomic(path string, raw []byte, codec Codec) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}
	if err := codec.encode(tmp, raw); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Load reads, validates and verifies a match-data file. The codec is taken
// from the file extension.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open match data: %w", err)
	}
	defer f.Close()

	raw, err := CodecForPath(path).decode(f)
	if err != nil {
		return nil, fmt.Errorf("decompress match data %s: %w", path, err)
	}
	return Decode(raw)
}

// Decode validates raw JSON against the schema, decodes it and verifies the
// digest.
func Decode(raw []byte) (*Document, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode match data: %w", err)
	}
	if err := doc.Verify(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Verify recomputes the digest over the stored entries.
func (d *Document) Verify() error {
	var (
		got string
		err error
	)
	if d.TokenScores != nil {
		got, err = kb.Digest(d.TokenScores)
	} else {
		got, err = kb.Digest(d.TerritoryClaims)
	}
	if err != nil {
		return err
	}
	if got != d.Digest {
		return fmt.Errorf("%w: stored %s, computed %s", ErrDigestMismatch, d.Digest, got)
	}
	return nil
}
