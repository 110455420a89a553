package radio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/signalsfoundry/territory-controller/model"
)

// TraceRecord is one line of a packet trace.
type TraceRecord struct {
	Station model.StationCode `json:"station"`
	Data    []byte            `json:"data"`
	Time    float64           `json:"time"`
}

// TraceRecorder writes every delivered packet as zstd-compressed JSONL, one
// file per match. Safe for concurrent use.
type TraceRecorder struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// NewTraceRecorder creates (truncating) <dir>/<matchID>-radio.jsonl.zst.
func NewTraceRecorder(dir, matchID string) (*TraceRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(TracePath(dir, matchID))
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &TraceRecorder{
		f:   f,
		enc: enc,
		w:   bufio.NewWriterSize(enc, 64*1024),
	}, nil
}

// TracePath returns the trace file location for a match.
func TracePath(dir, matchID string) string {
	return filepath.Join(dir, fmt.Sprintf("%s-radio.jsonl.zst", matchID))
}

// TracePacket implements PacketTracer.
func (r *TraceRecorder) TracePacket(station model.StationCode, p Packet) error {
	b, err := json.Marshal(TraceRecord{Station: station, Data: p.Data, Time: p.ReceivedAt.Seconds()})
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return os.ErrClosed
	}
	if _, err := r.w.Write(b); err != nil {
		return err
	}
	return r.w.WriteByte('\n')
}

// Close flushes and closes the trace file.
func (r *TraceRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	var firstErr error
	if err := r.w.Flush(); err != nil {
		firstErr = err
	}
	if err := r.enc.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	r.w, r.enc, r.f = nil, nil, nil
	return firstErr
}

// ReadTrace decodes a trace written by TraceRecorder.
func ReadTrace(r io.Reader) ([]TraceRecord, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []TraceRecord
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var rec TraceRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return out, fmt.Errorf("trace line %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}
