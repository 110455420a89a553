package matchdata

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects the on-disk compression of a match-data file.
type Codec int

const (
	CodecNone Codec = iota
	CodecZstd
	CodecLZ4
)

// ParseCodec maps a flag value to a Codec.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "none", "json":
		return CodecNone, nil
	case "zstd", "zst":
		return CodecZstd, nil
	case "lz4":
		return CodecLZ4, nil
	default:
		return CodecNone, fmt.Errorf("unknown match data codec %q", name)
	}
}

// CodecForPath infers the codec from a file name.
func CodecForPath(path string) Codec {
	switch {
	case strings.HasSuffix(path, ".zst"):
		return CodecZstd
	case strings.HasSuffix(path, ".lz4"):
		return CodecLZ4
	default:
		return CodecNone
	}
}

func (c Codec) String() string {
	switch c {
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	default:
		return "none"
	}
}

// Ext returns the file extension appended after ".json".
func (c Codec) Ext() string {
	switch c {
	case CodecZstd:
		return ".zst"
	case CodecLZ4:
		return ".lz4"
	default:
		return ""
	}
}

func (c Codec) encode(w io.Writer, data []byte) error {
	switch c {
	case CodecZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		if _, err := enc.Write(data); err != nil {
			enc.Close()
			return err
		}
		return enc.Close()
	case CodecLZ4:
		zw := lz4.NewWriter(w)
		if _, err := zw.Write(data); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	default:
		_, err := w.Write(data)
		return err
	}
}

func (c Codec) decode(r io.Reader) ([]byte, error) {
	switch c {
	case CodecZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return io.ReadAll(dec)
	case CodecLZ4:
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, lz4.NewReader(r)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return io.ReadAll(r)
	}
}
