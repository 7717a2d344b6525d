// Package codec shrinks bulk payloads before fan-out. The wire format is a
// zlib stream of the value's JSON encoding, the same bytes pako.deflate
// produces in the browser, so clients inflate with pako.inflate.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

var (
	ErrEmpty    = errors.New("codec: empty payload")
	ErrTooLarge = errors.New("codec: inflated payload too large")
)

// MaxInflated caps the inflated size of a single payload. Set once at startup.
var MaxInflated int64 = 16 << 20

// writers are recycled through Reset. A zlib.Writer is not safe for
// concurrent use, so each call takes its own from the pool.
var writers = sync.Pool{
	New: func() any {
		w, _ := zlib.NewWriterLevel(nil, zlib.DefaultCompression)
		return w
	},
}

// Compress encodes v as JSON and deflates it. Output is deterministic for a
// given value: map keys are sorted by encoding/json and the compressor
// level is fixed.
func Compress(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal: %w", err)
	}
	return CompressBytes(data)
}

// CompressBytes deflates an already encoded payload.
func CompressBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := writers.Get().(*zlib.Writer)
	defer writers.Put(w)
	w.Reset(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("codec: deflate: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: deflate close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress inflates payload and decodes the JSON into v.
func Decompress(payload []byte, v any) error {
	data, err := DecompressBytes(payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: unmarshal: %w", err)
	}
	return nil
}

// DecompressBytes inflates payload without decoding it. Output beyond
// MaxInflated fails with ErrTooLarge.
func DecompressBytes(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrEmpty
	}
	r, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("codec: inflate: %w", err)
	}
	defer r.Close()
	limit := MaxInflated
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("codec: inflate: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}
