package codec

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/dkeye/Slideboard/internal/domain"
)

func TestRoundTripSnapshot(t *testing.T) {
	el, err := domain.NewElement(map[string]any{
		"id":     "e1",
		"type":   "pencil",
		"points": []map[string]float64{{"x": 1, "y": 2, "t": 0}, {"x": 3, "y": 4, "t": 16}},
		"custom": map[string]any{"layer": 3},
	})
	if err != nil {
		t.Fatalf("NewElement: %v", err)
	}
	original := domain.Snapshot{
		Slides: []domain.Slide{
			{ID: "slide-1", Title: "Slide 1", Elements: []domain.Element{el}},
			{ID: "slide-2", Title: "Intro", Elements: []domain.Element{}},
		},
		CurrentSlide: 1,
		Users:        []domain.UserID{"alice", "bob"},
	}

	payload, err := Compress(original)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	var decoded domain.Snapshot
	if err := Decompress(payload, &decoded); err != nil {
		t.Fatalf("Decompress: %v", err)
	}

	if decoded.CurrentSlide != original.CurrentSlide || !reflect.DeepEqual(decoded.Users, original.Users) {
		t.Fatalf("roundtrip header mismatch: got %+v, want %+v", decoded, original)
	}
	if len(decoded.Slides) != 2 || len(decoded.Slides[0].Elements) != 1 {
		t.Fatalf("roundtrip slides mismatch: got %+v", decoded.Slides)
	}
	if !decoded.Slides[0].Elements[0].Equal(el) {
		t.Errorf("roundtrip element mismatch: got %v, want %v", decoded.Slides[0].Elements[0].Keys(), el.Keys())
	}
}

func TestCompressDeterministic(t *testing.T) {
	value := map[string]any{"b": 2, "a": []int{1, 2, 3}, "c": "text"}
	first, err := Compress(value)
	if err != nil {
		t.Fatalf("first Compress: %v", err)
	}
	second, err := Compress(value)
	if err != nil {
		t.Fatalf("second Compress: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

// The browser side inflates with pako, which speaks plain zlib. The stdlib
// reader stands in for it here.
func TestCompressIsStandardZlib(t *testing.T) {
	payload, err := Compress([]string{"x", "y"})
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	r, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	var got []string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("got %v, want [x y]", got)
	}
}

func TestDecompressCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not zlib")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v any
			if err := Decompress(tt.payload, &v); err == nil {
				t.Errorf("Decompress(%q) should fail", tt.payload)
			}
		})
	}
}

func TestDecompressInflationCap(t *testing.T) {
	prev := MaxInflated
	MaxInflated = 1024
	t.Cleanup(func() { MaxInflated = prev })

	atCap, err := CompressBytes(bytes.Repeat([]byte{'a'}, 1024))
	if err != nil {
		t.Fatalf("CompressBytes: %v", err)
	}
	data, err := DecompressBytes(atCap)
	if err != nil || len(data) != 1024 {
		t.Fatalf("payload at the cap: got %d bytes, err %v", len(data), err)
	}

	bomb, err := CompressBytes(bytes.Repeat([]byte{'a'}, 1<<20))
	if err != nil {
		t.Fatalf("CompressBytes: %v", err)
	}
	if len(bomb) >= 1<<20/100 {
		t.Fatalf("expected a high ratio payload, got %d bytes", len(bomb))
	}
	if _, err := DecompressBytes(bomb); !errors.Is(err, ErrTooLarge) {
		t.Errorf("oversized payload: got %v, want ErrTooLarge", err)
	}
	var v any
	if err := Decompress(bomb, &v); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Decompress oversized: got %v, want ErrTooLarge", err)
	}
}
