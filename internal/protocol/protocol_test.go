package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/dkeye/Slideboard/internal/core"
	"github.com/dkeye/Slideboard/internal/domain"
)

func TestDecodeIntents(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		check func(t *testing.T, in Intent)
	}{
		{
			name:  "join",
			frame: `{"type":"join","roomID":"R1","userID":"alice"}`,
			check: func(t *testing.T, in Intent) {
				j := in.(Join)
				if j.Room() != "R1" || j.UserID != "alice" {
					t.Errorf("join: %+v", j)
				}
			},
		},
		{
			name:  "switch by index",
			frame: `{"type":"switch-slide","roomID":"R","slideIndex":0}`,
			check: func(t *testing.T, in Intent) {
				sel := in.(SwitchSlide).Selector()
				if sel.Index == nil || *sel.Index != 0 {
					t.Errorf("selector: %+v", sel)
				}
			},
		},
		{
			name:  "upsert plain element",
			frame: `{"type":"element-upsert","roomID":"R","elementData":{"id":"E","type":"rectangle","x1":1},"slideId":"s"}`,
			check: func(t *testing.T, in Intent) {
				u := in.(UpsertElement)
				if u.ElementData == nil || u.ElementData.ID() != "E" || u.SlideID != "s" {
					t.Errorf("upsert: %+v", u)
				}
			},
		},
		{
			name:  "upsert compressed element",
			frame: `{"type":"element-upsert","roomID":"R","compressed":"eJyrVgrLLErMS8lRslJKTEnJLC5JzMkBAEp3Bw8="}`,
			check: func(t *testing.T, in Intent) {
				if u := in.(UpsertElement); len(u.Compressed) == 0 || u.ElementData != nil {
					t.Errorf("compressed upsert: %+v", u)
				}
			},
		},
		{
			name:  "numeric element id",
			frame: `{"type":"element-remove","roomID":"R","elementId":1712345}`,
			check: func(t *testing.T, in Intent) {
				if id := in.(RemoveElement).ElementID; id != "1712345" {
					t.Errorf("elementId: got %q", id)
				}
			},
		},
		{
			name:  "clear defaults to current",
			frame: `{"type":"clear","roomID":"R"}`,
			check: func(t *testing.T, in Intent) {
				if s := in.(ClearBoard).ScopeOrDefault(); s != "current" {
					t.Errorf("scope: got %q", s)
				}
			},
		},
		{
			name:  "nested cursor",
			frame: `{"type":"cursor-move","roomID":"R","cursorData":{"x":3,"y":4,"color":"red","userId":"spoofed"}}`,
			check: func(t *testing.T, in Intent) {
				c := in.(MoveCursor).Cursor()
				if _, ok := c["userId"]; ok {
					t.Error("client supplied userId must be dropped")
				}
				if string(c["color"]) != `"red"` {
					t.Errorf("color: got %s", c["color"])
				}
			},
		},
		{
			name:  "flat cursor",
			frame: `{"type":"cursor-move","roomID":"R","x":1.5,"y":2}`,
			check: func(t *testing.T, in Intent) {
				c := in.(MoveCursor).Cursor()
				if string(c["x"]) != "1.5" || string(c["y"]) != "2" {
					t.Errorf("cursor: %v", c)
				}
			},
		},
		{
			name:  "chunk",
			frame: `{"type":"chunk-upload","roomID":"R","assetName":"a.pdf","mimeType":"application/pdf","chunkIndex":0,"totalChunks":2,"data":"aGVsbG8="}`,
			check: func(t *testing.T, in Intent) {
				c := in.(UploadChunk)
				if *c.ChunkIndex != 0 || c.TotalChunks != 2 || string(c.Data) != "hello" {
					t.Errorf("chunk: %+v", c)
				}
			},
		},
		{
			name:  "ping needs no room",
			frame: `{"type":"ping"}`,
			check: func(t *testing.T, in Intent) {
				if _, ok := in.(Ping); !ok {
					t.Errorf("got %T", in)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Decode([]byte(tt.frame))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			tt.check(t, in)
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	frames := map[string]string{
		"not json":             `{"type":`,
		"unknown type":         `{"type":"teleport","roomID":"R"}`,
		"missing room":         `{"type":"create-slide"}`,
		"blank room":           `{"type":"create-slide","roomID":"   "}`,
		"join without user":    `{"type":"join","roomID":"R"}`,
		"delete without id":    `{"type":"delete-slide","roomID":"R"}`,
		"upsert without body":  `{"type":"element-upsert","roomID":"R"}`,
		"upsert without id":    `{"type":"element-upsert","roomID":"R","elementData":{"type":"text"}}`,
		"upsert non object":    `{"type":"element-upsert","roomID":"R","elementData":[1,2]}`,
		"bad clear scope":      `{"type":"clear","roomID":"R","scope":"everything"}`,
		"cursor without x":     `{"type":"cursor-move","roomID":"R","y":1}`,
		"chunk without index":  `{"type":"chunk-upload","roomID":"R","assetName":"a","totalChunks":1}`,
		"chunk negative index": `{"type":"chunk-upload","roomID":"R","assetName":"a","chunkIndex":-1,"totalChunks":1}`,
		"quiz single option":   `{"type":"quiz","roomID":"R","question":"?","options":["a"]}`,
		"empty message":        `{"type":"message","roomID":"R"}`,
	}
	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode([]byte(frame)); !errors.Is(err, core.ErrValidation) {
				t.Errorf("Decode(%s): got %v, want ErrValidation", frame, err)
			}
		})
	}
}

func decodeFrame(t *testing.T, ev Event) map[string]any {
	t.Helper()
	frame, err := Encode(ev)
	if err != nil {
		t.Fatalf("Encode(%s): %v", ev.Kind(), err)
	}
	var out map[string]any
	if err := json.Unmarshal(frame, &out); err != nil {
		t.Fatalf("frame is not JSON: %v", err)
	}
	return out
}

func TestEventShapes(t *testing.T) {
	el, _ := domain.NewElement(map[string]any{"id": "E", "type": "text"})
	idx := 1
	tests := []struct {
		ev   Event
		want map[string]any
	}{
		{SlideCreated(domain.Slide{ID: "s", Title: "T", Elements: []domain.Element{}}, 1),
			map[string]any{"type": EvSlideCreated, "currentSlide": float64(1)}},
		{SlideDeleted("s", 0), map[string]any{"type": EvSlideDeleted, "slideId": "s", "currentSlide": float64(0)}},
		{ElementUpdated(&el, nil, Target{SlideIndex: &idx}), map[string]any{"type": EvElementUpdated, "slideIndex": float64(1)}},
		{ElementRemoved("E", Target{SlideID: "s"}), map[string]any{"elementId": "E", "slideId": "s"}},
		{Cleared("all", ""), map[string]any{"scope": "all"}},
		{CursorRemoved("bob"), map[string]any{"userId": "bob"}},
		{UploadComplete("deck.pdf", 2), map[string]any{"assetName": "deck.pdf", "pages": float64(2)}},
		{Error(fmt.Errorf("%w: slide x", core.ErrNotFound), TypeRenameSlide), map[string]any{"kind": "not_found", "intent": TypeRenameSlide}},
		{Saved(nil), map[string]any{"success": true}},
		{Pong(), map[string]any{"type": EvPong}},
	}
	for _, tt := range tests {
		t.Run(tt.ev.Kind(), func(t *testing.T) {
			got := decodeFrame(t, tt.ev)
			if got["type"] != tt.ev.Kind() {
				t.Errorf("type: got %v, want %s", got["type"], tt.ev.Kind())
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s: got %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestCursorUpdateStampsUser(t *testing.T) {
	got := decodeFrame(t, CursorUpdate(map[string]json.RawMessage{"x": json.RawMessage("3"), "type": json.RawMessage(`"evil"`)}, "alice"))
	if got["type"] != EvCursorUpdate || got["userId"] != "alice" || got["x"] != float64(3) {
		t.Errorf("cursor-update: %v", got)
	}
}

func TestSnapshotFlattens(t *testing.T) {
	got := decodeFrame(t, RoomSnapshot(domain.NewRoom("R").Snapshot()))
	slides, ok := got["slides"].([]any)
	if !ok || len(slides) != 1 {
		t.Fatalf("slides: %v", got["slides"])
	}
	if _, ok := got["currentSlide"]; !ok {
		t.Error("currentSlide missing")
	}
}

func TestValidWebsiteURL(t *testing.T) {
	tests := map[string]bool{
		"https://example.com/page?q=1": true,
		"http://localhost:3000":        true,
		"example.com":                  false,
		"javascript:alert(1)":          false,
		"":                             false,
	}
	for raw, want := range tests {
		if got := ValidWebsiteURL(raw); got != want {
			t.Errorf("ValidWebsiteURL(%q): got %v, want %v", raw, got, want)
		}
	}
}
