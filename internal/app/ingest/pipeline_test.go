package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dkeye/Slideboard/internal/core"
	"github.com/dkeye/Slideboard/internal/core/mocks"
	"github.com/dkeye/Slideboard/internal/domain"
	"github.com/dkeye/Slideboard/internal/protocol"
	"github.com/dkeye/Slideboard/internal/upload"
	"go.uber.org/mock/gomock"
)

type fakeBoard struct {
	mu       sync.Mutex
	slides   []domain.Slide
	notified []map[string]any
	failAt   int
}

func (b *fakeBoard) AddSlide(_ context.Context, _ domain.RoomKey, slide domain.Slide) (domain.Slide, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAt > 0 && len(b.slides)+1 == b.failAt {
		return domain.Slide{}, errors.New("room unavailable")
	}
	slide.ID = fmt.Sprintf("slide-%d", len(b.slides)+1)
	b.slides = append(b.slides, slide)
	return slide, nil
}

func (b *fakeBoard) Notify(_ domain.ConnID, ev protocol.Event) {
	frame, _ := protocol.Encode(ev)
	var m map[string]any
	_ = json.Unmarshal(frame, &m)
	b.mu.Lock()
	b.notified = append(b.notified, m)
	b.mu.Unlock()
}

func assemble(t *testing.T, parts ...string) upload.Asset {
	t.Helper()
	a := upload.NewAssembler(upload.Limits{})
	var done *upload.Asset
	for i, p := range parts {
		_, asset, err := a.Add(upload.Chunk{Room: "R", Asset: "deck.pdf", MimeType: "application/pdf", Index: i, Total: len(parts), Data: []byte(p), Owner: "uploader"})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if asset != nil {
			done = asset
		}
	}
	if done == nil {
		t.Fatal("asset not assembled")
	}
	return *done
}

func stepNames(r Report) []string {
	out := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.Step
	}
	return out
}

func TestTwoPageAssetFromFourChunks(t *testing.T) {
	ctrl := gomock.NewController(t)
	stager := mocks.NewMockStager(ctrl)
	converter := mocks.NewMockConverter(ctrl)
	board := &fakeBoard{}

	asset := assemble(t, "%PDF", "-1.7 ", "page one ", "page two")
	doc := core.Document{Name: "deck.pdf", MimeType: "application/pdf", Path: "staging/deck.pdf", Size: int64(len(asset.Data))}

	gomock.InOrder(
		stager.EXPECT().Stage(gomock.Any(), "deck.pdf", "application/pdf", []byte("%PDF-1.7 page one page two")).Return(doc, nil),
		converter.EXPECT().Convert(gomock.Any(), doc).Return([]core.Page{
			{Ref: "/assets/deck-1.png", Width: 1280, Height: 720},
			{Ref: "/assets/deck-2.png", Width: 1280, Height: 720},
		}, nil),
		stager.EXPECT().Discard(gomock.Any(), doc).Return(nil),
	)

	report := New(stager, converter, board).Run(context.Background(), asset)
	if err := report.Err(); err != nil {
		t.Fatalf("Run: %v (step %s)", err, report.FailedStep())
	}
	if got := stepNames(report); fmt.Sprint(got) != fmt.Sprint(Steps) {
		t.Errorf("steps: got %v, want %v", got, Steps)
	}

	if len(board.slides) != 2 {
		t.Fatalf("slides: got %d, want 2", len(board.slides))
	}
	for i, s := range board.slides {
		if len(s.Elements) != 1 {
			t.Fatalf("slide %d elements: got %d, want 1", i, len(s.Elements))
		}
		attrs, err := s.Elements[0].Attrs()
		if err != nil {
			t.Fatalf("Attrs: %v", err)
		}
		img, ok := attrs.(domain.ImageAttrs)
		if !ok {
			t.Fatalf("slide %d element is %T, want image", i, attrs)
		}
		if want := fmt.Sprintf("/assets/deck-%d.png", i+1); img.Src != want {
			t.Errorf("slide %d src: got %q, want %q", i, img.Src, want)
		}
		if img.X1 != DefaultOrigin.X || img.Y1 != DefaultOrigin.Y || img.Width != 1280 {
			t.Errorf("slide %d placement: %+v", i, img)
		}
	}

	if len(board.notified) != 1 {
		t.Fatalf("notifications: got %v", board.notified)
	}
	if n := board.notified[0]; n["type"] != protocol.EvUploadComplete || n["pages"] != float64(2) {
		t.Errorf("completion: %v", n)
	}
}

func TestFailureMidwayKeepsCreatedSlides(t *testing.T) {
	ctrl := gomock.NewController(t)
	stager := mocks.NewMockStager(ctrl)
	converter := mocks.NewMockConverter(ctrl)
	board := &fakeBoard{failAt: 2}

	doc := core.Document{Name: "deck.pdf", Path: "staging/deck.pdf"}
	stager.EXPECT().Stage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(doc, nil)
	converter.EXPECT().Convert(gomock.Any(), doc).Return([]core.Page{{Ref: "a"}, {Ref: "b"}, {Ref: "c"}}, nil)
	stager.EXPECT().Discard(gomock.Any(), doc).Return(nil)

	report := New(stager, converter, board).Run(context.Background(), assemble(t, "x"))

	if !errors.Is(report.Err(), core.ErrPipeline) || report.FailedStep() != StepSlides {
		t.Fatalf("failure: err=%v step=%s", report.Err(), report.FailedStep())
	}
	if len(board.slides) != 1 || len(report.Slides) != 1 {
		t.Errorf("created slides: board=%d report=%d, want 1 (no rollback)", len(board.slides), len(report.Slides))
	}
	last := report.Steps[len(report.Steps)-1]
	if last.Step != StepComplete || !last.Skipped {
		t.Errorf("complete step: %+v", last)
	}
	if len(board.notified) != 1 || board.notified[0]["type"] != protocol.EvUploadFailed || board.notified[0]["step"] != StepSlides {
		t.Errorf("notifications: %v", board.notified)
	}
}

func TestStageFailureSkipsEverything(t *testing.T) {
	ctrl := gomock.NewController(t)
	stager := mocks.NewMockStager(ctrl)
	converter := mocks.NewMockConverter(ctrl)
	board := &fakeBoard{}

	stager.EXPECT().Stage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(core.Document{}, errors.New("disk full"))

	report := New(stager, converter, board).Run(context.Background(), assemble(t, "x"))
	if report.FailedStep() != StepStage {
		t.Fatalf("failed step: got %q", report.FailedStep())
	}
	for _, s := range report.Steps[1:] {
		if !s.Skipped {
			t.Errorf("step %s should be skipped", s.Step)
		}
	}
	if len(board.notified) != 1 || board.notified[0]["step"] != StepStage {
		t.Errorf("notifications: %v", board.notified)
	}
}

func TestConvertFailureStillDiscards(t *testing.T) {
	ctrl := gomock.NewController(t)
	stager := mocks.NewMockStager(ctrl)
	converter := mocks.NewMockConverter(ctrl)
	board := &fakeBoard{}

	doc := core.Document{Path: "staging/x"}
	stager.EXPECT().Stage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(doc, nil)
	converter.EXPECT().Convert(gomock.Any(), doc).Return(nil, fmt.Errorf("%w: converter down", core.ErrTransport))
	stager.EXPECT().Discard(gomock.Any(), doc).Return(nil)

	report := New(stager, converter, board).Run(context.Background(), assemble(t, "x"))
	if report.FailedStep() != StepConvert {
		t.Fatalf("failed step: got %q", report.FailedStep())
	}
	if len(board.slides) != 0 {
		t.Errorf("slides created after failed conversion: %d", len(board.slides))
	}
	if len(board.notified) != 1 {
		t.Errorf("expected a single failure notification, got %v", board.notified)
	}
}

func TestEmptyConversionFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	stager := mocks.NewMockStager(ctrl)
	converter := mocks.NewMockConverter(ctrl)

	stager.EXPECT().Stage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(core.Document{}, nil)
	converter.EXPECT().Convert(gomock.Any(), gomock.Any()).Return(nil, nil)
	stager.EXPECT().Discard(gomock.Any(), gomock.Any()).Return(nil)

	report := New(stager, converter, &fakeBoard{}).Run(context.Background(), assemble(t, "x"))
	if report.FailedStep() != StepConvert {
		t.Errorf("failed step: got %q, want %q", report.FailedStep(), StepConvert)
	}
}
