// Package ingest turns a reassembled upload into slides: stage the bytes,
// convert them to one image per page, append a slide per page, clean up and
// report. Each step's outcome is recorded; a failure stops the steps after
// it but never undoes slides that were already created.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Slideboard/internal/core"
	"github.com/dkeye/Slideboard/internal/domain"
	"github.com/dkeye/Slideboard/internal/protocol"
	"github.com/dkeye/Slideboard/internal/upload"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"
)

const (
	StepStage    = "stage"
	StepConvert  = "convert"
	StepSlides   = "create-slides"
	StepDiscard  = "discard"
	StepComplete = "complete"
)

// Steps lists the pipeline in execution order.
var Steps = []string{StepStage, StepConvert, StepSlides, StepDiscard, StepComplete}

// Board is the room side the pipeline writes to. Each call is one atomic
// step on the room; nothing is held between calls.
type Board interface {
	AddSlide(ctx context.Context, key domain.RoomKey, slide domain.Slide) (domain.Slide, error)
	Notify(cid domain.ConnID, ev protocol.Event)
}

// Origin is where the page image is anchored on its slide.
type Origin struct {
	X, Y float64
}

var DefaultOrigin = Origin{X: 100, Y: 100}

type StepResult struct {
	Step    string
	Err     error
	Skipped bool
}

type Report struct {
	Room   domain.RoomKey
	Asset  string
	Pages  int
	Slides []string
	Steps  []StepResult
}

// Err returns the first failed step's error, if any.
func (r Report) Err() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return s.Err
		}
	}
	return nil
}

func (r Report) FailedStep() string {
	for _, s := range r.Steps {
		if s.Err != nil {
			return s.Step
		}
	}
	return ""
}

type Pipeline struct {
	Stager    core.Stager
	Converter core.Converter
	Board     Board
	Origin    Origin
}

func New(stager core.Stager, converter core.Converter, board Board) *Pipeline {
	return &Pipeline{Stager: stager, Converter: converter, Board: board, Origin: DefaultOrigin}
}

type run struct {
	p      *Pipeline
	asset  upload.Asset
	report Report
	failed bool
}

func (r *run) record(step string, err error) {
	if err != nil && !errors.Is(err, core.ErrPipeline) {
		err = fmt.Errorf("%w: %s: %v", core.ErrPipeline, step, err)
	}
	r.report.Steps = append(r.report.Steps, StepResult{Step: step, Err: err})
	if err == nil || r.failed {
		return
	}
	r.failed = true
	log.Error().Err(err).Str("module", "ingest").Str("room", string(r.asset.Room)).Str("asset", r.asset.Asset).
		Str("step", step).Int("slides", len(r.report.Slides)).Msg("pipeline step failed")
	r.p.Board.Notify(r.asset.Owner, protocol.UploadFailed(r.asset.Asset, step, err.Error()))
}

func (r *run) skip(step string) {
	r.report.Steps = append(r.report.Steps, StepResult{Step: step, Skipped: true})
}

// Run executes the pipeline for one asset. Exactly one of upload-complete
// or upload-failed reaches the uploader.
func (p *Pipeline) Run(ctx context.Context, asset upload.Asset) Report {
	r := &run{p: p, asset: asset, report: Report{Room: asset.Room, Asset: asset.Asset}}
	log.Info().Str("module", "ingest").Str("room", string(asset.Room)).Str("asset", asset.Asset).
		Int("bytes", len(asset.Data)).Msg("pipeline started")

	doc, err := p.Stager.Stage(ctx, asset.Asset, asset.MimeType, asset.Data)
	r.record(StepStage, err)
	if r.failed {
		r.skip(StepConvert)
		r.skip(StepSlides)
		r.skip(StepDiscard)
		r.skip(StepComplete)
		return r.report
	}

	var pages []core.Page
	pages, err = p.Converter.Convert(ctx, doc)
	if err == nil && len(pages) == 0 {
		err = fmt.Errorf("%w: %s produced no pages", core.ErrPipeline, asset.Asset)
	}
	r.record(StepConvert, err)

	if r.failed {
		r.skip(StepSlides)
	} else {
		r.report.Pages = len(pages)
		r.record(StepSlides, p.createSlides(ctx, r, pages))
	}

	// staged bytes are released even when an earlier step failed
	r.record(StepDiscard, p.Stager.Discard(ctx, doc))

	if r.failed {
		r.skip(StepComplete)
		return r.report
	}
	p.Board.Notify(asset.Owner, protocol.UploadComplete(asset.Asset, len(pages)))
	r.record(StepComplete, nil)
	log.Info().Str("module", "ingest").Str("room", string(asset.Room)).Str("asset", asset.Asset).
		Int("pages", len(pages)).Msg("pipeline complete")
	return r.report
}

func (p *Pipeline) createSlides(ctx context.Context, r *run, pages []core.Page) error {
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		slide, err := p.pageSlide(r.asset.Asset, i, len(pages), page)
		if err != nil {
			return err
		}
		created, err := p.Board.AddSlide(ctx, r.asset.Room, slide)
		if err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
		r.report.Slides = append(r.report.Slides, created.ID)
	}
	return nil
}

func (p *Pipeline) pageSlide(asset string, i, total int, page core.Page) (domain.Slide, error) {
	if page.Ref == "" {
		return domain.Slide{}, fmt.Errorf("%w: page %d has no image reference", core.ErrPipeline, i+1)
	}
	el, err := domain.NewElement(map[string]any{
		"id":     "image-" + ksuid.New().String(),
		"type":   domain.ElementImage,
		"src":    page.Ref,
		"x1":     p.Origin.X,
		"y1":     p.Origin.Y,
		"width":  page.Width,
		"height": page.Height,
	})
	if err != nil {
		return domain.Slide{}, err
	}
	title := asset
	if total > 1 {
		title = fmt.Sprintf("%s (%d/%d)", asset, i+1, total)
	}
	return domain.Slide{Title: title, Elements: []domain.Element{el.WithDefaults()}}, nil
}
