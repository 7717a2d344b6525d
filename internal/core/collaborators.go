package core

import (
	"context"

	"github.com/dkeye/Slideboard/internal/domain"
)

//go:generate mockgen -destination=mocks/mock_collaborators.go -package=mocks . Persistence,Stager,Converter,Answerer

// Persistence stores finished sessions. Load returns ErrNotFound when the
// key was never saved.
type Persistence interface {
	Save(ctx context.Context, key domain.RoomKey, snap domain.Snapshot) error
	Load(ctx context.Context, key domain.RoomKey) (domain.Snapshot, error)
}

// Document is an assembled upload parked in transient storage.
type Document struct {
	Name     string
	MimeType string
	Path     string
	Size     int64
}

// Page is one rendered page of a converted document.
type Page struct {
	Ref    string `json:"ref"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type Stager interface {
	Stage(ctx context.Context, name, mimeType string, data []byte) (Document, error)
	Discard(ctx context.Context, doc Document) error
}

// Converter renders a staged document into one image reference per page,
// in page order.
type Converter interface {
	Convert(ctx context.Context, doc Document) ([]Page, error)
}

type Answerer interface {
	Answer(ctx context.Context, prompt string) (string, error)
}
