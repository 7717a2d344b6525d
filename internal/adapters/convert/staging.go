package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/dkeye/Slideboard/internal/core"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Staging parks assembled uploads on an afero filesystem until conversion
// is done with them.
type Staging struct {
	FS  afero.Fs
	Dir string
}

func NewStaging(fs afero.Fs, dir string) *Staging {
	return &Staging{FS: fs, Dir: dir}
}

// Stage writes data under a unique name. A missing or generic MIME type is
// replaced by the sniffed one.
func (s *Staging) Stage(ctx context.Context, name, mimeType string, data []byte) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, err
	}
	if len(data) == 0 {
		return core.Document{}, fmt.Errorf("%w: empty document %q", core.ErrValidation, name)
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimetype.Detect(data).String()
	}
	if err := s.FS.MkdirAll(s.Dir, 0o755); err != nil {
		return core.Document{}, fmt.Errorf("%w: staging dir: %v", core.ErrTransport, err)
	}
	p := path.Join(s.Dir, uuid.NewString()+"-"+safeName(name))
	if err := afero.WriteFile(s.FS, p, data, 0o644); err != nil {
		return core.Document{}, fmt.Errorf("%w: stage %q: %v", core.ErrTransport, name, err)
	}
	log.Debug().Str("module", "convert").Str("path", p).Str("mime", mimeType).Int("bytes", len(data)).Msg("staged")
	return core.Document{Name: name, MimeType: mimeType, Path: p, Size: int64(len(data))}, nil
}

// Discard removes a staged document. Removing twice is not an error.
func (s *Staging) Discard(_ context.Context, doc core.Document) error {
	if err := s.FS.Remove(doc.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: discard %q: %v", core.ErrTransport, doc.Path, err)
	}
	return nil
}

func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
