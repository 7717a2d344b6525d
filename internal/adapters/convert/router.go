package convert

import (
	"context"
	"fmt"
	"strings"

	"github.com/dkeye/Slideboard/internal/core"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

type route struct {
	prefix    string
	converter core.Converter
}

// Router picks a converter by MIME type prefix. The first matching route
// wins; documents with a generic type are sniffed from the staged bytes.
type Router struct {
	Staged afero.Fs
	routes []route
}

func NewRouter(staged afero.Fs) *Router {
	return &Router{Staged: staged}
}

// Handle routes every type starting with prefix to c.
func (r *Router) Handle(prefix string, c core.Converter) *Router {
	r.routes = append(r.routes, route{prefix: strings.ToLower(prefix), converter: c})
	return r
}

func (r *Router) Convert(ctx context.Context, doc core.Document) ([]core.Page, error) {
	mt := strings.ToLower(doc.MimeType)
	if mt == "" || mt == "application/octet-stream" {
		if f, err := r.Staged.Open(doc.Path); err == nil {
			if detected, err := mimetype.DetectReader(f); err == nil {
				mt = detected.String()
			}
			_ = f.Close()
		}
	}
	for _, rt := range r.routes {
		if strings.HasPrefix(mt, rt.prefix) {
			log.Debug().Str("module", "convert").Str("asset", doc.Name).Str("mime", mt).Str("route", rt.prefix).Msg("routing document")
			return rt.converter.Convert(ctx, doc)
		}
	}
	return nil, fmt.Errorf("%w: no converter for %q (%s)", core.ErrPipeline, doc.Name, mt)
}
