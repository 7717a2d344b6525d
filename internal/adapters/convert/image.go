package convert

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/dkeye/Slideboard/internal/core"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageConverter turns a single image into a one page document. The page
// keeps the image's own dimensions.
type ImageConverter struct {
	Staged afero.Fs
	Assets *Assets
}

func (c *ImageConverter) Convert(ctx context.Context, doc core.Document) ([]core.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(c.Staged, doc.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read staged %q: %v", core.ErrTransport, doc.Path, err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a readable image: %v", core.ErrPipeline, doc.Name, err)
	}
	ref, err := c.Assets.Put(data)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "convert").Str("asset", doc.Name).Str("format", format).
		Int("width", cfg.Width).Int("height", cfg.Height).Msg("image converted")
	return []core.Page{{Ref: ref, Width: cfg.Width, Height: cfg.Height}}, nil
}
