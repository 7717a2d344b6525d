package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dkeye/Slideboard/internal/core"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// RemoteConverter posts a staged document to an external rendering service
// and stores the returned pages. The service answers with
//
//	{"pages": [{"data": "<base64 image>", "width": 1280, "height": 720}, ...]}
//
// or with pages that already carry a public "ref".
type RemoteConverter struct {
	URL    string
	Client *http.Client
	Staged afero.Fs
	Assets *Assets
}

func NewRemoteConverter(rawURL string, timeout time.Duration, staged afero.Fs, assets *Assets) *RemoteConverter {
	return &RemoteConverter{
		URL:    rawURL,
		Client: &http.Client{Timeout: timeout},
		Staged: staged,
		Assets: assets,
	}
}

type remotePage struct {
	Ref    string `json:"ref"`
	Data   []byte `json:"data"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type remoteResponse struct {
	Pages []remotePage `json:"pages"`
	Error string       `json:"error"`
}

func (c *RemoteConverter) Convert(ctx context.Context, doc core.Document) ([]core.Page, error) {
	f, err := c.Staged.Open(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open staged %q: %v", core.ErrTransport, doc.Path, err)
	}
	defer f.Close()

	endpoint := c.URL + "?name=" + url.QueryEscape(doc.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, f)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", core.ErrTransport, err)
	}
	req.ContentLength = doc.Size
	req.Header.Set("Content-Type", doc.MimeType)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: convert %q: %v", core.ErrTransport, doc.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", core.ErrTransport, err)
	}
	var out remoteResponse
	if err := json.Unmarshal(body, &out); err != nil && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("%w: converter response: %v", core.ErrDecode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = string(bytes.TrimSpace(body))
		}
		return nil, fmt.Errorf("%w: converter returned %d: %s", core.ErrTransport, resp.StatusCode, msg)
	}

	pages := make([]core.Page, 0, len(out.Pages))
	for i, p := range out.Pages {
		ref := p.Ref
		if ref == "" {
			if len(p.Data) == 0 {
				return nil, fmt.Errorf("%w: page %d has neither ref nor data", core.ErrPipeline, i+1)
			}
			if ref, err = c.Assets.Put(p.Data); err != nil {
				return nil, err
			}
		}
		pages = append(pages, core.Page{Ref: ref, Width: p.Width, Height: p.Height})
	}
	log.Info().Str("module", "convert").Str("asset", doc.Name).Int("pages", len(pages)).
		Dur("took", time.Since(started)).Msg("document converted")
	return pages, nil
}
