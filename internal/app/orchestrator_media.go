package app

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/dkeye/Slideboard/internal/codec"
	"github.com/dkeye/Slideboard/internal/core"
	"github.com/dkeye/Slideboard/internal/domain"
	"github.com/dkeye/Slideboard/internal/protocol"
	"github.com/dkeye/Slideboard/internal/upload"
	"github.com/rs/zerolog/log"
)

const (
	definitionPrompt   = "Explain in simple words "
	definitionFallback = "Sorry, couldn't fetch definition right now."
	definitionLineLen  = 10
)

func (o *Orchestrator) moveCursor(cid domain.ConnID, in protocol.MoveCursor) {
	o.publish(in.Room(), cid, ToOthers, protocol.CursorUpdate(in.Cursor(), o.userOf(cid)))
}

func (o *Orchestrator) removeCursor(cid domain.ConnID, in protocol.RemoveCursor) {
	uid := domain.UserID(in.UserID)
	if uid == "" {
		uid = o.userOf(cid)
	}
	if uid == "" {
		return
	}
	o.publish(in.Room(), cid, ToOthers, protocol.CursorRemoved(uid))
}

type fileClass int

const (
	fileOther fileClass = iota
	fileMedia
	fileText
)

var (
	mediaPrefixes  = []string{"image/", "video/", "audio/", "application/pdf"}
	textPrefixes   = []string{"text/", "application/json", "application/xml", "application/javascript"}
	textExtensions = map[string]bool{".txt": true, ".json": true, ".xml": true, ".js": true, ".css": true, ".html": true, ".url": true}
)

func classifyFile(fileType, fileName string) fileClass {
	ft := strings.ToLower(fileType)
	for _, p := range mediaPrefixes {
		if strings.HasPrefix(ft, p) {
			return fileMedia
		}
	}
	for _, p := range textPrefixes {
		if strings.HasPrefix(ft, p) {
			return fileText
		}
	}
	if textExtensions[strings.ToLower(path.Ext(fileName))] {
		return fileText
	}
	return fileOther
}

// shareFile relays a file to the rest of the room. Media and unknown types
// travel compressed; text goes as is. A plain file-received copy follows
// for clients that only listen to that event.
func (o *Orchestrator) shareFile(cid domain.ConnID, in protocol.ShareFile) {
	f := protocol.File{FileName: in.FileName, FileType: in.FileType, FileData: in.FileData}
	room := in.Room()
	switch class := classifyFile(in.FileType, in.FileName); class {
	case fileText:
		o.publish(room, cid, ToOthers, protocol.FileURL(f))
	default:
		compressed, err := codec.Compress(f)
		if err != nil {
			log.Error().Err(err).Str("module", "app.dispatch").Str("room", string(room)).Str("file", in.FileName).Msg("compress file")
			break
		}
		if class == fileMedia {
			o.publish(room, cid, ToOthers, protocol.FileMedia(compressed))
		} else {
			o.publish(room, cid, ToOthers, protocol.FileOther(compressed))
		}
	}
	o.publish(room, cid, ToOthers, protocol.FileReceived(f))
	log.Info().Str("module", "app.dispatch").Str("room", string(room)).Str("file", in.FileName).Str("fileType", in.FileType).Msg("file shared")
}

func (o *Orchestrator) shareWebsite(cid domain.ConnID, in protocol.ShareWebsite) {
	if !protocol.ValidWebsiteURL(in.WebsiteURL) {
		o.sendTo(cid, protocol.WebsiteShareError("Invalid URL format"))
		return
	}
	uid := in.UserID
	if uid == "" {
		uid = string(o.userOf(cid))
	}
	o.publish(in.Room(), cid, ToOthers, protocol.WebsiteShared(in.WebsiteURL, uid))
}

func (o *Orchestrator) closeWebsite(cid domain.ConnID, in protocol.CloseWebsite) {
	uid := in.UserID
	if uid == "" {
		uid = string(o.userOf(cid))
	}
	o.publish(in.Room(), cid, ToEveryone, protocol.WebsiteClosed(uid, in.Room()))
}

func (o *Orchestrator) uploadChunk(ctx context.Context, cid domain.ConnID, in protocol.UploadChunk) error {
	if o.Uploads == nil {
		return fmt.Errorf("%w: uploads disabled", core.ErrValidation)
	}
	progress, asset, err := o.Uploads.Add(upload.Chunk{
		Room:     in.Room(),
		Asset:    in.AssetName,
		MimeType: in.MimeType,
		Index:    *in.ChunkIndex,
		Total:    in.TotalChunks,
		Data:     in.Data,
		Owner:    cid,
	})
	if err != nil {
		return err
	}
	o.sendTo(cid, protocol.UploadProgress(in.AssetName, progress.Received, progress.Total))
	if asset == nil {
		return nil
	}
	if o.Ingest == nil {
		o.sendTo(cid, protocol.UploadFailed(asset.Asset, "stage", "ingestion disabled"))
		return nil
	}
	o.background(ctx, func(ctx context.Context) {
		o.ingest(ctx, *asset)
	})
	return nil
}

func (o *Orchestrator) ingest(ctx context.Context, asset upload.Asset) {
	report := o.Ingest.Run(ctx, asset)
	ev := log.Info()
	if err := report.Err(); err != nil {
		ev = log.Warn().Err(err).Str("step", report.FailedStep())
	}
	ev.Str("module", "app.dispatch").Str("room", string(report.Room)).Str("asset", report.Asset).
		Int("pages", report.Pages).Int("slides", len(report.Slides)).Msg("ingest finished")
}

func (o *Orchestrator) save(ctx context.Context, cid domain.ConnID, in protocol.Save) {
	key := in.Room()
	if o.Persistence == nil {
		o.sendTo(cid, protocol.Saved(fmt.Errorf("%w: persistence disabled", core.ErrTransport)))
		return
	}
	var snap domain.Snapshot
	if !o.Rooms.View(key, func(room *domain.Room) { snap = room.Snapshot() }) {
		o.sendTo(cid, protocol.Saved(fmt.Errorf("%w: room %q not in memory", core.ErrNotFound, key)))
		return
	}
	err := o.Persistence.Save(ctx, key, snap)
	if err != nil {
		log.Error().Err(err).Str("module", "app.dispatch").Str("room", string(key)).Msg("save room")
	} else {
		log.Info().Str("module", "app.dispatch").Str("room", string(key)).Int("slides", len(snap.Slides)).Msg("room saved")
	}
	o.sendTo(cid, protocol.Saved(err))
}

// getDefinition answers in the background so a slow completion service
// never stalls the connection's read loop.
func (o *Orchestrator) getDefinition(ctx context.Context, cid domain.ConnID, in protocol.GetDefinition) error {
	if o.Limiter != nil && !o.Limiter.Allow(string(cid)) {
		return fmt.Errorf("%w: too many definition requests", core.ErrValidation)
	}
	if o.Answerer == nil {
		o.sendTo(cid, protocol.GotDefinition(definitionFallback))
		return nil
	}
	o.background(ctx, func(ctx context.Context) {
		if o.Options.AnswerTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.Options.AnswerTimeout)
			defer cancel()
		}
		answer, err := o.Answerer.Answer(ctx, definitionPrompt+in.Question)
		if err != nil {
			log.Warn().Err(err).Str("module", "app.dispatch").Str("conn", string(cid)).Msg("definition lookup failed")
			o.sendTo(cid, protocol.GotDefinition(definitionFallback))
			return
		}
		o.sendTo(cid, protocol.GotDefinition(reflow(answer, definitionLineLen)))
	})
	return nil
}

// reflow breaks text into lines of n space separated words.
func reflow(text string, n int) string {
	words := strings.Split(text, " ")
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			if i%n == 0 {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(w)
	}
	return strings.TrimSpace(b.String())
}

// AddSlide appends a prepared slide for the ingestion pipeline and
// announces it to the whole room.
func (o *Orchestrator) AddSlide(_ context.Context, key domain.RoomKey, slide domain.Slide) (domain.Slide, error) {
	var out domain.Slide
	err := o.mutate(key, func(room *domain.Room) error {
		out = core.AppendSlide(room, slide)
		o.publish(key, "", ToEveryone, protocol.SlideCreated(out, room.CurrentSlide))
		return nil
	})
	return out, err
}

// Notify sends an event to a single connection.
func (o *Orchestrator) Notify(cid domain.ConnID, ev protocol.Event) {
	o.sendTo(cid, ev)
}
