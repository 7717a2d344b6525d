// Package protocol defines the wire format spoken over the websocket: the
// closed set of inbound intents, the outbound events, and their JSON codec.
package protocol

import (
	"encoding/json"
	"strconv"

	"github.com/dkeye/Slideboard/internal/domain"
)

// Inbound intent types.
const (
	TypeJoin            = "join"
	TypeCreateSlide     = "create-slide"
	TypeDeleteSlide     = "delete-slide"
	TypeRenameSlide     = "rename-slide"
	TypeSwitchSlide     = "switch-slide"
	TypeElementUpsert   = "element-upsert"
	TypeElementsReplace = "elements-replace"
	TypeElementRemove   = "element-remove"
	TypeClear           = "clear"
	TypeCursorMove      = "cursor-move"
	TypeCursorRemove    = "cursor-remove"
	TypeChunkUpload     = "chunk-upload"
	TypeSave            = "save"
	TypeFileShare       = "file-share"
	TypeShareWebsite    = "share-website"
	TypeWebsiteClosed   = "website-closed"
	TypeMessage         = "message"
	TypeQuiz            = "quiz"
	TypeGetDefinition   = "get-definition"
	TypePing            = "ping"
	TypeDisconnect      = "disconnect"
)

// Intent is a decoded client request. The set is closed: every
// implementation lives in this package and the dispatcher switches over
// all of them.
type Intent interface {
	Kind() string
	Room() domain.RoomKey
	intent()
}

// Envelope carries the fields shared by every room scoped intent.
type Envelope struct {
	Type   string `json:"type"`
	RoomID string `json:"roomID" validate:"required,max=128"`
}

func (e Envelope) Kind() string         { return e.Type }
func (e Envelope) Room() domain.RoomKey { return domain.RoomKey(e.RoomID) }
func (Envelope) intent()                {}

// Target addresses a slide by id or index; both empty means the current one.
type Target struct {
	SlideID    string `json:"slideId,omitempty"`
	SlideIndex *int   `json:"slideIndex,omitempty"`
}

func (t Target) Selector() domain.SlideSelector {
	if t.SlideID != "" {
		return domain.ByID(t.SlideID)
	}
	if t.SlideIndex != nil {
		return domain.ByIndex(*t.SlideIndex)
	}
	return domain.SlideSelector{}
}

// ID accepts both string and numeric JSON ids and keeps the string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

type Join struct {
	Envelope
	UserID string `json:"userID" validate:"required,max=64"`
}

type CreateSlide struct {
	Envelope
	Title string `json:"title" validate:"max=200"`
}

type DeleteSlide struct {
	Envelope
	SlideID string `json:"slideId" validate:"required"`
}

type RenameSlide struct {
	Envelope
	SlideID string `json:"slideId" validate:"required"`
	Title   string `json:"title" validate:"max=200"`
}

type SwitchSlide struct {
	Envelope
	Target
}

// UpsertElement carries either a plain element or its compressed form.
type UpsertElement struct {
	Envelope
	Target
	ElementData *domain.Element `json:"elementData" validate:"required_without=Compressed"`
	Compressed  []byte          `json:"compressed" validate:"required_without=ElementData"`
}

type ReplaceElements struct {
	Envelope
	Target
	Elements   []domain.Element `json:"elements"`
	Compressed []byte           `json:"compressed"`
}

type RemoveElement struct {
	Envelope
	Target
	ElementID ID `json:"elementId" validate:"required"`
}

type ClearBoard struct {
	Envelope
	Target
	Scope string `json:"scope" validate:"omitempty,oneof=current all"`
}

// MoveCursor accepts the cursor either nested under cursorData or as
// top level x/y fields.
type MoveCursor struct {
	Envelope
	CursorData map[string]json.RawMessage `json:"cursorData"`
	X          *float64                   `json:"x"`
	Y          *float64                   `json:"y"`
}

// Cursor returns the fields to relay, without any userId the client sent.
func (m MoveCursor) Cursor() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(m.CursorData)+2)
	for k, v := range m.CursorData {
		out[k] = v
	}
	if m.X != nil {
		out["x"] = json.RawMessage(strconv.FormatFloat(*m.X, 'f', -1, 64))
	}
	if m.Y != nil {
		out["y"] = json.RawMessage(strconv.FormatFloat(*m.Y, 'f', -1, 64))
	}
	delete(out, "userId")
	delete(out, "type")
	return out
}

type RemoveCursor struct {
	Envelope
	UserID string `json:"userId" validate:"max=64"`
}

type UploadChunk struct {
	Envelope
	AssetName   string `json:"assetName" validate:"required,max=255"`
	MimeType    string `json:"mimeType" validate:"max=255"`
	ChunkIndex  *int   `json:"chunkIndex" validate:"required,min=0"`
	TotalChunks int    `json:"totalChunks" validate:"required,min=1"`
	Data        []byte `json:"data"`
}

type Save struct {
	Envelope
}

type ShareFile struct {
	Envelope
	FileName string          `json:"fileName" validate:"required,max=255"`
	FileType string          `json:"fileType" validate:"max=255"`
	FileData json.RawMessage `json:"fileData"`
}

type ShareWebsite struct {
	Envelope
	WebsiteURL string `json:"websiteUrl" validate:"required,max=2048"`
	UserID     string `json:"userID" validate:"max=64"`
}

type CloseWebsite struct {
	Envelope
	UserID string `json:"userID" validate:"max=64"`
}

// SendMessage is relayed untouched; the server never inspects the payload.
type SendMessage struct {
	Envelope
	CompressedMessage json.RawMessage `json:"compressedMessage" validate:"required"`
}

type PostQuiz struct {
	Envelope
	Question      string          `json:"question" validate:"required,max=1000"`
	Options       []string        `json:"options" validate:"required,min=2,dive,required"`
	CorrectAnswer json.RawMessage `json:"correctAnswer"`
}

type GetDefinition struct {
	Envelope
	Question string `json:"question" validate:"required,max=500"`
	UserID   string `json:"userID" validate:"max=64"`
}

// Ping is the only intent that is not scoped to a room.
type Ping struct {
	Type string `json:"type"`
}

func (Ping) Kind() string         { return TypePing }
func (Ping) Room() domain.RoomKey { return "" }
func (Ping) intent()              {}

// Disconnect is synthesized by the transport when a connection closes.
type Disconnect struct {
	RoomID domain.RoomKey
}

func (Disconnect) Kind() string           { return TypeDisconnect }
func (d Disconnect) Room() domain.RoomKey { return d.RoomID }
func (Disconnect) intent()                {}

// ScopeOrDefault treats an empty scope as "current".
func (c ClearBoard) ScopeOrDefault() string {
	if c.Scope != "" {
		return c.Scope
	}
	return "current"
}
