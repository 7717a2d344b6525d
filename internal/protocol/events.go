package protocol

import (
	"encoding/json"

	"github.com/dkeye/Slideboard/internal/core"
	"github.com/dkeye/Slideboard/internal/domain"
)

// Outbound event types.
const (
	EvRoomSnapshot      = "room-snapshot"
	EvParticipantJoined = "participant-joined"
	EvParticipantLeft   = "participant-left"
	EvSlideCreated      = "slide-created"
	EvSlideDeleted      = "slide-deleted"
	EvSlideRenamed      = "slide-renamed"
	EvSlideSwitched     = "slide-switched"
	EvElementUpdated    = "element-updated"
	EvElementsUpdated   = "elements-updated"
	EvElementRemoved    = "element-removed"
	EvCleared           = "cleared"
	EvCursorUpdate      = "cursor-update"
	EvCursorRemoved     = "cursor-removed"
	EvUploadProgress    = "upload-progress"
	EvUploadComplete    = "upload-complete"
	EvUploadFailed      = "upload-failed"
	EvError             = "error"
	EvSaved             = "saved"
	EvFileMedia         = "file-media"
	EvFileURL           = "file-url"
	EvFileOther         = "file-other"
	EvFileReceived      = "file-received"
	EvWebsiteShared     = "website-shared"
	EvWebsiteShareError = "website-share-error"
	EvWebsiteClosed     = "website-closed"
	EvMessage           = "message"
	EvQuiz              = "quiz"
	EvGotDefinition     = "got-definition"
	EvPong              = "pong"
)

// Event is one outbound message. Build them with the constructors below.
type Event interface {
	Kind() string
	event()
}

type Head struct {
	Type string `json:"type"`
}

func (h Head) Kind() string { return h.Type }
func (Head) event()         {}

// Encode renders an event as a text frame.
func Encode(ev Event) (core.Frame, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}

type roomSnapshot struct {
	Head
	domain.Snapshot
}

func RoomSnapshot(snap domain.Snapshot) Event {
	return roomSnapshot{Head{EvRoomSnapshot}, snap}
}

type participantJoined struct {
	Head
	UserID   domain.UserID `json:"userID"`
	SocketID domain.ConnID `json:"socketId"`
}

func ParticipantJoined(p domain.Participant) Event {
	return participantJoined{Head{EvParticipantJoined}, p.UserID, p.ConnID}
}

type participantLeft struct {
	Head
	UserID domain.UserID `json:"userID"`
}

func ParticipantLeft(uid domain.UserID) Event {
	return participantLeft{Head{EvParticipantLeft}, uid}
}

type slideCreated struct {
	Head
	Slide        domain.Slide `json:"slide"`
	CurrentSlide int          `json:"currentSlide"`
}

func SlideCreated(slide domain.Slide, current int) Event {
	return slideCreated{Head{EvSlideCreated}, slide, current}
}

type slideDeleted struct {
	Head
	SlideID      string `json:"slideId"`
	CurrentSlide int    `json:"currentSlide"`
}

func SlideDeleted(id string, current int) Event {
	return slideDeleted{Head{EvSlideDeleted}, id, current}
}

type slideRenamed struct {
	Head
	SlideID string `json:"slideId"`
	Title   string `json:"title"`
}

func SlideRenamed(id, title string) Event {
	return slideRenamed{Head{EvSlideRenamed}, id, title}
}

type slideSwitched struct {
	Head
	CurrentSlide int          `json:"currentSlide"`
	Slide        domain.Slide `json:"slide"`
}

func SlideSwitched(current int, slide domain.Slide) Event {
	return slideSwitched{Head{EvSlideSwitched}, current, slide}
}

type elementUpdated struct {
	Head
	ElementData *domain.Element `json:"elementData,omitempty"`
	Compressed  []byte          `json:"compressed,omitempty"`
	Target
}

// ElementUpdated echoes the element the way it arrived: plain or compressed.
func ElementUpdated(el *domain.Element, compressed []byte, target Target) Event {
	return elementUpdated{Head{EvElementUpdated}, el, compressed, target}
}

type elementsUpdated struct {
	Head
	Compressed []byte `json:"compressed"`
	SlideID    string `json:"slideId"`
}

func ElementsUpdated(compressed []byte, slideID string) Event {
	return elementsUpdated{Head{EvElementsUpdated}, compressed, slideID}
}

type elementRemoved struct {
	Head
	ElementID string `json:"elementId"`
	Target
}

func ElementRemoved(id string, target Target) Event {
	return elementRemoved{Head{EvElementRemoved}, id, target}
}

type cleared struct {
	Head
	Scope   string `json:"scope"`
	SlideID string `json:"slideId,omitempty"`
}

func Cleared(scope, slideID string) Event {
	return cleared{Head{EvCleared}, scope, slideID}
}

type cursorUpdate struct {
	Head
	fields map[string]json.RawMessage
	userID domain.UserID
}

// CursorUpdate relays every cursor field and stamps the sender's user id.
func CursorUpdate(fields map[string]json.RawMessage, uid domain.UserID) Event {
	return cursorUpdate{Head{EvCursorUpdate}, fields, uid}
}

func (c cursorUpdate) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.fields)+2)
	for k, v := range c.fields {
		out[k] = v
	}
	out["type"] = c.Type
	out["userId"] = c.userID
	return json.Marshal(out)
}

type cursorRemoved struct {
	Head
	UserID domain.UserID `json:"userId"`
}

func CursorRemoved(uid domain.UserID) Event {
	return cursorRemoved{Head{EvCursorRemoved}, uid}
}

type uploadProgress struct {
	Head
	AssetName string `json:"assetName"`
	Received  int    `json:"received"`
	Total     int    `json:"total"`
}

func UploadProgress(asset string, received, total int) Event {
	return uploadProgress{Head{EvUploadProgress}, asset, received, total}
}

type uploadComplete struct {
	Head
	AssetName string `json:"assetName"`
	Pages     int    `json:"pages"`
}

func UploadComplete(asset string, pages int) Event {
	return uploadComplete{Head{EvUploadComplete}, asset, pages}
}

type uploadFailed struct {
	Head
	AssetName string `json:"assetName"`
	Step      string `json:"step"`
	Message   string `json:"message"`
}

func UploadFailed(asset, step, msg string) Event {
	return uploadFailed{Head{EvUploadFailed}, asset, step, msg}
}

type errorEvent struct {
	Head
	ErrKind string `json:"kind"`
	Message string `json:"message"`
	Intent  string `json:"intent,omitempty"`
}

// Error reports a rejected intent to its sender.
func Error(err error, intent string) Event {
	return errorEvent{Head{EvError}, core.ErrorKind(err), err.Error(), intent}
}

type saved struct {
	Head
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func Saved(err error) Event {
	if err != nil {
		return saved{Head{EvSaved}, false, err.Error()}
	}
	return saved{Head: Head{EvSaved}, Success: true}
}

// File is the relayed shape of a shared file.
type File struct {
	FileName string          `json:"fileName"`
	FileType string          `json:"fileType"`
	FileData json.RawMessage `json:"fileData,omitempty"`
}

type fileCompressed struct {
	Head
	Compressed []byte `json:"compressed"`
}

type filePlain struct {
	Head
	File
}

func FileMedia(compressed []byte) Event { return fileCompressed{Head{EvFileMedia}, compressed} }
func FileOther(compressed []byte) Event { return fileCompressed{Head{EvFileOther}, compressed} }
func FileURL(f File) Event              { return filePlain{Head{EvFileURL}, f} }
func FileReceived(f File) Event         { return filePlain{Head{EvFileReceived}, f} }

type websiteShared struct {
	Head
	WebsiteURL string `json:"websiteUrl"`
	UserID     string `json:"userID"`
}

func WebsiteShared(u, uid string) Event {
	return websiteShared{Head{EvWebsiteShared}, u, uid}
}

type websiteShareError struct {
	Head
	Error string `json:"error"`
}

func WebsiteShareError(msg string) Event {
	return websiteShareError{Head{EvWebsiteShareError}, msg}
}

type websiteClosed struct {
	Head
	UserID string `json:"userID"`
	RoomID string `json:"roomID"`
}

func WebsiteClosed(uid string, room domain.RoomKey) Event {
	return websiteClosed{Head{EvWebsiteClosed}, uid, string(room)}
}

type message struct {
	Head
	CompressedMessage json.RawMessage `json:"compressedMessage"`
}

func Message(payload json.RawMessage) Event {
	return message{Head{EvMessage}, payload}
}

type quiz struct {
	Head
	Question      string          `json:"question"`
	Options       []string        `json:"options"`
	CorrectAnswer json.RawMessage `json:"correctAnswer,omitempty"`
	RoomID        string          `json:"roomID"`
}

func Quiz(q PostQuiz) Event {
	return quiz{Head{EvQuiz}, q.Question, q.Options, q.CorrectAnswer, q.RoomID}
}

type gotDefinition struct {
	Head
	Definition string `json:"definition"`
}

func GotDefinition(text string) Event {
	return gotDefinition{Head{EvGotDefinition}, text}
}

func Pong() Event { return Head{EvPong} }
