package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dkeye/Slideboard/internal/core"
	"github.com/dkeye/Slideboard/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var intents = map[string]func() Intent{
	TypeJoin:            func() Intent { return &Join{} },
	TypeCreateSlide:     func() Intent { return &CreateSlide{} },
	TypeDeleteSlide:     func() Intent { return &DeleteSlide{} },
	TypeRenameSlide:     func() Intent { return &RenameSlide{} },
	TypeSwitchSlide:     func() Intent { return &SwitchSlide{} },
	TypeElementUpsert:   func() Intent { return &UpsertElement{} },
	TypeElementsReplace: func() Intent { return &ReplaceElements{} },
	TypeElementRemove:   func() Intent { return &RemoveElement{} },
	TypeClear:           func() Intent { return &ClearBoard{} },
	TypeCursorMove:      func() Intent { return &MoveCursor{} },
	TypeCursorRemove:    func() Intent { return &RemoveCursor{} },
	TypeChunkUpload:     func() Intent { return &UploadChunk{} },
	TypeSave:            func() Intent { return &Save{} },
	TypeFileShare:       func() Intent { return &ShareFile{} },
	TypeShareWebsite:    func() Intent { return &ShareWebsite{} },
	TypeWebsiteClosed:   func() Intent { return &CloseWebsite{} },
	TypeMessage:         func() Intent { return &SendMessage{} },
	TypeQuiz:            func() Intent { return &PostQuiz{} },
	TypeGetDefinition:   func() Intent { return &GetDefinition{} },
	TypePing:            func() Intent { return &Ping{} },
}

// checker is implemented by intents with rules struct tags cannot express.
type checker interface {
	check() error
}

// Decode parses one text frame into its intent. Every failure wraps
// core.ErrValidation. The returned intent is a value, never a pointer.
func Decode(data []byte) (Intent, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed frame: %v", core.ErrValidation, err)
	}
	mk, ok := intents[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown intent type %q", core.ErrValidation, env.Type)
	}
	in := mk()
	if err := json.Unmarshal(data, in); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrValidation, env.Type, err)
	}
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", core.ErrValidation, env.Type, describeValidation(err))
	}
	if c, ok := in.(checker); ok {
		if err := c.check(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", core.ErrValidation, env.Type, err)
		}
	}
	if in.Kind() != TypePing {
		if _, err := domain.ParseRoomKey(string(in.Room())); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", core.ErrValidation, env.Type, err)
		}
	}
	return deref(in), nil
}

func deref(in Intent) Intent {
	switch v := in.(type) {
	case *Join:
		return *v
	case *CreateSlide:
		return *v
	case *DeleteSlide:
		return *v
	case *RenameSlide:
		return *v
	case *SwitchSlide:
		return *v
	case *UpsertElement:
		return *v
	case *ReplaceElements:
		return *v
	case *RemoveElement:
		return *v
	case *ClearBoard:
		return *v
	case *MoveCursor:
		return *v
	case *RemoveCursor:
		return *v
	case *UploadChunk:
		return *v
	case *Save:
		return *v
	case *ShareFile:
		return *v
	case *ShareWebsite:
		return *v
	case *CloseWebsite:
		return *v
	case *SendMessage:
		return *v
	case *PostQuiz:
		return *v
	case *GetDefinition:
		return *v
	case *Ping:
		return *v
	}
	return in
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func (u *UpsertElement) check() error {
	if u.ElementData != nil && u.ElementData.ID() == "" {
		return errors.New("elementData without id")
	}
	return nil
}

func (m *MoveCursor) check() error {
	if m.CursorData == nil && (m.X == nil || m.Y == nil) {
		return errors.New("cursor needs cursorData or x and y")
	}
	return nil
}

// ValidWebsiteURL reports whether raw is an absolute http(s) URL.
func ValidWebsiteURL(raw string) bool {
	if validate.Var(raw, "required,url") != nil {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
