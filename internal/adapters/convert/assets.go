package convert

import (
	"fmt"
	"path"
	"strings"

	"github.com/dkeye/Slideboard/internal/core"
	"github.com/gabriel-vasile/mimetype"
	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
)

// Assets is the public page image store. Files written here are served
// under PublicBase.
type Assets struct {
	FS         afero.Fs
	PublicBase string
}

// Put stores data under a fresh name and returns its public reference.
func (a *Assets) Put(data []byte) (string, error) {
	ext := mimetype.Detect(data).Extension()
	name := ksuid.New().String() + ext
	if err := afero.WriteFile(a.FS, "/"+name, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: store asset: %v", core.ErrTransport, err)
	}
	return a.Ref(name), nil
}

func (a *Assets) Ref(name string) string {
	base := strings.TrimSuffix(a.PublicBase, "/")
	if base == "" {
		base = "/"
	}
	return path.Join(base, name)
}
