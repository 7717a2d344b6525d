// Package upload reassembles chunked asset transfers. Entries are keyed by
// room and asset name, tolerate out-of-order and duplicate chunks, and are
// deleted the moment the last slot is filled, when they expire, or when the
// uploading connection goes away.
package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Slideboard/internal/core"
	"github.com/dkeye/Slideboard/internal/domain"
	"github.com/rs/zerolog/log"
)

type Key struct {
	Room  domain.RoomKey
	Asset string
}

// Chunk is one piece of a transfer as received from a client.
type Chunk struct {
	Room     domain.RoomKey
	Asset    string
	MimeType string
	Index    int
	Total    int
	Data     []byte
	Owner    domain.ConnID
}

// Asset is a fully reassembled transfer handed to ingestion.
type Asset struct {
	Key
	MimeType string
	Data     []byte
	Owner    domain.ConnID
}

type Progress struct {
	Received int `json:"received"`
	Total    int `json:"total"`
}

type Limits struct {
	MaxChunks int
	MaxBytes  int64
	TTL       time.Duration
}

var DefaultLimits = Limits{
	MaxChunks: 4096,
	MaxBytes:  64 << 20,
	TTL:       10 * time.Minute,
}

type pending struct {
	mimeType string
	slots    [][]byte
	filled   int
	size     int64
	owner    domain.ConnID
	started  time.Time
	touched  time.Time
}

type Assembler struct {
	mu      sync.Mutex
	pending map[Key]*pending
	limits  Limits
	now     func() time.Time
}

func NewAssembler(limits Limits) *Assembler {
	if limits.MaxChunks <= 0 {
		limits.MaxChunks = DefaultLimits.MaxChunks
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultLimits.MaxBytes
	}
	if limits.TTL <= 0 {
		limits.TTL = DefaultLimits.TTL
	}
	return &Assembler{
		pending: make(map[Key]*pending),
		limits:  limits,
		now:     time.Now,
	}
}

// Add stores c in its slot. When the slot count reaches the declared total
// the chunks are concatenated in index order, the entry is removed and the
// asset is returned; otherwise the asset is nil.
func (a *Assembler) Add(c Chunk) (Progress, *Asset, error) {
	if err := a.validate(c); err != nil {
		return Progress{}, nil, err
	}
	key := Key{Room: c.Room, Asset: c.Asset}
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	p, ok := a.pending[key]
	if ok && len(p.slots) != c.Total {
		delete(a.pending, key)
		return Progress{}, nil, fmt.Errorf("%w: asset %q changed totalChunks from %d to %d", core.ErrValidation, c.Asset, len(p.slots), c.Total)
	}
	if !ok {
		p = &pending{
			mimeType: c.MimeType,
			slots:    make([][]byte, c.Total),
			owner:    c.Owner,
			started:  now,
		}
		a.pending[key] = p
		log.Debug().Str("module", "upload").Str("room", string(c.Room)).Str("asset", c.Asset).Int("total", c.Total).Msg("transfer started")
	}

	if prev := p.slots[c.Index]; prev != nil {
		p.size -= int64(len(prev))
	} else {
		p.filled++
	}
	p.slots[c.Index] = append([]byte{}, c.Data...)
	p.size += int64(len(c.Data))
	p.touched = now
	if c.MimeType != "" {
		p.mimeType = c.MimeType
	}

	if p.size > a.limits.MaxBytes {
		delete(a.pending, key)
		return Progress{}, nil, fmt.Errorf("%w: asset %q exceeds %d bytes", core.ErrValidation, c.Asset, a.limits.MaxBytes)
	}

	progress := Progress{Received: p.filled, Total: len(p.slots)}
	if p.filled < len(p.slots) {
		return progress, nil, nil
	}

	delete(a.pending, key)
	data := make([]byte, 0, p.size)
	for _, s := range p.slots {
		data = append(data, s...)
	}
	log.Info().Str("module", "upload").Str("room", string(c.Room)).Str("asset", c.Asset).
		Int("chunks", len(p.slots)).Int("bytes", len(data)).Dur("took", now.Sub(p.started)).Msg("transfer complete")
	return progress, &Asset{Key: key, MimeType: p.mimeType, Data: data, Owner: p.owner}, nil
}

func (a *Assembler) validate(c Chunk) error {
	switch {
	case c.Room == "":
		return fmt.Errorf("%w: chunk without room", core.ErrValidation)
	case c.Asset == "":
		return fmt.Errorf("%w: chunk without asset name", core.ErrValidation)
	case c.Total <= 0 || c.Total > a.limits.MaxChunks:
		return fmt.Errorf("%w: totalChunks %d outside [1,%d]", core.ErrValidation, c.Total, a.limits.MaxChunks)
	case c.Index < 0 || c.Index >= c.Total:
		return fmt.Errorf("%w: chunkIndex %d outside [0,%d)", core.ErrValidation, c.Index, c.Total)
	}
	return nil
}

// Sweep drops entries idle for longer than the TTL and returns their keys.
func (a *Assembler) Sweep(now time.Time) []Key {
	a.mu.Lock()
	defer a.mu.Unlock()
	var expired []Key
	for k, p := range a.pending {
		if now.Sub(p.touched) > a.limits.TTL {
			delete(a.pending, k)
			expired = append(expired, k)
		}
	}
	for _, k := range expired {
		log.Info().Str("module", "upload").Str("room", string(k.Room)).Str("asset", k.Asset).Msg("transfer expired")
	}
	return expired
}

// DropOwner removes every entry started by conn.
func (a *Assembler) DropOwner(conn domain.ConnID) []Key {
	a.mu.Lock()
	defer a.mu.Unlock()
	var dropped []Key
	for k, p := range a.pending {
		if p.owner == conn {
			delete(a.pending, k)
			dropped = append(dropped, k)
		}
	}
	if len(dropped) > 0 {
		log.Info().Str("module", "upload").Str("conn", string(conn)).Int("count", len(dropped)).Msg("dropped transfers of closed connection")
	}
	return dropped
}

func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// RunJanitor sweeps expired entries every interval until ctx is done.
func (a *Assembler) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "upload").Msg("janitor stopped")
			return nil
		case now := <-t.C:
			a.Sweep(now)
		}
	}
}
