package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dkeye/Slideboard/internal/core"
	"github.com/dkeye/Slideboard/internal/domain"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store is a GORM-backed SQLite implementation of core.Persistence. Each
// saved room is one row holding its snapshot as JSON.
type Store struct {
	db *gorm.DB
}

type roomModel struct {
	RoomKey   string `gorm:"primaryKey;column:room_key"`
	Snapshot  []byte
	Slides    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (roomModel) TableName() string { return "rooms" }

// Open opens (or creates) the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	log.Info().Str("module", "persistence").Str("path", path).Msg("database opened")
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate applies schema updates.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&roomModel{})
}

// Save upserts the snapshot for key.
func (s *Store) Save(ctx context.Context, key domain.RoomKey, snap domain.Snapshot) error {
	// participants are live state; a restored room starts empty
	snap.Users = nil
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	model := roomModel{RoomKey: string(key), Snapshot: raw, Slides: len(snap.Slides)}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"snapshot", "slides", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("%w: save room %q: %v", core.ErrTransport, key, err)
	}
	log.Debug().Str("module", "persistence").Str("room", string(key)).Int("bytes", len(raw)).Msg("room saved")
	return nil
}

// Load returns the saved snapshot, or core.ErrNotFound.
func (s *Store) Load(ctx context.Context, key domain.RoomKey) (domain.Snapshot, error) {
	var model roomModel
	err := s.db.WithContext(ctx).Where("room_key = ?", string(key)).First(&model).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.Snapshot{}, fmt.Errorf("%w: saved room %q", core.ErrNotFound, key)
	case err != nil:
		return domain.Snapshot{}, fmt.Errorf("%w: load room %q: %v", core.ErrTransport, key, err)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(model.Snapshot, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: saved room %q: %v", core.ErrDecode, key, err)
	}
	return snap, nil
}

// SavedAt reports when key was last saved.
func (s *Store) SavedAt(ctx context.Context, key domain.RoomKey) (time.Time, error) {
	var model roomModel
	err := s.db.WithContext(ctx).Select("updated_at").Where("room_key = ?", string(key)).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, fmt.Errorf("%w: saved room %q", core.ErrNotFound, key)
	}
	return model.UpdatedAt, err
}
