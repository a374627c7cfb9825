package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wricardo/tilematch/game/engine"
	"github.com/wricardo/tilematch/game/service"
	"github.com/wricardo/tilematch/logger"
)

// BoardSessionModel is the board_sessions row. Seeds are stored as their
// int64 bit pattern because Postgres has no unsigned bigint.
type BoardSessionModel struct {
	ID             string                 `gorm:"primaryKey;size:64"`
	ConfigName     string                 `gorm:"size:128;not null"`
	Seed           int64                  `gorm:"not null"`
	Board          *engine.Snapshot       `gorm:"serializer:json;type:jsonb;not null"`
	History        []service.HistoryEntry `gorm:"serializer:json;type:jsonb"`
	CreatedAt      time.Time
	LastAccessedAt time.Time `gorm:"index"`
	UpdatedAt      time.Time
}

// TableName pins the table name
func (BoardSessionModel) TableName() string {
	return "board_sessions"
}

// GormPersistence implements SessionPersistence on Postgres through GORM
type GormPersistence struct {
	db            *gorm.DB
	configManager service.ConfigManager
}

// zapWriter lets GORM's logger print through the process logger
type zapWriter struct{}

func (zapWriter) Printf(format string, args ...interface{}) {
	logger.Log.Infof(format, args...)
}

// NewGormPersistence connects to Postgres and migrates the sessions table
func NewGormPersistence(dsn string, configManager service.ConfigManager) (*GormPersistence, error) {
	gormLogger := gormlogger.New(
		zapWriter{},
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return NewGormPersistenceWithDB(db, configManager)
}

// NewGormPersistenceWithDB uses an existing GORM handle
func NewGormPersistenceWithDB(db *gorm.DB, configManager service.ConfigManager) (*GormPersistence, error) {
	if err := db.AutoMigrate(&BoardSessionModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate board_sessions: %w", err)
	}
	return &GormPersistence{db: db, configManager: configManager}, nil
}

// Save upserts the session row
func (gp *GormPersistence) Save(session *service.Session) error {
	data, err := snapshotSession(session)
	if err != nil {
		return err
	}
	model := toModel(data)
	err = gp.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	return nil
}

// Load retrieves a session row and rebuilds its board
func (gp *GormPersistence) Load(id string) (*service.Session, error) {
	var model BoardSessionModel
	if err := gp.db.Where("id = ?", strings.ToLower(id)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return restoreSession(fromModel(&model), gp.configManager)
}

// Delete removes a session row
func (gp *GormPersistence) Delete(id string) error {
	result := gp.db.Where("id = ?", strings.ToLower(id)).Delete(&BoardSessionModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListAll returns all stored session IDs
func (gp *GormPersistence) ListAll() ([]string, error) {
	var ids []string
	if err := gp.db.Model(&BoardSessionModel{}).Order("created_at").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}

// Exists checks if a session row exists
func (gp *GormPersistence) Exists(id string) bool {
	var count int64
	if err := gp.db.Model(&BoardSessionModel{}).Where("id = ?", strings.ToLower(id)).Count(&count).Error; err != nil {
		logger.Log.Warnw("failed to check session", "session", id, "error", err)
		return false
	}
	return count > 0
}

func toModel(data *PersistedSessionData) *BoardSessionModel {
	return &BoardSessionModel{
		ID:             strings.ToLower(data.ID),
		ConfigName:     data.ConfigName,
		Seed:           int64(data.Seed),
		Board:          data.Board,
		History:        data.History,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}
}

func fromModel(model *BoardSessionModel) *PersistedSessionData {
	return &PersistedSessionData{
		ID:             model.ID,
		ConfigName:     model.ConfigName,
		Seed:           uint64(model.Seed),
		CreatedAt:      model.CreatedAt,
		LastAccessedAt: model.LastAccessedAt,
		Board:          model.Board,
		History:        model.History,
	}
}
