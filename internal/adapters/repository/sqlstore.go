package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
)

type studentRow struct {
	ID           uint            `gorm:"primaryKey"`
	Roll         string          `gorm:"size:64;uniqueIndex"`
	Name         string          `gorm:"size:255"`
	Encodings    json.RawMessage `gorm:"type:json"`
	RegisteredAt time.Time
}

func (studentRow) TableName() string { return "students" }

type attendanceRow struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Roll      string    `gorm:"size:64;index"`
	Name      string    `gorm:"size:255"`
	Timestamp time.Time `gorm:"index"`
	Status    string    `gorm:"size:16"`
}

func (attendanceRow) TableName() string { return "attendance" }

// SQLStore keeps identities and events in MySQL through gorm. Encodings are
// a JSON column.
type SQLStore struct {
	db  *gorm.DB
	log logger.Logger
}

// NewSQLStore opens a MySQL connection. The DSN needs parseTime=true.
func NewSQLStore(ctx context.Context, dsn string, opts ...Option) (*SQLStore, error) {
	return NewSQLStoreWithDialector(ctx, mysql.Open(dsn), opts...)
}

// NewSQLStoreWithDialector opens any gorm dialector and migrates the schema.
func NewSQLStoreWithDialector(ctx context.Context, dialector gorm.Dialector, opts ...Option) (*SQLStore, error) {
	o := buildOptions(opts)

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", ErrUnavailable, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrUnavailable, err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&studentRow{}, &attendanceRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: migrate: %w", ErrUnavailable, err)
	}
	return &SQLStore{db: db, log: o.log}, nil
}

func (s *SQLStore) Backend() string { return BackendMySQL }

func (s *SQLStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) ListIdentities(ctx context.Context) (model.Gallery, error) {
	var rows []studentRow
	if err := s.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list identities: %w", ErrUnavailable, err)
	}
	out := make(model.Gallery, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.toIdentity(ctx, r))
	}
	return out, nil
}

func (s *SQLStore) FindByRoll(ctx context.Context, roll string) (model.Identity, error) {
	var row studentRow
	err := s.db.WithContext(ctx).Where("roll = ?", roll).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Identity{}, ErrNotFound
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: find %s: %w", ErrUnavailable, roll, err)
	}
	return s.toIdentity(ctx, row), nil
}

func (s *SQLStore) InsertIdentity(ctx context.Context, id model.Identity) error {
	raw, err := encodeEncodings(id.Encodings)
	if err != nil {
		return err
	}
	row := studentRow{
		Roll:         id.Roll,
		Name:         id.Name,
		Encodings:    raw,
		RegisteredAt: id.RegisteredAt.UTC(),
	}
	err = s.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateRoll
	}
	if err != nil {
		return fmt.Errorf("%w: insert %s: %w", ErrUnavailable, id.Roll, err)
	}
	return nil
}

func (s *SQLStore) AppendEvent(ctx context.Context, ev model.AttendanceEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	row := attendanceRow{
		ID:        ev.ID,
		Roll:      ev.Roll,
		Name:      ev.Name,
		Timestamp: ev.Timestamp.UTC(),
		Status:    ev.Status,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("%w: append event: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLStore) ListEvents(ctx context.Context, from, to time.Time) ([]model.AttendanceEvent, error) {
	var rows []attendanceRow
	err := s.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", from.UTC(), to.UTC()).
		Order("timestamp desc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list events: %w", ErrUnavailable, err)
	}
	out := make([]model.AttendanceEvent, len(rows))
	for i, r := range rows {
		out[i] = model.AttendanceEvent{
			ID:        r.ID,
			Roll:      r.Roll,
			Name:      r.Name,
			Timestamp: r.Timestamp.UTC(),
			Status:    r.Status,
		}
	}
	return out, nil
}

func (s *SQLStore) toIdentity(ctx context.Context, r studentRow) model.Identity {
	return model.Identity{
		Roll:         r.Roll,
		Name:         r.Name,
		Encodings:    lenientEncodings(ctx, s.log, r.Roll, r.Encodings),
		RegisteredAt: r.RegisteredAt.UTC(),
	}
}
