package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/avolkov/webtracker/internal/domain"
	"github.com/avolkov/webtracker/internal/repo"
)

var _ repo.ResourceStore = (*Store)(nil)
var _ repo.LogStore = (*Store)(nil)

type resourceRow struct {
	ID        int64     `gorm:"primarykey"`
	Name      string    `gorm:"not null;uniqueIndex"`
	URL       string    `gorm:"not null"`
	Type      string    `gorm:"not null"`
	Interval  int       `gorm:"not null"`
	UserID    string    `gorm:"not null;index"`
	Headers   string    // JSON-encoded map, empty when unset
	Frequency *int
	Period    string
	CreatedAt time.Time
}

func (resourceRow) TableName() string { return "resources" }

type logRow struct {
	ID         int64 `gorm:"primarykey"`
	ResourceID int64 `gorm:"index;not null"`
	Status     string
	Response   string
	Endpoint   string
	DurationMS int64
	Result     bool
	CreatedAt  time.Time
}

func (logRow) TableName() string { return "logs" }

// Store is the embedded single-file alternative to the postgres
// adapter, for deployments without a database server.
type Store struct {
	db *gorm.DB
}

func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&resourceRow{}, &logRow{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ---- ResourceStore ----

func (s *Store) Create(ctx context.Context, r *domain.Resource) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	row, err := toRow(r)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}
	r.ID = row.ID
	return nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Resource, error) {
	var row resourceRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	return fromRow(&row)
}

func (s *Store) GetByName(ctx context.Context, name string) (*domain.Resource, error) {
	var row resourceRow
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get resource by name: %w", err)
	}
	return fromRow(&row)
}

func (s *Store) ListAll(ctx context.Context) ([]domain.Resource, error) {
	var rows []resourceRow
	if err := s.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return fromRows(rows)
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]domain.Resource, error) {
	var rows []resourceRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list resources by user: %w", err)
	}
	return fromRows(rows)
}

func (s *Store) Update(ctx context.Context, r *domain.Resource) error {
	row, err := toRow(r)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.db.WithContext(ctx).Delete(&resourceRow{}, id).Error; err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	return nil
}

// ---- LogStore ----

func (s *Store) Append(ctx context.Context, l *domain.Log) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	row := logRow{
		ResourceID: l.ResourceID,
		Status:     l.Status,
		Response:   l.Response,
		Endpoint:   l.Endpoint,
		DurationMS: l.DurationMS,
		Result:     l.Result,
		CreatedAt:  l.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	l.ID = row.ID
	return nil
}

func (s *Store) ListByResource(ctx context.Context, resourceID int64, limit int) ([]domain.Log, error) {
	q := s.db.WithContext(ctx).
		Where("resource_id = ?", resourceID).
		Order("created_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []logRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	out := make([]domain.Log, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Log{
			ID:         row.ID,
			ResourceID: row.ResourceID,
			Status:     row.Status,
			Response:   row.Response,
			Endpoint:   row.Endpoint,
			DurationMS: row.DurationMS,
			Result:     row.Result,
			CreatedAt:  row.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) DeleteByResource(ctx context.Context, resourceID int64) error {
	if err := s.db.WithContext(ctx).Where("resource_id = ?", resourceID).Delete(&logRow{}).Error; err != nil {
		return fmt.Errorf("delete logs: %w", err)
	}
	return nil
}

// ---- row mapping ----

func toRow(r *domain.Resource) (*resourceRow, error) {
	headers := ""
	if len(r.Headers) > 0 {
		b, err := json.Marshal(r.Headers)
		if err != nil {
			return nil, fmt.Errorf("encode headers: %w", err)
		}
		headers = string(b)
	}
	return &resourceRow{
		ID:        r.ID,
		Name:      r.Name,
		URL:       r.URL,
		Type:      string(r.Type),
		Interval:  r.Interval,
		UserID:    r.UserID,
		Headers:   headers,
		Frequency: r.Frequency,
		Period:    r.Period,
		CreatedAt: r.CreatedAt,
	}, nil
}

func fromRow(row *resourceRow) (*domain.Resource, error) {
	r := &domain.Resource{
		ID:        row.ID,
		Name:      row.Name,
		URL:       row.URL,
		Type:      domain.ProbeType(row.Type),
		Interval:  row.Interval,
		UserID:    row.UserID,
		Frequency: row.Frequency,
		Period:    row.Period,
		CreatedAt: row.CreatedAt,
	}
	if row.Headers != "" {
		if err := json.Unmarshal([]byte(row.Headers), &r.Headers); err != nil {
			return nil, fmt.Errorf("decode headers: %w", err)
		}
	}
	return r, nil
}

func fromRows(rows []resourceRow) ([]domain.Resource, error) {
	out := make([]domain.Resource, 0, len(rows))
	for i := range rows {
		r, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}
