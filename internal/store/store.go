package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"signal-relay-go/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Filter narrows a transaction query. An empty Name matches every instrument.
type Filter struct {
	Name string
}

// Store is the journal and allocation persistence used by the trade handlers and the dashboard.
type Store interface {
	Append(ctx context.Context, rec *models.TransactionRecord) error
	Query(ctx context.Context, filter Filter) ([]models.TransactionRecord, error)
	List(ctx context.Context) ([]models.TransactionRecord, error)
	DeleteTransactions(ctx context.Context, name string) error

	UpsertAllocation(ctx context.Context, name string, usdtAmount decimal.Decimal) (bool, error)
	GetAllocation(ctx context.Context, name string) (*models.AllocationRecord, error)
	ListAllocations(ctx context.Context) ([]models.AllocationRecord, error)
	DeleteAllocation(ctx context.Context, name string) error

	Health(ctx context.Context) Health
	SeedTestData(ctx context.Context, now time.Time, rng *rand.Rand) (int, error)
}

// Health is the dashboard's view of database connectivity.
type Health struct {
	DatabaseStatus string `json:"databaseStatus"`
	ItemCount      int64  `json:"itemCount"`
	Connections    int    `json:"connections"`
}

// GormStore implements Store on top of gorm.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// ensure GormStore implements the interface
var _ Store = (*GormStore)(nil)

// NewGormStore wraps an already migrated database.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Append writes a new journal row. A zero Datetime is stamped with the current time.
func (s *GormStore) Append(ctx context.Context, rec *models.TransactionRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.Datetime.IsZero() {
		rec.Datetime = s.now()
	} else {
		rec.Datetime = rec.Datetime.UTC()
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert transaction %s/%s: %w", rec.Name, rec.Action, err)
	}
	return nil
}

// Query returns every record matching filter in no particular order.
func (s *GormStore) Query(ctx context.Context, filter Filter) ([]models.TransactionRecord, error) {
	var out []models.TransactionRecord
	tx := s.db.WithContext(ctx)
	if filter.Name != "" {
		tx = tx.Where("name = ?", filter.Name)
	}
	if err := tx.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	return out, nil
}

// List returns the whole journal, most recent first.
func (s *GormStore) List(ctx context.Context) ([]models.TransactionRecord, error) {
	var out []models.TransactionRecord
	if err := s.db.WithContext(ctx).Order("datetime desc").Order("id desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

// IsPurgeAll reports whether name addresses the whole journal.
func IsPurgeAll(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || strings.EqualFold(name, "all")
}

// DeleteTransactions purges one instrument's rows, or everything for "" / "all".
func (s *GormStore) DeleteTransactions(ctx context.Context, name string) error {
	tx := s.db.WithContext(ctx)
	if IsPurgeAll(name) {
		tx = tx.Session(&gorm.Session{AllowGlobalUpdate: true})
	} else {
		tx = tx.Where("name = ?", name)
	}
	if err := tx.Delete(&models.TransactionRecord{}).Error; err != nil {
		return fmt.Errorf("delete transactions %q: %w", name, err)
	}
	return nil
}

// UpsertAllocation sets the allocation for name, replacing any previous amount.
// It reports whether a new row was created.
func (s *GormStore) UpsertAllocation(ctx context.Context, name string, usdtAmount decimal.Decimal) (bool, error) {
	if strings.TrimSpace(name) == "" {
		return false, fmt.Errorf("allocation name is empty")
	}
	if usdtAmount.IsNegative() {
		return false, fmt.Errorf("allocation amount %s is negative", usdtAmount)
	}

	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.AllocationRecord{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		created = count == 0

		rec := models.AllocationRecord{Name: name, UsdtAmount: models.NewAmount(usdtAmount), UpdatedAt: s.now()}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"usdt_amount", "updated_at"}),
		}).Create(&rec).Error
	})
	if err != nil {
		return false, fmt.Errorf("upsert allocation %s: %w", name, err)
	}
	return created, nil
}

// GetAllocation returns the allocation for name, or nil when none is stored.
func (s *GormStore) GetAllocation(ctx context.Context, name string) (*models.AllocationRecord, error) {
	var rec models.AllocationRecord
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get allocation %s: %w", name, err)
	}
	return &rec, nil
}

// ListAllocations returns every allocation ordered by name.
func (s *GormStore) ListAllocations(ctx context.Context) ([]models.AllocationRecord, error) {
	var out []models.AllocationRecord
	if err := s.db.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	return out, nil
}

// DeleteAllocation removes the allocation for name. Deleting a missing name is not an error.
func (s *GormStore) DeleteAllocation(ctx context.Context, name string) error {
	if err := s.db.WithContext(ctx).Where("name = ?", name).Delete(&models.AllocationRecord{}).Error; err != nil {
		return fmt.Errorf("delete allocation %s: %w", name, err)
	}
	return nil
}

// Health pings the database and counts journal rows. A failed count reports
// the database as disconnected.
func (s *GormStore) Health(ctx context.Context) Health {
	h := Health{DatabaseStatus: "Disconnected"}

	sqlDB, err := s.db.DB()
	if err != nil {
		return h
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return h
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.TransactionRecord{}).Count(&count).Error; err != nil {
		return h
	}
	h.DatabaseStatus = "Connected"
	h.ItemCount = count
	h.Connections = sqlDB.Stats().OpenConnections
	return h
}
