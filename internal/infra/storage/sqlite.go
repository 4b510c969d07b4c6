package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"order_go/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage is the durable order record store backed by SQLite.
type Storage struct {
	db  *gorm.DB
	now func() time.Time
}

var _ domain.OrderStore = (*Storage)(nil)

// NewStorage opens (or creates) the database at path and migrates the schema.
func NewStorage(path string) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	// single writer; SQLite serializes writes anyway
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&domain.Order{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the underlying connection.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database answers.
func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Append persists a new order, assigning its id and timestamps.
func (s *Storage) Append(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	o := *order
	if o.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate order id: %w", err)
		}
		o.ID = id.String()
	}
	if err := o.CheckInvariants(); err != nil {
		return nil, err
	}

	now := s.now()
	o.CreatedAt = now
	o.UpdatedAt = now

	if err := s.db.WithContext(ctx).Create(&o).Error; err != nil {
		return nil, fmt.Errorf("append order: %w", err)
	}
	return &o, nil
}

// GetByID returns the order. An order owned by another account is reported as not found.
// owner "" skips the ownership check.
func (s *Storage) GetByID(ctx context.Context, id, owner string) (*domain.Order, error) {
	var o domain.Order
	q := s.db.WithContext(ctx).Where("id = ?", id)
	if owner != "" {
		q = q.Where("account_id = ?", owner)
	}

	err := q.First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return &o, nil
}

// List returns one page of owner's orders, newest first, and the total match count.
func (s *Storage) List(ctx context.Context, owner string, filter domain.ListFilter, page domain.Page) ([]domain.Order, int64, error) {
	page = page.Normalize()

	q := s.db.WithContext(ctx).Model(&domain.Order{})
	if owner != "" {
		q = q.Where("account_id = ?", owner)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	orders := make([]domain.Order, 0, page.PageSize)
	err := q.Order("created_at DESC").Order("id DESC").
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// Cancel moves a PENDING order to CANCELLED.
func (s *Storage) Cancel(ctx context.Context, id, owner string) (*domain.Order, error) {
	o, err := s.GetByID(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	if !o.IsOpen() {
		return nil, fmt.Errorf("%w: cannot cancel order %s in status %s", domain.ErrInvalidOperation, id, o.Status)
	}

	return s.transition(ctx, id, map[string]any{
		"status": domain.OrderStatusCancelled,
	})
}

// Resolve moves a PENDING order to FILLED or REJECTED. A terminal order is never touched.
func (s *Storage) Resolve(ctx context.Context, id string, r domain.Resolution) (*domain.Order, error) {
	switch r.Status {
	case domain.OrderStatusFilled:
		if !r.ExecutedPrice.Valid || !r.ExecutedPrice.Decimal.IsPositive() {
			return nil, fmt.Errorf("%w: FILLED needs a positive executed price", domain.ErrInvalidOperation)
		}
	case domain.OrderStatusRejected:
		if r.ExecutedPrice.Valid {
			return nil, fmt.Errorf("%w: REJECTED must not carry an executed price", domain.ErrInvalidOperation)
		}
	default:
		return nil, fmt.Errorf("%w: cannot resolve to %s", domain.ErrInvalidOperation, r.Status)
	}

	return s.transition(ctx, id, map[string]any{
		"status":         r.Status,
		"executed_price": r.ExecutedPrice,
		"reject_reason":  r.Reason,
	})
}

// transition applies fields with a conditional update guarded by status = PENDING.
func (s *Storage) transition(ctx context.Context, id string, fields map[string]any) (*domain.Order, error) {
	fields["updated_at"] = s.now()

	res := s.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND status = ?", id, domain.OrderStatusPending).
		Updates(fields)
	if res.Error != nil {
		return nil, fmt.Errorf("update order %s: %w", id, res.Error)
	}

	if res.RowsAffected == 0 {
		cur, err := s.GetByID(ctx, id, "")
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: order %s is already %s", domain.ErrInvalidOperation, id, cur.Status)
	}

	return s.GetByID(ctx, id, "")
}

// FilledHistory returns owner's FILLED orders, oldest first.
func (s *Storage) FilledHistory(ctx context.Context, owner string) ([]domain.Order, error) {
	var orders []domain.Order
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND status = ?", owner, domain.OrderStatusFilled).
		Order("created_at ASC").Order("id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("filled history: %w", err)
	}
	return orders, nil
}
