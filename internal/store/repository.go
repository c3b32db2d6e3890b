// Package store persists users, orders and support requests.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vintoniuk/anadeabot/internal/conversation"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/checkpoint"
)

// ErrUserNotFound is returned for an unknown external id.
var ErrUserNotFound = errors.New("user not found")

// Repository is the gorm-backed business store.
type Repository struct {
	db          *gorm.DB
	checkpoints checkpoint.Store
	logger      *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithCheckpoints makes DeleteUser also forget the user's conversation.
func WithCheckpoints(s checkpoint.Store) Option {
	return func(r *Repository) { r.checkpoints = s }
}

// WithLogger sets the repository logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// NewRepository wraps an open gorm handle.
func NewRepository(db *gorm.DB, opts ...Option) *Repository {
	r := &Repository{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OpenPostgres opens a gorm handle on dsn. SQL logging is silenced; the
// repository logs its own operations.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// AutoMigrate creates the tables from the models. Production schemas come
// from the SQL migrations; this serves tests and local SQLite use.
func (r *Repository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&User{}, &Order{}, &Request{})
}

// EnsureUser returns the user with externalID, creating it if needed.
func (r *Repository) EnsureUser(ctx context.Context, externalID string) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).
		Where(User{ExternalID: externalID}).
		FirstOrCreate(&u).Error
	if err != nil {
		return nil, fmt.Errorf("ensure user %s: %w", externalID, err)
	}
	return &u, nil
}

// FindUser returns the user with externalID.
func (r *Repository) FindUser(ctx context.Context, externalID string) (*User, error) {
	return findUser(r.db.WithContext(ctx), externalID)
}

func findUser(tx *gorm.DB, externalID string) (*User, error) {
	var u User
	err := tx.Where("external_id = ?", externalID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, externalID)
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", externalID, err)
	}
	return &u, nil
}

// DeleteUser removes the user with their orders, requests and checkpoint.
// Deleting an unknown user is not an error.
func (r *Repository) DeleteUser(ctx context.Context, externalID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := findUser(tx, externalID)
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", u.ID).Delete(&Order{}).Error; err != nil {
			return fmt.Errorf("delete orders: %w", err)
		}
		if err := tx.Where("user_id = ?", u.ID).Delete(&Request{}).Error; err != nil {
			return fmt.Errorf("delete requests: %w", err)
		}
		if err := tx.Delete(u).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if r.checkpoints != nil {
		if err := r.checkpoints.Delete(ctx, externalID); err != nil {
			return fmt.Errorf("delete checkpoint %s: %w", externalID, err)
		}
	}
	r.logger.Info("user deleted", "external_id", externalID)
	return nil
}

// PlaceOrder records an order. A second call with the same key is a no-op.
func (r *Repository) PlaceOrder(ctx context.Context, externalID, key string, d conversation.Design) error {
	u, err := r.FindUser(ctx, externalID)
	if err != nil {
		return err
	}
	o := Order{
		UserID:   u.ID,
		Key:      key,
		Color:    d.Color,
		Size:     d.Size,
		Style:    d.Style,
		Gender:   d.Gender,
		Printing: d.Printing,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, DoNothing: true}).
		Create(&o)
	if res.Error != nil {
		return fmt.Errorf("place order %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		r.logger.Debug("order already placed", "external_id", externalID, "key", key)
		return nil
	}
	r.logger.Info("order placed", "external_id", externalID, "key", key)
	return nil
}

// SubmitRequest records a support request. A second call with the same key
// is a no-op.
func (r *Repository) SubmitRequest(ctx context.Context, externalID, key, details string) error {
	u, err := r.FindUser(ctx, externalID)
	if err != nil {
		return err
	}
	req := Request{UserID: u.ID, Key: key, Details: details}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, DoNothing: true}).
		Create(&req)
	if res.Error != nil {
		return fmt.Errorf("submit request %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		r.logger.Debug("support request already submitted", "external_id", externalID, "key", key)
		return nil
	}
	r.logger.Info("support request submitted", "external_id", externalID, "key", key)
	return nil
}

// Orders returns the user's orders, oldest first.
func (r *Repository) Orders(ctx context.Context, externalID string) ([]Order, error) {
	u, err := r.FindUser(ctx, externalID)
	if err != nil {
		return nil, err
	}
	var orders []Order
	if err := r.db.WithContext(ctx).Where("user_id = ?", u.ID).Order("placed_at, key").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Requests returns the user's support requests, oldest first.
func (r *Repository) Requests(ctx context.Context, externalID string) ([]Request, error) {
	u, err := r.FindUser(ctx, externalID)
	if err != nil {
		return nil, err
	}
	var reqs []Request
	if err := r.db.WithContext(ctx).Where("user_id = ?", u.ID).Order("submitted_at, key").Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return reqs, nil
}
