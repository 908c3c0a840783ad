package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"roomservice-agent/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for all durable device state.
type Store interface {
	DB() *gorm.DB

	CartItems(ctx context.Context, deviceUID string) (map[int64]int, error)
	SetCartQuantity(ctx context.Context, deviceUID string, productID int64, qty int) error
	ClearCart(ctx context.Context, deviceUID string) error

	Marker(ctx context.Context, deviceUID string) (*model.KioskMarker, error)
	SaveMarker(ctx context.Context, marker *model.KioskMarker) error
	DeleteMarker(ctx context.Context, deviceUID string) error

	Subscriptions(ctx context.Context) ([]model.PushSubscription, error)
	Subscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// CartItems returns the persisted cart of a device as product id -> quantity.
func (s *gormStore) CartItems(ctx context.Context, deviceUID string) (map[int64]int, error) {
	var rows []model.CartItem
	if err := s.db.WithContext(ctx).Where("device_uid = ?", deviceUID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load cart for %s: %w", deviceUID, err)
	}
	items := make(map[int64]int, len(rows))
	for _, r := range rows {
		if r.Quantity > 0 {
			items[r.ProductID] = r.Quantity
		}
	}
	return items, nil
}

// SetCartQuantity upserts one cart line. A quantity of zero or less removes the row.
func (s *gormStore) SetCartQuantity(ctx context.Context, deviceUID string, productID int64, qty int) error {
	if qty <= 0 {
		err := s.db.WithContext(ctx).
			Where("device_uid = ? AND product_id = ?", deviceUID, productID).
			Delete(&model.CartItem{}).Error
		if err != nil {
			return fmt.Errorf("failed to delete cart item %d for %s: %w", productID, deviceUID, err)
		}
		return nil
	}

	item := model.CartItem{
		DeviceUID: deviceUID,
		ProductID: productID,
		Quantity:  qty,
		UpdatedAt: time.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_uid"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(&item).Error
	if err != nil {
		return fmt.Errorf("failed to save cart item %d for %s: %w", productID, deviceUID, err)
	}
	return nil
}

// ClearCart removes every cart line of a device.
func (s *gormStore) ClearCart(ctx context.Context, deviceUID string) error {
	if err := s.db.WithContext(ctx).Where("device_uid = ?", deviceUID).Delete(&model.CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart for %s: %w", deviceUID, err)
	}
	return nil
}

// Marker returns the kiosk marker of a device, or ErrNotFound.
func (s *gormStore) Marker(ctx context.Context, deviceUID string) (*model.KioskMarker, error) {
	var marker model.KioskMarker
	err := s.db.WithContext(ctx).Where("device_uid = ?", deviceUID).Take(&marker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load marker for %s: %w", deviceUID, err)
	}
	return &marker, nil
}

func (s *gormStore) SaveMarker(ctx context.Context, marker *model.KioskMarker) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(marker).Error
	if err != nil {
		return fmt.Errorf("failed to save marker for %s: %w", marker.DeviceUID, err)
	}
	return nil
}

func (s *gormStore) DeleteMarker(ctx context.Context, deviceUID string) error {
	if err := s.db.WithContext(ctx).Where("device_uid = ?", deviceUID).Delete(&model.KioskMarker{}).Error; err != nil {
		return fmt.Errorf("failed to delete marker for %s: %w", deviceUID, err)
	}
	return nil
}

// Subscriptions lists every stored staff push subscription.
func (s *gormStore) Subscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *gormStore) Subscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscription creates a subscription or refreshes its keys.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
	}).Create(sub).Error
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Where("endpoint = ?", endpoint).Delete(&model.PushSubscription{}).Error
}
