package store

import (
	"context"
	"database/sql/driver"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"roomservice-agent/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// newSQLiteStore opens an isolated in-memory sqlite database per test.
func newSQLiteStore(t *testing.T) Store {
	name := strings.ReplaceAll(t.Name(), "/", "_")
	gormDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&model.CartItem{}, &model.KioskMarker{}, &model.PushSubscription{}))

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewGormStore(gormDB)
}

func TestGormStore_SetCartQuantity(t *testing.T) {
	testCases := []struct {
		name             string
		qty              int
		mockExpectations func(mock sqlmock.Sqlmock)
	}{
		{
			name: "positive quantity upserts the row",
			qty:  3,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "cart_items"`) + `.*ON CONFLICT \("device_uid","product_id"\) DO UPDATE`).
					WithArgs("ipad-101", 7, 3, Any{}).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "zero quantity deletes the row",
			qty:  0,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "cart_items" WHERE device_uid = $1 AND product_id = $2`)).
					WithArgs("ipad-101", 7).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "negative quantity is treated as zero",
			qty:  -2,
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "cart_items"`)).
					WithArgs("ipad-101", 7).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			s := NewGormStore(gormDB)

			tc.mockExpectations(mock)

			err := s.SetCartQuantity(context.Background(), "ipad-101", 7, tc.qty)
			assert.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_CartItems_SkipsEmptyRows(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "cart_items" WHERE device_uid = $1`)).
		WithArgs("ipad-101").
		WillReturnRows(sqlmock.NewRows([]string{"device_uid", "product_id", "quantity", "updated_at"}).
			AddRow("ipad-101", 1, 2, time.Now()).
			AddRow("ipad-101", 2, 0, time.Now()))

	items, err := s.CartItems(context.Background(), "ipad-101")
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 2}, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ClearCart_WrapsError(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "cart_items" WHERE device_uid = $1`)).
		WithArgs("ipad-101").
		WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	err := s.ClearCart(context.Background(), "ipad-101")
	assert.ErrorContains(t, err, "failed to clear cart for ipad-101")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_CartRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	require.NoError(t, s.SetCartQuantity(ctx, "ipad-101", 42, 3))
	require.NoError(t, s.SetCartQuantity(ctx, "ipad-202", 42, 1))

	items, err := s.CartItems(ctx, "ipad-101")
	require.NoError(t, err)
	assert.Equal(t, 3, items[42])

	require.NoError(t, s.SetCartQuantity(ctx, "ipad-101", 42, 5))
	items, err = s.CartItems(ctx, "ipad-101")
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{42: 5}, items)

	require.NoError(t, s.SetCartQuantity(ctx, "ipad-101", 42, 0))
	items, err = s.CartItems(ctx, "ipad-101")
	require.NoError(t, err)
	assert.Empty(t, items)

	var count int64
	require.NoError(t, s.DB().Model(&model.CartItem{}).Where("device_uid = ?", "ipad-101").Count(&count).Error)
	assert.Zero(t, count)

	// Other devices are untouched.
	other, err := s.CartItems(ctx, "ipad-202")
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{42: 1}, other)
}

func TestGormStore_Markers(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	_, err := s.Marker(ctx, "ipad-101")
	assert.ErrorIs(t, err, ErrNotFound)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.SaveMarker(ctx, &model.KioskMarker{
		DeviceUID: "ipad-101", HasSeenWelcome: true, CurrentPatientID: 9, LastActivityAt: now,
	}))
	require.NoError(t, s.SaveMarker(ctx, &model.KioskMarker{
		DeviceUID: "ipad-101", HasSeenWelcome: true, CurrentPatientID: 10, LastActivityAt: now,
	}))

	marker, err := s.Marker(ctx, "ipad-101")
	require.NoError(t, err)
	assert.Equal(t, int64(10), marker.CurrentPatientID)
	assert.True(t, marker.HasSeenWelcome)

	require.NoError(t, s.DeleteMarker(ctx, "ipad-101"))
	_, err = s.Marker(ctx, "ipad-101")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_Subscriptions(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	require.NoError(t, s.UpsertSubscription(ctx, &model.PushSubscription{Endpoint: "https://push/1", P256DH: "a", Auth: "b"}))
	require.NoError(t, s.UpsertSubscription(ctx, &model.PushSubscription{Endpoint: "https://push/1", P256DH: "c", Auth: "d"}))

	subs, err := s.Subscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "c", subs[0].P256DH)

	sub, err := s.Subscription(ctx, "https://push/1")
	require.NoError(t, err)
	assert.Equal(t, "d", sub.Auth)

	require.NoError(t, s.DeleteSubscription(ctx, "https://push/1"))
	_, err = s.Subscription(ctx, "https://push/1")
	assert.ErrorIs(t, err, ErrNotFound)
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
