package kiosk

import (
	"context"
	"errors"
	"time"

	"roomservice-agent/internal/model"
	"roomservice-agent/internal/store"
)

// MarkerStore persists the per-device welcome marker.
type MarkerStore interface {
	Marker(ctx context.Context, deviceUID string) (*model.KioskMarker, error)
	SaveMarker(ctx context.Context, marker *model.KioskMarker) error
	DeleteMarker(ctx context.Context, deviceUID string) error
}

// Markers tracks whether the current patient has passed the welcome screen.
// A marker is only valid for the patient it was written for and expires after a period
// without activity.
type Markers struct {
	deviceUID string
	store     MarkerStore
	expiry    time.Duration
	now       func() time.Time
}

func NewMarkers(deviceUID string, store MarkerStore, expiry time.Duration) *Markers {
	if expiry <= 0 {
		expiry = 30 * time.Minute
	}
	return &Markers{deviceUID: deviceUID, store: store, expiry: expiry, now: time.Now}
}

// Get returns the marker for patientID, or nil when there is none. An expired marker or one
// bound to another patient is deleted.
func (m *Markers) Get(ctx context.Context, patientID int64) (*model.KioskMarker, error) {
	marker, err := m.store.Marker(ctx, m.deviceUID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if marker.CurrentPatientID != patientID || m.now().Sub(marker.LastActivityAt) > m.expiry {
		if err := m.store.DeleteMarker(ctx, m.deviceUID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return marker, nil
}

// Bind makes sure a marker exists for patientID. It reports whether a fresh one was written,
// which means any state left from a previous patient or an abandoned session is stale.
func (m *Markers) Bind(ctx context.Context, patientID int64) (*model.KioskMarker, bool, error) {
	marker, err := m.Get(ctx, patientID)
	if err != nil {
		return nil, false, err
	}
	if marker != nil {
		return marker, false, nil
	}
	marker = &model.KioskMarker{
		DeviceUID:        m.deviceUID,
		CurrentPatientID: patientID,
		LastActivityAt:   m.now(),
	}
	if err := m.store.SaveMarker(ctx, marker); err != nil {
		return nil, false, err
	}
	return marker, true, nil
}

func (m *Markers) MarkWelcomeSeen(ctx context.Context, patientID int64) error {
	return m.store.SaveMarker(ctx, &model.KioskMarker{
		DeviceUID:        m.deviceUID,
		HasSeenWelcome:   true,
		CurrentPatientID: patientID,
		LastActivityAt:   m.now(),
	})
}

// Touch records patient activity, keeping the marker alive.
func (m *Markers) Touch(ctx context.Context, patientID int64) error {
	marker, _, err := m.Bind(ctx, patientID)
	if err != nil {
		return err
	}
	marker.LastActivityAt = m.now()
	return m.store.SaveMarker(ctx, marker)
}

func (m *Markers) Reset(ctx context.Context) error {
	return m.store.DeleteMarker(ctx, m.deviceUID)
}
