package kiosk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomservice-agent/internal/model"
)

func TestMarkers_Get(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		stored    *model.KioskMarker
		patientID int64
		wantNil   bool
		wantKept  bool
	}{
		{name: "none stored", patientID: 70, wantNil: true},
		{
			name:      "fresh for same patient",
			stored:    &model.KioskMarker{DeviceUID: testDevice, HasSeenWelcome: true, CurrentPatientID: 70, LastActivityAt: now.Add(-29 * time.Minute)},
			patientID: 70,
			wantKept:  true,
		},
		{
			name:      "expired",
			stored:    &model.KioskMarker{DeviceUID: testDevice, HasSeenWelcome: true, CurrentPatientID: 70, LastActivityAt: now.Add(-31 * time.Minute)},
			patientID: 70,
			wantNil:   true,
		},
		{
			name:      "other patient",
			stored:    &model.KioskMarker{DeviceUID: testDevice, HasSeenWelcome: true, CurrentPatientID: 71, LastActivityAt: now},
			patientID: 70,
			wantNil:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newMemStore()
			if tt.stored != nil {
				require.NoError(t, st.SaveMarker(ctx, tt.stored))
			}
			m := NewMarkers(testDevice, st, 30*time.Minute)
			m.now = func() time.Time { return now }

			marker, err := m.Get(ctx, tt.patientID)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, marker)
			} else {
				require.NotNil(t, marker)
				assert.True(t, marker.HasSeenWelcome)
			}
			assert.Equal(t, tt.wantKept, st.hasMarker(testDevice))
		})
	}
}

func TestMarkers_TouchAndBind(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	m := NewMarkers(testDevice, st, 30*time.Minute)
	m.now = func() time.Time { return now }

	marker, fresh, err := m.Bind(ctx, 70)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.False(t, marker.HasSeenWelcome)

	require.NoError(t, m.MarkWelcomeSeen(ctx, 70))

	// Activity keeps the marker alive past the original expiry.
	now = now.Add(20 * time.Minute)
	require.NoError(t, m.Touch(ctx, 70))
	now = now.Add(20 * time.Minute)

	marker, fresh, err = m.Bind(ctx, 70)
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.True(t, marker.HasSeenWelcome)

	require.NoError(t, m.Reset(ctx))
	assert.False(t, st.hasMarker(testDevice))
}
