package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL+"/", 2*time.Second)
}

func TestActivePatient(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/public/kiosk/device/ipad-101/active-patient/", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{
			"success": true,
			"patient": {"id": 7, "full_name": "Ana Ruiz"},
			"room": {"code": "101", "floor": 1},
			"staff": {"full_name": "Luis Soto", "email": "luis@example.com"},
			"assignment_id": 33,
			"started_at": "2025-03-01T10:00:00.123456+00:00",
			"order_limits": {"DRINK": 2, "SNACK": null}
		}`))
	})

	p, err := client.ActivePatient(context.Background(), "ipad-101")
	require.NoError(t, err)
	assert.Equal(t, int64(33), p.AssignmentID)
	assert.Equal(t, int64(7), p.Patient.ID)
	assert.Equal(t, "Luis Soto", p.Staff.FullName)
	assert.True(t, p.CanOrder())
	assert.Equal(t, OrderLimits{CategoryDrink: 2}, p.OrderLimits)
}

func TestActivePatient_NotFound(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"No active patient assigned to this device","device_uid":"ipad-101"}`))
	})

	_, err := client.ActivePatient(context.Background(), "ipad-101")
	assert.ErrorIs(t, err, ErrNoPatient)
}

func TestActivePatient_ServerErrorIsNotNoPatient(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`upstream exploded`))
	})

	_, err := client.ActivePatient(context.Background(), "ipad-101")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoPatient))
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestCreateOrder(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/public/orders/create", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ipad-101", body["device_uid"])
		assert.Equal(t, []any{map[string]any{"product_id": float64(5), "quantity": float64(2)}}, body["items"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"order":{"id":90,"status":"PLACED","items":[{"product":5,"quantity":2,"category_type":"DRINK"}]}}`))
	})

	order, err := client.CreateOrder(context.Background(), "ipad-101", []CreateItem{{ProductID: 5, Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(90), order.ID)
	assert.Equal(t, StatusPlaced, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, CategoryDrink, order.Items[0].CategoryType)
}

func TestCreateOrder_LimitReached(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Has alcanzado tu límite de bebidas. Máximo permitido: 1","limit_reached":true,"category_type":"DRINK","max_allowed":1,"requested":2}`))
	})

	_, err := client.CreateOrder(context.Background(), "ipad-101", []CreateItem{{ProductID: 5, Quantity: 2}})
	require.Error(t, err)
	assert.True(t, IsLimitReached(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CategoryDrink, apiErr.CategoryType)
	assert.Equal(t, 1, apiErr.MaxAllowed)
}

func TestSubmitCompleteFeedback(t *testing.T) {
	testCases := []struct {
		name                 string
		status               int
		body                 string
		wantErr              bool
		wantAlreadySubmitted bool
	}{
		{name: "created", status: http.StatusCreated, body: `{"success":true}`},
		{name: "already submitted", status: http.StatusBadRequest, body: `{"error":"Feedback already submitted for this patient assignment"}`, wantErr: true, wantAlreadySubmitted: true},
		{name: "other bad request", status: http.StatusBadRequest, body: `{"error":"Survey is not enabled"}`, wantErr: true},
		{name: "already submitted but server error", status: http.StatusInternalServerError, body: `{"error":"already submitted"}`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/public/feedbacks/", r.URL.Path)
				var body map[string]any
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, map[string]any{"11": map[string]any{"5": float64(4)}}, body["product_ratings"])
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			err := client.SubmitCompleteFeedback(context.Background(), CompleteFeedback{
				PatientAssignmentID: 33,
				ProductRatings:      ProductRatings{11: {5: 4}},
				StaffRating:         5,
				StayRating:          4,
			})
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Equal(t, tc.wantAlreadySubmitted, IsAlreadySubmitted(err))
		})
	}
}

func TestAPIError_FieldValidation(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"satisfaction_rating":["Ensure this value is less than or equal to 5."],"device_uid":"This field is required."}`))
	})

	err := client.SubmitOrderFeedback(context.Background(), 4, OrderFeedback{DeviceUID: "ipad-101", SatisfactionRating: 9})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, []string{"Ensure this value is less than or equal to 5."}, apiErr.Fields["satisfaction_rating"])
	assert.Equal(t, []string{"This field is required."}, apiErr.Fields["device_uid"])
	assert.Equal(t, "device_uid: This field is required.; satisfaction_rating: Ensure this value is less than or equal to 5.", apiErr.Message)
}

func TestStaffCallsSendBearerToken(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer staff-token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/orders/queue":
			assert.Equal(t, "PLACED,PREPARING", r.URL.Query().Get("status"))
			_, _ = w.Write([]byte(`{"success":true,"count":1,"orders":[{"id":1,"status":"PLACED","room_code":"204"}]}`))
		case "/api/clinic/patient-assignments/33/update_limits/":
			assert.Equal(t, http.MethodPatch, r.Method)
			var body map[string]int
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]int{"DRINK": 1, "SNACK": 3}, body)
			_, _ = w.Write([]byte(`{}`))
		case "/api/orders/1/status":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "PREPARING", body["to_status"])
			_, _ = w.Write([]byte(`{"success":true,"order":{"id":1,"status":"PREPARING"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}).WithToken("staff-token")

	orders, err := client.OrderQueue(context.Background(), StatusPlaced, StatusPreparing)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "204", orders[0].RoomCode)

	require.NoError(t, client.UpdateLimits(context.Background(), 33, OrderLimits{CategoryDrink: 1, CategorySnack: 3}))

	order, err := client.ChangeOrderStatus(context.Background(), 1, StatusPreparing, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPreparing, order.Status)
}

func TestProducts_AcceptsPaginatedAndPlain(t *testing.T) {
	for name, body := range map[string]string{
		"plain":     `[{"id":1,"name":"Agua","category_type":"DRINK"}]`,
		"paginated": `{"count":1,"results":[{"id":1,"name":"Agua","category_type":"DRINK"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			products, err := client.Products(context.Background())
			require.NoError(t, err)
			require.Len(t, products, 1)
			assert.Equal(t, CategoryDrink, products[0].CategoryType)
		})
	}
}

func TestOrderLimits_Limit(t *testing.T) {
	limits := OrderLimits{CategoryDrink: 2, CategorySnack: 0, CategoryFood: 1}

	l, ok := limits.Limit(CategoryDrink)
	assert.True(t, ok)
	assert.Equal(t, 2, l)

	_, ok = limits.Limit(CategorySnack)
	assert.False(t, ok, "zero means uncapped")
	_, ok = limits.Limit(CategoryFood)
	assert.False(t, ok, "food is never capped")
	_, ok = limits.Limit(CategoryOther)
	assert.False(t, ok)
}
