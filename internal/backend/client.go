package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxErrorBody = 64 << 10

// Client talks to the room-service REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the public kiosk endpoints.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
	}
}

// WithToken returns a copy of the client that authenticates staff calls.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// ActivePatient returns the assignment bound to the device, or ErrNoPatient on 404.
func (c *Client) ActivePatient(ctx context.Context, deviceUID string) (ActivePatient, error) {
	var out ActivePatient
	path := "/api/public/kiosk/device/" + url.PathEscape(deviceUID) + "/active-patient/"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return ActivePatient{}, fmt.Errorf("%w: %v", ErrNoPatient, err)
		}
		return ActivePatient{}, err
	}
	return out, nil
}

// ActiveOrders lists the device's orders in PLACED, PREPARING or READY.
func (c *Client) ActiveOrders(ctx context.Context, deviceUID string) ([]Order, error) {
	query := url.Values{}
	query.Set("device_uid", deviceUID)
	var out ordersResponse
	if err := c.do(ctx, http.MethodGet, "/api/public/orders/active", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

// DeliveredOrders lists the delivered orders of an assignment, which the survey rates.
func (c *Client) DeliveredOrders(ctx context.Context, assignmentID int64) ([]Order, error) {
	query := url.Values{}
	query.Set("patient_assignment_id", strconv.FormatInt(assignmentID, 10))
	var out ordersResponse
	if err := c.do(ctx, http.MethodGet, "/api/public/orders/delivered", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (c *Client) CreateOrder(ctx context.Context, deviceUID string, items []CreateItem) (Order, error) {
	var out createOrderResponse
	req := createOrderRequest{DeviceUID: deviceUID, Items: items}
	if err := c.do(ctx, http.MethodPost, "/api/public/orders/create", nil, req, &out); err != nil {
		return Order{}, err
	}
	return out.Order, nil
}

// ChangeOrderStatus moves an order as staff.
func (c *Client) ChangeOrderStatus(ctx context.Context, orderID int64, to OrderStatus, note string) (Order, error) {
	var out createOrderResponse
	path := fmt.Sprintf("/api/orders/%d/status", orderID)
	if err := c.do(ctx, http.MethodPatch, path, nil, changeStatusRequest{ToStatus: to, Note: note}, &out); err != nil {
		return Order{}, err
	}
	return out.Order, nil
}

func (c *Client) SubmitOrderFeedback(ctx context.Context, orderID int64, fb OrderFeedback) error {
	path := fmt.Sprintf("/api/public/orders/%d/feedback", orderID)
	return c.do(ctx, http.MethodPost, path, nil, fb, nil)
}

func (c *Client) SubmitCompleteFeedback(ctx context.Context, fb CompleteFeedback) error {
	return c.do(ctx, http.MethodPost, "/api/public/feedbacks/", nil, fb, nil)
}

// UpdateLimits replaces the DRINK/SNACK ceilings of an assignment as staff.
func (c *Client) UpdateLimits(ctx context.Context, assignmentID int64, limits OrderLimits) error {
	path := fmt.Sprintf("/api/clinic/patient-assignments/%d/update_limits/", assignmentID)
	return c.do(ctx, http.MethodPatch, path, nil, limits, nil)
}

// Products lists the public catalog. Both plain and paginated bodies are accepted.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/public/products/", nil, nil, &raw); err != nil {
		return nil, err
	}

	var list []Product
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var page struct {
		Results []Product `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return page.Results, nil
}

// OrderQueue lists orders for staff, by default PLACED and PREPARING.
func (c *Client) OrderQueue(ctx context.Context, statuses ...OrderStatus) ([]Order, error) {
	query := url.Values{}
	if len(statuses) > 0 {
		parts := make([]string, len(statuses))
		for i, s := range statuses {
			parts[i] = string(s)
		}
		query.Set("status", strings.Join(parts, ","))
	}
	var out ordersResponse
	if err := c.do(ctx, http.MethodGet, "/api/orders/queue", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint = endpoint + "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return parseAPIError(method, path, resp.StatusCode, data)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
