package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is the service's error envelope.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("%s (http %d): %s", e.Code, e.Status, e.Message)
}

type Client struct {
	baseURL string
	tenant  string
	http    *http.Client
}

func NewClient(baseURL, tenant string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tenant:  tenant,
		http:    &http.Client{Timeout: timeout},
	}
}

type Slot struct {
	Time      string `json:"time"`
	StartAt   string `json:"start_at"`
	Available bool   `json:"available"`
}

type DateAvailability struct {
	Date      string `json:"date"`
	Available bool   `json:"available"`
}

type Availability struct {
	Mode            string             `json:"mode"`
	Date            string             `json:"date"`
	DurationMinutes int                `json:"duration_minutes"`
	Slots           []Slot             `json:"slots"`
	Dates           []DateAvailability `json:"dates"`
}

type Customer struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type BookRequest struct {
	BranchID     string   `json:"branch_id"`
	ServiceID    string   `json:"service_id"`
	EmployeeID   string   `json:"employee_id,omitempty"`
	Date         string   `json:"date"`
	StartTime    string   `json:"start_time,omitempty"`
	CheckOutDate string   `json:"check_out_date,omitempty"`
	Customer     Customer `json:"customer"`
	Notes        string   `json:"notes,omitempty"`
	OptionIDs    []string `json:"option_ids,omitempty"`
}

type Booking struct {
	ID            string `json:"id"`
	BranchID      string `json:"branch_id"`
	ServiceID     string `json:"service_id"`
	EmployeeID    string `json:"employee_id"`
	ResourceID    string `json:"resource_id"`
	Mode          string `json:"mode"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	CheckOutDate  string `json:"check_out_date"`
	TotalNights   int    `json:"total_nights"`
	TotalPrice    string `json:"total_price"`
	DepositAmount string `json:"deposit_amount"`
	Status        string `json:"status"`
}

type AvailabilityParams struct {
	BranchID   string
	ServiceID  string
	EmployeeID string
	Date       string
	From       string
	To         string
	OptionIDs  []string
}

func (c *Client) Availability(ctx context.Context, p AvailabilityParams) (Availability, error) {
	q := url.Values{}
	q.Set("branch_id", p.BranchID)
	q.Set("service_id", p.ServiceID)
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("employee_id", p.EmployeeID)
	set("date", p.Date)
	set("from", p.From)
	set("to", p.To)
	set("option_ids", strings.Join(p.OptionIDs, ","))

	var out Availability
	err := c.do(ctx, http.MethodGet, "/api/v1/availability?"+q.Encode(), nil, nil, &out)
	return out, err
}

func (c *Client) Book(ctx context.Context, req BookRequest, idempotencyKey string) (Booking, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}
	var out Booking
	err := c.do(ctx, http.MethodPost, "/api/v1/bookings", req, headers, &out)
	return out, err
}

func (c *Client) Transition(ctx context.Context, bookingID, status, reason string) (Booking, error) {
	body := map[string]string{"booking_id": bookingID, "status": status, "reason": reason}
	var out Booking
	err := c.do(ctx, http.MethodPost, "/api/v1/bookings/transition", body, nil, &out)
	return out, err
}

// PostRaw sends a pre-built body, as a webhook sender would.
func (c *Client) PostRaw(ctx context.Context, path string, body []byte, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-Tenant-Id", c.tenant)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
