package qstash

import (
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

	"github.com/NordCoder/Uptimer/internal/domain/schedule"
	"github.com/NordCoder/Uptimer/internal/obs"
	"github.com/NordCoder/Uptimer/internal/obs/retry"
)

var _ schedule.Client = (*Client)(nil)

// APIError is a non-2xx answer from the scheduler API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("qstash: %d %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool { return target == schedule.ErrScheduler }

func transient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests
	}
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, schedule.ErrNotFound)
}

// Client talks to the hosted scheduler's v2 REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	policy  retry.Policy
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second, Transport: obs.HTTPTransport(http.DefaultTransport)},
		policy:  retry.SchedulerAPIPolicy(transient),
	}
}

type wireSchedule struct {
	ScheduleID      string `json:"scheduleId"`
	Cron            string `json:"cron"`
	Destination     string `json:"destination"`
	Method          string `json:"method"`
	CreatedAt       int64  `json:"createdAt"`
	IsPaused        bool   `json:"isPaused"`
	Retries         *int   `json:"retries"`
	Callback        string `json:"callback"`
	FailureCallback string `json:"failureCallback"`
}

func (w wireSchedule) toDomain() schedule.Schedule {
	s := schedule.Schedule{
		ID:              w.ScheduleID,
		Cron:            w.Cron,
		Destination:     w.Destination,
		Method:          w.Method,
		Paused:          w.IsPaused,
		Retries:         schedule.DefaultRetries,
		Callback:        w.Callback,
		FailureCallback: w.FailureCallback,
		CreatedAt:       time.UnixMilli(w.CreatedAt).UTC(),
	}
	if s.Method == "" {
		s.Method = http.MethodPost
	}
	if w.Retries != nil {
		s.Retries = *w.Retries
	}
	return s
}

func (c *Client) List(ctx context.Context) ([]schedule.Schedule, error) {
	var raw []wireSchedule
	if err := c.do(ctx, http.MethodGet, "/v2/schedules", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]schedule.Schedule, 0, len(raw))
	for _, w := range raw {
		out = append(out, w.toDomain())
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id string) (*schedule.Schedule, error) {
	var w wireSchedule
	if err := c.do(ctx, http.MethodGet, "/v2/schedules/"+url.PathEscape(id), nil, &w); err != nil {
		return nil, err
	}
	s := w.toDomain()
	return &s, nil
}

func (c *Client) Create(ctx context.Context, req schedule.CreateRequest) (string, error) {
	h := http.Header{}
	h.Set("Upstash-Cron", req.Cron)
	h.Set("Upstash-Retries", strconv.Itoa(req.Retries))
	if req.FailureCallback != "" {
		h.Set("Upstash-Failure-Callback", req.FailureCallback)
	}

	var out struct {
		ScheduleID string `json:"scheduleId"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/schedules/"+req.Destination, h, &out); err != nil {
		return "", err
	}
	if out.ScheduleID == "" {
		return "", fmt.Errorf("%w: empty schedule id in response", schedule.ErrScheduler)
	}
	return out.ScheduleID, nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v2/schedules/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Pause(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/v2/schedules/"+url.PathEscape(id)+"/pause", nil, nil)
}

func (c *Client) Resume(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/v2/schedules/"+url.PathEscape(id)+"/resume", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, h http.Header, out any) error {
	return retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
		if err != nil {
			return err
		}
		for k, vs := range h {
			req.Header[k] = vs
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", schedule.ErrScheduler, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("%w: read body: %w", schedule.ErrScheduler, err)
		}
		if resp.StatusCode == http.StatusNotFound {
			return schedule.ErrNotFound
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
		}
		if out == nil || len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: decode response: %w", schedule.ErrScheduler, err)
		}
		return nil
	}, c.policy)
}

func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
