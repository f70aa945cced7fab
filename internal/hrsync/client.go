package hrsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"BranchLMS/internal/config"
	"BranchLMS/internal/domain"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Employee is one record of the HR directory.
type Employee struct {
	EmpCode   string `json:"emp_code" validate:"required"`
	Name      string `json:"name"`
	Email     string `json:"email" validate:"omitempty,email"`
	RoleName  string `json:"role_name"`
	StoreName string `json:"store_name"`
	StoreCode string `json:"store_code"`
	Phone     string `json:"phone"`
}

type employeeRangeRequest struct {
	StartEmpID string `json:"startEmpId"`
	EndEmpID   string `json:"endEmpId"`
}

type employeeRangeResponse struct {
	Data []Employee `json:"data"`
}

// StatusError is a non-retryable HTTP failure from the HR API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hr api responded %d: %s", e.Code, e.Body)
}

// Client calls the HR employee-directory API. Requests are paced by a token
// bucket and retried only on network errors and 5xx responses.
type Client struct {
	baseURL     string
	apiKey      string
	http        *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration
	log         *zap.Logger
}

func NewClient(cfg *config.Config, log *zap.Logger) *Client {
	hr := cfg.HR
	limit := rate.Inf
	if hr.RatePerSec > 0 {
		limit = rate.Limit(hr.RatePerSec)
	}
	burst := hr.Burst
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL:     hr.APIURL,
		apiKey:      hr.APIKey,
		http:        &http.Client{Timeout: hr.Timeout},
		limiter:     rate.NewLimiter(limit, burst),
		maxAttempts: max(hr.MaxAttempts, 1),
		backoff:     hr.RetryBackoff,
		log:         log.Named("hr-client"),
	}
}

// FetchEmployeeRange returns the employees whose codes fall in [start, end].
// After the last failed attempt the error is a *domain.TransientIOError.
func (c *Client) FetchEmployeeRange(ctx context.Context, start, end string) ([]Employee, error) {
	body, err := json.Marshal(employeeRangeRequest{StartEmpID: start, EndEmpID: end})
	if err != nil {
		return nil, errors.Wrap(err, "marshal employee range request")
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "wait for hr api rate limit")
		}

		employees, retry, err := c.post(ctx, body)
		if err == nil {
			return employees, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		c.log.Warn("hr api request failed",
			zap.Int("attempt", attempt), zap.Int("maxAttempts", c.maxAttempts),
			zap.String("start", start), zap.String("end", end), zap.Error(err))

		if attempt < c.maxAttempts && c.backoff > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}
	}
	return nil, &domain.TransientIOError{Op: "fetch employee range", Err: lastErr}
}

// post performs one request and reports whether a failure may be retried.
func (c *Client) post(ctx context.Context, body []byte) ([]Employee, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/employee_range", bytes.NewReader(body))
	if err != nil {
		return nil, false, errors.Wrap(err, "create hr request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, errors.Wrap(err, "send hr request")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		serr := &StatusError{Code: resp.StatusCode, Body: string(snippet)}
		return nil, resp.StatusCode >= 500, serr
	}

	var out employeeRangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, errors.Wrap(err, "decode hr response")
	}
	return out.Data, false, nil
}
