package hrsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"BranchLMS/internal/config"
	"BranchLMS/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(url string) *Client {
	return NewClient(&config.Config{HR: config.HRConfig{
		APIURL:      url,
		APIKey:      "hr-key",
		Timeout:     2 * time.Second,
		MaxAttempts: 3,
	}}, zap.NewNop())
}

func TestFetchEmployeeRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/employee_range", r.URL.Path)
		assert.Equal(t, "Bearer hr-key", r.Header.Get("Authorization"))

		var req employeeRangeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "EMP1", req.StartEmpID)
		assert.Equal(t, "EMP250", req.EndEmpID)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": []map[string]string{
			{"emp_code": "EMP7", "name": "Anu", "email": "anu@example.com", "role_name": "Store Manager", "store_name": "SG Kottayam"},
		}})
	}))
	defer srv.Close()

	employees, err := newTestClient(srv.URL).FetchEmployeeRange(context.Background(), "EMP1", "EMP250")
	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.Equal(t, "EMP7", employees[0].EmpCode)
	assert.Equal(t, "Store Manager", employees[0].RoleName)
	assert.Empty(t, employees[0].StoreCode)
}

func TestFetchEmployeeRange_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	employees, err := newTestClient(srv.URL).FetchEmployeeRange(context.Background(), "EMP1", "EMP2")
	require.NoError(t, err)
	assert.Empty(t, employees)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestFetchEmployeeRange_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchEmployeeRange(context.Background(), "EMP1", "EMP2")
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestFetchEmployeeRange_NoRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"startEmpId required"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchEmployeeRange(context.Background(), "", "")
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusUnprocessableEntity, serr.Code)
	assert.False(t, domain.IsTransient(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetchEmployeeRange_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).FetchEmployeeRange(context.Background(), "EMP1", "EMP2")
	assert.True(t, domain.IsTransient(err))
}
