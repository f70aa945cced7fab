package hrsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"BranchLMS/pkg/middleware"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newHandlerServer(s *Scheduler) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = middleware.NewHTTPErrorHandler(zap.NewNop())
	NewHandler(s).Register(e.Group("/api"))
	return e
}

func do(e *echo.Echo, method string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, "/api/hr/sync", nil))
	return rec
}

func TestHandlerTriggerAndStatus(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string][]Employee{
		"EMP1": {{EmpCode: "EMP1", Name: "Anu", RoleName: "Store Manager", StoreName: "SG Kottayam"}},
	}}
	syncer, st := newTestSyncer(t, fetcher)
	sched := NewScheduler(syncer, zap.NewNop())
	t.Cleanup(func() { _ = sched.Stop(context.Background()) })
	e := newHandlerServer(sched)

	rec := do(e, http.MethodGet)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled":true,"running":false,"last":null}`, rec.Body.String())

	rec = do(e, http.MethodPost)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool { return syncer.LastSummary() != nil }, 2*time.Second, 10*time.Millisecond)
	u, err := st.FindUserByEmpID(context.Background(), "EMP1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "12", u.LocCode)

	rec = do(e, http.MethodGet)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Last *Summary `json:"last"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.NotNil(t, status.Last)
	assert.Equal(t, 1, status.Last.Created)
}

func TestHandlerTrigger_Conflicts(t *testing.T) {
	syncer, _ := newTestSyncer(t, &fakeFetcher{})
	sched := NewScheduler(syncer, zap.NewNop())
	t.Cleanup(func() { _ = sched.Stop(context.Background()) })
	e := newHandlerServer(sched)

	syncer.running.Lock()
	rec := do(e, http.MethodPost)
	syncer.running.Unlock()
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrSyncInProgress.Error())

	syncer.cfg.APIURL = ""
	rec = do(e, http.MethodPost)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrSyncDisabled.Error())
}
