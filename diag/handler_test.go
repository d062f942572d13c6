package diag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/offsync/cache-common/manager"
	"github.com/offsync/cache-common/report"
	"github.com/offsync/cache-common/store"
)

func newTestEngine(t *testing.T) *manager.Manager[string] {
	config := manager.NewDefaultConfig()
	config.MaintenanceInterval = 1 * time.Hour
	config.Reporter = report.NewNilReporter()

	testManager, err := manager.NewManager[string](config)
	assert.NoError(t, err)

	usersStore, err := testManager.GetStore("users")
	assert.NoError(t, err)
	assert.NoError(t, usersStore.Set("u1", "alice", &store.SetOptions{Tags: []string{"org:1"}}))

	_, ok := usersStore.Get("u1")
	assert.True(t, ok)

	return testManager
}

func TestDiagHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("test GetHealth", testGetHealth)
	t.Run("test GetStatistics", testGetStatistics)
	t.Run("test GetDomainStatistics", testGetDomainStatistics)
	t.Run("test GetDomainStatisticsUnknown", testGetDomainStatisticsUnknown)
	t.Run("test Invalidate", testInvalidate)
	t.Run("test InvalidateBadRequest", testInvalidateBadRequest)
}

func testGetHealth(t *testing.T) {
	testManager := newTestEngine(t)
	defer testManager.Release()

	router := NewRouter(testManager)

	testManager.SetNetworkReachable(false)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)

	body := map[string]interface{}{}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["network_reachable"])
}

func testGetStatistics(t *testing.T) {
	testManager := newTestEngine(t)
	defer testManager.Release()

	router := NewRouter(testManager)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/statistics", nil)
	router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)

	body := struct {
		Global  store.Statistics            `json:"global"`
		Domains map[string]store.Statistics `json:"domains"`
	}{}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Global.Hits)
	assert.Contains(t, body.Domains, "users")
	assert.Equal(t, 1, body.Domains["users"].EntryCount)
}

func testGetDomainStatistics(t *testing.T) {
	testManager := newTestEngine(t)
	defer testManager.Release()

	router := NewRouter(testManager)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/statistics/users", nil)
	router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)

	statistics := store.Statistics{}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &statistics))
	assert.Equal(t, 1, statistics.EntryCount)
	assert.Equal(t, int64(1), statistics.Hits)
}

func testGetDomainStatisticsUnknown(t *testing.T) {
	testManager := newTestEngine(t)
	defer testManager.Release()

	router := NewRouter(testManager)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/statistics/nope", nil)
	router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func testInvalidate(t *testing.T) {
	testManager := newTestEngine(t)
	defer testManager.Release()

	router := NewRouter(testManager)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/invalidate", strings.NewReader(`{"tags":["org:1"]}`))
	request.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)

	body := map[string]interface{}{}
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["removed"])

	usersStore, err := testManager.GetStore("users")
	assert.NoError(t, err)
	_, ok := usersStore.Get("u1")
	assert.False(t, ok)
}

func testInvalidateBadRequest(t *testing.T) {
	testManager := newTestEngine(t)
	defer testManager.Release()

	router := NewRouter(testManager)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/invalidate", strings.NewReader(`{}`))
	request.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
