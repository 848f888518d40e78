package status

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tgforward/internal/engine"
)

func TestRouter_ServesCurrentSnapshot(t *testing.T) {
	reporter := NewReporter(time.Now())
	reporter.SetRunning(true)
	reporter.Update(engine.Stats{Total: 5, Success: 4, Failed: 1})

	router := Router(zap.NewNop(), false, reporter)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":5`)
	assert.Contains(t, rec.Body.String(), `"running":true`)
}
