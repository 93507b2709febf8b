package dashboard

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawPortfolioJSON = `{
  "positions": [
    {
      "symbol": "XYZ",
      "strike": 63,
      "expiry": "Jul-18-2025",
      "type": "call",
      "contracts": -4,
      "premium": 3.08,
      "current_value": 6.01
    }
  ],
  "shares": [
    {"symbol": "XYZ", "quantity": 400, "cost_basis": 59}
  ],
  "technical_levels": {
    "XYZ": [{"kind": "resistance", "price": 72.5}]
  }
}`

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testServer(t *testing.T, authToken string) *Server {
	t.Helper()

	path := filepath.Join(t.TempDir(), "portfolio.json")
	require.NoError(t, os.WriteFile(path, []byte(rawPortfolioJSON), 0o600))

	provider := &fixedProvider{mid: 6.01, delta: 0.62, spots: map[string]float64{"XYZ": 67.21}}
	return NewServer(Config{
		Port:          0,
		AuthToken:     authToken,
		PortfolioPath: path,
	}, testAnalyzer(provider), quietLogger())
}

func TestServerPortfolioEndpoint(t *testing.T) {
	srv := testServer(t, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var result AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Positions, 1)
	assert.Equal(t, "XYZ", result.Positions[0].Position.Symbol)
	assert.NotEmpty(t, result.Strategies)
}

func TestServerAuthToken(t *testing.T) {
	srv := testServer(t, "secret")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
	req.Header.Set("X-Auth-Token", "secret")
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Query-parameter fallback for browser clients.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio?token=secret", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerHealthExemptFromAuth(t *testing.T) {
	srv := testServer(t, "secret")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServerMissingPortfolioFile(t *testing.T) {
	provider := &fixedProvider{spots: map[string]float64{}}
	srv := NewServer(Config{
		PortfolioPath: filepath.Join(t.TempDir(), "nope.json"),
	}, testAnalyzer(provider), quietLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
