package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/gotham-eye/internal/config"
	"github.com/stwalsh4118/gotham-eye/internal/logger"
	"github.com/stwalsh4118/gotham-eye/internal/models"
)

// newTestClient points a Client at a TLS test server.
func newTestClient(server *httptest.Server, maxRetries int) *Client {
	client := NewClient(config.SocrataConfig{
		AppToken:   "test-token",
		PageSize:   2,
		Timeout:    5 * time.Second,
		MaxRetries: maxRetries,
	}, logger.New("test", ""))
	client.httpClient = server.Client()
	return client
}

// serverDataset builds a Dataset whose host is the test server.
func serverDataset(server *httptest.Server) Dataset {
	return Dataset{
		City: models.CityNYC,
		Host: strings.TrimPrefix(server.URL, "https://"),
		ID:   "test-data",
		Fields: FieldPaths{
			SourceID:    "id",
			OccurredAt:  "occurred_at",
			Category:    "category",
			Description: "description",
			Latitude:    "latitude",
			Longitude:   "longitude",
		},
	}
}

func TestFetchPage_Success(t *testing.T) {
	// Arrange
	var gotPath string
	var gotQuery map[string]string
	var gotToken string

	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{
			"$limit":  r.URL.Query().Get("$limit"),
			"$offset": r.URL.Query().Get("$offset"),
			"$order":  r.URL.Query().Get("$order"),
			"$where":  r.URL.Query().Get("$where"),
		}
		gotToken = r.Header.Get("X-App-Token")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"1","occurred_at":"2025-06-01T12:30:00"},{"id":"2","occurred_at":"2025-06-01T13:00:00"}]`))
	}))
	defer server.Close()

	client := newTestClient(server, 0)
	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Act
	records, err := client.FetchPage(context.Background(), serverDataset(server), since, 40)

	// Assert
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0].Get("id").String())
	assert.Equal(t, "2", records[1].Get("id").String())

	assert.Equal(t, "/resource/test-data.json", gotPath)
	assert.Equal(t, "2", gotQuery["$limit"])
	assert.Equal(t, "40", gotQuery["$offset"])
	assert.Equal(t, "occurred_at ASC", gotQuery["$order"])
	assert.Equal(t, "occurred_at >= '2025-06-01T00:00:00'", gotQuery["$where"])
	assert.Equal(t, "test-token", gotToken)
}

func TestFetchPage_NoTimeFilterWithoutSince(t *testing.T) {
	// Arrange
	var hasWhere bool
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasWhere = r.URL.Query().Has("$where")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(server, 0)

	// Act
	records, err := client.FetchPage(context.Background(), serverDataset(server), time.Time{}, 0)

	// Assert
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.False(t, hasWhere)
}

func TestFetchPage_RetriesServerErrors(t *testing.T) {
	// Arrange
	calls := 0
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[{"id":"1"}]`))
	}))
	defer server.Close()

	client := newTestClient(server, 2)

	// Act
	records, err := client.FetchPage(context.Background(), serverDataset(server), time.Time{}, 0)

	// Assert
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 2, calls)
}

func TestFetchPage_RetriesRateLimit(t *testing.T) {
	// Arrange
	calls := 0
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[{"id":"1"}]`))
	}))
	defer server.Close()

	client := newTestClient(server, 2)

	// Act
	records, err := client.FetchPage(context.Background(), serverDataset(server), time.Time{}, 0)

	// Assert
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 2, calls)
}

func TestFetchPage_ClientErrorIsNotRetried(t *testing.T) {
	// Arrange
	calls := 0
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(server, 3)

	// Act
	records, err := client.FetchPage(context.Background(), serverDataset(server), time.Time{}, 0)

	// Assert
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, 1, calls)
}

func TestFetchPage_ExhaustsRetries(t *testing.T) {
	// Arrange
	calls := 0
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server, 1)

	// Act
	records, err := client.FetchPage(context.Background(), serverDataset(server), time.Time{}, 0)

	// Assert
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Equal(t, 2, calls)
}

func TestFetchPage_InvalidJSON(t *testing.T) {
	// Arrange
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	client := newTestClient(server, 0)

	// Act
	records, err := client.FetchPage(context.Background(), serverDataset(server), time.Time{}, 0)

	// Assert
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestFetchPage_NoTokenHeaderWhenUnset(t *testing.T) {
	// Arrange
	var tokenPresent bool
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, tokenPresent = r.Header["X-App-Token"]
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(config.SocrataConfig{
		PageSize:   2,
		Timeout:    5 * time.Second,
		MaxRetries: 0,
	}, logger.New("test", ""))
	client.httpClient = server.Client()

	// Act
	_, err := client.FetchPage(context.Background(), serverDataset(server), time.Time{}, 0)

	// Assert
	require.NoError(t, err)
	assert.False(t, tokenPresent)
}

func TestPageSize(t *testing.T) {
	client := NewClient(config.SocrataConfig{
		PageSize:   5000,
		Timeout:    time.Second,
		MaxRetries: 0,
	}, logger.New("test", ""))

	assert.Equal(t, 5000, client.PageSize())
}
