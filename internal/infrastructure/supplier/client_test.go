package supplier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/partselect/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient builds a client against url with retries that do not sleep
func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		Name:              "DigiKey",
		BaseURL:           url,
		APIKey:            "test-api-key",
		RequestsPerSecond: 1000,
		Burst:             100,
	})
	require.NoError(t, err)
	client.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return client
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int { return &v }

func TestNewClient(t *testing.T) {
	client := newTestClient(t, "https://api.example.com/")

	assert.Equal(t, "digikey", client.Name())
	assert.Equal(t, "test-api-key", client.apiKey)
	assert.Equal(t, "https://api.example.com", client.baseURL)
	assert.Equal(t, defaultMaxRetries, client.maxRetries)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.rateLimiter)
	assert.False(t, client.debug)
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "https://api.example.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = NewClient(Config{Name: "mouser"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestSetDebug(t *testing.T) {
	client := newTestClient(t, "https://api.example.com")

	assert.False(t, client.debug)

	client.SetDebug(true)
	assert.True(t, client.debug)

	client.SetDebug(false)
	assert.False(t, client.debug)
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1000 * time.Millisecond},
		{3, 2000 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSearch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/parts/search", r.URL.Path)
		assert.Equal(t, "ldo 3.3v", r.URL.Query().Get("q"))
		assert.Equal(t, "power", r.URL.Query().Get("category"))
		assert.Equal(t, "15", r.URL.Query().Get("limit"))
		assert.Equal(t, "SOT-223", r.URL.Query().Get("package"))
		assert.Equal(t, "test-api-key", r.Header.Get("X-API-Key"))

		response := searchResponse{
			Parts: []partDTO{
				{
					PartNumber:   "LD1117V33",
					Description:  "LDO regulator 3.3V",
					Manufacturer: "ST",
					Category:     "Power",
					Specs:        map[string]string{"voltage": "3.3V", "package": "SOT-223"},
					Offers: []offerDTO{
						{Vendor: "DigiKey", Price: floatPtr(0.42), Stock: intPtr(1500)},
						{Price: floatPtr(0.40)},
					},
				},
				{Description: "no part number"},
			},
			TotalCount: 2,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	records, err := client.Search(context.Background(), domain.SearchRequest{
		Term:        "ldo 3.3v",
		Category:    "power",
		Limit:       15,
		Constraints: map[string]string{"package": "SOT-223"},
	})

	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "LD1117V33", rec.PartNumber)
	assert.Equal(t, "power", rec.Category)
	assert.Equal(t, "3.3V", rec.Specs.Voltage)
	require.Len(t, rec.Offers, 2)
	assert.Equal(t, "DigiKey", rec.Offers[0].Vendor)
	assert.Equal(t, "digikey", rec.Offers[1].Vendor, "offer without vendor is attributed to the platform")
	assert.Nil(t, rec.Offers[1].Stock)
	assert.Nil(t, rec.Price)
}

func TestSearch_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	records, err := client.Search(context.Background(), domain.SearchRequest{Term: "nothing"})

	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSearch_ServerError_Retries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(searchResponse{Parts: []partDTO{{PartNumber: "LM358"}}})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	records, err := client.Search(context.Background(), domain.SearchRequest{Term: "opamp"})

	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestSearch_ClientError_NoRetry(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad query"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Search(context.Background(), domain.SearchRequest{Term: "x"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "bad query")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestSearch_TooManyRequests_Retries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(searchResponse{})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	records, err := client.Search(context.Background(), domain.SearchRequest{Term: "x"})

	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestSearch_AllRetriesFail(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Search(context.Background(), domain.SearchRequest{Term: "x"})

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, int32(defaultMaxRetries), atomic.LoadInt32(&attempts))
}

func TestSearch_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Search(context.Background(), domain.SearchRequest{Term: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestSearch_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Search(ctx, domain.SearchRequest{Term: "x"})
	assert.Error(t, err)
}

func TestSearch_RequestCreationError(t *testing.T) {
	client := newTestClient(t, "://bad-url")

	_, err := client.Search(context.Background(), domain.SearchRequest{Term: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create request")
}

func TestPriceAndStock_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/parts/AMS1117-3.3/offers", r.URL.Path)
		assert.Equal(t, "PartSelect/1.0", r.Header.Get("User-Agent"))

		json.NewEncoder(w).Encode(offersResponse{
			PartNumber: "AMS1117-3.3",
			Offers: []offerDTO{
				{Vendor: "Mouser", Price: floatPtr(0.12), Stock: intPtr(50000)},
				{Vendor: "Arrow", Stock: intPtr(0)},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	quotes, err := client.PriceAndStock(context.Background(), " AMS1117-3.3 ")

	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, "Mouser", quotes[0].Vendor)
	assert.Equal(t, "digikey", quotes[0].Source)
	assert.InDelta(t, 0.12, *quotes[0].Price, 1e-9)
	assert.Nil(t, quotes[1].Price, "missing price stays unknown")
	assert.Equal(t, 0, *quotes[1].Stock, "zero stock is reported, not unknown")
}

func TestPriceAndStock_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	quotes, err := client.PriceAndStock(context.Background(), "UNKNOWN")

	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestPriceAndStock_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.PriceAndStock(context.Background(), "LM358")

	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestDebugLog(t *testing.T) {
	client := newTestClient(t, "https://api.example.com")

	// Must not panic in either mode
	client.debugLog("test message: %s", "arg")
	client.SetDebug(true)
	client.debugLog("test message: %s", "arg")
}

func TestReadLimitedBody(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		limit    int64
		expected string
	}{
		{"within limit", "hello", 10, "hello"},
		{"exactly limit", "hello", 5, "hello"},
		{"exceeds limit", "hello world", 5, "hello"},
		{"empty", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := readLimitedBody(strings.NewReader(tt.input), tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(body))
		})
	}
}
