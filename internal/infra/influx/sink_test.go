package influx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinfetch/internal/domain/entity"
	"coinfetch/internal/observability/metrics"
	"coinfetch/internal/upstream"
)

// fakeInflux captures line-protocol writes from the real client.
type fakeInflux struct {
	mu     sync.Mutex
	bodies []string
}

func (f *fakeInflux) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/ping":
			w.WriteHeader(http.StatusNoContent)
		case strings.HasSuffix(r.URL.Path, "/write"):
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.bodies = append(f.bodies, string(body))
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusOK)
		}
	})
}

func (f *fakeInflux) written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.bodies, "\n")
}

func newTestSink(t *testing.T) (*Sink, *fakeInflux) {
	t.Helper()
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	sink, err := Connect(context.Background(), Config{
		URL:    srv.URL,
		Token:  "test-token",
		Org:    "test-org",
		Bucket: "crypto",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(sink.Close)
	return sink, fake
}

func TestConnectFailsOnUnreachableServer(t *testing.T) {
	_, err := Connect(context.Background(), Config{
		URL:         "http://127.0.0.1:1",
		Token:       "t",
		PingTimeout: 200 * time.Millisecond,
	}, nil)

	var storageErr *upstream.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "connect", storageErr.Operation)
}

func TestWriteCoinsEmitsLineProtocol(t *testing.T) {
	sink, fake := newTestSink(t)

	rate := 98000.5
	err := sink.WriteCoins(context.Background(), []entity.Coin{
		{Code: "BTC", Name: "Bitcoin", Rate: &rate, Currency: "USD", FetchedAt: time.Now().UTC()},
	})
	require.NoError(t, err)

	written := fake.written()
	assert.Contains(t, written, "cryptocurrency_data")
	assert.Contains(t, written, "code=BTC")
	assert.Contains(t, written, "rate=98000.5")
	assert.Contains(t, written, "record_count=1i")
}

func TestWriteCoinsSkipsInvalidRecords(t *testing.T) {
	sink, fake := newTestSink(t)

	err := sink.WriteCoins(context.Background(), []entity.Coin{
		{Code: "", Name: "nameless"},
		{Code: "ETH", Name: "Ethereum", Currency: "USD", FetchedAt: time.Now().UTC()},
	})
	require.NoError(t, err)

	written := fake.written()
	assert.Contains(t, written, "code=ETH")
	assert.NotContains(t, written, "nameless")
}

func TestWriteExchangesAndMarkets(t *testing.T) {
	sink, fake := newTestSink(t)

	volume := 1234.5
	err := sink.WriteExchanges(context.Background(), []entity.Exchange{
		{Code: "binance", Name: "Binance", Volume: &volume, Currency: "USD", FetchedAt: time.Now().UTC()},
	})
	require.NoError(t, err)

	totalCap := 1.9e12
	err = sink.WriteMarkets(context.Background(), []entity.Market{
		{Cap: &totalCap, Currency: "USD", FetchedAt: time.Now().UTC()},
	})
	require.NoError(t, err)

	written := fake.written()
	assert.Contains(t, written, "exchange_data")
	assert.Contains(t, written, "market_overview")
	assert.Contains(t, written, "total_market_cap")
}

func TestWritePointsEmptyIsNoop(t *testing.T) {
	sink, fake := newTestSink(t)

	require.NoError(t, sink.WritePoints(context.Background(), nil))
	assert.Empty(t, fake.written())
}

func TestWritePointsRecordsOutcome(t *testing.T) {
	sink, _ := newTestSink(t)

	success := metrics.StorageWritesTotal.WithLabelValues("success")
	before := testutil.ToFloat64(success)

	err := sink.WritePoints(context.Background(), []entity.Point{{
		Measurement: "market_overview",
		Tags:        map[string]string{"currency": "USD"},
		Fields:      map[string]interface{}{"total_market_cap": 1.9e12},
		Time:        time.Now().UTC(),
	}})
	require.NoError(t, err)

	assert.Equal(t, before+1, testutil.ToFloat64(success),
		"each write outcome must be counted")
}
