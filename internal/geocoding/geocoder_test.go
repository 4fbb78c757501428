package geocoding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestGeoapifyLookup(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "secret", r.URL.Query().Get("apiKey"))
		assert.Equal(t, "Strada Republicii 10, Brasov, Romania", r.URL.Query().Get("text"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"features":[{"properties":{"lat":45.6427,"lon":25.5887}}]}`))
	}))
	defer server.Close()

	g := NewGeocoder(quietLogger(), Options{APIKey: "secret", GeoapifyURL: server.URL})

	p, err := g.Locate(context.Background(), "Strada Republicii 10, Brasov, Romania")
	require.NoError(t, err)
	assert.Equal(t, 45.6427, p.Lat())
	assert.Equal(t, 25.5887, p.Lon())

	// second lookup is answered from the cache, whatever the spacing
	p, err = g.Locate(context.Background(), "strada republicii 10,  Brasov, Romania")
	require.NoError(t, err)
	assert.Equal(t, 45.6427, p.Lat())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGeoapifyNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[]}`))
	}))
	defer server.Close()

	g := NewGeocoder(quietLogger(), Options{APIKey: "secret", GeoapifyURL: server.URL})
	_, err := g.Locate(context.Background(), "Nowhere 1")
	assert.ErrorIs(t, err, ErrAddressNotFound)

	_, err = g.Locate(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrAddressNotFound)
}

func TestNominatimLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(`[{"lat":"44.4268","lon":"26.1025"}]`))
	}))
	defer server.Close()

	g := NewGeocoder(quietLogger(), Options{NominatimURL: server.URL})
	p, err := g.Locate(context.Background(), "Piata Unirii, Bucuresti")
	require.NoError(t, err)
	assert.Equal(t, 44.4268, p.Lat())
	assert.Equal(t, 26.1025, p.Lon())
}

func TestServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	g := NewGeocoder(quietLogger(), Options{APIKey: "k", GeoapifyURL: server.URL})
	_, err := g.Locate(context.Background(), "Main 1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAddressNotFound)
	assert.Contains(t, err.Error(), "429")
}

func TestThrottleHonoursContext(t *testing.T) {
	g := NewGeocoder(quietLogger(), Options{Throttle: time.Hour})
	g.lastRequest = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.wait(ctx), context.DeadlineExceeded)
}

func TestCachePersistence(t *testing.T) {
	dir := t.TempDir()
	g := NewGeocoder(quietLogger(), Options{CacheDir: dir})

	g.cacheLock.Lock()
	g.cache[cacheKey("Main 1, Sibiu")] = []float64{45.79, 24.15}
	g.cacheLock.Unlock()
	g.saveCache()

	reloaded := NewGeocoder(quietLogger(), Options{CacheDir: dir})
	p, ok := reloaded.Cached("main 1, sibiu")
	require.True(t, ok)
	assert.Equal(t, 45.79, p.Lat())
	assert.Equal(t, 24.15, p.Lon())
}
