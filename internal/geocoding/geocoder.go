package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
)

const (
	DefaultGeoapifyURL  = "https://api.geoapify.com/v1/geocode/search"
	DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"

	cacheFileName = "geocode_cache.json"
)

var ErrAddressNotFound = errors.New("address not found")

// Locator resolves a postal address to a point
type Locator interface {
	Locate(ctx context.Context, address string) (orb.Point, error)
}

type Options struct {
	// APIKey selects Geoapify; without it Nominatim is used
	APIKey       string
	CacheDir     string
	GeoapifyURL  string
	NominatimURL string
	// Throttle is the minimum gap between Nominatim requests
	Throttle time.Duration
	Timeout  time.Duration
}

type Geocoder struct {
	logger    *logrus.Logger
	opts      Options
	cache     map[string][]float64
	cacheLock sync.RWMutex
	client    *http.Client

	throttleLock sync.Mutex
	lastRequest  time.Time
}

func NewGeocoder(logger *logrus.Logger, opts Options) *Geocoder {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.GeoapifyURL == "" {
		opts.GeoapifyURL = DefaultGeoapifyURL
	}
	if opts.NominatimURL == "" {
		opts.NominatimURL = DefaultNominatimURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	g := &Geocoder{
		logger: logger,
		opts:   opts,
		cache:  make(map[string][]float64),
		client: &http.Client{Timeout: opts.Timeout},
	}

	if opts.CacheDir != "" {
		if err := os.MkdirAll(opts.CacheDir, 0755); err != nil {
			logger.WithError(err).Warn("Could not create geocode cache directory")
		}
		g.loadCache()
	}

	return g
}

func (g *Geocoder) loadCache() {
	cacheFile := filepath.Join(g.opts.CacheDir, cacheFileName)
	data, err := os.ReadFile(cacheFile)
	if err != nil {
		if !os.IsNotExist(err) {
			g.logger.Warnf("Could not load geocode cache: %v", err)
		}
		return
	}

	if err := json.Unmarshal(data, &g.cache); err != nil {
		g.logger.Errorf("Failed to parse geocode cache: %v", err)
		return
	}

	g.logger.Infof("Loaded %d cached addresses", len(g.cache))
}

func (g *Geocoder) saveCache() {
	if g.opts.CacheDir == "" {
		return
	}

	g.cacheLock.RLock()
	data, err := json.Marshal(g.cache)
	g.cacheLock.RUnlock()
	if err != nil {
		g.logger.Errorf("Failed to marshal geocode cache: %v", err)
		return
	}

	cacheFile := filepath.Join(g.opts.CacheDir, cacheFileName)
	if err := os.WriteFile(cacheFile, data, 0644); err != nil {
		g.logger.Errorf("Failed to save geocode cache: %v", err)
		return
	}

	g.logger.Debug("Saved geocode cache to disk")
}

func cacheKey(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

// Cached returns a previously resolved point for address
func (g *Geocoder) Cached(address string) (orb.Point, bool) {
	g.cacheLock.RLock()
	defer g.cacheLock.RUnlock()
	coords, ok := g.cache[cacheKey(address)]
	if !ok || len(coords) != 2 {
		return orb.Point{}, false
	}
	return orb.Point{coords[1], coords[0]}, true
}

// Locate resolves address, consulting the cache first
func (g *Geocoder) Locate(ctx context.Context, address string) (orb.Point, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return orb.Point{}, ErrAddressNotFound
	}

	if p, ok := g.Cached(address); ok {
		g.logger.WithFields(logrus.Fields{
			"address":   address,
			"latitude":  p.Lat(),
			"longitude": p.Lon(),
			"source":    "cache",
		}).Debug("Found coordinates in cache")
		return p, nil
	}

	var (
		lat, lon float64
		source   string
		err      error
	)
	if g.opts.APIKey != "" {
		source = "geoapify"
		lat, lon, err = g.geoapify(ctx, address)
	} else {
		source = "nominatim"
		lat, lon, err = g.nominatim(ctx, address)
	}
	if err != nil {
		if errors.Is(err, ErrAddressNotFound) {
			g.logger.WithField("address", address).Warn("No results found")
		} else {
			g.logger.WithError(err).WithField("address", address).Error("Geocoding request failed")
		}
		return orb.Point{}, err
	}

	g.logger.WithFields(logrus.Fields{
		"address":   address,
		"latitude":  lat,
		"longitude": lon,
		"source":    source,
	}).Info("Successfully geocoded address")

	g.cacheLock.Lock()
	g.cache[cacheKey(address)] = []float64{lat, lon}
	g.cacheLock.Unlock()

	go g.saveCache()

	return orb.Point{lon, lat}, nil
}

type geoapifyResponse struct {
	Features []struct {
		Properties struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"properties"`
	} `json:"features"`
}

func (g *Geocoder) geoapify(ctx context.Context, address string) (float64, float64, error) {
	params := url.Values{
		"text":   []string{address},
		"apiKey": []string{g.opts.APIKey},
	}

	var result geoapifyResponse
	if err := g.get(ctx, g.opts.GeoapifyURL, params, &result); err != nil {
		return 0, 0, err
	}
	if len(result.Features) == 0 {
		return 0, 0, fmt.Errorf("%w: %s", ErrAddressNotFound, address)
	}

	props := result.Features[0].Properties
	return props.Lat, props.Lon, nil
}

type nominatimResponse []struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (g *Geocoder) nominatim(ctx context.Context, address string) (float64, float64, error) {
	if err := g.wait(ctx); err != nil {
		return 0, 0, err
	}

	params := url.Values{
		"q":      []string{address},
		"format": []string{"json"},
		"limit":  []string{"1"},
	}

	var result nominatimResponse
	if err := g.get(ctx, g.opts.NominatimURL, params, &result); err != nil {
		return 0, 0, err
	}
	if len(result) == 0 {
		return 0, 0, fmt.Errorf("%w: %s", ErrAddressNotFound, address)
	}

	lat, err := strconv.ParseFloat(result[0].Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q: %w", result[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(result[0].Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q: %w", result[0].Lon, err)
	}
	return lat, lon, nil
}

// wait spaces Nominatim requests by the configured throttle
func (g *Geocoder) wait(ctx context.Context) error {
	g.throttleLock.Lock()
	defer g.throttleLock.Unlock()

	if delay := g.opts.Throttle - time.Since(g.lastRequest); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	g.lastRequest = time.Now()
	return nil
}

func (g *Geocoder) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set("User-Agent", "ListMySpace/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocoding service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
