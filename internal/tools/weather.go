package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/toolbridge/toolbridge/internal/protocol"
	"golang.org/x/sync/singleflight"
)

const weatherCacheTTL = 5 * time.Minute

type weatherCacheEntry struct {
	payload   string
	expiresAt time.Time
}

// weatherCache holds per-city responses. Concurrent lookups for the same city
// share a single backend fetch via singleflight.
type weatherCache struct {
	mu    sync.RWMutex
	store map[string]weatherCacheEntry
	sf    singleflight.Group
}

func newWeatherCache() *weatherCache {
	return &weatherCache{store: make(map[string]weatherCacheEntry)}
}

func (c *weatherCache) get(city string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.store[city]
	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.payload, true
}

func (c *weatherCache) set(city, payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[city] = weatherCacheEntry{payload: payload, expiresAt: time.Now().Add(weatherCacheTTL)}
}

// WeatherTool reports weather for a city. With baseURL configured it queries
// the external source (unreachable source -> upstream_error); without one it
// serves a deterministic offline table, so the tool always has a stable
// offline path.
func WeatherTool(baseURL string, client *http.Client) Tool {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	cache := newWeatherCache()

	return Tool{
		Name:        "get_weather",
		Description: "Get weather information for a city.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"city": map[string]interface{}{
					"type":        "string",
					"description": "City name",
					"default":     "Beijing",
				},
			},
			"required": []string{},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			city, _ := input["city"].(string)
			if city == "" {
				city = "Beijing"
			}

			if baseURL == "" {
				return offlineWeather(city), nil
			}

			if payload, ok := cache.get(city); ok {
				log.Debug().Str("city", city).Msg("weather cache hit")
				return payload, nil
			}

			v, err, _ := cache.sf.Do(city, func() (interface{}, error) {
				if payload, ok := cache.get(city); ok {
					return payload, nil
				}
				payload, err := fetchWeather(ctx, client, baseURL, city)
				if err != nil {
					return "", err
				}
				cache.set(city, payload)
				return payload, nil
			})
			if err != nil {
				return "", err
			}
			return v.(string), nil
		},
	}
}

func fetchWeather(ctx context.Context, client *http.Client, baseURL, city string) (string, error) {
	u := fmt.Sprintf("%s?city=%s", baseURL, url.QueryEscape(city))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", protocol.Failf(protocol.KindUpstreamError, "weather request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", protocol.Failf(protocol.KindUpstreamError, "weather source unreachable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", protocol.Failf(protocol.KindUpstreamError, "weather source returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", protocol.Failf(protocol.KindUpstreamError, "read weather response: %v", err)
	}
	if !json.Valid(body) {
		return "", protocol.Failf(protocol.KindUpstreamError, "weather source returned non-JSON payload")
	}
	return string(body), nil
}

// Offline conditions keyed by city; unlisted cities get a fixed generic entry
// so repeated calls are always identical.
var offlineConditions = map[string][2]string{
	"Beijing":  {"22°C", "Sunny"},
	"Shanghai": {"25°C", "Cloudy"},
	"London":   {"14°C", "Rain"},
	"Tokyo":    {"20°C", "Clear"},
}

func offlineWeather(city string) string {
	temp, cond := "21°C", "Clear"
	if entry, ok := offlineConditions[city]; ok {
		temp, cond = entry[0], entry[1]
	}
	out := map[string]interface{}{
		"city":        city,
		"temperature": temp,
		"condition":   cond,
		"humidity":    "65%",
		"wind":        "NE 3",
		"source":      "offline",
	}
	b, _ := json.Marshal(out)
	return string(b)
}
