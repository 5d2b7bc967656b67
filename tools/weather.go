package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/aslamsikder/VoiceRAG-Agent-System/config"
)

// ErrLocationNotFound is returned when geocoding yields no match.
var ErrLocationNotFound = errors.New("Location not found")

type WeatherReport struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	WindSpeed   float64 `json:"windspeed"`
	Unit        string  `json:"unit"`
}

// WeatherClient looks up current conditions through Open-Meteo: a geocoding
// call resolves the place, a forecast call reads current_weather.
type WeatherClient struct {
	httpClient   *http.Client
	geocodingURL string
	forecastURL  string
	limiter      *rate.Limiter
}

func NewWeatherClient(cfg config.ToolsConfig) *WeatherClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 5
	}
	return &WeatherClient{
		httpClient:   &http.Client{Timeout: timeout},
		geocodingURL: cfg.GeocodingURL,
		forecastURL:  cfg.ForecastURL,
		limiter:      rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

type geocodingResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	CurrentWeather struct {
		Temperature float64 `json:"temperature"`
		WindSpeed   float64 `json:"windspeed"`
	} `json:"current_weather"`
}

// Current returns the weather at location. The report echoes location as
// given by the caller.
func (c *WeatherClient) Current(ctx context.Context, location string) (WeatherReport, error) {
	geoQuery := url.Values{}
	geoQuery.Set("name", location)
	geoQuery.Set("count", "1")
	geoQuery.Set("language", "en")
	geoQuery.Set("format", "json")

	var geo geocodingResponse
	if err := c.getJSON(ctx, c.geocodingURL, geoQuery, &geo); err != nil {
		return WeatherReport{}, fmt.Errorf("geocode %q: %w", location, err)
	}
	if len(geo.Results) == 0 {
		return WeatherReport{}, ErrLocationNotFound
	}

	forecastQuery := url.Values{}
	forecastQuery.Set("latitude", strconv.FormatFloat(geo.Results[0].Latitude, 'f', -1, 64))
	forecastQuery.Set("longitude", strconv.FormatFloat(geo.Results[0].Longitude, 'f', -1, 64))
	forecastQuery.Set("current_weather", "true")

	var forecast forecastResponse
	if err := c.getJSON(ctx, c.forecastURL, forecastQuery, &forecast); err != nil {
		return WeatherReport{}, fmt.Errorf("fetch forecast: %w", err)
	}

	return WeatherReport{
		Location:    location,
		Temperature: forecast.CurrentWeather.Temperature,
		WindSpeed:   forecast.CurrentWeather.WindSpeed,
		Unit:        "Celsius",
	}, nil
}

func (c *WeatherClient) getJSON(ctx context.Context, base string, query url.Values, dst any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("open-meteo returned status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
