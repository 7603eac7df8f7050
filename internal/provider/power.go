// Package provider fetches daily historical weather from the NASA POWER API.
// POWER caps a single request at roughly five years of daily data, so long
// histories are fetched as a sequence of chunked requests with pacing between
// them.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/circuitbreaker"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/models"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/observability"
)

// ErrProviderUnavailable wraps any failure to get usable data out of the
// POWER API: network errors, non-2xx responses, unparseable bodies.
var ErrProviderUnavailable = errors.New("historical data provider unavailable")

// missingValue is POWER's sentinel for a day with no measurement.
const missingValue = -999.0

// powerParameters are the daily variables requested from POWER.
const powerParameters = "T2M,PRECTOTCORR,WS10M,RH2M,T2M_MAX,T2M_MIN"

// HistorySource fetches daily records for a coordinate over a span of years.
type HistorySource interface {
	FetchHistory(ctx context.Context, latitude, longitude float64, startYear, endYear int) ([]models.ClimateRecord, error)
}

// PowerClient is the NASA POWER implementation of HistorySource.
type PowerClient struct {
	baseURL    string
	timeout    time.Duration
	chunkYears int
	client     *http.Client
	pacer      *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

// Config holds PowerClient parameters.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	ChunkYears int
	ChunkDelay time.Duration
	Breaker    *circuitbreaker.CircuitBreaker // optional
}

// NewPowerClient builds a client. ChunkDelay becomes the pacing interval
// between consecutive chunk requests.
func NewPowerClient(cfg Config, logger *zap.Logger) (*PowerClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider: base URL is required")
	}
	if cfg.ChunkYears <= 0 || cfg.ChunkYears > 5 {
		cfg.ChunkYears = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ChunkDelay <= 0 {
		cfg.ChunkDelay = time.Second
	}
	return &PowerClient{
		baseURL:    cfg.BaseURL,
		timeout:    cfg.Timeout,
		chunkYears: cfg.ChunkYears,
		client:     &http.Client{Timeout: cfg.Timeout},
		pacer:      rate.NewLimiter(rate.Every(cfg.ChunkDelay), 1),
		breaker:    cfg.Breaker,
		logger:     logger,
	}, nil
}

// powerResponse mirrors the slice of the POWER JSON we consume: per-parameter
// maps of YYYYMMDD date keys to values.
type powerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// FetchHistory pulls [startYear, endYear] in chunks. Individual chunk
// failures are logged and tolerated; the error is returned only when no
// records at all could be fetched.
func (c *PowerClient) FetchHistory(ctx context.Context, latitude, longitude float64, startYear, endYear int) ([]models.ClimateRecord, error) {
	if startYear > endYear {
		return nil, fmt.Errorf("provider: start year %d after end year %d", startYear, endYear)
	}

	var records []models.ClimateRecord
	var lastErr error

	for chunkStart := startYear; chunkStart <= endYear; chunkStart += c.chunkYears {
		chunkEnd := chunkStart + c.chunkYears - 1
		if chunkEnd > endYear {
			chunkEnd = endYear
		}

		if err := c.pacer.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}

		chunk, err := c.fetchChunk(ctx, latitude, longitude, chunkStart, chunkEnd)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, ctx.Err())
			}
			lastErr = err
			c.logger.Warn("history chunk fetch failed",
				zap.Float64("latitude", latitude),
				zap.Float64("longitude", longitude),
				zap.Int("startYear", chunkStart),
				zap.Int("endYear", chunkEnd),
				zap.Error(err))
			continue
		}
		records = append(records, chunk...)
	}

	if len(records) == 0 && lastErr != nil {
		return nil, lastErr
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records, nil
}

func (c *PowerClient) fetchChunk(ctx context.Context, latitude, longitude float64, startYear, endYear int) ([]models.ClimateRecord, error) {
	if c.breaker != nil {
		var chunk []models.ClimateRecord
		err := c.breaker.Call(ctx, func() error {
			var callErr error
			chunk, callErr = c.callAPI(ctx, latitude, longitude, startYear, endYear)
			return callErr
		})
		if err != nil {
			return nil, err
		}
		return chunk, nil
	}
	return c.callAPI(ctx, latitude, longitude, startYear, endYear)
}

func (c *PowerClient) callAPI(ctx context.Context, latitude, longitude float64, startYear, endYear int) ([]models.ClimateRecord, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, latitude, longitude, startYear, endYear)
	if err != nil {
		observability.ProviderCallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: build request: %v", ErrProviderUnavailable, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.ProviderCallsTotal.WithLabelValues("error").Inc()
		observability.ProviderCallDuration.WithLabelValues("error").Observe(duration)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.ProviderCallsTotal.WithLabelValues(status).Inc()
	observability.ProviderCallDuration.WithLabelValues(status).Observe(duration)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", ErrProviderUnavailable, err)
	}

	var apiResp powerResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrProviderUnavailable, err)
	}

	return parseRecords(apiResp), nil
}

func (c *PowerClient) buildRequest(ctx context.Context, latitude, longitude float64, startYear, endYear int) (*http.Request, error) {
	baseURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	params := url.Values{}
	params.Set("parameters", powerParameters)
	params.Set("community", "RE")
	params.Set("longitude", fmt.Sprintf("%v", longitude))
	params.Set("latitude", fmt.Sprintf("%v", latitude))
	params.Set("start", fmt.Sprintf("%d0101", startYear))
	params.Set("end", fmt.Sprintf("%d1231", endYear))
	params.Set("format", "JSON")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// parseRecords turns POWER's per-parameter date maps into records. A day is
// dropped when any core variable is absent or carries the missing sentinel.
func parseRecords(resp powerResponse) []models.ClimateRecord {
	temps := resp.Properties.Parameter["T2M"]
	precip := resp.Properties.Parameter["PRECTOTCORR"]
	wind := resp.Properties.Parameter["WS10M"]
	humidity := resp.Properties.Parameter["RH2M"]

	var records []models.ClimateRecord
	for dateKey, t := range temps {
		p, pOK := precip[dateKey]
		w, wOK := wind[dateKey]
		h, hOK := humidity[dateKey]
		if !pOK || !wOK || !hOK {
			continue
		}
		if t == missingValue || p == missingValue || w == missingValue || h == missingValue {
			continue
		}

		date, err := time.Parse("20060102", dateKey)
		if err != nil {
			continue
		}

		if p < 0 {
			p = 0
		}
		if h < 0 {
			h = 0
		} else if h > 100 {
			h = 100
		}

		records = append(records, models.ClimateRecord{
			Date:          date,
			Temperature:   t,
			Precipitation: p,
			WindSpeed:     w,
			Humidity:      h,
			HeatIndex:     models.HeatIndex(t, h),
		})
	}
	return records
}

func statusLabel(code int) string {
	if code >= 200 && code <= 299 {
		return "success"
	}
	return fmt.Sprintf("%d", code)
}
