package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/spf13/viper"

	"github.com/chadmayfield/weathercache/internal/weather"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 10 << 20
)

// Source is the provider endpoint and the request parameters sent with every
// download. Location coordinates are added per request.
type Source struct {
	URL     string
	Payload map[string]any
}

// LoadSource reads a provider configuration file of the form
//
//	{"configuration": {"url": "...", "payload": {...}}}
//
// Payload keys are case-insensitive and come back lower-cased. Any read or
// parse failure, or a missing url, is a ConfigFileError.
func LoadSource(path string) (Source, error) {
	if path == "" {
		return Source{}, weather.E(weather.KindConfigFile, "reading source config", errors.New("no source config path"))
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return Source{}, weather.E(weather.KindConfigFile, "reading source config "+path, err)
	}

	src := Source{
		URL:     v.GetString("configuration.url"),
		Payload: v.GetStringMap("configuration.payload"),
	}
	if src.URL == "" {
		return Source{}, weather.E(weather.KindConfigFile, "reading source config "+path, errors.New("configuration.url is required"))
	}
	if _, err := url.Parse(src.URL); err != nil {
		return Source{}, weather.E(weather.KindConfigFile, "reading source config "+path, fmt.Errorf("invalid configuration.url: %w", err))
	}
	return src, nil
}

// APIFetcher downloads hourly observations from a remote provider.
type APIFetcher struct {
	source  Source
	store   Inserter
	logger  *slog.Logger
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	status  Status
}

// NewAPIFetcher creates a live fetcher. A zero timeout selects the default.
func NewAPIFetcher(src Source, store Inserter, logger *slog.Logger, timeout time.Duration) *APIFetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &APIFetcher{
		source: src,
		store:  store,
		logger: logger,
		client: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "weather-provider",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
		status: Status{Source: "api", Text: StatusInit},
	}
}

// Status returns the outcome of the last Download.
func (f *APIFetcher) Status() Status {
	return f.status
}

// Download issues one request for loc. A transport failure is recorded as a
// FAILED status and returns nil. A non-success response or an unreadable
// payload is a RemoteServiceError. Nothing is inserted unless the whole
// payload decodes.
func (f *APIFetcher) Download(ctx context.Context, loc weather.Location) error {
	f.status = Status{Source: "api", Text: StatusInit}

	req, err := f.newRequest(ctx, loc)
	if err != nil {
		f.status.Text = StatusFailed
		f.status.Err = err
		return weather.E(weather.KindConfigFile, "building provider request", err)
	}

	res, err := f.breaker.Execute(func() (interface{}, error) {
		return f.client.Do(req)
	})
	if err != nil {
		f.status.Text = StatusFailed
		f.status.Err = err
		f.logger.Error("cannot get data from provider",
			"url", f.source.URL,
			"location", loc.String(),
			"error", err,
		)
		return nil
	}
	resp, ok := res.(*http.Response)
	if !ok {
		return fmt.Errorf("unexpected result type from circuit breaker: %T", res)
	}
	defer resp.Body.Close() //nolint:errcheck

	f.status.Code = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.status.Text = StatusFailed
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return weather.E(weather.KindRemoteService, "fetching hourly observations",
			fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet))))
	}

	batch, err := decodeHourly(io.LimitReader(resp.Body, maxBodyBytes), loc)
	if err != nil {
		f.status.Text = StatusFailed
		f.status.Err = err
		return weather.E(weather.KindRemoteService, "decoding hourly observations", err)
	}
	f.status.Fetched = len(batch)

	written, err := insertAll(ctx, f.store, batch)
	f.status.RecordsWritten = written
	if err != nil {
		f.status.Text = StatusFailed
		f.status.Err = err
		return err
	}

	f.status.Text = StatusOK
	f.logger.Info("downloaded observations",
		"location", loc.String(),
		"fetched", len(batch),
		"records_written", written,
	)
	return nil
}

func (f *APIFetcher) newRequest(ctx context.Context, loc weather.Location) (*http.Request, error) {
	u, err := url.Parse(f.source.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing provider url: %w", err)
	}

	values := u.Query()
	for k, v := range f.source.Payload {
		values.Set(k, formatParam(v))
	}
	values.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	values.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	u.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// formatParam renders a JSON payload value as a query parameter. Lists are
// comma-joined, which is how Open-Meteo accepts variable lists.
func formatParam(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = formatParam(e)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}

// hourlyResponse is the columnar provider payload; arrays are index-aligned.
// Values are pointers because the provider sends null for hours it has no data for.
type hourlyResponse struct {
	Hourly struct {
		Time                     []string   `json:"time"`
		PrecipitationProbability []*float64 `json:"precipitation_probability"`
		Precipitation            []*float64 `json:"precipitation"`
		WindSpeed10m             []*float64 `json:"wind_speed_10m"`
	} `json:"hourly"`
}

// reading turns a decoded value into a Reading; null stays missing.
func reading(v *float64) weather.Reading {
	if v == nil {
		return weather.Reading{}
	}
	return weather.Known(*v)
}

func decodeHourly(r io.Reader, loc weather.Location) ([]weather.Observation, error) {
	var payload hourlyResponse
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	h := payload.Hourly
	n := len(h.Time)
	if len(h.PrecipitationProbability) != n || len(h.Precipitation) != n || len(h.WindSpeed10m) != n {
		return nil, fmt.Errorf("hourly arrays are not aligned: time=%d precipitation_probability=%d precipitation=%d wind_speed_10m=%d",
			n, len(h.PrecipitationProbability), len(h.Precipitation), len(h.WindSpeed10m))
	}

	batch := make([]weather.Observation, 0, n)
	for i := 0; i < n; i++ {
		if _, err := time.Parse(weather.TimeLayout, h.Time[i]); err != nil {
			return nil, fmt.Errorf("hourly time[%d] %q is not %s", i, h.Time[i], weather.TimeLayout)
		}
		batch = append(batch, weather.Observation{
			Location:                 loc,
			Time:                     h.Time[i],
			PrecipitationProbability: reading(h.PrecipitationProbability[i]),
			Precipitation:            reading(h.Precipitation[i]),
			WindSpeed10m:             reading(h.WindSpeed10m[i]),
		})
	}
	return batch, nil
}

// insertAll writes each observation through the store's deduplicating insert
// and returns how many rows were new.
func insertAll(ctx context.Context, store Inserter, batch []weather.Observation) (int, error) {
	written := 0
	for _, obs := range batch {
		inserted, err := store.Insert(ctx, obs)
		if err != nil {
			return written, err
		}
		if inserted {
			written++
		}
	}
	return written, nil
}
