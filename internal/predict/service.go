// Package predict orchestrates the prediction pipeline: validate the input
// date, load model artifacts, fetch the day's weather, derive features, and
// score. It owns the lazy artifact caches so that a broken artifact directory
// fails requests without crashing startup and recovers once fixed.
package predict

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"raincast/internal/config"
	"raincast/internal/features"
	"raincast/internal/ml"
	"raincast/internal/types"
)

// Prediction horizons, fixed by the trained targets: the rain classifier
// answers for the day one week after the input date, the precipitation
// regressor sums the three days following it.
const (
	rainLeadDays          = 7
	precipWindowStartDays = 1
	precipWindowEndDays   = 3
)

// WeatherFetcher retrieves the daily record for a past date.
type WeatherFetcher interface {
	Fetch(ctx context.Context, date types.Date) (*types.WeatherRecord, error)
}

// ArtifactLoader produces a validated artifact set. The default loaders read
// from the configured directories; tests substitute their own.
type ArtifactLoader func() (*ml.ArtifactSet, error)

// artifactCache loads an artifact set at most once per success. Concurrent
// first requests share a single load via singleflight; a failed load is not
// cached, so a later request retries after the artifacts are fixed.
type artifactCache struct {
	load  ArtifactLoader
	group singleflight.Group

	mu  sync.RWMutex
	set *ml.ArtifactSet
}

func (c *artifactCache) get() (*ml.ArtifactSet, error) {
	c.mu.RLock()
	set := c.set
	c.mu.RUnlock()
	if set != nil {
		return set, nil
	}

	v, err, _ := c.group.Do("load", func() (any, error) {
		// A load may have completed between the fast-path check and entering
		// the flight.
		c.mu.RLock()
		cached := c.set
		c.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		loaded, loadErr := c.load()
		if loadErr != nil {
			return nil, loadErr
		}

		c.mu.Lock()
		c.set = loaded
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ml.ArtifactSet), nil
}

// Service executes the two prediction pipelines. It is safe for concurrent
// use; all mutable state lives in the artifact caches.
type Service struct {
	fetcher    WeatherFetcher
	rainSpec   *features.Spec
	precipSpec *features.Spec
	rain       *artifactCache
	precip     *artifactCache
	location   *time.Location
	logger     *slog.Logger
	now        func() time.Time // injectable for tests
}

// Option is a functional option for configuring a Service.
type Option func(*Service)

// WithClock overrides the clock used for future-date validation.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		s.now = fn
	}
}

// WithRainLoader overrides the rain artifact loader.
func WithRainLoader(load ArtifactLoader) Option {
	return func(s *Service) {
		s.rain.load = load
	}
}

// WithPrecipitationLoader overrides the precipitation artifact loader.
func WithPrecipitationLoader(load ArtifactLoader) Option {
	return func(s *Service) {
		s.precip.load = load
	}
}

// NewService wires the prediction pipelines. location determines which
// calendar day counts as "today" for input validation and must match the
// fetcher's timezone.
func NewService(fetcher WeatherFetcher, artifacts config.ArtifactsConfig, location *time.Location, logger *slog.Logger, opts ...Option) *Service {
	rainSpec := features.RainFeatures()
	precipSpec := features.PrecipitationFeatures()

	s := &Service{
		fetcher:    fetcher,
		rainSpec:   rainSpec,
		precipSpec: precipSpec,
		rain: &artifactCache{
			load: func() (*ml.ArtifactSet, error) {
				return ml.LoadArtifactSet(artifacts.RainDir, rainSpec.Width(), true)
			},
		},
		precip: &artifactCache{
			load: func() (*ml.ArtifactSet, error) {
				return ml.LoadArtifactSet(artifacts.PrecipitationDir, precipSpec.Width(), false)
			},
		},
		location: location,
		logger:   logger,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// PredictRain answers whether it will rain on the day one week after the
// input date, based on the input date's observed weather.
func (s *Service) PredictRain(ctx context.Context, date types.Date) (*types.RainPrediction, error) {
	if err := s.validateDate(date); err != nil {
		return nil, err
	}

	set, err := s.rain.get()
	if err != nil {
		return nil, err
	}

	scorer, ok := set.Model.(ml.ProbabilityScorer)
	if !ok {
		return nil, types.NewAppError(
			types.ErrCodeInternalModelLoad,
			fmt.Sprintf("rain model kind %q does not produce probabilities", set.Model.Kind()),
			nil,
		)
	}

	record, err := s.fetcher.Fetch(ctx, date)
	if err != nil {
		return nil, err
	}

	vector, err := s.rainSpec.Build(record)
	if err != nil {
		s.logFeatureMismatch(s.rainSpec.Name, err)
		return nil, err
	}
	scaled, err := set.Scaler.Transform(vector)
	if err != nil {
		s.logFeatureMismatch(s.rainSpec.Name, err)
		return nil, err
	}
	probability, err := scorer.ProbabilityOf(scaled)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalFeatureMismatch, "rain model rejected the feature vector", err)
	}

	willRain := probability >= set.Threshold

	s.logger.Info("rain prediction computed",
		slog.String("date", date.String()),
		slog.Float64("probability", probability),
		slog.Float64("threshold", set.Threshold),
		slog.Bool("will_rain", willRain),
	)

	return &types.RainPrediction{
		InputDate: date,
		Prediction: types.RainOutlook{
			Date:     date.AddDays(rainLeadDays),
			WillRain: willRain,
		},
	}, nil
}

// PredictPrecipitation estimates the cumulative precipitation, in
// millimetres, over the three days following the input date.
func (s *Service) PredictPrecipitation(ctx context.Context, date types.Date) (*types.PrecipitationPrediction, error) {
	if err := s.validateDate(date); err != nil {
		return nil, err
	}

	set, err := s.precip.get()
	if err != nil {
		return nil, err
	}

	scorer, ok := set.Model.(ml.ValueScorer)
	if !ok {
		return nil, types.NewAppError(
			types.ErrCodeInternalModelLoad,
			fmt.Sprintf("precipitation model kind %q does not produce values", set.Model.Kind()),
			nil,
		)
	}

	record, err := s.fetcher.Fetch(ctx, date)
	if err != nil {
		return nil, err
	}

	vector, err := s.precipSpec.Build(record)
	if err != nil {
		s.logFeatureMismatch(s.precipSpec.Name, err)
		return nil, err
	}
	scaled, err := set.Scaler.Transform(vector)
	if err != nil {
		s.logFeatureMismatch(s.precipSpec.Name, err)
		return nil, err
	}
	millimetres, err := scorer.ValueOf(scaled)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalFeatureMismatch, "precipitation model rejected the feature vector", err)
	}

	// The regressor can emit slightly negative totals; physical rainfall
	// cannot be negative.
	if millimetres < 0 {
		millimetres = 0
	}

	s.logger.Info("precipitation prediction computed",
		slog.String("date", date.String()),
		slog.Float64("millimetres", millimetres),
	)

	return &types.PrecipitationPrediction{
		InputDate: date,
		Prediction: types.PrecipitationWindow{
			StartDate:         date.AddDays(precipWindowStartDays),
			EndDate:           date.AddDays(precipWindowEndDays),
			PrecipitationFall: fmt.Sprintf("%.1f", millimetres),
		},
	}, nil
}

// CheckArtifacts loads (or reuses) both artifact sets. It backs the health
// probe for model readiness.
func (s *Service) CheckArtifacts(_ context.Context) error {
	if _, err := s.rain.get(); err != nil {
		return fmt.Errorf("rain artifacts: %w", err)
	}
	if _, err := s.precip.get(); err != nil {
		return fmt.Errorf("precipitation artifacts: %w", err)
	}
	return nil
}

// logFeatureMismatch records a feature layout disagreement at error level.
// A mismatch means every request for the task will fail until the artifacts
// and the layout are redeployed in sync.
func (s *Service) logFeatureMismatch(task string, err error) {
	s.logger.Error("feature layout disagrees with deployed artifacts",
		slog.String("task", task),
		slog.Any("error", err),
	)
}

// validateDate rejects today and future dates before any artifact or network
// work happens. The calendar day is computed in the service timezone.
func (s *Service) validateDate(date types.Date) error {
	today := types.DateOf(s.now().In(s.location))
	if !date.Before(today) {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationFutureDate,
			fmt.Sprintf("date must be in the past: historical weather is only available before %s", today),
			nil,
			map[string]any{"date": date.String()},
		)
	}
	return nil
}
