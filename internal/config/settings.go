// Package config provides the read-only simulation settings and the
// structured effects document.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrConfig marks malformed or missing configuration. Fatal at bootstrap.
var ErrConfig = errors.New("config error")

// Settings is the read-only configuration snapshot the engine consumes.
type Settings struct {
	SimSpeedFactor            float64
	Realtime                  bool
	MaxQueueSize              int
	BatchSize                 int
	BatchRetryBackoffs        []time.Duration
	DecideScoreThreshold      float64
	TrendArchiveThresholdDays int
	PostCooldownMin           float64
	SelfDevCooldownMin        float64
	MaxPurchasesDay           int
	ShutdownTimeout           time.Duration
	EnergyRecoveryIntervalMin float64
	ExposureResetMin          float64
	CacheTTL                  time.Duration
	CacheMaxSize              int

	// Run parameters.
	NumAgents    int
	DurationDays int
	Seed         int64
}

// Default returns the settings with every option at its documented default.
func Default() *Settings {
	return &Settings{
		SimSpeedFactor:            60,
		MaxQueueSize:              5000,
		BatchSize:                 100,
		BatchRetryBackoffs:        []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		DecideScoreThreshold:      0.25,
		TrendArchiveThresholdDays: 3,
		PostCooldownMin:           60,
		SelfDevCooldownMin:        30,
		MaxPurchasesDay:           5,
		ShutdownTimeout:           30 * time.Second,
		EnergyRecoveryIntervalMin: 1440,
		ExposureResetMin:          1440,
		CacheTTL:                  2880 * time.Minute,
		CacheMaxSize:              10000,
		NumAgents:                 300,
		DurationDays:              1,
		Seed:                      42,
	}
}

// FromEnv builds settings from environment variables, falling back to the
// defaults, and validates the result.
func FromEnv() (*Settings, error) {
	s := Default()
	var err error

	s.SimSpeedFactor = envFloat("SIM_SPEED_FACTOR", s.SimSpeedFactor, &err)
	s.Realtime = envBool("ENABLE_REALTIME", s.Realtime, &err)
	s.MaxQueueSize = envInt("MAX_QUEUE_SIZE", s.MaxQueueSize, &err)
	s.BatchSize = envInt("BATCH_SIZE", s.BatchSize, &err)
	s.DecideScoreThreshold = envFloat("DECIDE_SCORE_THRESHOLD", s.DecideScoreThreshold, &err)
	s.TrendArchiveThresholdDays = envInt("TREND_ARCHIVE_THRESHOLD_DAYS", s.TrendArchiveThresholdDays, &err)
	s.PostCooldownMin = envFloat("POST_COOLDOWN_MIN", s.PostCooldownMin, &err)
	s.SelfDevCooldownMin = envFloat("SELF_DEV_COOLDOWN_MIN", s.SelfDevCooldownMin, &err)
	s.MaxPurchasesDay = envInt("MAX_PURCHASES_DAY", s.MaxPurchasesDay, &err)
	s.ShutdownTimeout = time.Duration(envInt("SHUTDOWN_TIMEOUT_SEC", int(s.ShutdownTimeout/time.Second), &err)) * time.Second
	s.EnergyRecoveryIntervalMin = envFloat("ENERGY_RECOVERY_INTERVAL_MIN", s.EnergyRecoveryIntervalMin, &err)
	s.ExposureResetMin = envFloat("EXPOSURE_RESET_MIN", s.ExposureResetMin, &err)
	s.CacheTTL = time.Duration(envInt("CACHE_TTL_MIN", int(s.CacheTTL/time.Minute), &err)) * time.Minute
	s.CacheMaxSize = envInt("CACHE_MAX_SIZE", s.CacheMaxSize, &err)
	s.NumAgents = envInt("NUM_AGENTS", s.NumAgents, &err)
	s.DurationDays = envInt("DURATION_DAYS", s.DurationDays, &err)
	s.Seed = int64(envInt("SIM_SEED", int(s.Seed), &err))

	if raw := os.Getenv("BATCH_RETRY_BACKOFFS"); raw != "" {
		backoffs, perr := parseBackoffs(raw)
		if perr != nil {
			err = perr
		} else {
			s.BatchRetryBackoffs = backoffs
		}
	}

	if err != nil {
		return nil, err
	}
	if verr := s.Validate(); verr != nil {
		return nil, verr
	}
	return s, nil
}

// Validate checks option ranges.
func (s *Settings) Validate() error {
	switch {
	case s.SimSpeedFactor <= 0:
		return fmt.Errorf("%w: SIM_SPEED_FACTOR must be > 0, got %g", ErrConfig, s.SimSpeedFactor)
	case s.MaxQueueSize <= 0:
		return fmt.Errorf("%w: MAX_QUEUE_SIZE must be > 0, got %d", ErrConfig, s.MaxQueueSize)
	case s.BatchSize <= 0:
		return fmt.Errorf("%w: BATCH_SIZE must be > 0, got %d", ErrConfig, s.BatchSize)
	case s.DecideScoreThreshold < 0:
		return fmt.Errorf("%w: DECIDE_SCORE_THRESHOLD must be >= 0, got %g", ErrConfig, s.DecideScoreThreshold)
	case s.TrendArchiveThresholdDays <= 0:
		return fmt.Errorf("%w: TREND_ARCHIVE_THRESHOLD_DAYS must be > 0, got %d", ErrConfig, s.TrendArchiveThresholdDays)
	case s.MaxPurchasesDay < 0:
		return fmt.Errorf("%w: MAX_PURCHASES_DAY must be >= 0, got %d", ErrConfig, s.MaxPurchasesDay)
	case s.NumAgents <= 0:
		return fmt.Errorf("%w: NUM_AGENTS must be > 0, got %d", ErrConfig, s.NumAgents)
	case s.DurationDays <= 0:
		return fmt.Errorf("%w: DURATION_DAYS must be > 0, got %d", ErrConfig, s.DurationDays)
	case len(s.BatchRetryBackoffs) == 0:
		return fmt.Errorf("%w: BATCH_RETRY_BACKOFFS must not be empty", ErrConfig)
	}
	return nil
}

// HorizonMinutes is the planned run length in sim-minutes.
func (s *Settings) HorizonMinutes() float64 {
	return float64(s.DurationDays) * 1440
}

// BatchTimeout is the wall-clock interval equivalent to one sim-minute at
// the configured speed: the repository's time-based commit trigger.
func (s *Settings) BatchTimeout() time.Duration {
	return time.Duration(60 / s.SimSpeedFactor * float64(time.Second))
}

func envFloat(key string, def float64, err *error) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, perr := strconv.ParseFloat(raw, 64)
	if perr != nil {
		*err = fmt.Errorf("%w: %s=%q: %v", ErrConfig, key, raw, perr)
		return def
	}
	return v
}

func envInt(key string, def int, err *error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, perr := strconv.Atoi(raw)
	if perr != nil {
		*err = fmt.Errorf("%w: %s=%q: %v", ErrConfig, key, raw, perr)
		return def
	}
	return v
}

func envBool(key string, def bool, err *error) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, perr := strconv.ParseBool(raw)
	if perr != nil {
		*err = fmt.Errorf("%w: %s=%q: %v", ErrConfig, key, raw, perr)
		return def
	}
	return v
}

// parseBackoffs parses a comma-separated list of seconds, e.g. "1,2,4".
func parseBackoffs(raw string) ([]time.Duration, error) {
	parts := strings.Split(raw, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		sec, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || sec < 0 {
			return nil, fmt.Errorf("%w: BATCH_RETRY_BACKOFFS=%q", ErrConfig, raw)
		}
		out = append(out, time.Duration(sec*float64(time.Second)))
	}
	return out, nil
}
