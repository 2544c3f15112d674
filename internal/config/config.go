// Package config defines service configuration structures and loading hooks.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":5000".
	Addr string `koanf:"addr"`

	// StoreBackend selects the gallery store: mongo, file or mysql.
	StoreBackend string `koanf:"store_backend"`

	// StoreFallback switches to the file store when the configured backend
	// is unreachable at startup.
	StoreFallback bool `koanf:"store_fallback"`

	MongoURI       string `koanf:"mongo_uri"`
	MongoDatabase  string `koanf:"mongo_database"`
	MongoTimeoutMS int    `koanf:"mongo_timeout_ms"`

	// MySQLDSN is a go-sql-driver DSN, e.g. user:pass@tcp(host:3306)/db?parseTime=true.
	MySQLDSN string `koanf:"mysql_dsn"`

	// DataDir holds local_students.json and local_attendance.json for the file store.
	DataDir string `koanf:"data_dir"`

	// UploadsDir receives enrollment reference images; empty disables archiving.
	UploadsDir string `koanf:"uploads_dir"`

	// CascadePath points at a pigo face cascade file.
	CascadePath         string  `koanf:"cascade_path"`
	DetectorMinSize     int     `koanf:"detector_min_size"`
	DetectorMaxSize     int     `koanf:"detector_max_size"`
	DetectorShiftFactor float64 `koanf:"detector_shift_factor"`
	DetectorScaleFactor float64 `koanf:"detector_scale_factor"`
	DetectorIoU         float64 `koanf:"detector_iou_threshold"`
	DetectorMinQuality  float32 `koanf:"detector_min_quality"`

	EnrollThreshold    float64 `koanf:"enroll_threshold"`
	RecognizeThreshold float64 `koanf:"recognize_threshold"`

	// MatchPolicy is "first" or "best".
	MatchPolicy string `koanf:"match_policy"`

	// DedupeWindowSeconds suppresses repeat attendance marks for the same
	// roll; zero records every recognition.
	DedupeWindowSeconds int `koanf:"dedupe_window_seconds"`
	DedupeSize          int `koanf:"dedupe_size"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":5000",
		StoreBackend:        "mongo",
		StoreFallback:       true,
		MongoURI:            "mongodb://localhost:27017/",
		MongoDatabase:       "ai_attendance",
		MongoTimeoutMS:      5000,
		DataDir:             ".",
		UploadsDir:          "uploads",
		DetectorMinSize:     20,
		DetectorMaxSize:     1000,
		DetectorShiftFactor: 0.1,
		DetectorScaleFactor: 1.1,
		DetectorIoU:         0.2,
		DetectorMinQuality:  5.0,
		EnrollThreshold:     0.8,
		RecognizeThreshold:  0.7,
		MatchPolicy:         "first",
		DedupeSize:          10_000,
		CORSOrigins:         []string{"*"},
	}
}

// MongoTimeout returns the server selection timeout.
func (c *Config) MongoTimeout() time.Duration {
	return time.Duration(c.MongoTimeoutMS) * time.Millisecond
}

// DedupeWindow returns the attendance suppression window.
func (c *Config) DedupeWindow() time.Duration {
	return time.Duration(c.DedupeWindowSeconds) * time.Second
}
