// internal/infrastructure/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Job names
const (
	JobEmailScan    = "email_scan"
	JobFlightStatus = "flight_status"
	JobShareCleanup = "share_cleanup"
	JobCheckinSync  = "checkin_sync"
)

// Config holds all configuration for the application
type Config struct {
	// App
	AppVersion string
	LogLevel   string

	// Server
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Postgres
	PostgresDSN    string
	MigrateOnStart bool

	// MongoDB
	MongoURI      string
	MongoDB       string
	MongoUser     string
	MongoPassword string

	// Redis, optional. Enables the cross-instance job lease.
	RedisURL string

	// OAuth application credentials. Per-user settings override these.
	GoogleClientID         string
	GoogleClientSecret     string
	MicrosoftClientID      string
	MicrosoftClientSecret  string
	FoursquareClientID     string
	FoursquareClientSecret string

	// Providers
	OutlookBaseURL    string
	FoursquareBaseURL string
	FoursquareVersion string
	Airlines          []AirlineAPI
	ProviderTimeout   time.Duration
	ProviderRPS       float64
	ProviderBurst     int

	// Jobs
	SchedulerTimezone  string
	AccountConcurrency int
	FlightStatusWindow time.Duration
	JobsFile           string
	Jobs               []JobConfig
}

// AirlineAPI is the endpoint of one airline's flight-status API
type AirlineAPI struct {
	Airline string
	BaseURL string
	APIKey  string
}

// JobConfig is the trigger of one scheduled job. Exactly one of Interval or Daily is set.
type JobConfig struct {
	Name     string `yaml:"name"`
	Interval string `yaml:"interval,omitempty"`
	Daily    string `yaml:"daily,omitempty"`
	Enabled  *bool  `yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the job should be registered
func (j JobConfig) IsEnabled() bool {
	return j.Enabled == nil || *j.Enabled
}

type jobsFile struct {
	Jobs []JobConfig `yaml:"jobs"`
}

// LoadConfig loads configuration from environment variables and the optional jobs file
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		AppVersion:   getEnv("APP_VERSION", "1.0.0"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Port:         getEnv("PORT", "8080"),
		ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 30)) * time.Second,

		PostgresDSN:    getEnv("POSTGRES_DSN", ""),
		MigrateOnStart: getEnvAsBool("MIGRATE_ON_START", true),

		MongoURI:      getEnv("MONGODB_DSN", ""),
		MongoDB:       getEnv("MONGO_DB", "travelsync"),
		MongoUser:     getEnv("MONGO_USER", ""),
		MongoPassword: getEnv("MONGO_PASSWORD", ""),

		RedisURL: getEnv("REDIS_URL", ""),

		GoogleClientID:         getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:     getEnv("GOOGLE_CLIENT_SECRET", ""),
		MicrosoftClientID:      getEnv("MICROSOFT_CLIENT_ID", ""),
		MicrosoftClientSecret:  getEnv("MICROSOFT_CLIENT_SECRET", ""),
		FoursquareClientID:     getEnv("FOURSQUARE_CLIENT_ID", ""),
		FoursquareClientSecret: getEnv("FOURSQUARE_CLIENT_SECRET", ""),

		OutlookBaseURL:    getEnv("OUTLOOK_BASE_URL", "https://graph.microsoft.com/v1.0"),
		FoursquareBaseURL: getEnv("FOURSQUARE_BASE_URL", "https://api.foursquare.com"),
		FoursquareVersion: getEnv("FOURSQUARE_API_VERSION", "20231010"),
		Airlines:          loadAirlines(),
		ProviderTimeout:   getEnvAsDuration("PROVIDER_TIMEOUT", 10*time.Second),
		ProviderRPS:       getEnvAsFloat("PROVIDER_RPS", 5),
		ProviderBurst:     getEnvAsInt("PROVIDER_BURST", 5),

		SchedulerTimezone:  getEnv("SCHEDULER_TIMEZONE", "UTC"),
		AccountConcurrency: getEnvAsInt("ACCOUNT_CONCURRENCY", 1),
		FlightStatusWindow: getEnvAsDuration("FLIGHT_STATUS_WINDOW", 48*time.Hour),
		JobsFile:           getEnv("JOBS_FILE", ""),
	}

	if config.AccountConcurrency < 1 {
		config.AccountConcurrency = 1
	}

	config.Jobs = DefaultJobs(time.Duration(getEnvAsInt("EMAIL_SCAN_INTERVAL", 300)) * time.Second)
	if config.JobsFile != "" {
		overrides, err := readJobsFile(config.JobsFile)
		if err != nil {
			return nil, err
		}
		config.Jobs = MergeJobs(config.Jobs, overrides)
	}

	return config, nil
}

// Location resolves the scheduler timezone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.SchedulerTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DefaultJobs returns the built-in job triggers
func DefaultJobs(emailScanInterval time.Duration) []JobConfig {
	return []JobConfig{
		{Name: JobEmailScan, Interval: emailScanInterval.String()},
		{Name: JobFlightStatus, Interval: "30m"},
		{Name: JobShareCleanup, Daily: "02:00"},
		{Name: JobCheckinSync, Interval: "60m"},
	}
}

// MergeJobs applies overrides by job name. Unknown names are appended.
func MergeJobs(base, overrides []JobConfig) []JobConfig {
	merged := make([]JobConfig, len(base))
	copy(merged, base)

	for _, o := range overrides {
		found := false
		for i := range merged {
			if merged[i].Name != o.Name {
				continue
			}
			found = true
			if o.Interval != "" || o.Daily != "" {
				merged[i].Interval = o.Interval
				merged[i].Daily = o.Daily
			}
			if o.Enabled != nil {
				merged[i].Enabled = o.Enabled
			}
		}
		if !found {
			merged = append(merged, o)
		}
	}
	return merged
}

func readJobsFile(path string) ([]JobConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs file %s: %w", path, err)
	}

	var file jobsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse jobs file %s: %w", path, err)
	}

	for _, j := range file.Jobs {
		if j.Name == "" {
			return nil, fmt.Errorf("jobs file %s: job without a name", path)
		}
		if j.Interval != "" && j.Daily != "" {
			return nil, fmt.Errorf("jobs file %s: job %s sets both interval and daily", path, j.Name)
		}
	}
	return file.Jobs, nil
}

var airlineKeys = []string{"UNITED", "AMERICAN", "DELTA", "SOUTHWEST"}

// loadAirlines reads <AIRLINE>_API_URL and <AIRLINE>_API_KEY for each supported carrier
func loadAirlines() []AirlineAPI {
	airlines := make([]AirlineAPI, 0, len(airlineKeys))
	for _, key := range airlineKeys {
		airlines = append(airlines, AirlineAPI{
			Airline: key,
			BaseURL: getEnv(key+"_API_URL", ""),
			APIKey:  getEnv(key+"_API_KEY", ""),
		})
	}
	return airlines
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.ToLower(getEnv(key, ""))
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or a bare number of seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
