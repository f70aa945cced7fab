package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds every setting read from the environment. Keys are the upper-case
// environment variable names; viper also accepts them lower-cased.
type Config struct {
	Env          string
	Port         string
	AllowOrigins []string

	MongoURI      string
	MongoDatabase string

	JWTSecret string
	// RBACPolicyFile is the casbin policy (role, route, method).
	RBACPolicyFile string

	// StoreLocationsFile is the versioned store-name -> locCode table.
	StoreLocationsFile string
	// MandatoryDeadlineDays is the deadline given to auto-provisioned trainings.
	MandatoryDeadlineDays int

	HR HRConfig
}

// HRConfig configures the employee-directory API and the reconciliation job.
type HRConfig struct {
	APIURL       string
	APIKey       string
	Timeout      time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
	RatePerSec   float64
	Burst        int
	SyncInterval time.Duration
	EmpIDPrefix  string
	EmpIDStart   int
	EmpIDEnd     int
	PageSize     int
}

// Enabled reports whether an HR API is configured.
func (h HRConfig) Enabled() bool { return h.APIURL != "" }

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOW_ORIGINS", "http://localhost:5173")
	v.SetDefault("MONGO_DATABASE", "lms")
	v.SetDefault("STORE_LOCATIONS_FILE", "config/store_locations.yaml")
	v.SetDefault("RBAC_POLICY_FILE", "config/rbac_policy.csv")
	v.SetDefault("MANDATORY_DEADLINE_DAYS", 30)

	v.SetDefault("HR_API_TIMEOUT", 30*time.Second)
	v.SetDefault("HR_API_MAX_ATTEMPTS", 3)
	v.SetDefault("HR_API_RETRY_BACKOFF", 2*time.Second)
	v.SetDefault("HR_API_RATE_PER_SEC", 2.0)
	v.SetDefault("HR_API_BURST", 1)
	v.SetDefault("HR_SYNC_INTERVAL", 6*time.Hour)
	v.SetDefault("HR_EMP_ID_PREFIX", "EMP")
	v.SetDefault("HR_EMP_ID_START", 1)
	v.SetDefault("HR_EMP_ID_END", 9999)
	v.SetDefault("HR_PAGE_SIZE", 250)
}

// NewConfig reads the environment (after bootstrap.Loadenv) and fails on missing
// required settings.
func NewConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Env:                   v.GetString("ENV"),
		Port:                  v.GetString("PORT"),
		AllowOrigins:          splitList(v.GetString("ALLOW_ORIGINS")),
		MongoURI:              v.GetString("MONGO_URI"),
		MongoDatabase:         v.GetString("MONGO_DATABASE"),
		JWTSecret:             v.GetString("JWT_SECRET"),
		RBACPolicyFile:        v.GetString("RBAC_POLICY_FILE"),
		StoreLocationsFile:    v.GetString("STORE_LOCATIONS_FILE"),
		MandatoryDeadlineDays: v.GetInt("MANDATORY_DEADLINE_DAYS"),
		HR: HRConfig{
			APIURL:       strings.TrimRight(v.GetString("HR_API_URL"), "/"),
			APIKey:       v.GetString("HR_API_KEY"),
			Timeout:      v.GetDuration("HR_API_TIMEOUT"),
			MaxAttempts:  v.GetInt("HR_API_MAX_ATTEMPTS"),
			RetryBackoff: v.GetDuration("HR_API_RETRY_BACKOFF"),
			RatePerSec:   v.GetFloat64("HR_API_RATE_PER_SEC"),
			Burst:        v.GetInt("HR_API_BURST"),
			SyncInterval: v.GetDuration("HR_SYNC_INTERVAL"),
			EmpIDPrefix:  v.GetString("HR_EMP_ID_PREFIX"),
			EmpIDStart:   v.GetInt("HR_EMP_ID_START"),
			EmpIDEnd:     v.GetInt("HR_EMP_ID_END"),
			PageSize:     v.GetInt("HR_PAGE_SIZE"),
		},
	}

	var missing []string
	if cfg.MongoURI == "" {
		missing = append(missing, "MONGO_URI")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return nil, errors.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}
	if cfg.MandatoryDeadlineDays <= 0 {
		return nil, errors.New("MANDATORY_DEADLINE_DAYS must be positive")
	}
	if cfg.HR.MaxAttempts < 1 {
		cfg.HR.MaxAttempts = 1
	}
	if cfg.HR.PageSize < 1 || cfg.HR.EmpIDEnd < cfg.HR.EmpIDStart {
		return nil, errors.New("invalid HR employee range or page size")
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
