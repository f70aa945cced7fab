package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(values map[string]interface{}) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(newViper(map[string]interface{}{
		"MONGO_URI":  "mongodb://localhost:27017",
		"JWT_SECRET": "s3cret",
		"HR_API_URL": "https://hr.example.com/",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30, cfg.MandatoryDeadlineDays)
	assert.Equal(t, 30*time.Second, cfg.HR.Timeout)
	assert.Equal(t, 3, cfg.HR.MaxAttempts)
	assert.Equal(t, 6*time.Hour, cfg.HR.SyncInterval)
	assert.Equal(t, "https://hr.example.com", cfg.HR.APIURL)
	assert.True(t, cfg.HR.Enabled())
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(newViper(map[string]interface{}{
		"MONGO_URI":               "mongodb://db",
		"JWT_SECRET":              "s3cret",
		"MANDATORY_DEADLINE_DAYS": "45",
		"HR_SYNC_INTERVAL":        "90m",
		"ALLOW_ORIGINS":           "https://a.example, https://b.example ,",
		"ENV":                     "Production",
	}))
	require.NoError(t, err)

	assert.Equal(t, 45, cfg.MandatoryDeadlineDays)
	assert.Equal(t, 90*time.Minute, cfg.HR.SyncInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowOrigins)
	assert.False(t, cfg.HR.Enabled())
	assert.True(t, cfg.IsProduction())
}

func TestLoad_MissingRequired(t *testing.T) {
	_, err := load(newViper(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")
	assert.Contains(t, err.Error(), "JWT_SECRET")

	_, err = load(newViper(map[string]interface{}{
		"MONGO_URI":               "mongodb://db",
		"JWT_SECRET":              "s3cret",
		"MANDATORY_DEADLINE_DAYS": 0,
	}))
	assert.Error(t, err)
}
