package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.NotNil(t, cfg)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 150, cfg.Announcements.PreviewLength)
	assert.False(t, cfg.Preferences.RejectDuplicates)
	assert.Equal(t, "@every 1h", cfg.Exports.CleanupSpec)
	assert.Equal(t, 24*time.Hour, cfg.Exports.ResultTTL)
	assert.Equal(t, int64(5*1024*1024), cfg.Companies.UploadMaxBytes)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ANNOUNCEMENT_PREVIEW_LENGTH", 0)
	v.Set("PREFERENCES_REJECT_DUPLICATES", true)
	v.Set("ALLOWED_ORIGINS", "http://a.test, http://b.test ,")
	v.Set("CACHE_TTL", "not-a-duration")

	cfg := fromViper(v)
	assert.Equal(t, 150, cfg.Announcements.PreviewLength)
	assert.True(t, cfg.Preferences.RejectDuplicates)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
}
