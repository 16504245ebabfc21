package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, uint(1), cfg.Read.Retries)
	assert.Equal(t, 50*time.Millisecond, cfg.Read.RetryDelay)
	assert.Equal(t, ProgressAuto, cfg.Progress.Interactive)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Log.File)
	assert.False(t, cfg.Output.Digest)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dvdread.yaml")
	content := `
read:
  retries: 3
  retry_delay: 10ms
progress:
  interactive: never
output:
  digest: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint(3), cfg.Read.Retries)
	assert.Equal(t, 10*time.Millisecond, cfg.Read.RetryDelay)
	assert.Equal(t, ProgressNever, cfg.Progress.Interactive)
	assert.True(t, cfg.Output.Digest)
	assert.Equal(t, "info", cfg.Log.Level, "unset keys keep defaults")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*viper.Viper)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*viper.Viper) {}},
		{name: "zero retries", mutate: func(v *viper.Viper) { v.Set("read.retries", 0) }, wantErr: true},
		{name: "bad progress mode", mutate: func(v *viper.Viper) { v.Set("progress.interactive", "sometimes") }, wantErr: true},
		{name: "bad log level", mutate: func(v *viper.Viper) { v.Set("log.level", "loud") }, wantErr: true},
		{name: "negative retry delay", mutate: func(v *viper.Viper) { v.Set("read.retry_delay", "-1s") }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			tt.mutate(v)

			_, err := Unmarshal(v)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
