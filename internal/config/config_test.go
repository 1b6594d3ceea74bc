package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbeast-live/link-server/internal/protocol/lbeast"
)

func TestLoadFromFile(t *testing.T) {
	content := `
app:
  name: link-server
  env: test
http:
  addr: ":9090"
link:
  replayWindow: 250ms
  queueSize: 128
  sessionTimeout: 30s
controllers:
  - name: tilt-platform
    transport: udp
    addr: 192.168.10.21:9000
    securityLevel: encrypted
    secret: VenueSecret_2025
  - name: gun-bench
    transport: serial
    device: /dev/ttyUSB0
    debug: true
`
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Link.ReplayWindow)
	assert.Equal(t, 128, cfg.Link.QueueSize)
	assert.Equal(t, 30*time.Second, cfg.Link.SessionTimeout)

	require.Len(t, cfg.Controllers, 2)
	assert.Equal(t, "tilt-platform", cfg.Controllers[0].Name)
	assert.Equal(t, "encrypted", cfg.Controllers[0].SecurityLevel)
	assert.True(t, cfg.Controllers[1].Debug)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Controllers[1].Device)
}

func TestLoadFromEnvVar(t *testing.T) {
	content := `
app:
  env: staging
http:
  addr: ":7070"
`
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// 空 cwd，确保不会命中 ./configs 的隐式查找
	cwd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(cwd) })
	require.NoError(t, os.Chdir(t.TempDir()))

	t.Setenv("LINK_CONFIG", path)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.App.Env)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	// 显式指定的配置文件缺失是错误；仅隐式查找允许缺省
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSetDefaultsOnly(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(cwd) })
	require.NoError(t, os.Chdir(t.TempDir()))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "link-server", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 100*time.Millisecond, cfg.Link.ReplayWindow)
	assert.Equal(t, 256, cfg.Link.QueueSize)
	assert.True(t, cfg.Metrics.Enable)
	assert.False(t, cfg.Database.Enable)
	assert.False(t, cfg.Redis.Enable)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    lbeast.SecurityLevel
		wantErr bool
	}{
		{"", lbeast.SecurityNone, false},
		{"none", lbeast.SecurityNone, false},
		{"hmac", lbeast.SecurityHMAC, false},
		{"HMAC", lbeast.SecurityHMAC, false},
		{"encrypted", lbeast.SecurityEncrypted, false},
		{"Encrypted", lbeast.SecurityEncrypted, false},
		{"tls", 0, true},
	}
	for _, tt := range tests {
		t.Run("level_"+tt.in, func(t *testing.T) {
			got, err := ControllerConfig{SecurityLevel: tt.in}.ParseLevel()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
