package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected *Config
		name     string
		args     []string
		wantErr  bool
	}{
		{name: "Test1 OK", args: []string{"-a", "127.0.0.1:9090", "-i", "10", "-d", "/tmp/n.db", "-token=t0k"},
			expected: &Config{ServerEndpointAddr: "127.0.0.1:9090", OnlineCheckInterval: 10 * time.Second,
				DatabasePath: "/tmp/n.db", AccessToken: "t0k"}},
		{name: "Test2 unknown flags are skipped", args: []string{"-x", "1", "-cache", "/c", "-l", "warn"},
			expected: &Config{CacheDir: "/c", LogLevel: "warn"}},
		{name: "Test3 incorrect check interval", args: []string{"-a", "127.0.0.1:9090", "-i", "abc"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			err := parseFlags(config, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}

func TestParseFlags_KeepsSubSecondInterval(t *testing.T) {
	config := &Config{OnlineCheckInterval: 1500 * time.Millisecond}
	require.NoError(t, parseFlags(config, nil))
	assert.Equal(t, 1500*time.Millisecond, config.OnlineCheckInterval)
}
