package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConfiguration_Formats(t *testing.T) {
	testCases := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "app.yaml",
			content: `server:
  address: ":9090"
  read_timeout: 5s
`,
		},
		{
			name:    "json",
			file:    "app.json",
			content: `{"server": {"address": ":9090", "read_timeout": "5s"}}`,
		},
		{
			name: "toml",
			file: "app.toml",
			content: `[server]
address = ":9090"
read_timeout = "5s"
`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New(WithConfigFile(writeFile(t, tc.file, tc.content)), WithWatch(false))
			require.NoError(t, err)
			defer c.Close()

			assert.Equal(t, ":9090", c.GetString("server.address"))
			assert.Equal(t, 5*time.Second, c.GetDuration("server.read_timeout"))
			assert.True(t, c.Has("server"))
			assert.False(t, c.Has("server.missing"))
		})
	}
}

func TestConfiguration_UnknownFormat(t *testing.T) {
	_, err := New(WithConfigFile(writeFile(t, "app.ini", "a=b")), WithWatch(false))
	assert.Error(t, err)
}

func TestConfiguration_MissingFileIgnored(t *testing.T) {
	c, err := New(WithConfigFile(filepath.Join(t.TempDir(), "none.yaml")), WithWatch(false))
	require.NoError(t, err)
	assert.Empty(t, c.AllSettings())
}

func TestConfiguration_EnvOverridesFile(t *testing.T) {
	t.Setenv("STRANDTEST_SERVER__ADDRESS", ":7070")
	t.Setenv("STRANDTEST_SERVER__MAX_HEADER_BYTES", "2048")

	path := writeFile(t, "app.yaml", "server:\n  address: \":9090\"\n  development: true\n")
	c, err := New(WithConfigFile(path), WithEnvPrefix("STRANDTEST_"), WithWatch(false))
	require.NoError(t, err)

	assert.Equal(t, ":7070", c.GetString("server.address"))
	assert.Equal(t, 2048, c.GetInt("server.max_header_bytes"))
	assert.True(t, c.GetBool("server.development"))
}

type serverSection struct {
	Address        string        `config:"address"`
	ReadTimeout    time.Duration `config:"read_timeout"`
	MaxHeaderBytes int           `config:"max_header_bytes"`
	Origins        []string      `config:"origins"`
}

func TestConfiguration_Unmarshal(t *testing.T) {
	t.Setenv("STRANDTEST_SERVER__MAX_HEADER_BYTES", "4096")
	t.Setenv("STRANDTEST_SERVER__ORIGINS", "a.example,b.example")

	path := writeFile(t, "app.yaml", "server:\n  address: \":9090\"\n  read_timeout: 2s\n")
	c, err := New(WithConfigFile(path), WithEnvPrefix("STRANDTEST_"), WithWatch(false))
	require.NoError(t, err)

	var s serverSection
	require.NoError(t, c.Unmarshal("server", &s))
	assert.Equal(t, serverSection{
		Address:        ":9090",
		ReadTimeout:    2 * time.Second,
		MaxHeaderBytes: 4096,
		Origins:        []string{"a.example", "b.example"},
	}, s)

	assert.Error(t, c.Unmarshal("absent", &s))
}

func TestConfiguration_SetAndListeners(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	var keys []string
	remove := c.AddChangeListener(func(key string) { keys = append(keys, key) })

	c.Set("cache.size", 10)
	assert.Equal(t, 10, c.GetInt("cache.size"))
	assert.Equal(t, map[string]any{"size": 10}, c.GetStringMap("cache"))

	remove()
	c.Set("cache.size", 20)
	assert.Equal(t, []string{"cache.size"}, keys)
}

func TestConfiguration_GetStringSlice(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	c.Set("list", []any{"a", 1})
	c.Set("csv", "x, y")
	assert.Equal(t, []string{"a", "1"}, c.GetStringSlice("list"))
	assert.Equal(t, []string{"x", "y"}, c.GetStringSlice("csv"))
	assert.Nil(t, c.GetStringSlice("none"))
}

func TestConfiguration_Watch(t *testing.T) {
	path := writeFile(t, "app.yaml", "name: one\n")
	c, err := New(WithConfigFile(path))
	require.NoError(t, err)
	defer c.Close()

	changed := make(chan struct{}, 1)
	c.AddChangeListener(func(string) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("name: two\n"), 0o644))
	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}
	assert.Eventually(t, func() bool {
		return c.GetString("name") == "two"
	}, 5*time.Second, 10*time.Millisecond)
}
