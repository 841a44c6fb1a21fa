package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLoggerOptions struct {
	Level  string `cfg:"level" def:"info" validate:"oneof=debug info warn error"`
	Format string `cfg:"format" def:"text"`
}

type testOptions struct {
	Dir          string             `cfg:"dir"`
	DatabaseName string             `cfg:"databaseName" def:"application.db" validate:"required"`
	Version      int                `cfg:"version" def:"1" validate:"gte=1"`
	CacheSize    int                `cfg:"cacheSize" def:"1024"`
	Metrics      bool               `cfg:"metrics"`
	Timeout      time.Duration      `cfg:"timeout" def:"5s"`
	Tags         []string           `cfg:"tags"`
	Logger       *testLoggerOptions `cfg:"logger"`
	Ignored      string             `cfg:"-"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(filename, []byte(content), 0644))
	return filename
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "orm.yaml",
			content: `
dir: /data
databaseName: app.db
version: 3
metrics: true
timeout: 2s
tags: [a, b]
logger:
  level: debug
`,
		},
		{
			name: "toml",
			file: "orm.toml",
			content: `
dir = "/data"
databaseName = "app.db"
version = 3
metrics = true
timeout = "2s"
tags = ["a", "b"]

[logger]
level = "debug"
`,
		},
		{
			name: "json",
			file: "orm.json",
			content: `{"dir": "/data", "databaseName": "app.db", "version": 3, "metrics": true,
"timeout": "2s", "tags": ["a", "b"], "logger": {"level": "debug"}}`,
		},
		{
			name: "ini",
			file: "orm.ini",
			content: `
dir = /data
databaseName = app.db
version = 3
metrics = true
timeout = 2s
tags = a, b

[logger]
level = debug
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var options testOptions
			require.NoError(t, Load(writeFile(t, tt.file, tt.content), &options))

			assert.Equal(t, "/data", options.Dir)
			assert.Equal(t, "app.db", options.DatabaseName)
			assert.Equal(t, 3, options.Version)
			assert.Equal(t, 1024, options.CacheSize)
			assert.True(t, options.Metrics)
			assert.Equal(t, 2*time.Second, options.Timeout)
			assert.Equal(t, []string{"a", "b"}, options.Tags)
			require.NotNil(t, options.Logger)
			assert.Equal(t, "debug", options.Logger.Level)
			assert.Equal(t, "text", options.Logger.Format)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("unsupported extension", func(t *testing.T) {
		var options testOptions
		err := Load(writeFile(t, "orm.xml", "<orm/>"), &options)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("missing file", func(t *testing.T) {
		var options testOptions
		assert.Error(t, Load(filepath.Join(t.TempDir(), "absent.yaml"), &options))
	})

	t.Run("validation failure", func(t *testing.T) {
		var options testOptions
		err := Load(writeFile(t, "orm.yaml", "version: -1\n"), &options)
		assert.Error(t, err)
	})

	t.Run("bad type", func(t *testing.T) {
		var options testOptions
		err := Load(writeFile(t, "orm.yaml", "version: [1, 2]\n"), &options)
		assert.Error(t, err)
	})
}

func TestPrepare(t *testing.T) {
	options := &testOptions{Version: 7}
	require.NoError(t, Prepare(options))

	assert.Equal(t, 7, options.Version)
	assert.Equal(t, "application.db", options.DatabaseName)
	assert.Equal(t, 5*time.Second, options.Timeout)
	assert.Nil(t, options.Logger)
}

func TestSetDefaultsErrors(t *testing.T) {
	assert.Error(t, SetDefaults(nil))
	assert.Error(t, SetDefaults(testOptions{}))

	type badDefault struct {
		Count int `def:"many"`
	}
	assert.Error(t, SetDefaults(&badDefault{}))
}
