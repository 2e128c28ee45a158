package cmd

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/media-grabber/internal/app"
	"github.com/oshokin/media-grabber/internal/config"
)

func newFlagSet(t *testing.T, add func(*pflag.FlagSet), args ...string) *pflag.FlagSet {
	t.Helper()

	flags := pflag.NewFlagSet(t.Name(), pflag.ContinueOnError)
	add(flags)
	require.NoError(t, flags.Parse(args))

	return flags
}

// TestBindServeFlags tests that only changed flags override the configuration.
func TestBindServeFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want config.Config
	}{
		{
			name: "no flags",
			want: config.Config{ListenAddress: ":8000", StoragePath: "downloads", ProgressTransport: "both"},
		},
		{
			name: "long flags",
			args: []string{"--listen", "127.0.0.1:9000", "--storage", "/srv/media", "--transport", "sse"},
			want: config.Config{ListenAddress: "127.0.0.1:9000", StoragePath: "/srv/media", ProgressTransport: "sse"},
		},
		{
			name: "short flags",
			args: []string{"-l", ":1", "-t", "websocket"},
			want: config.Config{ListenAddress: ":1", StoragePath: "downloads", ProgressTransport: "websocket"},
		},
		{
			name: "explicit empty value",
			args: []string{"--storage="},
			want: config.Config{ListenAddress: ":8000", ProgressTransport: "both"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := &config.Config{ListenAddress: ":8000", StoragePath: "downloads", ProgressTransport: "both"}

			require.NoError(t, bindServeFlags(newFlagSet(t, addServeFlags, tt.args...), cfg))
			assert.Equal(t, tt.want, *cfg)
		})
	}
}

// TestBindGetFlags tests the server override of the get command.
func TestBindGetFlags(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{ServerURL: "http://localhost:8000"}

	require.NoError(t, bindGetFlags(newFlagSet(t, addGetFlags), cfg))
	assert.Equal(t, "http://localhost:8000", cfg.ServerURL)

	require.NoError(t, bindGetFlags(newFlagSet(t, addGetFlags, "--server", "https://grabber.example.com"), cfg))
	assert.Equal(t, "https://grabber.example.com", cfg.ServerURL)
}

// TestGetOptionsFromFlags tests the get command options.
func TestGetOptionsFromFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want app.GetOptions
	}{
		{
			name: "defaults",
			want: app.GetOptions{OutputPath: "."},
		},
		{
			name: "audio to directory",
			args: []string{"-a", "-o", "music"},
			want: app.GetOptions{AudioOnly: true, OutputPath: "music"},
		},
		{
			name: "format",
			args: []string{"--format", "137+140"},
			want: app.GetOptions{FormatID: "137+140", OutputPath: "."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts, err := getOptionsFromFlags(newFlagSet(t, addGetFlags, tt.args...), "https://example.com/watch?v=1")
			require.NoError(t, err)

			want := tt.want
			want.URL = "https://example.com/watch?v=1"

			assert.Equal(t, &want, opts)
		})
	}
}

// TestCommandTree tests that every command is registered.
func TestCommandTree(t *testing.T) {
	t.Parallel()

	for _, path := range [][]string{{"serve"}, {"get"}, {"auth", "login"}, {"version"}} {
		found, _, err := rootCmd.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], found.Name())
	}
}
