package main

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the command line with the given arguments and returns the
// configuration it would have served with, or nil if it never got there.
func execute(t *testing.T, args ...string) (*config, error) {
	var served *config
	cmd := newRootCommand(func(c *config) error {
		served = c
		return nil
	})
	if args == nil {
		// Otherwise cobra falls back to the test binary's arguments.
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetOut(ioutil.Discard)
	cmd.SetErr(ioutil.Discard)
	err := cmd.Execute()
	return served, err
}

func writeConfig(t *testing.T, content string) string {
	pathname := filepath.Join(t.TempDir(), "noteserver.config")
	require.Nil(t, ioutil.WriteFile(pathname, []byte(content), 0600))
	return pathname
}

func TestRequiredFlags(t *testing.T) {
	t.Run("all given, short form", func(t *testing.T) {
		c, err := execute(t, "-h", "localhost", "-p", "3000", "-c", "/tmp/notes")
		require.Nil(t, err)
		require.NotNil(t, c)
		assert.Equal(t, "localhost", c.Host)
		assert.Equal(t, 3000, c.Port)
		assert.Equal(t, "/tmp/notes", c.Cache)
		assert.Nil(t, c.Mirror)
	})
	t.Run("all given, long form", func(t *testing.T) {
		c, err := execute(t, "--host", "0.0.0.0", "--port", "8080", "--cache", "notes", "--debug")
		require.Nil(t, err)
		require.NotNil(t, c)
		assert.Equal(t, "0.0.0.0", c.Host)
		assert.Equal(t, 8080, c.Port)
		assert.Equal(t, "notes", c.Cache)
		assert.True(t, c.Debug)
	})
	testCases := []struct {
		name    string
		args    []string
		missing string
	}{
		{"no storage directory", []string{"-h", "localhost", "-p", "3000"}, "missing cache"},
		{"no host", []string{"-p", "3000", "-c", "notes"}, "missing host"},
		{"no port", []string{"-h", "localhost", "-c", "notes"}, "missing port"},
		{"nothing", nil, "missing host"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := execute(t, tc.args...)
			require.NotNil(t, err)
			assert.Contains(t, err.Error(), tc.missing)
			assert.Nil(t, c, "should not get to serving")
		})
	}
	t.Run("port out of range", func(t *testing.T) {
		c, err := execute(t, "-h", "localhost", "-p", "70000", "-c", "notes")
		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "port out of range")
		assert.Nil(t, c)
	})
	t.Run("stray arguments", func(t *testing.T) {
		c, err := execute(t, "-h", "localhost", "-p", "3000", "-c", "notes", "extra")
		assert.NotNil(t, err)
		assert.Nil(t, c)
	})
}

func TestConfigFile(t *testing.T) {
	t.Run("file supplies everything", func(t *testing.T) {
		pathname := writeConfig(t, `{
			host: "localhost"
			port: 3000
			cache: "/var/lib/notes"
			metrics: true
			mirror: {
				kind: "bolt"
				path: "/var/lib/notes.db"
				rate: 10
			}
		}`)
		c, err := execute(t, "--config", pathname)
		require.Nil(t, err)
		require.NotNil(t, c)
		assert.Equal(t, "localhost", c.Host)
		assert.Equal(t, 3000, c.Port)
		assert.Equal(t, "/var/lib/notes", c.Cache)
		assert.True(t, c.Metrics)
		require.NotNil(t, c.Mirror)
		assert.Equal(t, "bolt", c.Mirror.Kind)
		assert.Equal(t, "/var/lib/notes.db", c.Mirror.Path)
		assert.EqualValues(t, 10, c.Mirror.Rate)
	})
	t.Run("flags override the file", func(t *testing.T) {
		pathname := writeConfig(t, `{host: "localhost", port: 3000, cache: "/var/lib/notes"}`)
		c, err := execute(t, "--config", pathname, "-p", "4000", "-c", "elsewhere")
		require.Nil(t, err)
		require.NotNil(t, c)
		assert.Equal(t, "localhost", c.Host)
		assert.Equal(t, 4000, c.Port)
		assert.Equal(t, "elsewhere", c.Cache)
	})
	t.Run("flags complete the file", func(t *testing.T) {
		pathname := writeConfig(t, `{host: "localhost", port: 3000}`)
		_, err := execute(t, "--config", pathname)
		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "missing cache")
		c, err := execute(t, "--config", pathname, "-c", "notes")
		require.Nil(t, err)
		assert.Equal(t, "notes", c.Cache)
	})
	t.Run("missing file", func(t *testing.T) {
		c, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope"), "-h", "localhost", "-p", "3000", "-c", "notes")
		assert.NotNil(t, err)
		assert.Nil(t, c)
	})
	t.Run("incomplete mirror", func(t *testing.T) {
		pathname := writeConfig(t, `{
			host: "localhost"
			port: 3000
			cache: "notes"
			mirror: {kind: "s3", region: "eu-west-2"}
		}`)
		_, err := execute(t, "--config", pathname)
		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "missing mirror.bucket")
	})
	t.Run("unknown mirror kind", func(t *testing.T) {
		pathname := writeConfig(t, `{
			host: "localhost"
			port: 3000
			cache: "notes"
			mirror: {kind: "ftp"}
		}`)
		_, err := execute(t, "--config", pathname)
		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "mirror.kind must be one of: bolt s3")
	})
}
