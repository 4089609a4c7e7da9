package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.Query.PageSize)
	assert.Equal(t, "dot", cfg.Graph.Format)
	assert.Equal(t, "/v0", cfg.Server.BasePath)
	assert.Error(t, cfg.RequireStore())
}

func TestFromYAMLKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
store:
  url: sqlite:///tmp/mlmd.db
graph:
  max_depth: 3
  format: json
`))
	require.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/mlmd.db", cfg.Store.URL)
	assert.Equal(t, 3, cfg.Graph.MaxDepth)
	assert.Equal(t, "json", cfg.Graph.Format)
	assert.Equal(t, 8, cfg.Graph.Concurrency)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.NoError(t, cfg.RequireStore())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"page size":   "query:\n  page_size: -1\n",
		"depth":       "graph:\n  max_depth: -2\n",
		"concurrency": "graph:\n  concurrency: -1\n",
		"format":      "graph:\n  format: svg\n",
		"base path":   "server:\n  base_path: v0\n",
		"yaml":        "graph: [\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := Path(dir)
	assert.Equal(t, filepath.Join(dir, FileName), path)

	_, err := Load(path)
	assert.ErrorContains(t, err, "not found")

	cfg, err := LoadOptional(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	require.NoError(t, os.WriteFile(path, []byte("query:\n  page_size: 25\n"), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Query.PageSize)
}
