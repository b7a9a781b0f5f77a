package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeExcludedPaths(t *testing.T) {
	result := NormalizeExcludedPaths([]string{"./data/", "venv", "/logs", ""}, "requirements.txt", "yappa.yaml")

	assert.Contains(t, result, ".git")
	assert.Contains(t, result, "__pycache__")
	assert.Contains(t, result, "data")
	assert.Contains(t, result, "logs")
	assert.Contains(t, result, "requirements.txt")
	assert.Contains(t, result, "yappa.yaml")
	assert.IsIncreasing(t, result)

	count := 0
	for _, p := range result {
		if p == "venv" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestNormalizeExcludedPaths_Stable(t *testing.T) {
	a := NormalizeExcludedPaths([]string{"b", "a"}, "req.txt", "yappa.yaml")
	b := NormalizeExcludedPaths([]string{"a", "b"}, "req.txt", "yappa.yaml")
	assert.Equal(t, a, b)
}

func TestIsExcluded(t *testing.T) {
	excluded := NormalizeExcludedPaths([]string{"data", "docs/build"}, "requirements.txt", "yappa.yaml")

	tests := []struct {
		path     string
		expected bool
	}{
		{"a.py", false},
		{"venv", true},
		{"venv/flask.py", true},
		{".git/config", true},
		{"requirements.txt", true},
		{"yappa.yaml", true},
		{"data", true},
		{"data/file.csv", true},
		{"database.py", false},
		{"pkg/data/file.csv", false},
		{"docs/build/index.html", true},
		{"docs/index.md", false},
		{"pkg/__pycache__/mod.pyc", true},
		{"package/utils.py", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsExcluded(tt.path, excluded))
		})
	}
}

func TestConfigExcluded_IncludesProjectFiles(t *testing.T) {
	cfg := &Config{ExcludedPaths: []string{"data"}, GatewayConfig: "deploy/gw.yaml"}
	cfg.ApplyDefaults()

	excluded := cfg.Excluded("yappa.yaml")
	assert.Contains(t, excluded, "data")
	assert.Contains(t, excluded, "yappa.yaml")
	assert.Contains(t, excluded, "requirements.txt")
	assert.Contains(t, excluded, "deploy/gw.yaml")
	assert.True(t, IsExcluded("deploy/gw.yaml", excluded))
	assert.False(t, IsExcluded("deploy/app.py", excluded))
}
