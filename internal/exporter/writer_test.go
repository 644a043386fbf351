package exporter

import (
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/atlas/pkg/models"
)

func sampleConfig() *models.ThemeConfig {
	return &models.ThemeConfig{
		Project: models.Project{Name: "city", Version: "1"},
		Datasets: models.Datasets{
			Vector: []models.Vector{{Name: "roads", Driver: "ogr"}},
		},
	}
}

func TestWrite_JSON(t *testing.T) {
	dir := t.TempDir()
	path, err := Write(sampleConfig(), dir, "json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "city.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded models.ThemeConfig
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "city", decoded.Project.Name)
	assert.Equal(t, "1", decoded.Project.Version)
	require.Len(t, decoded.Datasets.Vector, 1)
	assert.Equal(t, "roads", decoded.Datasets.Vector[0].Name)
}

func TestWrite_DefaultsToJSON(t *testing.T) {
	dir := t.TempDir()
	path, err := Write(sampleConfig(), dir, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "city.json"), path)
}

func TestWrite_XML(t *testing.T) {
	dir := t.TempDir()
	path, err := Write(sampleConfig(), dir, "xml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "city.xml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), xml.Header))
	assert.Contains(t, string(data), "<theme")

	var decoded models.ThemeConfig
	require.NoError(t, xml.Unmarshal(data, &decoded))
	assert.Equal(t, "city", decoded.Project.Name)
}

func TestWrite_YAML(t *testing.T) {
	dir := t.TempDir()
	path, err := Write(sampleConfig(), dir, "yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "city.yaml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded models.ThemeConfig
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "city", decoded.Project.Name)

	// The yml alias keeps its spelling in the file extension.
	path, err = Write(sampleConfig(), dir, "yml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "city.yml"), path)
}

func TestWrite_UppercaseFormat(t *testing.T) {
	dir := t.TempDir()
	path, err := Write(sampleConfig(), dir, "JSON")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "city.json"), path)
}

func TestWrite_DefaultDirectory(t *testing.T) {
	t.Chdir(t.TempDir())
	path, err := Write(sampleConfig(), "", "json")
	require.NoError(t, err)
	assert.Equal(t, "city.json", path)
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestWrite_UnsupportedFormat(t *testing.T) {
	_, err := Write(sampleConfig(), t.TempDir(), "toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestWrite_InvalidConfig(t *testing.T) {
	config := sampleConfig()
	config.Project.Name = ""
	_, err := Write(config, t.TempDir(), "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "theme config invalid")
}
