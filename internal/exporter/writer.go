// -----------------------------------------------------------------------
// Writer - Theme config serialization to disk
// -----------------------------------------------------------------------

package exporter

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/atlas/pkg/models"
)

// Output formats supported by Write.
const (
	FormatJSON = "json"
	FormatXML  = "xml"
	FormatYAML = "yaml"
)

// Write validates a theme config and writes it to dir as
// "<project-name>.<format>". It returns the written path.
func Write(config *models.ThemeConfig, dir, format string) (string, error) {
	if err := config.Validate(); err != nil {
		return "", fmt.Errorf("theme config invalid: %w", err)
	}

	if format == "" {
		format = FormatJSON
	}
	format = strings.ToLower(format)

	var data []byte
	var err error
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(config, "", "  ")
	case FormatXML:
		data, err = xml.MarshalIndent(config, "", "  ")
		if err == nil {
			data = append([]byte(xml.Header), data...)
		}
	case FormatYAML, "yml":
		data, err = yaml.Marshal(config)
	default:
		return "", fmt.Errorf("unsupported output format %q (json, xml or yaml)", format)
	}
	if err != nil {
		return "", fmt.Errorf("encode theme config: %w", err)
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	name := config.Project.Name
	if name == "" {
		name = "theme"
	}
	outPath := filepath.Join(dir, name+"."+format)
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return "", err
	}
	return outPath, nil
}
