// Package config loads rig files in YAML, HCL or JSON form.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"

	"github.com/comalice/blendx/internal/ctxlog"
	"github.com/comalice/blendx/internal/primitives"
)

// Format identifies a rig file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
	FormatJSON Format = "json"
)

// ErrUnsupportedFormat is returned for unknown file extensions.
var ErrUnsupportedFormat = errors.New("unsupported rig format")

// FormatOf selects a format by file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
}

// Load reads, decodes and validates a rig file.
func Load(ctx context.Context, path string) (*primitives.RigConfig, error) {
	logger := ctxlog.FromContext(ctx)
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	rig, err := Parse(data, path, format)
	if err != nil {
		return nil, err
	}
	logger.Debug("rig loaded", "path", path, "format", format, "rig", rig.ID,
		"version", primitives.ComputeVersion(rig), "layers", len(rig.Layers))
	return rig, nil
}

// Parse decodes a rig from data. filename is only used in diagnostics.
// Unknown fields are rejected in every format.
func Parse(data []byte, filename string, format Format) (*primitives.RigConfig, error) {
	var rig primitives.RigConfig
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&rig); err != nil {
			return nil, fmt.Errorf("failed to decode YAML file %s: %w", filename, err)
		}
	case FormatHCL:
		file, diags := hclparse.NewParser().ParseHCL(data, filename)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
		}
		if diags := gohcl.DecodeBody(file.Body, nil, &rig); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&rig); err != nil {
			return nil, fmt.Errorf("failed to decode JSON file %s: %w", filename, err)
		}
	default:
		return nil, fmt.Errorf("%s: %q: %w", filename, format, ErrUnsupportedFormat)
	}
	if rig.Schema == 0 {
		rig.Schema = primitives.SchemaVersion
	}
	if err := rig.Validate(); err != nil {
		return nil, fmt.Errorf("rig %s: %w", filename, err)
	}
	return &rig, nil
}
