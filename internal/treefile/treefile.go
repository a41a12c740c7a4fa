// Package treefile loads decision trees and evaluation contexts from disk.
//
// Trees are authored in the editor as JSON, but hand-written fixtures and
// review copies are easier to read as YAML. Both decode into the same wire
// model; YAML is converted to JSON first so json tags stay the single source
// of truth for field names.
package treefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kaannakiin/decisionkeeper/internal/rules"
	"github.com/kaannakiin/decisionkeeper/internal/types"
)

// Format identifies a file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported file extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
}

// LoadTree reads a decision tree from path.
func LoadTree(path string) (*types.DecisionTree, error) {
	data, format, err := read(path)
	if err != nil {
		return nil, err
	}
	return DecodeTree(data, format)
}

// LoadContext reads an evaluation context from path.
func LoadContext(path string) (rules.Context, error) {
	data, format, err := read(path)
	if err != nil {
		return nil, err
	}
	return DecodeContext(data, format)
}

// DecodeTree decodes a tree in the given format. Unknown JSON keys are
// rejected so misspelled node fields surface instead of validating as empty.
func DecodeTree(data []byte, format Format) (*types.DecisionTree, error) {
	if len(data) > types.MaxTreeBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit is %d", types.ErrTreeTooLarge, len(data), types.MaxTreeBytes)
	}
	jsonData, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.DisallowUnknownFields()

	var tree types.DecisionTree
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return &tree, nil
}

// DecodeContext decodes a flat context object in the given format.
func DecodeContext(data []byte, format Format) (rules.Context, error) {
	jsonData, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}
	return rules.ParseContext(jsonData)
}

func read(path string) ([]byte, Format, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	// One byte past the limit so DecodeTree can report the overflow.
	data, err := io.ReadAll(io.LimitReader(f, types.MaxTreeBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	return data, format, nil
}

func toJSON(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return data, nil
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}
