// Package jobset loads Hydra jobset configuration documents.
//
// A jobset document is defined by the Hydra server. It is loaded once,
// checked against the fields Hydra knows about, and then forwarded to the
// server byte for byte. Fields this package does not know pass through
// untouched.
package jobset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"hydractl/internal/apperrors"
)

// Format identifies the on-disk encoding of a jobset document.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONC Format = "jsonc"
	FormatYAML  Format = "yaml"
)

// FormatFromPath picks the document format from the file extension.
// Unknown extensions are treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonc":
		return FormatJSONC
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Config is a loaded jobset document. It is immutable: accessors return
// copies and MarshalJSON always yields the bytes that were loaded.
type Config struct {
	raw json.RawMessage
}

// Schema is the typed view of the fields Hydra interprets.
type Schema struct {
	Description      string           `json:"description,omitempty"`
	NixExprInput     string           `json:"nixexprinput,omitempty"`
	NixExprPath      string           `json:"nixexprpath,omitempty"`
	CheckInterval    *int             `json:"checkinterval,omitempty"`
	SchedulingShares *int             `json:"schedulingshares,omitempty"`
	KeepNr           *int             `json:"keepnr,omitempty"`
	Enabled          *State           `json:"enabled,omitempty"`
	Visible          *bool            `json:"visible,omitempty"`
	Hidden           *bool            `json:"hidden,omitempty"`
	EnableEmail      *bool            `json:"enableemail,omitempty"`
	EmailOverride    string           `json:"emailoverride,omitempty"`
	Type             *int             `json:"type,omitempty"`
	Flake            string           `json:"flake,omitempty"`
	Inputs           map[string]Input `json:"inputs,omitempty"`
}

// Input is one jobset input (a git repository, a nix expression, ...).
type Input struct {
	Type             string `json:"type"`
	Value            string `json:"value"`
	EmailResponsible *bool  `json:"emailresponsible,omitempty"`
}

// State is the jobset "enabled" field. Older Hydra versions use a boolean,
// newer ones 0 (disabled), 1 (enabled) or 2 (one-shot).
type State int

const (
	StateDisabled State = 0
	StateEnabled  State = 1
	StateOneShot  State = 2
)

// UnmarshalJSON accepts both encodings of the enabled field.
func (s *State) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*s = StateEnabled
		} else {
			*s = StateDisabled
		}
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("enabled must be a boolean or 0, 1, 2, got %s", data)
	}
	if n < int(StateDisabled) || n > int(StateOneShot) {
		return fmt.Errorf("enabled must be 0, 1 or 2, got %d", n)
	}
	*s = State(n)
	return nil
}

// LoadConfig reads the file at path and parses it as a jobset document.
// Read failures return an apperrors.ErrConfigRead error, malformed or
// schema-mismatched documents an apperrors.ErrConfigParse error.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.ConfigRead(path, err)
	}

	cfg, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, apperrors.ConfigParse(path, err)
	}
	return cfg, nil
}

// utf8BOM is written at the start of files by some Windows editors.
var utf8BOM = []byte("\xEF\xBB\xBF")

// Parse decodes a jobset document in the given format.
func Parse(data []byte, format Format) (*Config, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var doc []byte
	switch format {
	case FormatJSON:
		doc = data
	case FormatJSONC:
		doc = jsonc.ToJSON(data)
	case FormatYAML:
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, err
		}
		doc = converted
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 || doc[0] != '{' {
		return nil, errors.New("jobset configuration must be a JSON object")
	}
	if !json.Valid(doc) {
		// Surface the decoder's message, which carries the offset.
		var v any
		if err := json.Unmarshal(doc, &v); err != nil {
			return nil, err
		}
		return nil, errors.New("invalid JSON document")
	}

	var schema Schema
	if err := json.Unmarshal(doc, &schema); err != nil {
		return nil, err
	}
	for name, input := range schema.Inputs {
		if input.Type == "" {
			return nil, fmt.Errorf("input %q: type is required", name)
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, doc); err != nil {
		return nil, err
	}

	return &Config{raw: compact.Bytes()}, nil
}

// yamlToJSON re-encodes a YAML mapping as JSON.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, errors.New("jobset configuration must be a mapping")
	}
	return json.Marshal(doc)
}

// MarshalJSON returns the document exactly as loaded (compacted).
func (c *Config) MarshalJSON() ([]byte, error) {
	return c.Bytes(), nil
}

// Bytes returns a copy of the document.
func (c *Config) Bytes() []byte {
	out := make([]byte, len(c.raw))
	copy(out, c.raw)
	return out
}

// Schema returns the typed view of the known fields. Each call decodes a
// fresh value, so callers cannot reach the loaded document through it.
func (c *Config) Schema() Schema {
	var s Schema
	_ = json.Unmarshal(c.raw, &s) // validated by Parse
	return s
}

// Fields decodes the document into a generic map.
func (c *Config) Fields() (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(c.raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
