// Package loader reads metadata snapshot documents in YAML or JSON from a
// local path or a file://, mem:// or http(s):// URL served by the afs storage layer.
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/vaultgraph/pkg/graph"
	"github.com/leapstack-labs/vaultgraph/pkg/metadata"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Format is a snapshot document encoding.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseError describes a document that could not be decoded.
type ParseError struct {
	Location string
	Message  string
}

func (e *ParseError) Error() string {
	if e.Location == "" {
		return "invalid snapshot: " + e.Message
	}
	return fmt.Sprintf("invalid snapshot %s: %s", e.Location, e.Message)
}

// Unwrap lets callers treat parse failures as invalid arguments.
func (e *ParseError) Unwrap() error {
	return graph.ErrInvalidArgument
}

// Loader fetches snapshot documents.
type Loader struct {
	fs afs.Service
}

// New creates a loader backed by the default afs service.
func New() *Loader {
	return &Loader{fs: afs.New()}
}

// Load downloads and decodes the snapshot at location. The format follows the
// file extension, falling back to sniffing the content.
func (l *Loader) Load(ctx context.Context, location string) (metadata.Snapshot, error) {
	url, err := normalize(location)
	if err != nil {
		return metadata.Snapshot{}, err
	}

	exists, err := l.fs.Exists(ctx, url)
	if err != nil {
		return metadata.Snapshot{}, fmt.Errorf("failed to stat %s: %w", location, err)
	}
	if !exists {
		return metadata.Snapshot{}, graph.NotFound("snapshot %s does not exist", location)
	}

	data, err := l.fs.DownloadWithURL(ctx, url)
	if err != nil {
		return metadata.Snapshot{}, fmt.Errorf("failed to read %s: %w", location, err)
	}

	snap, err := Parse(data, DetectFormat(location, data))
	var pe *ParseError
	if errors.As(err, &pe) {
		pe.Location = location
	}
	return snap, err
}

// Read decodes a snapshot from r, typically stdin.
func Read(r io.Reader, format Format) (metadata.Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return metadata.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if format == "" {
		format = DetectFormat("", data)
	}
	return Parse(data, format)
}

// Parse decodes a snapshot document. Unknown fields are rejected.
func Parse(data []byte, format Format) (metadata.Snapshot, error) {
	var snap metadata.Snapshot

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&snap); err != nil {
			return metadata.Snapshot{}, &ParseError{Message: err.Error()}
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&snap); err != nil && !errors.Is(err, io.EOF) {
			return metadata.Snapshot{}, &ParseError{Message: err.Error()}
		}
	default:
		return metadata.Snapshot{}, graph.InvalidArgument("unsupported snapshot format %q", format)
	}

	return snap, nil
}

// DetectFormat picks a format from the location's extension, then from the
// first non-blank byte of data.
func DetectFormat(location string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(location)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

// normalize turns bare paths into absolute ones; URLs pass through.
// supportedSchemes are the schemes afs handles without extra connectors.
var supportedSchemes = map[string]bool{
	"file":  true,
	"mem":   true,
	"http":  true,
	"https": true,
}

func normalize(location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", graph.InvalidArgument("snapshot location is empty")
	}
	if scheme, _, ok := strings.Cut(location, "://"); ok {
		if !supportedSchemes[strings.ToLower(scheme)] {
			return "", graph.InvalidArgument("unsupported snapshot scheme %q (use file, mem, http or https)", scheme)
		}
		return location, nil
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", location, err)
	}
	return abs, nil
}
