// Package metrics loads, validates and computes aggregate serving-metrics
// snapshots.
package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/adrank-triage/internal/fetcher"
	"github.com/sells-group/adrank-triage/internal/model"
)

// ErrInvalidSnapshot marks a document that could not be decoded or failed
// validation. Callers map it to a client error.
var ErrInvalidSnapshot = eris.New("metrics: invalid snapshot")

// maxDocumentBytes caps remote documents.
const maxDocumentBytes = 32 << 20

// Format is the encoding of a metrics document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the document format from a path or URL extension.
// Anything other than .yaml/.yml is treated as JSON.
func FormatFor(source string) Format {
	p := source
	if u, err := url.Parse(source); err == nil && u.Scheme != "" && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Loader reads metrics documents from local files or HTTP(S) URLs.
type Loader struct {
	fetcher fetcher.Fetcher
}

// NewLoader creates a Loader. f may be nil when only local files are read.
func NewLoader(f fetcher.Fetcher) *Loader {
	return &Loader{fetcher: f}
}

// Load reads, decodes and validates the document at source.
func (l *Loader) Load(ctx context.Context, source string) (*model.MetricsSnapshot, error) {
	log := zap.L().With(zap.String("source", source))

	data, err := l.read(ctx, source)
	if err != nil {
		return nil, err
	}

	snap, err := Parse(data, FormatFor(source))
	if err != nil {
		return nil, err
	}

	log.Debug("metrics: loaded snapshot",
		zap.Int("routes", len(snap.Routes)),
		zap.Int("surfaces", len(snap.Surfaces)),
	)
	return snap, nil
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	if !isRemote(source) {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, eris.Wrapf(err, "metrics: read %s", source)
		}
		return data, nil
	}

	if l.fetcher == nil {
		return nil, eris.Errorf("metrics: no fetcher configured for %s", source)
	}
	body, err := l.fetcher.Download(ctx, source)
	if err != nil {
		return nil, eris.Wrap(err, "metrics: download")
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(body, maxDocumentBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "metrics: read body %s", source)
	}
	return data, nil
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Parse decodes a metrics document and validates it. Decode and validation
// failures wrap ErrInvalidSnapshot.
func Parse(data []byte, format Format) (*model.MetricsSnapshot, error) {
	var snap model.MetricsSnapshot
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &snap); err != nil {
			return nil, eris.Wrapf(ErrInvalidSnapshot, "decode yaml: %v", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&snap); err != nil {
			return nil, eris.Wrapf(ErrInvalidSnapshot, "decode json: %v", err)
		}
	}

	if err := Validate(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Encode renders a snapshot as indented JSON in document order.
func Encode(snap *model.MetricsSnapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "metrics: encode snapshot")
	}
	return append(data, '\n'), nil
}
