package schema

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format identifies a guide document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatForPath picks the document format from the file extension.
func FormatForPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".toml":
		return FormatTOML, true
	default:
		return "", false
	}
}

// LoadFile reads and structurally decodes a guide document.
// Unknown fields are rejected in both encodings.
func LoadFile(path string) (*Guide, error) {
	format, ok := FormatForPath(path)
	if !ok {
		return nil, errors.Errorf("unsupported guide file extension %q", filepath.Ext(path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open guide")
	}
	defer f.Close()
	return Load(f, format)
}

// Load reads a guide document from a reader.
func Load(r io.Reader, format Format) (*Guide, error) {
	var g Guide
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true) // strict: reject unknown fields
		if err := dec.Decode(&g); err != nil {
			return nil, errors.Wrap(err, "structural decode")
		}
	case FormatTOML:
		md, err := toml.NewDecoder(r).Decode(&g)
		if err != nil {
			return nil, errors.Wrap(err, "structural decode")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Errorf("structural decode: unknown field %q", undecoded[0].String())
		}
	default:
		return nil, errors.Errorf("unknown guide format %q", format)
	}
	normalizeSteps(&g)
	return &g, nil
}

// normalizeSteps trims identifiers so hand-written documents compare cleanly.
func normalizeSteps(g *Guide) {
	g.Meta.ID = strings.TrimSpace(g.Meta.ID)
	for i := range g.Steps {
		g.Steps[i].ID = strings.TrimSpace(g.Steps[i].ID)
		g.Steps[i].Previous = strings.TrimSpace(g.Steps[i].Previous)
		g.Steps[i].Completed = false
	}
}

// LoadPlanFile reads a plan/v1 exam plan.
func LoadPlanFile(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open plan")
	}
	defer f.Close()
	return LoadPlan(f)
}

// LoadPlan reads a plan/v1 exam plan from a reader.
func LoadPlan(r io.Reader) (*Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, errors.Wrap(err, "structural decode")
	}
	return &p, nil
}
