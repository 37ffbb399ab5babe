// Package registry holds the immutable guide templates a session can start.
package registry

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ormasoftchile/labguide/pkg/guide/schema"
	"github.com/ormasoftchile/labguide/pkg/guide/validate"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// guideSuffixes are the file name endings LoadDir picks up.
var guideSuffixes = []string{".guide.yaml", ".guide.yml", ".guide.toml"}

// Registry maps guide ids to templates. Templates are registered once and
// handed out read-only; sessions clone them before mutating anything.
type Registry struct {
	mu     sync.RWMutex
	guides map[string]*schema.Guide
	paths  map[string]string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		guides: make(map[string]*schema.Guide),
		paths:  make(map[string]string),
	}
}

// Register adds a template. Registering an id twice is an error.
func (r *Registry) Register(g *schema.Guide) error {
	if g == nil || g.ID() == "" {
		return errors.New("register guide: empty guide id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.guides[g.ID()]; exists {
		return errors.Errorf("register guide: duplicate guide id %q", g.ID())
	}
	r.guides[g.ID()] = g
	return nil
}

// LookupGuideTemplate returns the template registered under id.
func (r *Registry) LookupGuideTemplate(id string) (*schema.Guide, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.guides[id]
	return g, ok
}

// Has reports whether a guide id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.LookupGuideTemplate(id)
	return ok
}

// IDs returns the registered guide ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.guides))
	for id := range r.guides {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Path returns the file a guide was loaded from, if any.
func (r *Registry) Path(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paths[id]
}

// LoadFile validates a single guide file and registers it.
func (r *Registry) LoadFile(path string) (*schema.Guide, error) {
	g, errs := validate.ValidateFile(path)
	for _, w := range errs {
		if w.Severity == "warning" {
			log.Warn().Str("file", path).Str("path", w.Path).Msg(w.Message)
		}
	}
	if validate.HasErrors(errs) {
		return nil, errors.Errorf("%s: %s", path, validate.Errors(errs)[0])
	}
	if err := r.Register(g); err != nil {
		return nil, errors.Wrap(err, path)
	}
	r.mu.Lock()
	r.paths[g.ID()] = path
	r.mu.Unlock()
	return g, nil
}

// LoadDir registers every guide document found under dir (recursively).
// Loading stops at the first invalid document.
func (r *Registry) LoadDir(dir string) (int, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if isGuideFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "scan guides in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		g, err := r.LoadFile(f)
		if err != nil {
			return 0, err
		}
		log.Debug().Str("guide", g.ID()).Str("file", f).Int("steps", len(g.Steps)).Msg("registered guide")
	}
	return len(files), nil
}

func isGuideFile(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range guideSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
