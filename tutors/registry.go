// Package tutors provides the tutor registry the reference backend serves
// from: tutor definitions loaded from a JSON file, optionally hot-reloaded
// when the file changes on disk.
package tutors

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Tutor is one published tutor definition. PasswordSHA256, when set, is the
// lowercase hex SHA-256 of the access password and gates session creation.
type Tutor struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Subject        string `json:"subject"`
	WelcomeMessage string `json:"welcomeMessage,omitempty"`
	Language       string `json:"language,omitempty"`
	PasswordSHA256 string `json:"passwordSha256,omitempty"`
}

// RequiresPassword reports whether the tutor is password-gated.
func (t *Tutor) RequiresPassword() bool { return t.PasswordSHA256 != "" }

// CheckPassword verifies a candidate against the stored digest in constant
// time. An ungated tutor accepts any candidate.
func (t *Tutor) CheckPassword(candidate string) bool {
	if t.PasswordSHA256 == "" {
		return true
	}
	sum := sha256.Sum256([]byte(candidate))
	want, err := hex.DecodeString(t.PasswordSHA256)
	if err != nil || len(want) != len(sum) {
		return false
	}
	return subtle.ConstantTimeCompare(sum[:], want) == 1
}

// HashPassword returns the digest format stored in the registry file.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

type registryFile struct {
	Tutors []Tutor `json:"tutors"`
}

// Registry holds the current tutor set. It is safe for concurrent use;
// Reload swaps the set atomically.
type Registry struct {
	path string
	log  *slog.Logger

	mu   sync.RWMutex
	byID map[string]Tutor
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// Load reads the registry file at path and builds a Registry from it.
func Load(path string, opts ...Option) (*Registry, error) {
	r := &Registry{path: path, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the registry file and swaps in the new tutor set. On
// failure the previous set stays in place.
func (r *Registry) Reload() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read tutors file: %w", err)
	}
	var file registryFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse tutors file: %w", err)
	}
	byID := make(map[string]Tutor, len(file.Tutors))
	for _, t := range file.Tutors {
		if t.ID == "" {
			return fmt.Errorf("tutors file: tutor with empty id")
		}
		if _, dup := byID[t.ID]; dup {
			return fmt.Errorf("tutors file: duplicate tutor id %q", t.ID)
		}
		byID[t.ID] = t
	}
	r.mu.Lock()
	r.byID = byID
	r.mu.Unlock()
	return nil
}

// Get returns the tutor with the given id.
func (r *Registry) Get(id string) (*Tutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return &t, true
}

// List returns all tutors sorted by id.
func (r *Registry) List() []Tutor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tutor, 0, len(r.byID))
	for _, t := range r.byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of registered tutors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Watch reloads the registry whenever the file changes on disk, until ctx
// is cancelled. Editors often replace files via rename, so create and
// rename events on the path count as changes too. Reload failures keep the
// previous set and are logged, not fatal.
func (r *Registry) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch tutors file: %w", err)
	}
	if err := w.Add(filepath.Dir(r.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch tutors dir: %w", err)
	}
	go func() {
		defer w.Close()
		target := filepath.Clean(r.path)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != target {
					continue
				}
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := r.Reload(); err != nil {
					r.log.Warn("tutors.reload.fail", slog.String("err", err.Error()))
					continue
				}
				r.log.Info("tutors.reload.ok", slog.Int("count", r.Count()))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				r.log.Debug("tutors.watch.err", slog.String("err", err.Error()))
			}
		}
	}()
	return nil
}
