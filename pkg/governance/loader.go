package governance

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// SeedDocument is the on-disk form of a policy seed file. A single file may
// declare any number of policies.
type SeedDocument struct {
	Policies []SeedPolicy `yaml:"policies" json:"policies"`
}

// SeedPolicy is one policy declaration inside a seed file. The definition is
// kept raw until the kind is known, then parsed through the typed variants.
type SeedPolicy struct {
	Name        string                 `yaml:"name" json:"name"`
	Kind        PolicyKind             `yaml:"kind" json:"kind"`
	Scope       *string                `yaml:"scope,omitempty" json:"scope,omitempty"`
	Severity    Severity               `yaml:"severity" json:"severity"`
	Active      *bool                  `yaml:"active,omitempty" json:"active,omitempty"`
	Description string                 `yaml:"description,omitempty" json:"description,omitempty"`
	Definition  map[string]interface{} `yaml:"definition" json:"definition"`
}

// Loader reads policy seed files and keeps them fresh via file watching.
// Seed files are administrative bootstrap material, not an authoring surface:
// every document still passes full definition validation before it is handed
// to the reload callback.
type Loader struct {
	logger  zerolog.Logger
	mu      sync.RWMutex
	watcher *fsnotify.Watcher
}

// NewLoader creates a policy seed loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger: logger.With().Str("component", "policy-loader").Logger(),
	}
}

// LoadFromPaths loads and validates policies from a list of file or
// directory paths.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Policy, error) {
	var all []Policy

	for _, path := range paths {
		policies, err := l.loadFromPath(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to load from path %s: %w", path, err)
		}
		all = append(all, policies...)
	}

	l.logger.Info().
		Int("total", len(all)).
		Int("sources", len(paths)).
		Msg("Policies loaded from paths")

	return all, nil
}

func (l *Loader) loadFromPath(ctx context.Context, path string) ([]Policy, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		return l.loadFromDirectory(ctx, path)
	}

	return l.loadFromFile(path)
}

// loadFromDirectory loads every seed file in a directory recursively. A file
// that fails to parse is logged and skipped so one bad document cannot take
// down the whole seed set.
func (l *Loader) loadFromDirectory(ctx context.Context, dirPath string) ([]Policy, error) {
	var policies []Policy

	err := filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !seedFile(path) {
			return nil
		}

		loaded, err := l.loadFromFile(path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Failed to load policy seed file")
			return nil
		}

		policies = append(policies, loaded...)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return policies, nil
}

func (l *Loader) loadFromFile(filePath string) ([]Policy, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var doc SeedDocument
	switch {
	case strings.HasSuffix(filePath, ".yaml"), strings.HasSuffix(filePath, ".yml"):
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML seed file: %w", err)
		}
	case strings.HasSuffix(filePath, ".json"):
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON seed file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported file type: %s", filePath)
	}

	policies := make([]Policy, 0, len(doc.Policies))
	for i := range doc.Policies {
		policy, err := doc.Policies[i].ToPolicy()
		if err != nil {
			return nil, fmt.Errorf("policy %q in %s: %w", doc.Policies[i].Name, filePath, err)
		}
		policies = append(policies, *policy)
	}

	l.logger.Debug().
		Str("path", filePath).
		Int("policies", len(policies)).
		Msg("Policy seed file loaded")

	return policies, nil
}

// ToPolicy validates the seed declaration and converts it to a policy with a
// fully typed definition. Timestamps and the ID are left for the store to
// assign.
func (s *SeedPolicy) ToPolicy() (*Policy, error) {
	if s.Name == "" {
		return nil, fmt.Errorf("policy name is required")
	}
	if !s.Kind.Valid() {
		return nil, fmt.Errorf("unknown policy kind: %q", s.Kind)
	}
	if s.Severity == "" {
		s.Severity = SeverityWarning
	}
	if !s.Severity.Valid() {
		return nil, fmt.Errorf("unknown severity: %q", s.Severity)
	}

	raw, err := json.Marshal(s.Definition)
	if err != nil {
		return nil, fmt.Errorf("failed to encode definition: %w", err)
	}

	def, err := ParseDefinition(s.Kind, raw)
	if err != nil {
		return nil, err
	}

	active := true
	if s.Active != nil {
		active = *s.Active
	}

	return &Policy{
		Name:        s.Name,
		Kind:        s.Kind,
		Scope:       s.Scope,
		Definition:  def,
		Severity:    s.Severity,
		Active:      active,
		Description: s.Description,
	}, nil
}

// Watch starts watching seed paths and invokes reloadFn with the freshly
// loaded and validated policy set whenever a seed file changes.
func (l *Loader) Watch(ctx context.Context, paths []string, reloadFn func([]Policy) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	l.mu.Lock()
	l.watcher = watcher
	l.mu.Unlock()

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Failed to stat path for watching")
			continue
		}

		if info.IsDir() {
			if err := l.watchDirectory(path); err != nil {
				l.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch directory")
			}
		} else {
			if err := watcher.Add(path); err != nil {
				l.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch file")
			}
		}
	}

	go l.processEvents(ctx, paths, reloadFn)

	l.logger.Info().
		Int("paths", len(paths)).
		Msg("Started watching policy seed paths")

	return nil
}

func (l *Loader) watchDirectory(dirPath string) error {
	return filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return l.watcher.Add(path)
		}

		return nil
	})
}

// processEvents debounces file system events and triggers reloads.
func (l *Loader) processEvents(ctx context.Context, paths []string, reloadFn func([]Policy) error) {
	var reloadTimer *time.Timer
	reloadDelay := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			_ = l.StopWatching()
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !seedFile(event.Name) {
				continue
			}

			l.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Policy seed file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, func() {
				if err := l.triggerReload(ctx, paths, reloadFn); err != nil {
					l.logger.Error().Err(err).Msg("Failed to reload policies")
				}
			})

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (l *Loader) triggerReload(ctx context.Context, paths []string, reloadFn func([]Policy) error) error {
	l.logger.Info().Msg("Reloading policy seeds...")

	policies, err := l.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to reload policies: %w", err)
	}

	if err := reloadFn(policies); err != nil {
		return fmt.Errorf("failed to apply reloaded policies: %w", err)
	}

	l.logger.Info().
		Int("count", len(policies)).
		Msg("Policy seeds reloaded successfully")

	return nil
}

// StopWatching stops watching for file changes.
func (l *Loader) StopWatching() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

func seedFile(path string) bool {
	return strings.HasSuffix(path, ".yaml") ||
		strings.HasSuffix(path, ".yml") ||
		strings.HasSuffix(path, ".json")
}
