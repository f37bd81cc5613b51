package resolution

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Store remembers decisions between runs. Implementations load everything
// when opened and persist the whole set on every change.
type Store interface {
	Get(key Key) (Decision, bool)
	Put(ctx context.Context, key Key, d Decision) error
	Len() int
	Close() error
}

// OpenStore opens the store selected by driver ("json" or "sqlite").
func OpenStore(ctx context.Context, driver, path string) (Store, error) {
	switch driver {
	case "", "json":
		return OpenJSONStore(path)
	case "sqlite":
		return OpenSQLiteStore(ctx, path)
	default:
		return nil, eris.Errorf("resolution: unknown store driver %q", driver)
	}
}

// JSONStore keeps decisions in a single JSON object keyed by Key.String.
type JSONStore struct {
	path      string
	decisions map[Key]Decision
}

// OpenJSONStore loads path. A missing file starts empty. A file that cannot
// be parsed is renamed to path+".unreadable" and the store starts empty.
func OpenJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{path: path, decisions: make(map[Key]Decision)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "resolution: read decisions")
	}

	var raw map[string]Decision
	if err := json.Unmarshal(data, &raw); err != nil {
		aside := path + ".unreadable"
		zap.L().Warn("resolution: ignoring unreadable decisions file",
			zap.String("path", path), zap.String("moved_to", aside), zap.Error(err))
		if rerr := os.Rename(path, aside); rerr != nil {
			zap.L().Warn("resolution: could not move unreadable decisions file", zap.Error(rerr))
		}
		return s, nil
	}
	for k, d := range raw {
		key, err := ParseKey(k)
		if err != nil || !d.Kind.Valid() {
			zap.L().Debug("resolution: skipping decision", zap.String("key", k))
			continue
		}
		s.decisions[key] = d
	}
	return s, nil
}

func (s *JSONStore) Get(key Key) (Decision, bool) {
	d, ok := s.decisions[key]
	return d, ok
}

func (s *JSONStore) Put(_ context.Context, key Key, d Decision) error {
	s.decisions[key] = d
	return s.flush()
}

func (s *JSONStore) Len() int { return len(s.decisions) }

func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) flush() error {
	raw := make(map[string]Decision, len(s.decisions))
	for k, d := range s.decisions {
		raw[k.String()] = d
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return eris.Wrap(err, "resolution: marshal decisions")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return eris.Wrap(err, "resolution: create decisions directory")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrap(err, "resolution: write decisions")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrap(err, "resolution: replace decisions")
	}
	return nil
}
