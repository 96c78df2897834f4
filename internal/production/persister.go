// Package production provides production integrations: snapshot
// persistence, fired-event publishing and visualization.
package production

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/comalice/blendx/internal/core"
)

// ErrInvalidSnapshot is returned when a loaded snapshot cannot be restored.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// JSONPersister is a file-based persister using JSON serialization.
type JSONPersister struct {
	dir string
}

// NewJSONPersister creates a JSONPersister, ensuring the directory exists.
func NewJSONPersister(dir string) (*JSONPersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &JSONPersister{dir: dir}, nil
}

func (p *JSONPersister) Save(ctx context.Context, snapshot core.GraphSnapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return writeSnapshot(ctx, p.dir, snapshot.GraphID, ".json", data)
}

func (p *JSONPersister) Load(ctx context.Context, graphID string) (core.GraphSnapshot, error) {
	data, err := readSnapshot(ctx, p.dir, graphID, ".json")
	if err != nil {
		return core.GraphSnapshot{}, err
	}
	var snapshot core.GraphSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return core.GraphSnapshot{}, fmt.Errorf("json unmarshal: %w", err)
	}
	return checked(snapshot, graphID)
}

// YAMLPersister is a file-based persister using YAML serialization.
type YAMLPersister struct {
	dir string
}

// NewYAMLPersister creates a YAMLPersister, ensuring the directory exists.
func NewYAMLPersister(dir string) (*YAMLPersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &YAMLPersister{dir: dir}, nil
}

func (p *YAMLPersister) Save(ctx context.Context, snapshot core.GraphSnapshot) error {
	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	return writeSnapshot(ctx, p.dir, snapshot.GraphID, ".yaml", data)
}

func (p *YAMLPersister) Load(ctx context.Context, graphID string) (core.GraphSnapshot, error) {
	data, err := readSnapshot(ctx, p.dir, graphID, ".yaml")
	if err != nil {
		return core.GraphSnapshot{}, err
	}
	var snapshot core.GraphSnapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return core.GraphSnapshot{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	return checked(snapshot, graphID)
}

func snapshotPath(dir, graphID, ext string) (string, error) {
	if graphID == "" || graphID != filepath.Base(graphID) || graphID == "." || graphID == ".." {
		return "", fmt.Errorf("graph id %q: %w", graphID, ErrInvalidSnapshot)
	}
	return filepath.Join(dir, graphID+ext), nil
}

func writeSnapshot(ctx context.Context, dir, graphID, ext string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn, err := snapshotPath(dir, graphID, ext)
	if err != nil {
		return err
	}
	if err := os.WriteFile(fn, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fn, err)
	}
	return nil
}

func readSnapshot(ctx context.Context, dir, graphID, ext string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fn, err := snapshotPath(dir, graphID, ext)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("graph %q: %w", graphID, os.ErrNotExist)
		}
		return nil, fmt.Errorf("read %s: %w", fn, err)
	}
	return data, nil
}

// checked stamps the id and rejects values the graph would refuse with a
// panic on restore.
func checked(snapshot core.GraphSnapshot, graphID string) (core.GraphSnapshot, error) {
	snapshot.GraphID = graphID
	if !finite(snapshot.Speed) {
		return core.GraphSnapshot{}, fmt.Errorf("graph %q: speed %v: %w", graphID, snapshot.Speed, ErrInvalidSnapshot)
	}
	for _, l := range snapshot.Layers {
		if !validFade(l.Weight, l.TargetWeight, l.FadeSpeed) || !finite(l.Speed) {
			return core.GraphSnapshot{}, fmt.Errorf("layer %q: %w", l.Name, ErrInvalidSnapshot)
		}
		for _, s := range l.States {
			if !validFade(s.Weight, s.TargetWeight, s.FadeSpeed) || !finite(s.Speed) || !finite(s.Time) {
				return core.GraphSnapshot{}, fmt.Errorf("layer %q: state %q: %w", l.Name, s.Key, ErrInvalidSnapshot)
			}
		}
	}
	return snapshot, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func validFade(weight, target, speed float64) bool {
	return finite(weight) && weight >= 0 && finite(target) && target >= 0 && finite(speed) && speed >= 0
}
