package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/linuxmatters/jivebeat/internal/audio"
)

// SidecarSuffix is appended to an audio path to name its JSON sidecar.
const SidecarSuffix = ".jivebeat.json"

// SidecarPath returns the sidecar file name for audioPath.
func SidecarPath(audioPath string) string {
	return audioPath + SidecarSuffix
}

// WriteJSON writes r as indented JSON to path. The file is written to a
// temporary name in the same directory and renamed into place.
func WriteJSON(path string, r Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".jivebeat-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create sidecar: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write sidecar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write sidecar: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write sidecar: %w", err)
	}
	return nil
}

// ReadJSON loads a Result written by WriteJSON.
func ReadJSON(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return r, nil
}

// FindAudio lists files under root whose extension is in the allow-list,
// sorted by path. Subdirectories are walked only when recursive is set.
func FindAudio(root string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, classify(root, err)
	}
	if !info.IsDir() {
		return nil, classify(root, fmt.Errorf("%s is not a directory: %w", root, os.ErrNotExist))
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if audio.FormatFromPath(path) != audio.FormatUnknown {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, classify(root, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// AnalyzeDir analyses every supported file under dir.
func (e *Engine) AnalyzeDir(ctx context.Context, dir string, recursive bool, progress ProgressFunc) ([]BatchResult, error) {
	paths, err := FindAudio(dir, recursive)
	if err != nil {
		return nil, err
	}
	return e.AnalyzeBatch(ctx, paths, progress), nil
}
