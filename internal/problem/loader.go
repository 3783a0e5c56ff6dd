// Package problem loads the curated problem bank and serves it read-only.
package problem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/drillpad/internal/domain"
)

// Loader handles loading problem packs from a directory tree:
// <base>/<pack>/pack.yaml lists the problem slugs, and each problem is
// <base>/<pack>/<slug>.yaml or <slug>.toml.
type Loader struct {
	basePath string
}

// NewLoader creates a new problem loader
func NewLoader(basePath string) *Loader {
	return &Loader{basePath: basePath}
}

// BasePath returns the directory packs are read from
func (l *Loader) BasePath() string {
	return l.basePath
}

var _ Source = (*Loader)(nil)

// LoadPack loads a problem pack from a directory
func (l *Loader) LoadPack(packID string) (*domain.ProblemPack, error) {
	packPath := filepath.Join(l.basePath, packID, "pack.yaml")

	data, err := os.ReadFile(packPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPackNotFound, packID)
	}
	if err != nil {
		return nil, fmt.Errorf("read pack file: %w", err)
	}

	var packFile PackFile
	if err := yaml.Unmarshal(data, &packFile); err != nil {
		return nil, fmt.Errorf("parse pack file %s: %w", packID, err)
	}

	id := packFile.ID
	if id == "" {
		id = packID
	}
	lang, err := domain.ParseLanguage(packFile.Language)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", packID, err)
	}

	pack := &domain.ProblemPack{
		ID:          id,
		Name:        packFile.Name,
		Version:     packFile.Version,
		Description: packFile.Description,
		Language:    lang,
		ProblemIDs:  make([]string, len(packFile.Problems)),
	}
	for i, slug := range packFile.Problems {
		pack.ProblemIDs[i] = id + "/" + slug
	}
	return pack, nil
}

// LoadProblem loads a single problem of pack from its YAML or TOML file
func (l *Loader) LoadProblem(pack *domain.ProblemPack, dir, slug string) (*domain.Problem, error) {
	base := filepath.Join(l.basePath, dir, filepath.FromSlash(slug))

	for _, ext := range []string{".yaml", ".yml", ".toml"} {
		data, err := os.ReadFile(base + ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read problem file: %w", err)
		}

		file, err := decodeProblem(data, ext)
		if err != nil {
			return nil, fmt.Errorf("%w: %s/%s: %v", domain.ErrInvalidProblem, pack.ID, slug, err)
		}
		return file.toDomain(pack, slug)
	}
	return nil, fmt.Errorf("%w: %s/%s", domain.ErrProblemNotFound, pack.ID, slug)
}

func decodeProblem(data []byte, ext string) (*ProblemFile, error) {
	if ext == ".toml" {
		var tf tomlProblemFile
		if err := toml.Unmarshal(data, &tf); err != nil {
			return nil, err
		}
		return tf.problemFile(), nil
	}

	var f ProblemFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadAllPacks loads every pack found directly under the base directory
func (l *Loader) LoadAllPacks() ([]*domain.ProblemPack, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("read problems directory: %w", err)
	}

	var packs []*domain.ProblemPack
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		packPath := filepath.Join(l.basePath, entry.Name(), "pack.yaml")
		if _, err := os.Stat(packPath); os.IsNotExist(err) {
			continue
		}

		pack, err := l.LoadPack(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("load pack %s: %w", entry.Name(), err)
		}
		packs = append(packs, pack)
	}

	sort.Slice(packs, func(i, j int) bool { return packs[i].ID < packs[j].ID })
	return packs, nil
}

// LoadPackProblems loads all problems of the pack stored in dir
func (l *Loader) LoadPackProblems(dir string) (*domain.ProblemPack, []*domain.Problem, error) {
	pack, err := l.LoadPack(dir)
	if err != nil {
		return nil, nil, err
	}

	problems := make([]*domain.Problem, 0, len(pack.ProblemIDs))
	for _, id := range pack.ProblemIDs {
		slug := strings.TrimPrefix(id, pack.ID+"/")
		p, err := l.LoadProblem(pack, dir, slug)
		if err != nil {
			return nil, nil, fmt.Errorf("load problem %s: %w", id, err)
		}
		problems = append(problems, p)
	}
	return pack, problems, nil
}

// LoadAll implements Source.
func (l *Loader) LoadAll(ctx context.Context) ([]*domain.ProblemPack, []*domain.Problem, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read problems directory: %w", err)
	}

	var (
		packs    []*domain.ProblemPack
		problems []*domain.Problem
	)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(l.basePath, entry.Name(), "pack.yaml")); os.IsNotExist(err) {
			continue
		}

		pack, ps, err := l.LoadPackProblems(entry.Name())
		if err != nil {
			return nil, nil, fmt.Errorf("load pack %s: %w", entry.Name(), err)
		}
		packs = append(packs, pack)
		problems = append(problems, ps...)
	}
	return packs, problems, nil
}
