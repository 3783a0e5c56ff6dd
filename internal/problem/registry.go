package problem

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/felixgeelhaar/drillpad/internal/domain"
)

// Source produces the packs and problems a Registry serves. Loader reads
// them from YAML and TOML files; the SQLite problem store reads a
// prebuilt bank.
type Source interface {
	LoadAll(ctx context.Context) ([]*domain.ProblemPack, []*domain.Problem, error)
}

// Repository is read-only access to the problem bank.
type Repository interface {
	Get(id string) (*domain.Problem, error)
	List(filter Filter) []*domain.Problem
	Languages() []domain.Language
	Stats() Stats
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Language   domain.Language
	PackID     string
	Category   string
	Difficulty domain.Difficulty
	Tag        string
}

func (f Filter) match(p *domain.Problem) bool {
	switch {
	case f.Language != "" && p.Language != f.Language:
		return false
	case f.PackID != "" && p.PackID != f.PackID:
		return false
	case f.Category != "" && p.Category != f.Category:
		return false
	case f.Difficulty != "" && p.Difficulty != f.Difficulty:
		return false
	case f.Tag != "" && !p.HasTag(f.Tag):
		return false
	}
	return true
}

// Stats summarizes the bank
type Stats struct {
	Packs        int                       `json:"packs"`
	Problems     int                       `json:"problems"`
	TestCases    int                       `json:"test_cases"`
	ByLanguage   map[domain.Language]int   `json:"by_language"`
	ByDifficulty map[domain.Difficulty]int `json:"by_difficulty"`
}

// ErrAlreadyLoaded is returned by a second Load.
var ErrAlreadyLoaded = errors.New("problem registry already loaded")

// Registry provides access to problems and packs. It is filled once by
// Load and never changes afterwards, so the problems it hands out can be
// shared across concurrent validations.
type Registry struct {
	mu       sync.RWMutex
	packs    map[string]*domain.ProblemPack
	problems map[string]*domain.Problem
	loaded   bool
}

var _ Repository = (*Registry)(nil)

// NewRegistry creates an empty problem registry
func NewRegistry() *Registry {
	return &Registry{
		packs:    make(map[string]*domain.ProblemPack),
		problems: make(map[string]*domain.Problem),
	}
}

// Load fills the registry from src. Duplicate problem ids are an error.
func (r *Registry) Load(ctx context.Context, src Source) error {
	packs, problems, err := src.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load problems: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return ErrAlreadyLoaded
	}

	for _, pack := range packs {
		r.packs[pack.ID] = pack
	}
	for _, p := range problems {
		if _, dup := r.problems[p.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", domain.ErrInvalidProblem, p.ID)
		}
		r.problems[p.ID] = p
	}
	r.loaded = true
	return nil
}

// Loaded reports whether Load has succeeded
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Get returns a problem by ID
func (r *Registry) Get(id string) (*domain.Problem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.problems[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProblemNotFound, id)
	}
	return p, nil
}

// Lookup returns a problem by ID, requiring it to be written in lang
func (r *Registry) Lookup(lang domain.Language, id string) (*domain.Problem, error) {
	p, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if p.Language != lang {
		return nil, fmt.Errorf("%w: %s is not a %s problem", domain.ErrProblemNotFound, id, lang)
	}
	return p, nil
}

// GetPack returns a pack by ID
func (r *Registry) GetPack(id string) (*domain.ProblemPack, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pack, ok := r.packs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPackNotFound, id)
	}
	return pack, nil
}

// ListPacks returns all packs sorted by ID
func (r *Registry) ListPacks() []*domain.ProblemPack {
	r.mu.RLock()
	defer r.mu.RUnlock()

	packs := lo.Values(r.packs)
	sort.Slice(packs, func(i, j int) bool { return packs[i].ID < packs[j].ID })
	return packs
}

// List returns the problems matching filter sorted by ID
func (r *Registry) List(filter Filter) []*domain.Problem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	problems := lo.Filter(lo.Values(r.problems), func(p *domain.Problem, _ int) bool {
		return filter.match(p)
	})
	sort.Slice(problems, func(i, j int) bool { return problems[i].ID < problems[j].ID })
	return problems
}

// Languages returns the languages that have at least one problem
func (r *Registry) Languages() []domain.Language {
	r.mu.RLock()
	defer r.mu.RUnlock()

	langs := lo.Uniq(lo.Map(lo.Values(r.problems), func(p *domain.Problem, _ int) domain.Language {
		return p.Language
	}))
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// Stats returns counts over the bank
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		Packs:        len(r.packs),
		Problems:     len(r.problems),
		ByLanguage:   make(map[domain.Language]int),
		ByDifficulty: make(map[domain.Difficulty]int),
	}
	for _, p := range r.problems {
		s.TestCases += len(p.TestCases)
		s.ByLanguage[p.Language]++
		s.ByDifficulty[p.Difficulty]++
	}
	return s
}

// StaticSource serves problems held in memory.
type StaticSource struct {
	Packs    []*domain.ProblemPack
	Problems []*domain.Problem
}

// LoadAll implements Source.
func (s StaticSource) LoadAll(context.Context) ([]*domain.ProblemPack, []*domain.Problem, error) {
	return s.Packs, s.Problems, nil
}
