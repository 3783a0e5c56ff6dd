package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/problem"
	"github.com/felixgeelhaar/drillpad/internal/value"
)

// ProblemStore keeps a prebuilt problem bank in SQLite. It is written
// once by Import, at build time, and read by LoadAll at startup.
type ProblemStore struct {
	db *DB
}

var _ problem.Source = (*ProblemStore)(nil)

// NewProblemStore creates a new SQLite-backed problem store.
func NewProblemStore(db *DB) *ProblemStore {
	return &ProblemStore{db: db}
}

// Import replaces the stored bank with packs and problems in a single
// transaction.
func (s *ProblemStore) Import(ctx context.Context, packs []*domain.ProblemPack, problems []*domain.Problem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{"DELETE FROM test_cases", "DELETE FROM problems", "DELETE FROM packs"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear bank: %w", err)
		}
	}

	for _, pack := range packs {
		ids, err := json.Marshal(pack.ProblemIDs)
		if err != nil {
			return fmt.Errorf("marshal problem_ids: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO packs (id, name, version, description, language, problem_ids)
			VALUES (?, ?, ?, ?, ?, ?)`,
			pack.ID, pack.Name, pack.Version, pack.Description, string(pack.Language), string(ids),
		)
		if err != nil {
			return fmt.Errorf("insert pack %s: %w", pack.ID, err)
		}
	}

	for i, p := range problems {
		if err := insertProblem(ctx, tx, i, p); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func insertProblem(ctx context.Context, tx *sql.Tx, position int, p *domain.Problem) error {
	expected, err := value.Marshal(p.Expected)
	if err != nil {
		return fmt.Errorf("marshal expected of %s: %w", p.ID, err)
	}
	hints, err := marshalStrings(p.Hints)
	if err != nil {
		return err
	}
	pats, err := marshalStrings(p.PatternSources())
	if err != nil {
		return err
	}
	tags, err := marshalStrings(p.Tags)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO problems (id, pack_id, position, language, category, difficulty, title,
			prompt, setup, expected, sample_solution, hints, required_patterns, pattern_note, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.PackID, position, string(p.Language), p.Category, string(p.Difficulty), p.Title,
		p.Prompt, p.Setup, string(expected), p.SampleSolution, hints, pats, p.PatternNote, tags,
	)
	if err != nil {
		return fmt.Errorf("insert problem %s: %w", p.ID, err)
	}

	for i, tc := range p.TestCases {
		exp, err := value.Marshal(tc.Expected)
		if err != nil {
			return fmt.Errorf("marshal test case %d of %s: %w", i, p.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO test_cases (problem_id, idx, setup, expected, description)
			VALUES (?, ?, ?, ?, ?)`,
			p.ID, i, tc.Setup, string(exp), tc.Description,
		)
		if err != nil {
			return fmt.Errorf("insert test case %d of %s: %w", i, p.ID, err)
		}
	}
	return nil
}

// LoadAll implements problem.Source.
func (s *ProblemStore) LoadAll(ctx context.Context) ([]*domain.ProblemPack, []*domain.Problem, error) {
	packs, err := s.loadPacks(ctx)
	if err != nil {
		return nil, nil, err
	}
	problems, err := s.loadProblems(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := s.loadTestCases(ctx, problems); err != nil {
		return nil, nil, err
	}
	return packs, problems, nil
}

// Count returns the number of stored problems.
func (s *ProblemStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM problems").Scan(&n)
	return n, err
}

func (s *ProblemStore) loadPacks(ctx context.Context) ([]*domain.ProblemPack, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, version, description, language, problem_ids
		FROM packs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}
	defer rows.Close()

	var packs []*domain.ProblemPack
	for rows.Next() {
		var pack domain.ProblemPack
		var lang, ids string
		if err := rows.Scan(&pack.ID, &pack.Name, &pack.Version, &pack.Description, &lang, &ids); err != nil {
			return nil, fmt.Errorf("scan pack row: %w", err)
		}
		pack.Language = domain.Language(lang)
		if err := json.Unmarshal([]byte(ids), &pack.ProblemIDs); err != nil {
			return nil, fmt.Errorf("unmarshal problem_ids: %w", err)
		}
		packs = append(packs, &pack)
	}
	return packs, rows.Err()
}

func (s *ProblemStore) loadProblems(ctx context.Context) ([]*domain.Problem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pack_id, language, category, difficulty, title, prompt, setup,
			expected, sample_solution, hints, required_patterns, pattern_note, tags
		FROM problems ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	defer rows.Close()

	var problems []*domain.Problem
	for rows.Next() {
		p, err := scanProblemRow(rows)
		if err != nil {
			return nil, err
		}
		problems = append(problems, p)
	}
	return problems, rows.Err()
}

func (s *ProblemStore) loadTestCases(ctx context.Context, problems []*domain.Problem) error {
	byID := make(map[string]*domain.Problem, len(problems))
	for _, p := range problems {
		byID[p.ID] = p
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT problem_id, setup, expected, description
		FROM test_cases ORDER BY problem_id, idx`)
	if err != nil {
		return fmt.Errorf("list test cases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, expected string
		var tc domain.TestCase
		if err := rows.Scan(&id, &tc.Setup, &expected, &tc.Description); err != nil {
			return fmt.Errorf("scan test case row: %w", err)
		}
		if tc.Expected, err = value.Unmarshal([]byte(expected)); err != nil {
			return fmt.Errorf("test case of %s: %w", id, err)
		}
		if p, ok := byID[id]; ok {
			p.TestCases = append(p.TestCases, tc)
		}
	}
	return rows.Err()
}

// scanProblemRow scans a problem from *sql.Rows.
func scanProblemRow(rows *sql.Rows) (*domain.Problem, error) {
	var p domain.Problem
	var lang, difficulty, expected, hints, pats, tags string

	err := rows.Scan(
		&p.ID, &p.PackID, &lang, &p.Category, &difficulty, &p.Title, &p.Prompt, &p.Setup,
		&expected, &p.SampleSolution, &hints, &pats, &p.PatternNote, &tags,
	)
	if err != nil {
		return nil, fmt.Errorf("scan problem row: %w", err)
	}
	p.Language = domain.Language(lang)
	p.Difficulty = domain.Difficulty(difficulty)

	if p.Expected, err = value.Unmarshal([]byte(expected)); err != nil {
		return nil, fmt.Errorf("expected of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(hints), &p.Hints); err != nil {
		return nil, fmt.Errorf("unmarshal hints: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}

	var sources []string
	if err := json.Unmarshal([]byte(pats), &sources); err != nil {
		return nil, fmt.Errorf("unmarshal required_patterns: %w", err)
	}
	for _, src := range sources {
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidPattern, p.ID, err)
		}
		p.RequiredPatterns = append(p.RequiredPatterns, re)
	}

	return &p, nil
}

func marshalStrings(ss []string) (string, error) {
	if ss == nil {
		ss = []string{}
	}
	data, err := json.Marshal(ss)
	if err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	return string(data), nil
}
