package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/drillpad/internal/app"
	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/problem"
	"github.com/felixgeelhaar/drillpad/internal/runner"
	"github.com/felixgeelhaar/drillpad/internal/validator"
)

const (
	maxBodyBytes  = 1 << 20
	maxVariations = 20
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.app.Problems.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"version":   Version,
		"problems":  stats.Problems,
		"runs":      s.runs.Size(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	stats := s.app.Problems.Stats()
	seen := make(map[domain.Language]bool)
	langs := make([]map[string]any, 0)

	add := func(lang domain.Language) {
		if seen[lang] {
			return
		}
		seen[lang] = true
		langs = append(langs, map[string]any{
			"name":       lang,
			"executable": s.app.Runner.Supports(lang),
			"problems":   stats.ByLanguage[lang],
		})
	}
	for _, lang := range s.app.Runner.Registry().Languages() {
		add(lang)
	}
	for _, lang := range s.app.Problems.Languages() {
		add(lang)
	}

	writeJSON(w, http.StatusOK, map[string]any{"languages": langs})
}

func (s *Server) handleListProblems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := problem.Filter{
		PackID:     q.Get("pack"),
		Category:   q.Get("category"),
		Difficulty: domain.Difficulty(q.Get("difficulty")),
		Tag:        q.Get("tag"),
	}
	if l := q.Get("language"); l != "" {
		lang, err := domain.ParseLanguage(l)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown language", err)
			return
		}
		filter.Language = lang
	}

	problems := s.app.Problems.List(filter)
	result := make([]problemSummary, 0, len(problems))
	for _, p := range problems {
		result = append(result, summarize(p))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"problems": result,
		"stats":    s.app.Problems.Stats(),
	})
}

func (s *Server) handleGetProblem(w http.ResponseWriter, r *http.Request) {
	p, err := s.app.FindProblem(r.PathValue("lang"), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail(p, s.app.Runner.Supports(p.Language)))
}

type executeRequest struct {
	Language   string `json:"language"`
	Setup      string `json:"setup"`
	Code       string `json:"code"`
	StripTypes string `json:"strip_types,omitempty"` // auto, always or never
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !decode(w, r, &req) {
		return
	}
	lang, err := domain.ParseLanguage(req.Language)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown language", err)
		return
	}
	strip, err := parseStripMode(req.StripTypes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid strip_types", err)
		return
	}

	run := domain.NewRun(domain.RunKindExecute, "", lang)
	ctx, done := s.track(r.Context(), run)
	defer done()

	res, err := s.app.Runner.Execute(ctx, runner.ExecuteRequest{
		Run:      run,
		Language: lang,
		Setup:    req.Setup,
		Body:     req.Code,
		Options:  runner.Options{StripTypes: strip},
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewExecution(run.ID, res))
}

type submission struct {
	ProblemID string `json:"problem_id"`
	Language  string `json:"language,omitempty"`
	Code      string `json:"code"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req submission
	if !decode(w, r, &req) {
		return
	}
	p, err := s.app.FindProblem(req.Language, req.ProblemID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	run := domain.NewRun(domain.RunKindValidate, p.ID, p.Language)
	ctx, done := s.track(r.Context(), run)
	defer done()

	res := s.app.Validator.Validate(ctx, validator.Request{
		Run:      run,
		Language: p.Language,
		Problem:  p,
		Code:     req.Code,
	})
	writeJSON(w, http.StatusOK, viewValidation(run.ID, p.ID, res))
}

type batchEntry struct {
	Result *validationView `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// handleValidateBatch validates independent submissions concurrently.
// Results keep the order of the request.
func (s *Server) handleValidateBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Submissions []submission `json:"submissions"`
	}
	if !decode(w, r, &req) {
		return
	}
	if len(req.Submissions) == 0 {
		writeError(w, http.StatusBadRequest, "submissions is required", nil)
		return
	}
	if limit := s.app.Config.Limits.MaxBatchSize; limit > 0 && len(req.Submissions) > limit {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d submissions per batch", limit), nil)
		return
	}

	run := domain.NewRun(domain.RunKindValidate, "", "")
	ctx, done := s.track(r.Context(), run)
	defer done()

	entries := make([]batchEntry, len(req.Submissions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.app.Config.Limits.BatchConcurrency)
	for i, sub := range req.Submissions {
		g.Go(func() error {
			p, err := s.app.FindProblem(sub.Language, sub.ProblemID)
			if err != nil {
				entries[i] = batchEntry{Error: err.Error()}
				return nil
			}
			res := s.app.Validator.Validate(gctx, validator.Request{
				Language: p.Language,
				Problem:  p,
				Code:     sub.Code,
			})
			view := viewValidation(uuid.Nil, p.ID, res)
			entries[i] = batchEntry{Result: &view}
			return nil
		})
	}
	_ = g.Wait()

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  run.ID,
		"results": entries,
	})
}

type testRunRequest struct {
	submission
	Variations int    `json:"variations,omitempty"`
	Seed       uint64 `json:"seed,omitempty"`
}

func (s *Server) handleTestRun(w http.ResponseWriter, r *http.Request) {
	var req testRunRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Variations < 0 || req.Variations > maxVariations {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("variations must be between 0 and %d", maxVariations), nil)
		return
	}
	p, err := s.app.FindProblem(req.Language, req.ProblemID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	run := domain.NewRun(domain.RunKindTestRun, p.ID, p.Language)
	ctx, done := s.track(r.Context(), run)
	defer done()

	seed := req.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	res, err := s.app.RunSuite(ctx, app.SuiteRequest{
		Run:        run,
		Problem:    p,
		Code:       req.Code,
		Variations: req.Variations,
		Seed:       seed,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewTestRun(run.ID, p.ID, res))
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs := make([]runView, 0, s.runs.Size())
	s.runs.Range(func(_ uuid.UUID, tr *trackedRun) bool {
		runs = append(runs, viewRun(tr.run))
		return true
	})
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id", err)
		return
	}
	tr, ok := s.runs.Load(id)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found", nil)
		return
	}
	tr.cancel()
	s.logger.Info("run cancelled", "run_id", id, "kind", tr.run.Kind)
	w.WriteHeader(http.StatusNoContent)
}

// writeDomainError maps domain sentinel errors to HTTP statuses
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrProblemNotFound), errors.Is(err, domain.ErrPackNotFound):
		writeError(w, http.StatusNotFound, "problem not found", err)
	case errors.Is(err, domain.ErrUnsupportedLanguage), errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid request", err)
	case errors.Is(err, domain.ErrNoRuntime), errors.Is(err, domain.ErrInvalidProblem):
		writeError(w, http.StatusUnprocessableEntity, "cannot evaluate", err)
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func parseStripMode(s string) (runner.StripMode, error) {
	switch s {
	case "", "auto":
		return runner.StripAuto, nil
	case "always":
		return runner.StripAlways, nil
	case "never":
		return runner.StripNever, nil
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrInvalidInput, s)
}
