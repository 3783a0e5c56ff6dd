package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/felixgeelhaar/drillpad/internal/domain"
	"github.com/felixgeelhaar/drillpad/internal/source"
)

const snippetName = "snippet"

// maxLogEntries caps captured console lines per execution.
const maxLogEntries = 1000

// JSRuntime evaluates JavaScript, and TypeScript after annotation
// stripping, in a fresh goja interpreter per call. Nothing survives
// between calls, so executions are isolated and deterministic.
type JSRuntime struct {
	lang   domain.Language
	logger *slog.Logger
}

// NewJSRuntime creates a runtime serving lang, which should be
// domain.LanguageJavaScript or domain.LanguageTypeScript.
func NewJSRuntime(lang domain.Language, logger *slog.Logger) *JSRuntime {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSRuntime{lang: lang, logger: logger}
}

func (r *JSRuntime) Language() domain.Language {
	return r.lang
}

// Execute runs setup followed by body in one scope. The result is the
// value of a top-level return in body, or else the completion value of
// the last statement. A returned promise is awaited.
func (r *JSRuntime) Execute(ctx context.Context, setup, body string, opts Options) (res *domain.ExecutionResult) {
	start := time.Now()
	console := &consoleLog{}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("javascript evaluator panic", "panic", p, "language", r.lang)
			res = domain.NewExecutionFailure(domain.ErrorRuntime, "", "internal evaluator error", console.entries())
		}
		res.Duration = time.Since(start)
	}()

	if opts.strip(r.lang) {
		setup = StripTypeAnnotations(setup)
		body = StripTypeAnnotations(body)
	}

	ctx, cancel := opts.budget(ctx)
	defer cancel()
	if ctx.Err() != nil {
		return timeoutFailure(ctx, opts.TimeBudget, nil)
	}

	prog, err := compileSnippet(setup, body)
	if err != nil {
		return domain.NewExecutionFailure(domain.ErrorSyntax, "SyntaxError", syntaxMessage(err), nil)
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(opts.callStack())
	conv := newConverter(ctx, vm)
	installConsole(vm, conv, console)

	// The interrupt stays armed while the result is read, since reading
	// it can run user getters.
	stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
	defer stop()

	out, err := vm.RunProgram(prog)
	if err != nil {
		return r.failure(ctx, err, conv, opts, console)
	}

	if p, ok := out.Export().(*goja.Promise); ok {
		switch p.State() {
		case goja.PromiseStateFulfilled:
			out = p.Result()
		case goja.PromiseStateRejected:
			name, msg := conv.thrown(p.Result())
			return domain.NewExecutionFailure(domain.ErrorRuntime, name, msg, console.entries())
		default:
			return domain.NewExecutionFailure(domain.ErrorRuntime, "", "promise never settled", console.entries())
		}
	}

	result, err := conv.safeConvert(out)
	if err != nil {
		return r.failure(ctx, err, conv, opts, console)
	}
	return domain.NewExecutionSuccess(result, console.entries())
}

func (r *JSRuntime) failure(ctx context.Context, err error, conv *converter, opts Options, console *consoleLog) *domain.ExecutionResult {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) || ctx.Err() != nil {
		return timeoutFailure(ctx, opts.TimeBudget, console.entries())
	}

	var ex *goja.Exception
	if errors.As(err, &ex) && ex.Value() != nil {
		name, msg := conv.thrown(ex.Value())
		return domain.NewExecutionFailure(domain.ErrorRuntime, name, msg, console.entries())
	}

	// Stack overflow and other engine errors carry no thrown value.
	return domain.NewExecutionFailure(domain.ErrorRuntime, "", err.Error(), console.entries())
}

// compileSnippet compiles setup and body as one script. A body that
// returns or awaits at the top level does not compile as a script, so it
// is compiled again inside a function (async when it awaits) that is
// called immediately. The function returns the body's final expression
// statement, keeping the completion value a script would have had.
func compileSnippet(setup, body string) (*goja.Program, error) {
	unit := joinSnippet(setup, body)
	prog, err := goja.Compile(snippetName, unit, false)
	if err == nil {
		return prog, nil
	}

	hasReturn, hasAwait := topLevelKeywords(body)
	open := "(function() {"
	switch {
	case hasAwait:
		open = "(async function() {"
	case !hasReturn:
		return nil, locate(err, setup, unit, 0)
	}

	if rewritten, ok := returnLastExpression(body); ok {
		wrapped := open + joinSnippet(setup, rewritten) + "\n})()"
		if prog, err := goja.Compile(snippetName, wrapped, false); err == nil {
			return prog, nil
		}
	}
	prog, err = goja.Compile(snippetName, open+unit+"\n})()", false)
	if err != nil {
		return nil, locate(err, setup, unit, len(open))
	}
	return prog, nil
}

func joinSnippet(setup, body string) string {
	if strings.TrimSpace(setup) == "" {
		return body
	}
	return setup + "\n;" + body
}

func topLevelKeywords(body string) (hasReturn, hasAwait bool) {
	for _, t := range source.Tokenize(body, source.DialectJS) {
		switch {
		case t.Is(source.KindKeyword, "return"):
			hasReturn = true
		case t.Is(source.KindKeyword, "await"):
			hasAwait = true
		}
	}
	return hasReturn, hasAwait
}

// returnLastExpression turns body's final expression statement into a
// return statement. ok is false when the body does not end in one.
func returnLastExpression(body string) (string, bool) {
	toks := source.Significant(source.Tokenize(body, source.DialectJS))
	start, end := source.LastStatement(toks, source.DialectJS)
	if start == end || !startsExpression(toks[start]) {
		return "", false
	}
	if start > 0 {
		prev := toks[start-1]
		if !prev.Is(source.KindPunct, ";") && !prev.Is(source.KindPunct, "}") && prev.Line == toks[start].Line {
			return "", false
		}
	}
	from, to := toks[start].Start, toks[end-1].End
	return body[:from] + "return (" + body[from:to] + ");" + body[to:], true
}

func startsExpression(t source.Token) bool {
	switch t.Kind {
	case source.KindKeyword:
		switch t.Text {
		case "true", "false", "null", "undefined", "this", "new", "typeof", "void", "await":
			return true
		}
		return false
	case source.KindPunct:
		return t.Text != "{" && t.Text != ";"
	}
	return true
}

var (
	parseErrorPattern   = regexp.MustCompile(`^(?:SyntaxError: )?` + snippetName + `: Line (\d+):(\d+) (.+?)(?: \(and \d+ more errors?\))?$`)
	compileErrorPattern = regexp.MustCompile(`^(?:SyntaxError: )?(.+) at ` + snippetName + `:(\d+):(\d+)$`)
)

// locate restates a compile error's position, which counts from the start
// of the compiled text, relative to the body. prefix is the length of the
// wrapper opened before unit on its first line. A position past the end
// of unit is the wrapper's closing brace, so the body ended too early.
func locate(err error, setup, unit string, prefix int) error {
	msg := strings.TrimPrefix(err.Error(), "SyntaxError: ")
	var line, col int
	var text string
	if m := parseErrorPattern.FindStringSubmatch(msg); m != nil {
		line, _ = strconv.Atoi(m[1])
		col, _ = strconv.Atoi(m[2])
		text = m[3]
	} else if m := compileErrorPattern.FindStringSubmatch(msg); m != nil {
		text = m[1]
		line, _ = strconv.Atoi(m[2])
		col, _ = strconv.Atoi(m[3])
	} else {
		return errors.New(msg)
	}

	if line > strings.Count(unit, "\n")+1 {
		return errors.New("Unexpected end of input")
	}
	if line == 1 {
		col -= prefix
	}

	bodyLine, shift := 1, 0
	if strings.TrimSpace(setup) != "" {
		bodyLine, shift = strings.Count(setup, "\n")+2, 1
	}
	if line < bodyLine {
		return fmt.Errorf("setup: Line %d:%d %s", line, max(col, 1), text)
	}
	if line == bodyLine {
		col -= shift
	}
	return fmt.Errorf("Line %d:%d %s", line-bodyLine+1, max(col, 1), text)
}

func syntaxMessage(err error) string {
	return strings.TrimPrefix(err.Error(), "SyntaxError: ")
}

// consoleLog collects console output for one execution.
type consoleLog struct {
	lines   []string
	dropped int
}

func (c *consoleLog) add(line string) {
	if len(c.lines) >= maxLogEntries {
		c.dropped++
		return
	}
	c.lines = append(c.lines, line)
}

func (c *consoleLog) entries() []string {
	if c.dropped == 0 {
		return c.lines
	}
	out := make([]string, len(c.lines), len(c.lines)+1)
	copy(out, c.lines)
	return append(out, "... "+strconv.Itoa(c.dropped)+" more lines")
}

func installConsole(vm *goja.Runtime, conv *converter, log *consoleLog) {
	console := vm.NewObject()
	write := func(call goja.FunctionCall) goja.Value {
		log.add(conv.display(call.Arguments))
		return goja.Undefined()
	}
	for _, name := range []string{"log", "info", "warn", "error", "debug", "trace"} {
		_ = console.Set(name, write)
	}
	_ = vm.Set("console", console)
}
