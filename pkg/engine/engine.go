// Package engine evaluates xylem session scripts.
// It wraps zygomys in a sandboxed environment and produces a Session
// describing the markers, landmarks and measurements of one patient run.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalResult bundles the full output of an evaluation for API responses.
type EvalResult struct {
	Session *Session    `json:"session,omitempty"`
	Errors  []EvalError `json:"errors,omitempty"`
}

// Engine wraps the zygomys interpreter.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	mu         sync.Mutex
	generation uint64
	timeout    time.Duration
}

// NewEngine creates a new Engine instance using EvalTimeout.
func NewEngine() *Engine {
	return &Engine{}
}

// SetTimeout overrides the evaluation time limit. Zero restores EvalTimeout.
func (e *Engine) SetTimeout(d time.Duration) {
	e.mu.Lock()
	e.timeout = d
	e.mu.Unlock()
}

// Evaluate runs a session script and returns the session it describes.
//
// Return semantics:
//   - On success: returns session + nil errors + nil error
//   - On parse/eval failure: returns nil session + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*Session, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	limit := orDefault(e.timeout)
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		s, evalErrs, err := e.evaluate(source)
		ch <- evalResult{session: s, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, limit, &e.mu, &e.generation)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*Session, []EvalError, error) {
	// An empty script describes an empty session.
	if strings.TrimSpace(source) == "" {
		return &Session{}, nil, nil
	}

	// The sandbox has no filesystem or syscall access.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	s := &Session{}
	registerBuiltins(env, s)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}

	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}

	return s, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values,
// extracting the line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}

	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
