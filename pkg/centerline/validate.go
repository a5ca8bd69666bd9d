package centerline

import (
	"fmt"
	"strings"
)

// ValidationSeverity indicates whether a finding blocks tree construction
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks construction
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Branch   int                // offending branch, -1 if tree-level
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Branch < 0 {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] branch %d: %s", e.Severity, e.Branch, e.Message)
}

// TopologyError aggregates blocking findings. It unwraps to
// ErrTopologyInconsistency.
type TopologyError struct {
	Findings []ValidationError
}

func (e *TopologyError) Error() string {
	msgs := make([]string, len(e.Findings))
	for i, f := range e.Findings {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%s: %s", ErrTopologyInconsistency, strings.Join(msgs, "; "))
}

func (e *TopologyError) Unwrap() error { return ErrTopologyInconsistency }

// Validate runs all structural checks on a branch list and returns the
// findings. An empty slice means the branches form a valid forest. Validate
// never mutates its input.
func Validate(branches []Branch) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateSamples(branches)...)
	errs = append(errs, validateLinks(branches)...)
	errs = append(errs, validateAcyclic(branches)...)
	errs = append(errs, validateRoots(branches)...)
	return errs
}

// blocking returns the error-severity findings of errs.
func blocking(errs []ValidationError) []ValidationError {
	var out []ValidationError
	for _, e := range errs {
		if e.Severity == SeverityError {
			out = append(out, e)
		}
	}
	return out
}

func validateSamples(branches []Branch) []ValidationError {
	var errs []ValidationError
	for i := range branches {
		b := &branches[i]
		n := len(b.Points)
		if n < 2 {
			errs = append(errs, ValidationError{Branch: i, Message: fmt.Sprintf("has %d samples, need at least 2", n), Severity: SeverityError})
			continue
		}
		if len(b.Radii) != n || len(b.Arc) != n {
			errs = append(errs, ValidationError{
				Branch:   i,
				Message:  fmt.Sprintf("sample arrays differ in length (points %d, radii %d, arc %d)", n, len(b.Radii), len(b.Arc)),
				Severity: SeverityError,
			})
			continue
		}
		if b.Arc[0] != 0 {
			errs = append(errs, ValidationError{Branch: i, Message: "arc length does not start at 0", Severity: SeverityError})
		}
		for k := 1; k < n; k++ {
			if b.Arc[k] < b.Arc[k-1] {
				errs = append(errs, ValidationError{Branch: i, Message: fmt.Sprintf("arc length decreases at sample %d", k), Severity: SeverityError})
				break
			}
		}
	}
	return errs
}

// validateLinks checks that every parent link names an existing branch other
// than itself and that the split index addresses a parent sample.
func validateLinks(branches []Branch) []ValidationError {
	var errs []ValidationError
	for i := range branches {
		b := &branches[i]
		if b.Parent == NoParent {
			continue
		}
		if b.Parent == i {
			errs = append(errs, ValidationError{Branch: i, Message: "branch is its own parent", Severity: SeverityError})
			continue
		}
		if b.Parent < 0 || b.Parent >= len(branches) {
			errs = append(errs, ValidationError{Branch: i, Message: fmt.Sprintf("parent %d does not exist", b.Parent), Severity: SeverityError})
			continue
		}
		plen := len(branches[b.Parent].Points)
		if b.Split < 1 || b.Split >= plen {
			errs = append(errs, ValidationError{
				Branch:   i,
				Message:  fmt.Sprintf("split index %d outside parent %d range [1, %d]", b.Split, b.Parent, plen-1),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateAcyclic checks for cycles using DFS with 3-color marking over the
// child edges implied by parent links.
// White (0) = unvisited, gray (1) = on the current path, black (2) = done.
func validateAcyclic(branches []Branch) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	children := make(map[int][]int)
	for i := range branches {
		if p := branches[i].Parent; p != NoParent && p >= 0 && p < len(branches) {
			children[p] = append(children[p], i)
		}
	}

	color := make([]int, len(branches))
	var errs []ValidationError

	var visit func(id int) bool
	visit = func(id int) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				Branch:   id,
				Message:  fmt.Sprintf("cycle detected: branch %d is its own ancestor", id),
				Severity: SeverityError,
			})
			return true
		}
		color[id] = gray
		for _, c := range children[id] {
			if visit(c) {
				return true
			}
		}
		color[id] = black
		return false
	}

	for id := range branches {
		if color[id] == white && visit(id) {
			break
		}
	}
	return errs
}

// validateRoots checks that branch 0 is a root and that every branch reaches
// a root by following parent links.
func validateRoots(branches []Branch) []ValidationError {
	if len(branches) == 0 {
		return nil
	}
	var errs []ValidationError
	if branches[0].Parent != NoParent {
		errs = append(errs, ValidationError{Branch: 0, Message: "inlet branch 0 must not have a parent", Severity: SeverityError})
	}

	hasRoot := false
	for i := range branches {
		if branches[i].Parent == NoParent {
			hasRoot = true
			if i != 0 {
				errs = append(errs, ValidationError{
					Branch:   i,
					Message:  "disconnected root: path shares no prefix with the inlet branch",
					Severity: SeverityWarning,
				})
			}
		}
	}
	if !hasRoot {
		errs = append(errs, ValidationError{Branch: -1, Message: "no root branch", Severity: SeverityError})
	}
	return errs
}
