package centerline

import (
	"errors"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// mkBranch returns a straight branch of n samples with the given parent link.
func mkBranch(n, parent, split int) Branch {
	p := StraightPath(n, 1, 2)
	return Branch{Points: p.Points, Radii: p.Radii, Arc: ArcLength(p.Points), Parent: parent, Split: split}
}

// hasError returns true if errs contains at least one error-severity finding
// whose message contains substr.
func hasError(errs []ValidationError, substr string) bool {
	for _, e := range errs {
		if e.Severity == SeverityError && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func hasWarning(errs []ValidationError, substr string) bool {
	for _, e := range errs {
		if e.Severity == SeverityWarning && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Validate
// ---------------------------------------------------------------------------

func TestValidateValidTree(t *testing.T) {
	branches := []Branch{
		mkBranch(100, NoParent, 0),
		mkBranch(50, 0, 40),
		mkBranch(30, 1, 20),
	}
	if errs := Validate(branches); len(errs) != 0 {
		t.Errorf("Validate() = %v, want no findings", errs)
	}
}

func TestValidateFindings(t *testing.T) {
	tests := []struct {
		name     string
		branches []Branch
		substr   string
	}{
		{
			name:     "self parent",
			branches: []Branch{mkBranch(10, NoParent, 0), mkBranch(10, 1, 2)},
			substr:   "its own parent",
		},
		{
			name:     "missing parent",
			branches: []Branch{mkBranch(10, NoParent, 0), mkBranch(10, 7, 2)},
			substr:   "does not exist",
		},
		{
			name:     "split at zero",
			branches: []Branch{mkBranch(10, NoParent, 0), mkBranch(10, 0, 0)},
			substr:   "split index",
		},
		{
			name:     "split past parent",
			branches: []Branch{mkBranch(10, NoParent, 0), mkBranch(10, 0, 10)},
			substr:   "split index",
		},
		{
			name:     "mutual parents",
			branches: []Branch{mkBranch(10, NoParent, 0), mkBranch(10, 2, 3), mkBranch(10, 1, 3)},
			substr:   "cycle detected",
		},
		{
			name:     "inlet with parent",
			branches: []Branch{mkBranch(10, 1, 3), mkBranch(10, NoParent, 0)},
			substr:   "inlet branch 0",
		},
		{
			name:     "too few samples",
			branches: []Branch{{Points: mkBranch(2, 0, 0).Points[:1], Parent: NoParent}},
			substr:   "at least 2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.branches)
			if !hasError(errs, tt.substr) {
				t.Errorf("expected error containing %q, got %v", tt.substr, errs)
			}
		})
	}
}

func TestValidateArcLength(t *testing.T) {
	b := mkBranch(10, NoParent, 0)
	b.Arc[0] = 0.5
	if errs := Validate([]Branch{b}); !hasError(errs, "does not start at 0") {
		t.Errorf("expected arc start error, got %v", errs)
	}

	b = mkBranch(10, NoParent, 0)
	b.Arc[5] = 1
	if errs := Validate([]Branch{b}); !hasError(errs, "decreases") {
		t.Errorf("expected decreasing arc error, got %v", errs)
	}
}

func TestValidateDisconnectedRootWarns(t *testing.T) {
	errs := Validate([]Branch{mkBranch(10, NoParent, 0), mkBranch(10, NoParent, 0)})
	if !hasWarning(errs, "disconnected root") {
		t.Errorf("expected disconnected root warning, got %v", errs)
	}
	if len(blocking(errs)) != 0 {
		t.Errorf("warnings must not block: %v", errs)
	}
}

func TestNewRejectsCycle(t *testing.T) {
	_, err := New([]Branch{mkBranch(10, NoParent, 0), mkBranch(10, 2, 3), mkBranch(10, 1, 3)})
	if !errors.Is(err, ErrTopologyInconsistency) {
		t.Fatalf("New() error = %v, want ErrTopologyInconsistency", err)
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error %q does not mention the cycle", err)
	}
}

func TestValidationSeverityString(t *testing.T) {
	if SeverityError.String() != "error" || SeverityWarning.String() != "warning" {
		t.Errorf("got %q, %q", SeverityError, SeverityWarning)
	}
	if got := ValidationSeverity(9).String(); got != "ValidationSeverity(9)" {
		t.Errorf("String() = %q", got)
	}
}
