package aggregates

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorCodeHelpersSeeThroughWrapping(t *testing.T) {
	base := NewEntityError(CodeStepLocked, "Progress.RecordInteraction", "comp-1", "step is locked")
	wrapped := fmt.Errorf("outer: %w", base)
	if !IsCode(wrapped, CodeStepLocked) {
		t.Fatalf("IsCode should unwrap: %v", wrapped)
	}
	if got := CodeOf(wrapped); got != CodeStepLocked {
		t.Fatalf("CodeOf: want=%s got=%s", CodeStepLocked, got)
	}
	if !strings.Contains(base.Error(), "comp-1") {
		t.Fatalf("entity id should be rendered: %s", base.Error())
	}
}

func TestTransitionErrorCarriesContext(t *testing.T) {
	cause := errors.New("only in-progress components can be paused")
	err := NewTransitionError("op", "cp-1", "not_started -> pause", cause)
	var aggErr *Error
	if !errors.As(err, &aggErr) {
		t.Fatalf("expected *Error, got=%T", err)
	}
	if aggErr.Code != CodeInvalidTransition || aggErr.Transition != "not_started -> pause" || aggErr.EntityID != "cp-1" {
		t.Fatalf("unexpected error fields: %+v", aggErr)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause should be reachable")
	}
}

func TestRecoverable(t *testing.T) {
	if Recoverable(errors.New("boom")) {
		t.Fatalf("plain errors are not recoverable")
	}
	if Recoverable(NewError(CodeInternal, "op", "db down", nil)) {
		t.Fatalf("internal errors are not recoverable")
	}
	if !Recoverable(NewError(CodeDuplicateAssignment, "op", "dup", nil)) {
		t.Fatalf("domain errors are recoverable")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(CodeInternal, "op", nil) != nil {
		t.Fatalf("Wrap(nil) must be nil")
	}
}

func TestErrorRendering(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{&Error{Code: CodeNotFound}, "not_found"},
		{&Error{Code: CodeNotFound, Op: "Flows.Assignment.AssignFlow"}, "Flows.Assignment.AssignFlow (not_found)"},
		{&Error{Code: CodeStepLocked, Message: "step is locked", EntityID: "c-1"}, "step is locked [c-1] (step_locked)"},
		{&Error{Code: CodeValidation, Op: "op", Message: "bad"}, "op: bad (validation)"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("want=%q got=%q", tc.want, got)
		}
	}
}
