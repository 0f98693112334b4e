package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewMoeError(t *testing.T) {
	cause := errors.New("underlying error")
	fixes := []FixAction{{Type: RunCommand, Command: "moe check-config"}}

	err := NewMoeError(InvalidProject, "bad project", cause, fixes)

	if err.Code != InvalidProject {
		t.Errorf("Code = %v, want %v", err.Code, InvalidProject)
	}
	if err.Message != "bad project" {
		t.Errorf("Message = %q, want %q", err.Message, "bad project")
	}
	if len(err.SuggestedFixes) != 1 {
		t.Errorf("len(SuggestedFixes) = %d, want 1", len(err.SuggestedFixes))
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestMoeError_Error(t *testing.T) {
	tests := []struct {
		name      string
		code      ErrorCode
		message   string
		cause     error
		wantParts []string
	}{
		{
			name:      "with cause",
			code:      RepositoryUnavailable,
			message:   "git not reachable",
			cause:     errors.New("connection refused"),
			wantParts: []string{"REPOSITORY_UNAVAILABLE", "git not reachable", "connection refused"},
		},
		{
			name:      "without cause",
			code:      UnknownEditor,
			message:   "no editor 'foo'",
			wantParts: []string{"UNKNOWN_EDITOR", "no editor 'foo'"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewMoeError(tt.code, tt.message, tt.cause, nil).Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want it to contain %q", got, part)
				}
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	inner := Newf(NoTranslator, "no translator")
	wrapped := fmt.Errorf("directive failed: %w", inner)

	if got := CodeOf(wrapped); got != NoTranslator {
		t.Errorf("CodeOf = %v, want %v", got, NoTranslator)
	}
	if got := CodeOf(errors.New("plain")); got != InternalError {
		t.Errorf("CodeOf(plain) = %v, want %v", got, InternalError)
	}
}

func TestIsConfiguration(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no translator", Newf(NoTranslator, "x"), true},
		{"unknown editor", Newf(UnknownEditor, "x"), true},
		{"wrapped in creation error", Wrapf(Newf(UnknownRepository, "x"), CodebaseCreationFailed, "y"), true},
		{"creation error", Newf(CodebaseCreationFailed, "x"), false},
		{"plain", errors.New("x"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConfiguration(tt.err); got != tt.want {
				t.Errorf("IsConfiguration = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	err := Wrapf(Newf(DatabaseCorrupt, "bad record"), CodebaseCreationFailed, "outer")
	if !HasCode(err, DatabaseCorrupt) {
		t.Error("HasCode should find nested code")
	}
	if HasCode(err, Timeout) {
		t.Error("HasCode should not find absent code")
	}
}

func TestGetSuggestedFixes(t *testing.T) {
	if fixes := GetSuggestedFixes(InvalidProject); len(fixes) == 0 {
		t.Error("expected fixes for InvalidProject")
	}
	if fixes := GetSuggestedFixes(InternalError); fixes != nil {
		t.Errorf("expected no fixes for InternalError, got %v", fixes)
	}
}
