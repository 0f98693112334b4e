// Package codebase defines the materialized file tree produced by evaluating
// an expression.
package codebase

import (
	stderrors "errors"
	"fmt"

	"moe/internal/errors"
	"moe/internal/expression"
)

// Codebase is a directory tagged with its project space and the expression
// that produced it. Values are immutable; the With* methods return copies.
type Codebase struct {
	Path         string
	ProjectSpace string
	Expression   expression.Expression
}

// New creates a Codebase.
func New(path, projectSpace string, x expression.Expression) Codebase {
	return Codebase{Path: path, ProjectSpace: projectSpace, Expression: x}
}

// Equal reports whether c and o share a path and project space. The
// expression is provenance only and does not take part.
func (c Codebase) Equal(o Codebase) bool {
	return c.Path == o.Path && c.ProjectSpace == o.ProjectSpace
}

// WithExpression returns a copy of c tagged with x.
func (c Codebase) WithExpression(x expression.Expression) Codebase {
	c.Expression = x
	return c
}

// WithProjectSpace returns a copy of c in space.
func (c Codebase) WithProjectSpace(space string) Codebase {
	c.ProjectSpace = space
	return c
}

// String describes the codebase for logs and error messages.
func (c Codebase) String() string {
	if c.Expression == nil {
		return fmt.Sprintf("%s (%s)", c.Path, c.ProjectSpace)
	}
	return fmt.Sprintf("%s (%s, %s)", c.Path, c.ProjectSpace, c.Expression)
}

// CreationError wraps cause as a CODEBASE_CREATION_FAILED error naming x.
// Configuration errors and errors already attributed to a sub-expression
// are returned as they are.
func CreationError(x expression.Expression, cause error) error {
	if cause == nil {
		return nil
	}
	if errors.IsConfiguration(cause) {
		return cause
	}
	var me *errors.MoeError
	if stderrors.As(cause, &me) && me.Code == errors.CodebaseCreationFailed {
		return cause
	}
	return errors.Wrapf(cause, errors.CodebaseCreationFailed, "could not create codebase %s", x).
		WithDetails(map[string]string{"expression": x.String()})
}
