// Package expression implements the codebase expression language:
//
//	internal(revision=42)>public|scrub(level=strict)
//
// An expression starts from a repository and applies translations ('>')
// and edits ('|') left to right. String renders the canonical form, which
// is also the memoization key used by the engine.
package expression

import "strings"

// Option keys understood by the engine and by inverse translation steps.
const (
	OptionRevision                = "revision"
	OptionReferenceTargetCodebase = "referenceTargetCodebase"
	OptionReferenceFromCodebase   = "referenceFromCodebase"
)

// Expression is one of *Repository, *Translate or *Edit.
type Expression interface {
	// String returns the canonical rendering.
	String() string
	// TranslateTo wraps the expression in a translation to space.
	TranslateTo(space string) *Translate
	// EditWith wraps the expression in an edit by the named editor.
	EditWith(editor string) *Edit

	isExpression()
}

// Repository is the leaf term: the contents of a named repository.
type Repository struct {
	Name    string
	Options Options
}

// Translate translates Inner into ToProjectSpace.
type Translate struct {
	Inner          Expression
	ToProjectSpace string
	Options        Options
}

// Edit applies a single named editor to Inner.
type Edit struct {
	Inner   Expression
	Editor  string
	Options Options
}

func (*Repository) isExpression() {}
func (*Translate) isExpression()  {}
func (*Edit) isExpression()       {}

// NewRepository returns a repository term with no options.
func NewRepository(name string) *Repository {
	return &Repository{Name: name}
}

func (r *Repository) String() string { return render(r) }
func (t *Translate) String() string  { return render(t) }
func (e *Edit) String() string       { return render(e) }

func (r *Repository) TranslateTo(space string) *Translate { return translate(r, space) }
func (t *Translate) TranslateTo(space string) *Translate  { return translate(t, space) }
func (e *Edit) TranslateTo(space string) *Translate       { return translate(e, space) }

func (r *Repository) EditWith(editor string) *Edit { return edit(r, editor) }
func (t *Translate) EditWith(editor string) *Edit  { return edit(t, editor) }
func (e *Edit) EditWith(editor string) *Edit       { return edit(e, editor) }

func translate(x Expression, space string) *Translate {
	return &Translate{Inner: x, ToProjectSpace: space}
}

func edit(x Expression, editor string) *Edit {
	return &Edit{Inner: x, Editor: editor}
}

// WithOption returns a copy of x's outermost term with key set to value.
// x itself is never modified, so sub-expressions may be shared freely.
func WithOption(x Expression, key, value string) Expression {
	switch v := x.(type) {
	case *Repository:
		return &Repository{Name: v.Name, Options: v.Options.With(key, value)}
	case *Translate:
		return &Translate{Inner: v.Inner, ToProjectSpace: v.ToProjectSpace, Options: v.Options.With(key, value)}
	case *Edit:
		return &Edit{Inner: v.Inner, Editor: v.Editor, Options: v.Options.With(key, value)}
	default:
		panic("expression: unknown variant")
	}
}

// OptionsOf returns the options of x's outermost term.
func OptionsOf(x Expression) Options {
	switch v := x.(type) {
	case *Repository:
		return v.Options
	case *Translate:
		return v.Options
	case *Edit:
		return v.Options
	default:
		panic("expression: unknown variant")
	}
}

// WithReferenceTargetCodebase records ref as the codebase the translation's
// output is expected to resemble.
func WithReferenceTargetCodebase(t *Translate, ref Expression) *Translate {
	return WithOption(t, OptionReferenceTargetCodebase, ref.String()).(*Translate)
}

// WithReferenceFromCodebase records ref as the codebase the translated
// content originally came from. Inverse steps use it to recover layout.
func WithReferenceFromCodebase(t *Translate, ref Expression) *Translate {
	return WithOption(t, OptionReferenceFromCodebase, ref.String()).(*Translate)
}

// Root returns the repository term at the bottom of x.
func Root(x Expression) *Repository {
	for {
		switch v := x.(type) {
		case *Repository:
			return v
		case *Translate:
			x = v.Inner
		case *Edit:
			x = v.Inner
		default:
			panic("expression: unknown variant")
		}
	}
}

// Equal reports whether a and b are structurally identical.
func Equal(a, b Expression) bool {
	switch x := a.(type) {
	case *Repository:
		y, ok := b.(*Repository)
		return ok && x.Name == y.Name && x.Options.Equal(y.Options)
	case *Translate:
		y, ok := b.(*Translate)
		return ok && x.ToProjectSpace == y.ToProjectSpace && x.Options.Equal(y.Options) && Equal(x.Inner, y.Inner)
	case *Edit:
		y, ok := b.(*Edit)
		return ok && x.Editor == y.Editor && x.Options.Equal(y.Options) && Equal(x.Inner, y.Inner)
	default:
		return false
	}
}

func render(x Expression) string {
	var b strings.Builder
	renderTo(&b, x)
	return b.String()
}

func renderTo(b *strings.Builder, x Expression) {
	switch v := x.(type) {
	case *Repository:
		b.WriteString(v.Name)
		v.Options.render(b)
	case *Translate:
		renderTo(b, v.Inner)
		b.WriteByte('>')
		b.WriteString(v.ToProjectSpace)
		v.Options.render(b)
	case *Edit:
		renderTo(b, v.Inner)
		b.WriteByte('|')
		b.WriteString(v.Editor)
		v.Options.render(b)
	default:
		panic("expression: unknown variant")
	}
}
