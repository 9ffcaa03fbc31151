// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package site

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"text/template"
)

// Context holds the named parameters of a single render call. It is the
// dot inside the rendered document and is never shared with the caller or
// with sibling directives.
//
// Printing a key the call site didn't pass is an error. Optional flags are
// tested with index, which yields nil for an absent key:
//
//	{{ if index . "through" }}...{{ end }}
type Context map[string]any

// newContext builds a Context from alternating keys and values, as passed
// to the partial function.
func newContext(kv []any) (Context, error) {
	if len(kv)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of context arguments", ErrDirectiveSyntax)
	}
	ctx := make(Context, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			return nil, fmt.Errorf("%w: context key %v is not a string", ErrDirectiveSyntax, kv[i])
		}
		ctx[k] = kv[i+1]
	}
	return ctx, nil
}

// Renderer evaluates template and partial documents.
type Renderer struct {
	c         *Config
	templates map[string]*template.Template // path -> parsed document
	partials  map[string]*Entry             // logical name -> partial
}

// NewRenderer parses every template and partial in entries. A syntax error
// in any of them is reported even if the document is never rendered.
func NewRenderer(c *Config, entries []*Entry) (*Renderer, error) {
	r := &Renderer{
		c:         c,
		templates: make(map[string]*template.Template),
		partials:  make(map[string]*Entry),
	}

	for _, e := range entries {
		if e.Kind == KindPartial {
			name, ok := e.partialName(c)
			if !ok {
				continue
			}
			if prev, dup := r.partials[name]; dup {
				return nil, fmt.Errorf("%s: %w %q, already defined by %s", e.Path, ErrDuplicatePartial, name, prev.Path)
			}
			r.partials[name] = e
		} else if e.Kind != KindTemplate {
			continue
		}

		b, err := os.ReadFile(e.Path)
		if err != nil {
			return nil, err
		}
		tpl, err := template.New(e.Name).
			Delims(c.LeftDelim, c.RightDelim).
			Option("missingkey=error").
			Funcs(r.funcs(nil)).
			Parse(string(b))
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", e.Path, ErrDirectiveSyntax, err)
		}
		r.templates[e.Path] = tpl
	}

	return r, nil
}

// Render evaluates e with ctx as the dot and returns the resulting text.
func (r *Renderer) Render(e *Entry, ctx Context) ([]byte, error) {
	return r.render(e, ctx, nil)
}

// render keeps the chain of partials being rendered in stack to catch
// inclusion cycles.
func (r *Renderer) render(e *Entry, ctx Context, stack []string) ([]byte, error) {
	parsed, ok := r.templates[e.Path]
	if !ok {
		return nil, fmt.Errorf("%s: %s documents can't be rendered", e.Path, e.Kind)
	}
	tpl, err := parsed.Clone()
	if err != nil {
		return nil, err
	}
	tpl.Funcs(r.funcs(append(slices.Clone(stack), e.Path)))

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, maps.Clone(ctx)); err != nil {
		// Wrong arguments to partial and missing keys only show up at
		// execution time.
		var execErr template.ExecError
		if errors.As(err, &execErr) && !isRenderError(err) {
			err = fmt.Errorf("%w: %w", ErrDirectiveSyntax, err)
		}
		return nil, fmt.Errorf("%s: %w", e.Path, err)
	}
	return buf.Bytes(), nil
}

func isRenderError(err error) bool {
	return errors.Is(err, ErrPartialNotFound) ||
		errors.Is(err, ErrDirectiveSyntax) ||
		errors.Is(err, ErrIncludeCycle)
}

func (r *Renderer) funcs(stack []string) template.FuncMap {
	return template.FuncMap{
		"partial": func(name string, kv ...any) (string, error) {
			return r.partial(stack, name, kv)
		},
	}
}

func (r *Renderer) partial(stack []string, name string, kv []any) (string, error) {
	e, ok := r.partials[name]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrPartialNotFound, name)
	}
	if slices.Contains(stack, e.Path) {
		return "", fmt.Errorf("%w: %s -> %s", ErrIncludeCycle, strings.Join(stack, " -> "), e.Path)
	}
	ctx, err := newContext(kv)
	if err != nil {
		return "", err
	}
	b, err := r.render(e, ctx, stack)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
