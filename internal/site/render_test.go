// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package site

import (
	"errors"
	"path/filepath"
	"testing"

	"go.astrophena.name/base/testutil"
)

func TestRender(t *testing.T) {
	cases := map[string]struct {
		files   map[string]string
		ctx     Context
		want    string
		wantErr error
	}{
		"literal passthrough": {
			files: map[string]string{
				"guide.md.tmpl": "# Title\n\n<%= link_to 'ERB stays' %>\n```ruby\nhas_many :books\n```\n",
			},
			want: "# Title\n\n<%= link_to 'ERB stays' %>\n```ruby\nhas_many :books\n```\n",
		},
		"flag variant": {
			files: map[string]string{
				"guide.md.tmpl": "A{{ partial \"b\" \"flag\" true }}A",
				"_b.md.tmpl":    "{{ if .flag }}yes{{ else }}no{{ end }}",
			},
			want: "AyesA",
		},
		"flag absent": {
			files: map[string]string{
				"guide.md.tmpl": "A{{ partial \"b\" }}A",
				"_b.md.tmpl":    "{{ if index . \"flag\" }}yes{{ else }}no{{ end }}",
			},
			want: "AnoA",
		},
		"printing absent key": {
			files: map[string]string{
				"guide.md.tmpl": "[{{ partial \"b\" }}]",
				"_b.md.tmpl":    "use {{ .word }}",
			},
			wantErr: ErrDirectiveSyntax,
		},
		"printing absent key at top level": {
			files: map[string]string{
				"guide.md.tmpl": "{{ .name }}",
			},
			wantErr: ErrDirectiveSyntax,
		},
		"partial without name": {
			files: map[string]string{
				"guide.md.tmpl": "{{ partial }}",
			},
			wantErr: ErrDirectiveSyntax,
		},
		"partial with non-string name": {
			files: map[string]string{
				"guide.md.tmpl": "{{ partial 1 }}",
			},
			wantErr: ErrDirectiveSyntax,
		},
		"bad arguments in nested partial": {
			files: map[string]string{
				"guide.md.tmpl": "{{ partial \"b\" }}",
				"_b.md.tmpl":    "{{ partial }}",
			},
			wantErr: ErrDirectiveSyntax,
		},
		"nested": {
			files: map[string]string{
				"guide.md.tmpl": "[{{ partial \"b\" }}]",
				"_b.md.tmpl":    "({{ partial \"c\" \"word\" \"deep\" }})",
				"_c.md.tmpl":    "{{ .word }}",
			},
			want: "[(deep)]",
		},
		"context isolated between siblings": {
			files: map[string]string{
				"guide.md.tmpl": "{{ partial \"b\" \"flag\" true }},{{ partial \"b\" }},{{ if index . \"flag\" }}leak{{ else }}clean{{ end }}",
				"_b.md.tmpl":    "{{ if index . \"flag\" }}on{{ else }}off{{ end }}",
			},
			want: "on,off,clean",
		},
		"context not inherited by nested partial": {
			files: map[string]string{
				"guide.md.tmpl": "{{ partial \"b\" \"flag\" true }}",
				"_b.md.tmpl":    "{{ .flag }}/{{ partial \"c\" }}",
				"_c.md.tmpl":    "{{ if index . \"flag\" }}inherited{{ else }}own{{ end }}",
			},
			want: "true/own",
		},
		"top-level context": {
			files: map[string]string{
				"guide.md.tmpl": "{{ .name }}",
			},
			ctx:  Context{"name": "books"},
			want: "books",
		},
		"missing partial": {
			files: map[string]string{
				"guide.md.tmpl": "{{ partial \"nope\" }}",
			},
			wantErr: ErrPartialNotFound,
		},
		"missing partial in nested partial": {
			files: map[string]string{
				"guide.md.tmpl": "{{ partial \"b\" }}",
				"_b.md.tmpl":    "{{ partial \"nope\" }}",
			},
			wantErr: ErrPartialNotFound,
		},
		"odd context arguments": {
			files: map[string]string{
				"guide.md.tmpl": "{{ partial \"b\" \"flag\" }}",
				"_b.md.tmpl":    "b",
			},
			wantErr: ErrDirectiveSyntax,
		},
		"non-string context key": {
			files: map[string]string{
				"guide.md.tmpl": "{{ partial \"b\" 1 true }}",
				"_b.md.tmpl":    "b",
			},
			wantErr: ErrDirectiveSyntax,
		},
		"self inclusion": {
			files: map[string]string{
				"guide.md.tmpl": "{{ partial \"b\" }}",
				"_b.md.tmpl":    "{{ partial \"b\" }}",
			},
			wantErr: ErrIncludeCycle,
		},
		"same partial twice is not a cycle": {
			files: map[string]string{
				"guide.md.tmpl": "{{ partial \"b\" }}{{ partial \"c\" }}",
				"_b.md.tmpl":    "{{ partial \"c\" }}",
				"_c.md.tmpl":    "c",
			},
			want: "cc",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := &Config{Src: writeTree(t, tc.files)}
			c.setDefaults()

			entries, err := Discover(c)
			if err != nil {
				t.Fatal(err)
			}
			r, err := NewRenderer(c, entries)
			if err != nil {
				t.Fatal(err)
			}

			got, err := r.Render(&Entry{
				Kind: KindTemplate,
				Name: "guide.md.tmpl",
				Path: filepath.Join(c.Src, "guide.md.tmpl"),
			}, tc.ctx)

			// Don't use && because we want to trap all cases where err is
			// nil.
			if err == nil {
				if tc.wantErr != nil {
					t.Fatalf("must fail with error: %v", tc.wantErr)
				}
			}
			if err != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("got error: %v", err)
				}
				return
			}

			testutil.AssertEqual(t, string(got), tc.want)
		})
	}
}

func TestRenderMissingPartialIsNotSyntaxError(t *testing.T) {
	c := &Config{Src: writeTree(t, map[string]string{
		"guide.md.tmpl": "{{ partial \"b\" }}",
		"_b.md.tmpl":    "{{ partial \"nope\" }}",
	})}
	c.setDefaults()
	entries, err := Discover(c)
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRenderer(c, entries)
	if err != nil {
		t.Fatal(err)
	}
	var guide *Entry
	for _, e := range entries {
		if e.Kind == KindTemplate {
			guide = e
		}
	}

	_, err = r.Render(guide, nil)
	if !errors.Is(err, ErrPartialNotFound) {
		t.Fatalf("want ErrPartialNotFound, got %v", err)
	}
	if errors.Is(err, ErrDirectiveSyntax) {
		t.Fatalf("missing partial reported as malformed directive: %v", err)
	}
}

func TestRenderDoesNotMutateContext(t *testing.T) {
	c := &Config{Src: writeTree(t, map[string]string{
		"guide.md.tmpl": "{{ .a }}",
	})}
	c.setDefaults()
	entries, err := Discover(c)
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRenderer(c, entries)
	if err != nil {
		t.Fatal(err)
	}

	ctx := Context{"a": "1"}
	if _, err := r.Render(entries[0], ctx); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, len(ctx), 1)
}

func TestNewRendererSyntaxError(t *testing.T) {
	c := &Config{Src: writeTree(t, map[string]string{
		"guide.md.tmpl":   "fine",
		"_broken.md.tmpl": "{{ if }}",
	})}
	c.setDefaults()
	entries, err := Discover(c)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewRenderer(c, entries)
	if !errors.Is(err, ErrDirectiveSyntax) {
		t.Fatalf("want ErrDirectiveSyntax, got %v", err)
	}
}

func TestNewRendererDuplicatePartial(t *testing.T) {
	c := &Config{Src: writeTree(t, map[string]string{
		"_note.md.tmpl":   "a",
		"_note.html.tmpl": "b",
	})}
	c.setDefaults()
	entries, err := Discover(c)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewRenderer(c, entries)
	if !errors.Is(err, ErrDuplicatePartial) {
		t.Fatalf("want ErrDuplicatePartial, got %v", err)
	}
}

func TestRenderCustomDelims(t *testing.T) {
	c := &Config{
		Src: writeTree(t, map[string]string{
			"guide.md.tmpl": "{{ not a directive }} <%= partial \"b\" \"x\" 1 %>",
			"_b.md.tmpl":    "<%= .x %>",
		}),
		LeftDelim:  "<%=",
		RightDelim: "%>",
	}
	c.setDefaults()
	entries, err := Discover(c)
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRenderer(c, entries)
	if err != nil {
		t.Fatal(err)
	}
	var guide *Entry
	for _, e := range entries {
		if e.Kind == KindTemplate {
			guide = e
		}
	}
	got, err := r.Render(guide, nil)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(got), "{{ not a directive }} 1")
}
