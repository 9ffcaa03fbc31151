// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package site publishes the association guides.

# Directory Structure

The source directory (guides by default) is flat:

	images        Asset directory. Copied verbatim, recursively, to the
	              output directory.
	*.md.tmpl     Template documents. Rendered, and written to the output
	              directory without the '.tmpl' extension.
	_*.md.tmpl    Partial documents. Never published on their own, only
	              included from other templates.
	site.star     Optional Starlark file that overrides the naming
	              conventions, see [Config].

Everything else directly under the source directory is a plain document
and is copied byte for byte.

# Directives

Templates are evaluated with [text/template]. The dot is the rendering
[Context] and the partial function includes another document by its
logical name:

	{{ partial "callbacks" "through" true }}

This renders _callbacks.md.tmpl with the context {through: true} and
splices the result in place of the directive. Text outside the delimiters
is copied unchanged.
*/
package site

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.astrophena.name/base/logger"
)

// Possible errors.
var (
	ErrPartialNotFound  = errors.New("no such partial")
	ErrDirectiveSyntax  = errors.New("malformed directive")
	ErrIncludeCycle     = errors.New("partial inclusion cycle")
	ErrDuplicatePartial = errors.New("duplicate partial")
	ErrOutputConflict   = errors.New("output name conflict")
	ErrConfig           = errors.New("invalid configuration")
)

// ConfigFile is the name of the optional Starlark file in the source
// directory.
const ConfigFile = "site.star"

// Config represents a build configuration.
type Config struct {
	// Src is the directory where to read guides from. If empty, uses the
	// guides directory.
	Src string
	// Dst is the directory where to write files. If empty, uses the build
	// directory.
	Dst string
	// AssetsDir is the name of the directory under Src that is copied
	// verbatim. Defaults to "images".
	AssetsDir string
	// PartialPrefix marks partial documents. Defaults to "_".
	PartialPrefix string
	// TemplateExt marks template documents and is stripped from their
	// output name. Defaults to ".tmpl".
	TemplateExt string
	// LeftDelim and RightDelim are the directive delimiters. Default to
	// "{{" and "}}".
	LeftDelim, RightDelim string
}

func (c *Config) setDefaults() {
	if c.Src == "" {
		c.Src = filepath.Join(".", "guides")
	}
	if c.Dst == "" {
		c.Dst = filepath.Join(".", "build")
	}
	if c.AssetsDir == "" {
		c.AssetsDir = "images"
	}
	if c.PartialPrefix == "" {
		c.PartialPrefix = "_"
	}
	if c.TemplateExt == "" {
		c.TemplateExt = ".tmpl"
	}
	if c.LeftDelim == "" {
		c.LeftDelim = "{{"
	}
	if c.RightDelim == "" {
		c.RightDelim = "}}"
	}
}

// Prepare loads the Starlark configuration file from the source directory,
// if there is one, and fills in defaults for everything left unset. Build
// calls it, so most callers don't need to.
func (c *Config) Prepare() error {
	if c.Src == "" {
		c.Src = filepath.Join(".", "guides")
	}
	path := filepath.Join(c.Src, ConfigFile)
	if _, err := os.Stat(path); err == nil {
		if err := c.load(path); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	c.setDefaults()
	return nil
}

type artifact struct {
	name string // relative to Dst
	data []byte
	src  string // plain documents are copied from here
}

// Build publishes the guides based on the provided [Config].
//
// Every template is rendered before the output directory is touched, so
// a broken directive leaves the previous build in place.
func Build(ctx context.Context, c *Config) error {
	if err := c.Prepare(); err != nil {
		return err
	}
	if err := CheckOutputDir(c.Src, c.Dst); err != nil {
		return err
	}

	entries, err := Discover(c)
	if err != nil {
		return err
	}
	r, err := NewRenderer(c, entries)
	if err != nil {
		return err
	}

	// Render templates and plan the output.
	var (
		artifacts []artifact
		seen      = make(map[string]string) // output name -> source
	)
	for _, e := range entries {
		var a artifact
		switch e.Kind {
		case KindTemplate:
			b, err := r.Render(e, nil)
			if err != nil {
				return err
			}
			a = artifact{name: e.OutputName(c), data: b}
		case KindPlain:
			a = artifact{name: e.Name, src: e.Path}
		default:
			continue
		}
		if prev, ok := seen[a.name]; ok {
			return fmt.Errorf("%s: %w: %q is also produced by %s", e.Path, ErrOutputConflict, a.name, prev)
		}
		if a.name == c.AssetsDir {
			return fmt.Errorf("%s: %w: %q is the asset directory", e.Path, ErrOutputConflict, a.name)
		}
		seen[a.name] = e.Path
		artifacts = append(artifacts, a)
	}

	// Clean up after previous build.
	if err := Clean(c.Dst); err != nil {
		return err
	}
	if err := CopyAssets(filepath.Join(c.Src, c.AssetsDir), c.Dst); err != nil {
		return err
	}

	for _, a := range artifacts {
		dst := filepath.Join(c.Dst, a.name)
		if a.src != "" {
			if err := copyFile(a.src, dst); err != nil {
				return err
			}
			continue
		}
		if err := os.WriteFile(dst, a.data, 0o644); err != nil {
			return err
		}
	}

	logger.Info(ctx, "published guides",
		slog.String("src", c.Src),
		slog.String("dst", c.Dst),
		slog.Int("files", len(artifacts)),
	)
	return nil
}
