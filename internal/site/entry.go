// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package site

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind classifies a source entry.
type Kind int

// Entry kinds.
const (
	KindPlain    Kind = iota // copied byte for byte
	KindTemplate             // rendered, template extension stripped
	KindPartial              // only included from other documents
	KindAssets               // copied recursively
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindTemplate:
		return "template"
	case KindPartial:
		return "partial"
	case KindAssets:
		return "assets"
	}
	return "unknown"
}

// Entry is a file directly under the source directory.
type Entry struct {
	Kind Kind
	Name string // base name
	Path string // path to the file, relative to the working directory
}

// OutputName returns the name under which e is published.
func (e *Entry) OutputName(c *Config) string {
	if e.Kind == KindTemplate {
		return strings.TrimSuffix(e.Name, c.TemplateExt)
	}
	return e.Name
}

// partialName returns the logical name of a partial, and false if e can't
// be included.
func (e *Entry) partialName(c *Config) (string, bool) {
	if e.Kind != KindPartial || !strings.HasSuffix(e.Name, c.TemplateExt) {
		return "", false
	}
	name := strings.TrimPrefix(e.Name, c.PartialPrefix)
	name = strings.TrimSuffix(name, c.TemplateExt)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return name, name != ""
}

func classify(c *Config, name string, isDir bool) Kind {
	switch {
	case isDir && name == c.AssetsDir:
		return KindAssets
	case strings.HasPrefix(name, c.PartialPrefix):
		return KindPartial
	case strings.HasSuffix(name, c.TemplateExt) && name != c.TemplateExt:
		return KindTemplate
	}
	return KindPlain
}

// Discover returns entries directly under c.Src, sorted by name. The asset
// directory is not included; it is handled by [CopyAssets].
func Discover(c *Config) ([]*Entry, error) {
	des, err := os.ReadDir(c.Src)
	if err != nil {
		return nil, err
	}

	dst, err := filepath.Abs(c.Dst)
	if err != nil {
		return nil, err
	}

	var entries []*Entry
	for _, de := range des {
		name := de.Name()
		if IsIgnorable(name) || name == ConfigFile {
			continue
		}
		path := filepath.Join(c.Src, name)
		if abs, err := filepath.Abs(path); err == nil && abs == dst {
			continue
		}

		kind := classify(c, name, de.IsDir())
		if kind == KindAssets {
			continue
		}
		// Nested directories other than the asset directory aren't part of
		// the layout.
		if de.IsDir() {
			continue
		}
		entries = append(entries, &Entry{Kind: kind, Name: name, Path: path})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// IsIgnorable reports whether a file with this base name is never part of a
// build: hidden files and editor backups.
func IsIgnorable(name string) bool {
	// Ignore hidden files, including .git and .gitignore.
	if strings.HasPrefix(name, ".") {
		return true
	}

	// Ignore files that look like Vim backups.
	if strings.HasSuffix(name, "~") {
		return true
	}

	return false
}
