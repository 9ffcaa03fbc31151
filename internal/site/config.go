// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package site

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// load reads the Starlark file at path and fills empty fields of c from its
// globals:
//
//	assets_dir = "images"
//	partial_prefix = "_"
//	template_ext = ".tmpl"
//	delims = ("{{", "}}")
//
// Globals starting with an underscore are private to the file and ignored.
func (c *Config) load(path string) error {
	thread := &starlark.Thread{Name: "config"}
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, path, nil, nil)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", path, ErrConfig, err)
	}

	setString := func(name string, v starlark.Value, field *string) error {
		s, ok := starlark.AsString(v)
		if !ok || s == "" {
			return fmt.Errorf("%s: %w: %s must be a non-empty string, got %s", path, ErrConfig, name, v.Type())
		}
		if *field == "" {
			*field = s
		}
		return nil
	}

	for _, name := range globals.Keys() {
		if strings.HasPrefix(name, "_") {
			continue
		}
		v := globals[name]

		var err error
		switch name {
		case "assets_dir":
			err = setString(name, v, &c.AssetsDir)
		case "partial_prefix":
			err = setString(name, v, &c.PartialPrefix)
		case "template_ext":
			err = setString(name, v, &c.TemplateExt)
		case "delims":
			t, ok := v.(starlark.Tuple)
			if !ok || t.Len() != 2 {
				return fmt.Errorf("%s: %w: delims must be a pair of strings", path, ErrConfig)
			}
			if err = setString(name, t[0], &c.LeftDelim); err == nil {
				err = setString(name, t[1], &c.RightDelim)
			}
		default:
			return fmt.Errorf("%s: %w: unknown setting %q", path, ErrConfig, name)
		}
		if err != nil {
			return err
		}
	}

	return nil
}
