// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Addcopyright adds copyright header to each Go and Starlark file.
//
// Guides are left alone: a header there would end up in the published
// documents.
package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"go.astrophena.name/guides/internal/devtools"
)

var templates = map[string]string{
	".go": `// © %d Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

`,
	".star": `# © %d Ilya Mateyko. All rights reserved.
# Use of this source code is governed by the ISC
# license that can be found in the LICENSE.md file.

`,
}

var headers = map[string]string{
	".go":   `// ©`,
	".star": `# ©`,
}

// Directories that are never touched.
var skipDirs = []string{
	".git",
	"_examples",
	"build",
	"testdata",
}

func main() {
	log.SetFlags(0)
	devtools.EnsureRoot()

	if err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			for _, skip := range skipDirs {
				if d.Name() == skip {
					return filepath.SkipDir
				}
			}
			return nil
		}
		ext := filepath.Ext(path)
		tmpl, ok := templates[ext]
		if !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		if hasHeader(content, headers[ext]) {
			return nil
		}

		hdr := fmt.Sprintf(tmpl, info.ModTime().Year())

		var buf bytes.Buffer
		buf.WriteString(hdr)
		buf.Write(content)

		return os.WriteFile(path, buf.Bytes(), info.Mode().Perm())
	}); err != nil {
		log.Fatal(err)
	}
}

// hasHeader reports whether content already starts with header, allowing
// for leading build constraints and go:generate style shebang lines.
func hasHeader(content []byte, header string) bool {
	for line := range strings.Lines(string(content)) {
		switch {
		case strings.HasPrefix(line, header):
			return true
		case strings.HasPrefix(line, "//go:build"), strings.HasPrefix(line, "#!"), strings.TrimSpace(line) == "":
			continue
		}
		return false
	}
	return false
}
