// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Build publishes the guides.

# Usage

	$ go tool build [flags] [dir]

Renders the templates in the guides directory, copies plain documents and
images, and writes the result into dir. If dir is not provided, it
defaults to build in the current working directory. The directory is
cleaned first, so nothing from a previous run survives.

The build stops at the first error, such as a template including a
partial that doesn't exist, and exits with a non-zero status.

# Flags

	-src dir
	    Read guides from dir instead of guides.
	-preview dir
	    After publishing, also render the published guides as HTML into
	    dir.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/base/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
