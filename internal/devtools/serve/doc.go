// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Serve previews the guides for local development.

# Usage:

	$ go tool serve [flags] [dir]

Serve publishes the guides into dir (default "build"), renders them as
HTML into a temporary directory and serves it. It then watches the guides
directory for changes and rebuilds both automatically.
*/
package main

import (
	_ "embed"

	"go.astrophena.name/base/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
