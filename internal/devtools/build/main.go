// © 2022 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"flag"
	"path/filepath"

	"go.astrophena.name/base/cli"
	"go.astrophena.name/guides/internal/devtools"
	"go.astrophena.name/guides/internal/preview"
	"go.astrophena.name/guides/internal/site"
)

func main() { cli.Main(new(app)) }

type app struct {
	src     string
	preview string
}

func (a *app) Flags(fs *flag.FlagSet) {
	fs.StringVar(&a.src, "src", filepath.Join(".", "guides"), "Read guides from `dir`.")
	fs.StringVar(&a.preview, "preview", "", "Also render an HTML preview into `dir`.")
}

func (a *app) Run(ctx context.Context) error {
	devtools.EnsureRoot()

	dir := filepath.Join(".", "build")
	if args := cli.GetEnv(ctx).Args; len(args) > 0 {
		dir = args[0]
	}

	if err := site.Build(ctx, &site.Config{
		Src: a.src,
		Dst: dir,
	}); err != nil {
		return err
	}

	if a.preview == "" {
		return nil
	}
	return preview.Build(ctx, &preview.Config{
		Src: dir,
		Dst: a.preview,
	})
}
