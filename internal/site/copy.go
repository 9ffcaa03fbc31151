// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package site

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// CheckOutputDir returns an error if cleaning dst would remove src, that
// is, if dst is src or one of its parents.
func CheckOutputDir(src, dst string) error {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absDst, absSrc)
	if err != nil {
		// Different volumes.
		return nil
	}
	if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
		return fmt.Errorf("%w: output directory %s contains source directory %s", ErrConfig, dst, src)
	}
	return nil
}

// Clean removes everything inside dir, but not dir itself. It creates dir
// if it doesn't exist.
func Clean(dir string) error {
	des, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return os.MkdirAll(dir, 0o755)
	} else if err != nil {
		return err
	}
	for _, de := range des {
		if err := os.RemoveAll(filepath.Join(dir, de.Name())); err != nil {
			return err
		}
	}
	return nil
}

// CopyAssets copies the src directory recursively into dst, so that
// src/a/b.png ends up as dst/<base of src>/a/b.png. File contents are not
// transformed in any way.
func CopyAssets(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("asset directory: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("asset directory: %s is not a directory", src)
	}

	root := filepath.Join(dst, filepath.Base(src))
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(root, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("%s: %w", src, err)
	}
	return out.Close()
}
