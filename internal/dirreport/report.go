// Package dirreport writes a plain-text inventory of a directory tree.
package dirreport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// skipDirs are version control metadata directories that are never listed or descended into.
var skipDirs = map[string]bool{
	".git": true,
	".hg":  true,
	".svn": true,
}

// Summary counts what a report covered.
type Summary struct {
	Directories int
	Files       int
	Unreadable  int
	Unsized     int
}

// RootLabel names the root directory's block in the report.
const RootLabel = "ROOT"

// Generate walks root depth-first in lexical order and writes the report to w.
// Filesystem errors, including a missing or non-directory root, are noted in
// the report and logged; only a failing writer aborts the walk.
func Generate(ctx context.Context, root string, w io.Writer, now time.Time) (Summary, error) {
	L := log.FromContext(ctx)

	var sum Summary
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "Directory Contents Report")
	fmt.Fprintf(bw, "Generated: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(bw, "Root: %s\n", root)

	var walk func(dir, rel string)
	walk = func(dir, rel string) {
		if ctx.Err() != nil {
			return
		}
		sum.Directories++

		label := rel
		if label == "" {
			label = RootLabel
		}
		fmt.Fprintf(bw, "\nDirectory: %s\n", label)

		entries, err := os.ReadDir(dir)
		if err != nil {
			sum.Unreadable++
			L.Warn(ctx, "directory unreadable", "path", dir, "error", err)
			fmt.Fprintf(bw, "  (unreadable: %v)\n", err)
			// ReadDir may still return the entries it managed to read
			if len(entries) == 0 {
				return
			}
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		var dirs, files []fs.DirEntry
		for _, e := range entries {
			if e.IsDir() {
				if skipDirs[e.Name()] {
					continue
				}
				dirs = append(dirs, e)
				continue
			}
			files = append(files, e)
		}

		if len(dirs) > 0 {
			fmt.Fprintln(bw, "  Subdirectories:")
			for _, d := range dirs {
				fmt.Fprintf(bw, "    %s/\n", d.Name())
			}
		}
		if len(files) > 0 {
			fmt.Fprintln(bw, "  Files:")
			for _, f := range files {
				sum.Files++
				fi, err := f.Info()
				if err != nil {
					sum.Unsized++
					L.Warn(ctx, "file stat failed", "path", filepath.Join(dir, f.Name()), "error", err)
					fmt.Fprintf(bw, "    %s (size unknown)\n", f.Name())
					continue
				}
				fmt.Fprintf(bw, "    %s (%d bytes)\n", f.Name(), fi.Size())
			}
		}

		for _, d := range dirs {
			walk(filepath.Join(dir, d.Name()), path.Join(rel, d.Name()))
		}
	}
	walk(root, "")

	if err := bw.Flush(); err != nil {
		return sum, fmt.Errorf("write report: %w", err)
	}
	return sum, ctx.Err()
}

// WriteFile generates the report for root into output, creating the parent
// directory of output as needed.
func WriteFile(ctx context.Context, root, output string, now time.Time) (sum Summary, err error) {
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return sum, fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(output) //nolint:gosec // G304: output path is operator config
	if err != nil {
		return sum, fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close output: %w", cerr))
		}
	}()

	sum, err = Generate(ctx, root, f, now)
	if err != nil {
		return sum, err
	}

	log.FromContext(ctx).Info(ctx, "directory report written",
		"root", root,
		"output", output,
		"directories", sum.Directories,
		"files", sum.Files,
		"unreadable", sum.Unreadable,
	)
	return sum, nil
}
