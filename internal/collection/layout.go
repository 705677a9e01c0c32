package collection

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// File names probed inside a collection directory, in order of preference.
var (
	InputNames     = []string{"challenge1b_input.json", "input.json"}
	SourceDirNames = []string{"PDFs", "docs"}
)

const (
	OutlineDirName = "outlines"
	OutputName     = "challenge1b_output.json"
)

// ErrNoInput means a directory has no recognised request file.
var ErrNoInput = errors.New("no collection input file")

// Layout locates a collection's request, sources, outlines and output.
type Layout struct {
	Dir        string
	InputPath  string
	SourceDir  string
	OutlineDir string
	OutputPath string
}

// Discover inspects dir and fills in a Layout. Only the request file is
// required; a missing source directory falls back to dir itself.
func Discover(dir string) (Layout, error) {
	l := Layout{
		Dir:        dir,
		SourceDir:  dir,
		OutlineDir: filepath.Join(dir, OutlineDirName),
		OutputPath: filepath.Join(dir, OutputName),
	}

	for _, name := range InputNames {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			l.InputPath = p
			break
		}
	}
	if l.InputPath == "" {
		return l, fmt.Errorf("%s: %w", dir, ErrNoInput)
	}

	for _, name := range SourceDirNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			l.SourceDir = p
			break
		}
	}
	return l, nil
}

// FindAll returns the layouts of every collection directory directly under
// root, plus root itself when it holds a request file.
func FindAll(root string) ([]Layout, error) {
	var layouts []Layout
	if l, err := Discover(root); err == nil {
		layouts = append(layouts, l)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		l, err := Discover(filepath.Join(root, e.Name()))
		if errors.Is(err, ErrNoInput) {
			continue
		}
		if err != nil {
			return nil, err
		}
		layouts = append(layouts, l)
	}
	return layouts, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
