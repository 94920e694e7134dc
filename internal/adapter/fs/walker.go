package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"nhp/internal/domain"
)

// Walker resolves command-line inputs (files, directories or glob patterns) to documents.
type Walker struct {
	includes []string
	excludes []string
}

// NewWalker filters directory contents by doublestar patterns relative to the directory.
func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*.pdf", "**/*.PDF"}
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}

// Resolve expands each input and returns the matching files once each, sorted by path.
// Explicit file paths are returned even when they do not match the include patterns.
func (w *Walker) Resolve(inputs []string) ([]FileInfo, error) {
	seen := make(map[string]bool)
	var files []FileInfo

	add := func(path string, info os.FileInfo) {
		if seen[path] {
			return
		}
		seen[path] = true
		files = append(files, FileInfo{Path: path, ModTime: info.ModTime().Unix(), Size: info.Size()})
	}

	for _, input := range inputs {
		info, err := os.Stat(input)
		switch {
		case err == nil && info.IsDir():
			found, err := w.Walk(input)
			if err != nil {
				return nil, err
			}
			for _, f := range found {
				if !seen[f.Path] {
					seen[f.Path] = true
					files = append(files, f)
				}
			}
		case err == nil:
			abs, err := filepath.Abs(input)
			if err != nil {
				return nil, err
			}
			add(abs, info)
		default:
			matches, globErr := doublestar.FilepathGlob(input)
			if globErr != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", input, globErr)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no files match %s", input)
			}
			for _, m := range matches {
				info, err := os.Stat(m)
				if err != nil || info.IsDir() {
					continue
				}
				abs, err := filepath.Abs(m)
				if err != nil {
					return nil, err
				}
				add(abs, info)
			}
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Walk returns files under root that match the include and exclude patterns.
func (w *Walker) Walk(root string) ([]FileInfo, error) {
	var files []FileInfo

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if relPath != "." && w.shouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if w.shouldInclude(relPath) && !w.shouldExclude(relPath) {
			files = append(files, FileInfo{
				Path:    path,
				ModTime: info.ModTime().Unix(),
				Size:    info.Size(),
			})
		}

		return nil
	})

	return files, err
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// ReadUploads loads files as uploads named by their base name.
func ReadUploads(files []FileInfo) ([]domain.UploadedFile, error) {
	uploads := make([]domain.UploadedFile, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Path, err)
		}
		uploads = append(uploads, domain.UploadedFile{Name: filepath.Base(f.Path), Data: data})
	}
	return uploads, nil
}
