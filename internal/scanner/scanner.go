package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/chatsearch/internal/errors"
	"github.com/Aman-CERP/chatsearch/internal/transcript"
)

// projectCacheSize bounds the directory → project label cache.
const projectCacheSize = 1000

// Scanner discovers transcript files.
type Scanner struct {
	projects *lru.Cache[string, string]
}

// New creates a Scanner.
func New() (*Scanner, error) {
	cache, err := lru.New[string, string](projectCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create project cache: %w", err)
	}
	return &Scanner{projects: cache}, nil
}

// Scan walks RootDir in a goroutine and streams every transcript found.
// The channel is closed when the walk completes or ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}

	absRoot, err := validateRoot(opts.RootDir)
	if err != nil {
		return nil, err
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	results := make(chan ScanResult, 64)
	go func() {
		defer close(results)
		s.walk(ctx, absRoot, opts, maxFileSize, results)
	}()
	return results, nil
}

// List collects a full scan. Files are sorted by path so progress output is
// stable; per-file errors are returned alongside the files.
func (s *Scanner) List(ctx context.Context, opts *ScanOptions) ([]*FileInfo, []error, error) {
	results, err := s.Scan(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	var files []*FileInfo
	var fileErrs []error
	for r := range results {
		if r.Error != nil {
			fileErrs = append(fileErrs, r.Error)
			continue
		}
		files = append(files, r.File)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, fileErrs, nil
}

func validateRoot(root string) (string, error) {
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return "", errors.IOError(fmt.Sprintf("projects directory not found: %s", absRoot), err).
			WithSuggestion("set paths.projects_dir in the config or CHATSEARCH_PROJECTS_DIR")
	}
	if !info.IsDir() {
		return "", errors.ValidationError(fmt.Sprintf("not a directory: %s", absRoot), nil)
	}
	return absRoot, nil
}

func (s *Scanner) walk(ctx context.Context, absRoot string, opts *ScanOptions, maxFileSize int64, results chan<- ScanResult) {
	send := func(r ScanResult) error {
		select {
		case results <- r:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// unreadable directory: report and keep walking
			if d != nil && d.IsDir() && path != absRoot {
				_ = send(ScanResult{Error: errors.IOError("cannot read directory", err).WithDetail("path", path)})
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil || relPath == "." {
			return nil
		}

		if d.IsDir() {
			if MatchesAny(relPath, opts.ExcludePatterns) {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.EqualFold(filepath.Ext(path), TranscriptExt) {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if !opts.FollowSymlinks {
				return nil
			}
			target, statErr := os.Stat(path)
			if statErr != nil || target.IsDir() {
				return nil
			}
		}

		if MatchesAny(relPath, opts.ExcludePatterns) {
			return nil
		}

		info, err := os.Stat(path)
		if err != nil {
			return send(ScanResult{Error: errors.IOError("cannot stat transcript", err).WithDetail("path", path)})
		}
		if info.Size() > maxFileSize {
			return send(ScanResult{Error: errors.New(errors.ErrCodeInvalidInput,
				fmt.Sprintf("transcript exceeds %d bytes", maxFileSize), nil).WithDetail("path", path)})
		}

		return send(ScanResult{File: &FileInfo{
			Path:    relPath,
			AbsPath: path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Project: s.projectFor(filepath.Dir(path)),
		}})
	})

	if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		_ = send(ScanResult{Error: err})
	}
}

// projectFor returns the cached project label for a transcript directory.
func (s *Scanner) projectFor(dir string) string {
	if p, ok := s.projects.Get(dir); ok {
		return p
	}
	p := transcript.ProjectName(filepath.Base(dir))
	s.projects.Add(dir, p)
	return p
}

// MatchesAny reports whether relPath matches an exclusion glob, either as a
// whole path, by base name, or as a "dir/**" subtree.
func MatchesAny(relPath string, patterns []string) bool {
	relPath = filepath.ToSlash(relPath)
	base := filepath.Base(relPath)
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			if relPath == prefix || strings.HasPrefix(relPath, prefix+"/") {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(pattern, relPath); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
