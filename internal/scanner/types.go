// Package scanner discovers transcript files under a projects directory and
// streams their records through the transcript extractor.
package scanner

import (
	"time"
)

// TranscriptExt is the file extension of transcript logs.
const TranscriptExt = ".jsonl"

// DefaultMaxFileSize is the largest transcript read (256MB).
const DefaultMaxFileSize = 256 * 1024 * 1024

// FileInfo describes one discovered transcript.
type FileInfo struct {
	Path    string // Relative to the scan root
	AbsPath string
	Size    int64
	ModTime time.Time

	// Project is the label derived from the parent folder name.
	Project string
}

// ScanOptions configures the scanner behavior.
type ScanOptions struct {
	// RootDir is the directory to scan, typically ~/.claude/projects.
	RootDir string

	// ExcludePatterns are globs matched against the relative path and the
	// base name. "dir/**" excludes a whole subtree.
	ExcludePatterns []string

	// MaxFileSize in bytes (0 = DefaultMaxFileSize).
	MaxFileSize int64

	// FollowSymlinks enables following symbolic links (default: false).
	FollowSymlinks bool
}

// ScanResult is returned from the scanner channel.
type ScanResult struct {
	File  *FileInfo
	Error error
}
