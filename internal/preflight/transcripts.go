package preflight

import (
	"context"
	"fmt"
	"os"

	"github.com/Aman-CERP/chatsearch/internal/scanner"
	"github.com/Aman-CERP/chatsearch/internal/store"
	"github.com/Aman-CERP/chatsearch/internal/ui"
)

// CheckTranscripts checks that the projects directory exists and counts the
// transcripts a rebuild would read.
func (c *Checker) CheckTranscripts(ctx context.Context, projectsDir string) CheckResult {
	result := CheckResult{
		Name:     "transcripts",
		Required: true,
		Details:  projectsDir,
	}

	info, err := os.Stat(projectsDir)
	if err != nil || !info.IsDir() {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("projects directory not found: %s", projectsDir)
		result.Details = "Set paths.projects_dir in the config or CHATSEARCH_PROJECTS_DIR"
		return result
	}

	sc, err := scanner.New()
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	files, fileErrs, err := sc.List(ctx, &scanner.ScanOptions{RootDir: projectsDir, ExcludePatterns: c.exclude})
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read projects directory: %v", err)
		return result
	}

	var total int64
	projects := make(map[string]struct{})
	for _, f := range files {
		total += f.Size
		projects[f.Project] = struct{}{}
	}

	switch {
	case len(files) == 0:
		result.Status = StatusWarn
		result.Message = "no transcripts found"
	case len(fileErrs) > 0:
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d transcripts in %d projects (%s), %d unreadable",
			len(files), len(projects), ui.FormatBytes(total), len(fileErrs))
	default:
		result.Status = StatusPass
		result.Message = fmt.Sprintf("%d transcripts in %d projects (%s)",
			len(files), len(projects), ui.FormatBytes(total))
	}
	return result
}

// CheckIndex reports which index exists under dataDir.
func (c *Checker) CheckIndex(dataDir string) CheckResult {
	result := CheckResult{
		Name:     "index",
		Required: false,
	}

	backend := store.Detect(store.BasePath(dataDir))
	if backend == "" {
		result.Status = StatusWarn
		result.Message = "not indexed"
		result.Details = "Run 'chatsearch index' to build it"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s index present", backend)
	result.Details = store.IndexPath(dataDir, string(backend))
	return result
}
