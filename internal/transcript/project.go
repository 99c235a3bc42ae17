package transcript

import "strings"

// ProjectName turns a transcript folder name into a project label. Folders
// are absolute paths flattened with '-', e.g. "-Users-alice-code-myproj".
// The label is everything after the first "code" segment; without one it is
// the last segment. A trailing "code" segment keeps the whole name.
func ProjectName(folder string) string {
	parts := strings.Split(folder, "-")
	for i, p := range parts {
		if p != "code" {
			continue
		}
		if i+1 < len(parts) {
			return strings.Join(parts[i+1:], "-")
		}
		return folder
	}
	return parts[len(parts)-1]
}
