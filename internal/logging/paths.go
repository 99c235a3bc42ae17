package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// ServerLogName is the active log file inside the log directory.
const ServerLogName = "server.log"

// DefaultLogDir returns ~/.chatsearch/logs, falling back to the temp
// directory when the home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".chatsearch", "logs")
	}
	return filepath.Join(home, ".chatsearch", "logs")
}

// FindLogFile resolves the log to view. An explicit path wins; otherwise
// server.log inside dir (or DefaultLogDir) is used.
func FindLogFile(explicit, dir string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	if dir == "" {
		dir = DefaultLogDir()
	}
	path := filepath.Join(dir, ServerLogName)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("no log file found at %s\nStart the server to generate logs:\n  chatsearch serve", path)
}

// RotatedFiles lists path followed by its rotated siblings, newest first.
func RotatedFiles(path string, maxFiles int) []string {
	var files []string
	if _, err := os.Stat(path); err == nil {
		files = append(files, path)
	}
	for i := 1; i <= maxFiles; i++ {
		p := fmt.Sprintf("%s.%d", path, i)
		if _, err := os.Stat(p); err != nil {
			break
		}
		files = append(files, p)
	}
	return files
}
