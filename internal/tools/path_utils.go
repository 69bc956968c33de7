package tools

import (
	"os"
	"path/filepath"
	"strings"
)

// NormalizeAndValidatePath resolves ~ and relative paths against the
// workspace root and reports whether the result escapes the workspace.
func NormalizeAndValidatePath(workspaceRoot, inputPath string) (string, bool, error) {
	path := inputPath
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", false, err
		}
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(workspaceRoot, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(filepath.Clean(workspaceRoot), path)
	if err != nil {
		return "", false, err
	}

	outside := rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
	return path, outside, nil
}
