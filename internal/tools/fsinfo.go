package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"github.com/toolbridge/toolbridge/internal/protocol"
	"github.com/toolbridge/toolbridge/internal/security"
)

// FileInfoTool stats a single path. OS errors surface through the taxonomy;
// sandbox escapes are rejected before the filesystem is touched.
func FileInfoTool(guard *security.PathGuard) Tool {
	return Tool{
		Name:        "get_file_info",
		Description: "Get size, modification time and type for a file or directory.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to inspect",
				},
			},
			"required": []string{"file_path"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			path, _ := input["file_path"].(string)
			resolved, err := guard.Resolve(path)
			if err != nil {
				return "", err
			}
			info, err := os.Stat(resolved)
			if err != nil {
				return "", classifyFSError(err, path)
			}
			out := map[string]interface{}{
				"file_path":    path,
				"exists":       true,
				"size":         info.Size(),
				"modified":     info.ModTime().Format("2006-01-02 15:04:05"),
				"is_file":      info.Mode().IsRegular(),
				"is_directory": info.IsDir(),
			}
			b, _ := json.Marshal(out)
			return string(b), nil
		},
	}
}

// ListDirectoryTool lists a directory's entries, name-sorted, each tagged as
// file or directory.
func ListDirectoryTool(guard *security.PathGuard) Tool {
	return Tool{
		Name:        "list_directory",
		Description: "List the contents of a directory.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"dir_path": map[string]interface{}{
					"type":        "string",
					"description": "Directory path",
					"default":     ".",
				},
			},
			"required": []string{},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			path, _ := input["dir_path"].(string)
			if path == "" {
				path = "."
			}
			resolved, err := guard.Resolve(path)
			if err != nil {
				return "", err
			}
			entries, err := os.ReadDir(resolved) // sorted by name
			if err != nil {
				return "", classifyFSError(err, path)
			}

			files := make([]string, 0, len(entries))
			directories := make([]string, 0)
			for _, e := range entries {
				if e.IsDir() {
					directories = append(directories, e.Name())
				} else {
					files = append(files, e.Name())
				}
			}
			out := map[string]interface{}{
				"directory":         path,
				"files":             files,
				"directories":       directories,
				"total_files":       len(files),
				"total_directories": len(directories),
			}
			b, _ := json.Marshal(out)
			return string(b), nil
		},
	}
}

func classifyFSError(err error, path string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return protocol.Failf(protocol.KindNotFound, "path %q does not exist", path)
	case errors.Is(err, fs.ErrPermission):
		return protocol.Failf(protocol.KindPermissionDenied, "access to %q denied", path)
	}
	return protocol.Failf(protocol.KindExecutionError, "stat %q: %v", path, err)
}
