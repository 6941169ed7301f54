package storage

import (
	"mime"
	"net/http"
	"path"
	"strings"
)

// Join builds a key from segments and rejects anything that would climb
// out of the first segment.
func Join(root string, parts ...string) (string, error) {
	rel := strings.Join(parts, "/")
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", ErrInvalidKey
		}
	}
	key := strings.Trim(path.Join(strings.Trim(root, "/"), rel), "/")
	if key == "" || key == "." {
		return "", ErrInvalidKey
	}
	return key, nil
}

// FolderKey returns the marker key that represents an empty folder.
func FolderKey(key string) string {
	return strings.TrimSuffix(key, "/") + "/"
}

// BaseName is the last path segment of key, ignoring a trailing slash.
func BaseName(key string) string {
	return path.Base(strings.TrimSuffix(key, "/"))
}

// DetectContentType uses the file extension first and sniffs head second.
func DetectContentType(name string, head []byte) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	if len(head) == 0 {
		return "application/octet-stream"
	}
	return http.DetectContentType(head)
}
