package chat

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// textExtensions lists file extensions treated as plain text when attaching
// files to a conversation.
var textExtensions = map[string]bool{
	".bash": true, ".c": true, ".cc": true, ".cfg": true, ".clj": true,
	".conf": true, ".cpp": true, ".cs": true, ".css": true, ".csv": true,
	".dart": true, ".diff": true, ".dockerfile": true, ".ex": true,
	".exs": true, ".gitignore": true, ".go": true, ".graphql": true,
	".h": true, ".hpp": true, ".hs": true, ".html": true, ".ini": true,
	".java": true, ".js": true, ".json": true, ".jsx": true, ".kt": true,
	".lua": true, ".markdown": true, ".md": true, ".mk": true, ".org": true,
	".patch": true, ".php": true, ".pl": true, ".proto": true, ".py": true,
	".rb": true, ".rs": true, ".scala": true, ".sh": true, ".sql": true,
	".svg": true, ".swift": true, ".toml": true, ".ts": true, ".tsx": true,
	".txt": true, ".vim": true, ".xml": true, ".yaml": true, ".yml": true,
	".zig": true, ".zsh": true,
}

var imageMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// DetectMimeType maps a file path to the MIME type used when attaching it.
// Text-like files all map to text/plain; unknown extensions map to
// application/octet-stream.
func DetectMimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := imageMimeTypes[ext]; ok {
		return mime
	}
	if ext == ".pdf" {
		return "application/pdf"
	}
	if textExtensions[ext] {
		return "text/plain"
	}
	return "application/octet-stream"
}

// IsSupportedMimeType reports whether attachments of this MIME type can be
// forwarded to model providers.
func IsSupportedMimeType(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp",
		"application/pdf", "text/plain":
		return true
	}
	return false
}

// IsTextFile reports whether the file at path holds text. Known text
// extensions pass without reading the file; otherwise the first bytes are
// sniffed. Unreadable files are not text.
func IsTextFile(path string) bool {
	if textExtensions[strings.ToLower(filepath.Ext(path))] {
		return true
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if n == 0 {
		// An empty file counts as text, an unreadable one does not.
		return err == nil || errors.Is(err, io.EOF)
	}
	return !bytes.ContainsRune(buf[:n], 0x00)
}

// ReadFileForInline reads a text file and wraps it in attached_file tags for
// inlining into a message.
func ReadFileForInline(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file for inline attachment: %w", err)
	}
	return fmt.Sprintf("<attached_file path=%q>\n%s\n</attached_file>", path, data), nil
}
