package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// defaultExtensions are the document types indexed when the caller does not
// configure an explicit list. Plain-text formats only; binary formats need a
// dedicated extractor and are skipped with a log line instead.
var defaultExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".rst":      true,
}

// maxDocumentBytes caps how much of a single file is read. Oversized corpora
// almost always indicate a misplaced binary or export dump.
const maxDocumentBytes = 8 << 20 // 8 MiB

// extractText reads a document and returns its content normalized for
// chunking: CRLF collapsed and invalid UTF-8 rejected.
func extractText(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > maxDocumentBytes {
		return "", fmt.Errorf("file %s is %d bytes, exceeds %d byte limit", filepath.Base(path), info.Size(), maxDocumentBytes)
	}

	raw, err := os.ReadFile(path) // #nosec G304 -- paths come from directory discovery, not user input
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("file %s is not valid UTF-8 text", filepath.Base(path))
	}

	return strings.ReplaceAll(string(raw), "\r\n", "\n"), nil
}

// normalizeExtensions lowercases and returns a lookup set, falling back to
// the defaults when the input is empty. The map is always a fresh copy so
// builders never share state.
func normalizeExtensions(exts []string) map[string]bool {
	out := make(map[string]bool, len(exts))
	if len(exts) == 0 {
		for k, v := range defaultExtensions {
			out[k] = v
		}
		return out
	}
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[strings.ToLower(ext)] = true
	}
	return out
}
