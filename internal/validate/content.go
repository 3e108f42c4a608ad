package validate

import (
	"fmt"
	"strings"
)

const (
	// maxContentBytes is the hard ceiling for a single file write.
	maxContentBytes = 1 << 20 // 1 MiB
	// warnContentBytes is the soft watermark above which a warning is
	// attached but the write still proceeds.
	warnContentBytes = 256 << 10 // 256 KiB
)

// heuristicScans flags suspicious patterns per file extension. These are
// advisory only: a heuristic must never block legitimate work, so every
// match is a warning, never an error.
var heuristicScans = map[string][]struct {
	pattern string
	warning string
}{
	".py": {
		{"import subprocess", "blueprint code cannot spawn processes; subprocess will fail in the sandboxed interpreter"},
		{"import socket", "blueprint code has no network access; socket calls will fail at execution"},
		{"eval(", "eval in blueprint code is rejected by the on-chain verifier"},
		{"exec(", "exec in blueprint code is rejected by the on-chain verifier"},
	},
	".tsx": {
		{"dangerouslySetInnerHTML", "dangerouslySetInnerHTML bypasses React escaping"},
	},
	".ts": {
		{"child_process", "child_process is unavailable in the sandboxed dev server"},
	},
	".js": {
		{"child_process", "child_process is unavailable in the sandboxed dev server"},
	},
}

// Content checks file content before a write: NUL bytes and oversized
// payloads are hard failures, large-but-legal payloads and heuristic
// pattern matches are warnings.
func Content(path, content string) Result {
	if strings.ContainsRune(content, 0) {
		return fail("content contains NUL bytes; binary files cannot be written through this tool")
	}
	if len(content) > maxContentBytes {
		return fail(fmt.Sprintf("content is %d bytes, above the %d byte limit", len(content), maxContentBytes))
	}

	res := ok()
	if len(content) > warnContentBytes {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("content is %d bytes; consider splitting the file", len(content)))
	}

	ext := extensionOf(path)
	for _, scan := range heuristicScans[ext] {
		if strings.Contains(content, scan.pattern) {
			res.Warnings = append(res.Warnings, scan.warning)
		}
	}
	return res
}

func extensionOf(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 || idx < strings.LastIndex(path, "/") {
		return ""
	}
	return path[idx:]
}
