package validate

import (
	"fmt"
	"strings"
)

// allowedRoots are the only prefixes a project path may start with.
// Mirrors the playground's file layout: blueprints are single Python
// files, dApps are multi-file Next.js trees.
var allowedRoots = []string{"/dapp/", "/blueprints/"}

const (
	// maxPathLength triggers a soft warning, not a failure. Deeply
	// nested generated trees are legitimate.
	maxPathLength = 512
)

// Path checks a project file path: traversal sequences and control
// characters are hard failures, unknown roots are hard failures with a
// corrective suggestion, excessive length is only a warning.
func Path(path string) Result {
	if strings.TrimSpace(path) == "" {
		return fail("path is empty")
	}
	if strings.Contains(path, "..") {
		return fail(fmt.Sprintf("path %q contains a traversal sequence", path))
	}
	for _, r := range path {
		if r < 0x20 || r == 0x7f {
			return fail(fmt.Sprintf("path %q contains control characters", path))
		}
	}

	normalized := path
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}

	allowed := false
	for _, root := range allowedRoots {
		if strings.HasPrefix(normalized, root) {
			allowed = true
			break
		}
	}
	if !allowed {
		res := fail(fmt.Sprintf("path %q is outside the project roots", path))
		res.Suggestions = append(res.Suggestions,
			"dApp files must start with /dapp/ (e.g. /dapp/app/page.tsx)",
			"blueprint files must start with /blueprints/ (e.g. /blueprints/counter.py)",
		)
		return res
	}

	res := ok()
	if len(path) > maxPathLength {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("path is %d characters long; consider a shallower layout", len(path)))
	}
	return res
}

// NormalizePath prepends the leading slash the agent tends to drop.
func NormalizePath(path string) string {
	if path == "" || strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}

// ReadPath checks a path used for read-oriented tools. Reads are allowed
// anywhere in the project tree (including "/" listings), so only the
// hard safety checks apply.
func ReadPath(path string) Result {
	if strings.Contains(path, "..") {
		return fail(fmt.Sprintf("path %q contains a traversal sequence", path))
	}
	for _, r := range path {
		if r < 0x20 || r == 0x7f {
			return fail(fmt.Sprintf("path %q contains control characters", path))
		}
	}
	return ok()
}
