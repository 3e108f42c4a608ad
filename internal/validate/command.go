package validate

import (
	"fmt"
	"strings"
)

// shellMetacharacters are rejected outright. The sandbox runs commands
// without a shell, so these would either fail or indicate an injection
// attempt.
var shellMetacharacters = []string{";", "&&", "||", "|", "`", "$(", ">", "<", "\n"}

// dangerousSubstrings are rejected regardless of context.
var dangerousSubstrings = []string{
	"rm -rf /",
	"rm -fr /",
	"mkfs",
	"dd if=",
	":(){",
	"chmod -R 777 /",
	"shutdown",
	"reboot",
}

// allowedCommands is the advisory leading-token allow-list. A command
// outside it gets a warning, not a rejection: the list is guidance for
// the agent, the sandbox is the actual security boundary.
var allowedCommands = map[string]bool{
	"npm": true, "npx": true, "yarn": true, "pnpm": true,
	"node": true, "next": true, "tsc": true,
	"python": true, "python3": true, "pip": true,
	"ls": true, "cat": true, "pwd": true, "echo": true,
	"mkdir": true, "cp": true, "mv": true, "touch": true,
}

// Command checks a sandbox shell command: metacharacters and known
// destructive substrings are hard failures, unfamiliar leading tokens
// are soft warnings.
func Command(command string) Result {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return fail("command is empty")
	}

	for _, meta := range shellMetacharacters {
		if strings.Contains(command, meta) {
			res := fail(fmt.Sprintf("command contains shell metacharacter %q", meta))
			res.Suggestions = append(res.Suggestions,
				"run one command at a time instead of chaining with shell operators")
			return res
		}
	}
	lowered := strings.ToLower(command)
	for _, bad := range dangerousSubstrings {
		if strings.Contains(lowered, bad) {
			return fail(fmt.Sprintf("command contains blocked operation %q", bad))
		}
	}

	res := ok()
	token := strings.Fields(trimmed)[0]
	if !allowedCommands[token] {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%q is not a typical sandbox command; it may not be installed", token))
	}
	return res
}
