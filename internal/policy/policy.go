// Package policy restricts which commands a session may run, so an
// operator can hand the CLI to automation with dry-runs only.
package policy

import (
	"strings"

	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
)

// ExecuteSuffix marks an allowlist entry that also permits submission.
const ExecuteSuffix = "--execute"

// CheckCommandAllowed reports whether commandPath may run. An empty allowlist
// allows everything. A bare entry ("call") allows the command without
// --execute; "call --execute" allows it with or without submission.
func CheckCommandAllowed(allowlist []string, commandPath string, execute bool) error {
	if len(allowlist) == 0 {
		return nil
	}
	normPath := normalize(commandPath)
	withExecute := normPath + " " + ExecuteSuffix
	for _, allowed := range allowlist {
		entry := normalize(allowed)
		if entry == withExecute || (!execute && entry == normPath) {
			return nil
		}
	}
	if execute {
		return clierr.New(clierr.CodeUsage, "submission blocked by --enable-commands policy (allow it with \""+commandPath+" "+ExecuteSuffix+"\")")
	}
	return clierr.New(clierr.CodeUsage, "command blocked by --enable-commands policy")
}

func normalize(v string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(v)))
	return strings.Join(parts, " ")
}
