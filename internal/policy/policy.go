package policy

import (
	"strings"

	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
)

// alwaysAllowed are read-only introspection commands an agent needs to
// discover what it may run.
var alwaysAllowed = map[string]bool{
	"version": true,
	"schema":  true,
}

// CheckCommandAllowed enforces the --enable-commands allowlist. An entry
// allows the command itself and every subcommand below it, so "routes"
// allows "routes inspect".
func CheckCommandAllowed(allowlist []string, commandPath string) error {
	if len(allowlist) == 0 {
		return nil
	}
	normPath := normalize(commandPath)
	if alwaysAllowed[normPath] {
		return nil
	}
	for _, allowed := range allowlist {
		a := normalize(allowed)
		if a == "" {
			continue
		}
		if normPath == a || strings.HasPrefix(normPath, a+" ") {
			return nil
		}
	}
	return clierr.New(clierr.CodeBlocked, "command blocked by --enable-commands policy")
}

func normalize(v string) string {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(v)))
	return strings.Join(parts, " ")
}
