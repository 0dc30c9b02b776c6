package rules

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"hookd/internal/hook"
)

// Built-in rule identifiers referenced from the handler table.
const (
	RuleBlockDestructive      = "block-destructive"
	RuleProtectSensitivePaths = "protect-sensitive-paths"
	RuleUnattendedGate        = "unattended-gate"
	RuleSpellingAdvisory      = "spelling-advisory"
)

var destructivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bgit\s+reset\s+--hard\b`),
	regexp.MustCompile(`(?i)\bgit\s+push\b.*(?:--force(?:\s|$)|\s-f\b)`),
	regexp.MustCompile(`(?i)\bgit\s+clean\s+-[a-z]*f`),
	regexp.MustCompile(`(?i)\brm\s+(?:-[a-z]*r[a-z]*f|-[a-z]*f[a-z]*r)[a-z]*\s+(?:/|~)`),
	regexp.MustCompile(`(?i)\bgit\s+checkout\s+--\s+\.`),
}

var sensitivePathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(^|/)\.env(\.|$)`),
	regexp.MustCompile(`(?i)(^|/)id_(rsa|ed25519|ecdsa)(\.|$)`),
	regexp.MustCompile(`(?i)\.(pem|p12|pfx)$`),
	regexp.MustCompile(`(?i)(^|/)\.ssh/`),
	regexp.MustCompile(`(?i)(^|/)\.aws/credentials$`),
	regexp.MustCompile(`(?i)(^|/)secrets?\.(ya?ml|json|toml)$`),
}

var fileMutatingTools = map[string]struct{}{
	"Write":        {},
	"Edit":         {},
	"MultiEdit":    {},
	"NotebookEdit": {},
}

func toolName(event hook.Event) string {
	return gjson.GetBytes(event.Payload, "tool_name").String()
}

func bashCommand(event hook.Event) string {
	if toolName(event) != "Bash" {
		return ""
	}
	return gjson.GetBytes(event.Payload, "tool_input.command").String()
}

func mutatedFilePath(event hook.Event) string {
	if _, ok := fileMutatingTools[toolName(event)]; !ok {
		return ""
	}
	path := gjson.GetBytes(event.Payload, "tool_input.file_path").String()
	if path == "" {
		path = gjson.GetBytes(event.Payload, "tool_input.notebook_path").String()
	}
	return path
}

// newBlockDestructive denies shell commands that irreversibly discard work.
func newBlockDestructive(priority int) *rule {
	return &rule{
		id:       RuleBlockDestructive,
		priority: priority,
		terminal: true,
		matches: func(event hook.Event) (bool, error) {
			command := bashCommand(event)
			if command == "" {
				return false, nil
			}
			for _, pattern := range destructivePatterns {
				if pattern.MatchString(command) {
					return true, nil
				}
			}
			return false, nil
		},
		handle: func(event hook.Event) (hook.Result, error) {
			return hook.Result{
				Decision: hook.DecisionDeny,
				Reason:   "destructive command blocked: irreversibly discards work",
				Guidance: "use a non-destructive alternative (git stash, scoped rm) or run it manually",
			}, nil
		},
	}
}

// newProtectSensitivePaths denies writes to credential-looking files.
func newProtectSensitivePaths(priority int) *rule {
	return &rule{
		id:       RuleProtectSensitivePaths,
		priority: priority,
		terminal: true,
		matches: func(event hook.Event) (bool, error) {
			path := mutatedFilePath(event)
			if path == "" {
				return false, nil
			}
			normalized := filepath.ToSlash(path)
			for _, pattern := range sensitivePathPatterns {
				if pattern.MatchString(normalized) {
					return true, nil
				}
			}
			return false, nil
		},
		handle: func(event hook.Event) (hook.Result, error) {
			return hook.Result{
				Decision: hook.DecisionDeny,
				Reason:   fmt.Sprintf("refusing to modify sensitive file %s", mutatedFilePath(event)),
				Guidance: "edit credential files manually, outside the agent",
			}, nil
		},
	}
}

// ModeFunc reports the daemon's current mode to mode-sensitive rules.
type ModeFunc func() string

// newUnattendedGate denies operations that would stall waiting for a human
// while the daemon runs in unattended mode.
func newUnattendedGate(priority int, mode ModeFunc) *rule {
	interactive := regexp.MustCompile(`(?i)\bsudo\b|\bgit\s+rebase\s+(-i|--interactive)\b|\bssh\b.*\s-t\b`)
	return &rule{
		id:       RuleUnattendedGate,
		priority: priority,
		terminal: true,
		matches: func(event hook.Event) (bool, error) {
			if mode == nil || mode() != "unattended" {
				return false, nil
			}
			command := bashCommand(event)
			return command != "" && interactive.MatchString(command), nil
		},
		handle: func(event hook.Event) (hook.Result, error) {
			return hook.Result{
				Decision: hook.DecisionDeny,
				Reason:   "interactive command rejected while running unattended",
				Guidance: "switch the daemon back to default mode before running interactive commands",
			}, nil
		},
	}
}

// newSpellingAdvisory appends advisory context on writes using a spelling
// the project style guide discourages. Non-terminal: later handlers still run.
func newSpellingAdvisory(priority int) *rule {
	return &rule{
		id:       RuleSpellingAdvisory,
		priority: priority,
		matches: func(event hook.Event) (bool, error) {
			if mutatedFilePath(event) == "" {
				return false, nil
			}
			content := gjson.GetBytes(event.Payload, "tool_input.content").String()
			if content == "" {
				content = gjson.GetBytes(event.Payload, "tool_input.new_string").String()
			}
			return strings.Contains(content, "color"), nil
		},
		handle: func(event hook.Event) (hook.Result, error) {
			res := hook.NewAllow()
			res.AppendContext("use colour not color")
			return res, nil
		},
	}
}
