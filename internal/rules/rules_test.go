package rules_test

import (
	"encoding/json"
	"testing"

	"hookd/internal/config"
	"hookd/internal/dispatch"
	"hookd/internal/hook"
	"hookd/internal/logging"
	"hookd/internal/rules"
)

func bashEvent(t *testing.T, command string) hook.Event {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"tool_name":  "Bash",
		"tool_input": map[string]string{"command": command},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return hook.Event{Type: hook.PreToolUse, Payload: payload}
}

func writeEvent(t *testing.T, path, content string) hook.Event {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"tool_name":  "Write",
		"tool_input": map[string]string{"file_path": path, "content": content},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return hook.Event{Type: hook.PreToolUse, Payload: payload}
}

func buildRouter(t *testing.T, mode rules.ModeFunc, entries ...config.HandlerEntry) *dispatch.Router {
	t.Helper()
	factory := rules.NewFactory(logging.NewNop(), mode)
	router, err := factory.BuildRouter(entries)
	if err != nil {
		t.Fatalf("BuildRouter: %v", err)
	}
	return router
}

func TestBlockDestructiveDeniesHardReset(t *testing.T) {
	router := buildRouter(t, nil,
		config.HandlerEntry{Event: "PreToolUse", ID: rules.RuleBlockDestructive, Enabled: true, Priority: 10})

	res := router.Dispatch(bashEvent(t, "git reset --hard HEAD~3"))
	if res.Decision != hook.DecisionDeny {
		t.Fatalf("expected deny, got %s", res.Decision)
	}
	if res.TerminatedBy != rules.RuleBlockDestructive {
		t.Fatalf("unexpected terminated_by %q", res.TerminatedBy)
	}
}

func TestBlockDestructiveMatching(t *testing.T) {
	cases := []struct {
		command string
		deny    bool
	}{
		{"git reset --hard", true},
		{"git push --force origin main", true},
		{"git push -f", true},
		{"git push --force-with-lease origin main", false},
		{"rm -rf /etc", true},
		{"rm -fr ~/project", true},
		{"rm -rf ./build", false},
		{"git clean -fd", true},
		{"git status", false},
		{"echo rm is dangerous", false},
	}
	router := buildRouter(t, nil,
		config.HandlerEntry{Event: "PreToolUse", ID: rules.RuleBlockDestructive, Enabled: true, Priority: 10})

	for _, tc := range cases {
		res := router.Dispatch(bashEvent(t, tc.command))
		denied := res.Decision == hook.DecisionDeny
		if denied != tc.deny {
			t.Errorf("%q: denied=%v, want %v", tc.command, denied, tc.deny)
		}
	}
}

func TestProtectSensitivePaths(t *testing.T) {
	cases := []struct {
		path string
		deny bool
	}{
		{"/home/user/project/.env", true},
		{"/home/user/project/.env.local", true},
		{"/home/user/.ssh/id_rsa", true},
		{"certs/server.pem", true},
		{"/home/user/.aws/credentials", true},
		{"deploy/secrets.yaml", true},
		{"src/environment.go", false},
		{"docs/envelope.md", false},
	}
	router := buildRouter(t, nil,
		config.HandlerEntry{Event: "PreToolUse", ID: rules.RuleProtectSensitivePaths, Enabled: true, Priority: 20})

	for _, tc := range cases {
		res := router.Dispatch(writeEvent(t, tc.path, "data"))
		denied := res.Decision == hook.DecisionDeny
		if denied != tc.deny {
			t.Errorf("%q: denied=%v, want %v", tc.path, denied, tc.deny)
		}
	}
}

func TestUnattendedGateFollowsMode(t *testing.T) {
	mode := "default"
	router := buildRouter(t, func() string { return mode },
		config.HandlerEntry{Event: "PreToolUse", ID: rules.RuleUnattendedGate, Enabled: true, Priority: 30})

	event := bashEvent(t, "sudo systemctl restart nginx")
	if res := router.Dispatch(event); res.Decision != hook.DecisionAllow {
		t.Fatalf("default mode must not gate: %s", res.Decision)
	}

	mode = "unattended"
	if res := router.Dispatch(event); res.Decision != hook.DecisionDeny {
		t.Fatalf("unattended mode must deny interactive commands: %s", res.Decision)
	}
	if res := router.Dispatch(bashEvent(t, "go test ./...")); res.Decision != hook.DecisionAllow {
		t.Fatal("non-interactive commands stay allowed in unattended mode")
	}
}

func TestSpellingAdvisoryAddsContext(t *testing.T) {
	router := buildRouter(t, nil,
		config.HandlerEntry{Event: "PreToolUse", ID: rules.RuleSpellingAdvisory, Enabled: true, Priority: 60})

	res := router.Dispatch(writeEvent(t, "docs/style.md", "the color palette"))
	if res.Decision != hook.DecisionAllow {
		t.Fatalf("advisory must not block: %s", res.Decision)
	}
	if len(res.Context) != 1 || res.Context[0] != "use colour not color" {
		t.Fatalf("unexpected context %v", res.Context)
	}
	if res.TerminatedBy != "" {
		t.Fatal("advisory is non-terminal")
	}
}

func TestFactoryRejectsUnknownID(t *testing.T) {
	factory := rules.NewFactory(logging.NewNop(), nil)
	_, err := factory.BuildRouter([]config.HandlerEntry{{Event: "PreToolUse", ID: "no-such-rule", Priority: 10}})
	if err == nil {
		t.Fatal("expected error for unknown handler id")
	}
}

func TestChainDeniesBeforeAdvisory(t *testing.T) {
	router := buildRouter(t, nil,
		config.HandlerEntry{Event: "PreToolUse", ID: rules.RuleSpellingAdvisory, Enabled: true, Priority: 60},
		config.HandlerEntry{Event: "PreToolUse", ID: rules.RuleProtectSensitivePaths, Enabled: true, Priority: 20},
	)

	res := router.Dispatch(writeEvent(t, "/home/user/.env", "COLOR=red color"))
	if res.Decision != hook.DecisionDeny {
		t.Fatalf("expected deny, got %s", res.Decision)
	}
	if res.TerminatedBy != rules.RuleProtectSensitivePaths {
		t.Fatalf("priority ordering broken: %q", res.TerminatedBy)
	}
}
