package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Credits.CompletionAward != AwardProofGated {
		t.Fatalf("default award mode = %s", cfg.Credits.CompletionAward)
	}
	if cfg.TaskCredits("high") != 50 {
		t.Fatalf("high priority credits = %d", cfg.TaskCredits("high"))
	}
	if v, ok := cfg.RecognitionCredits("innovation"); !ok || v != 30 {
		t.Fatalf("innovation credits = %d, %v", v, ok)
	}
	if cfg.StateTTL() != 10*time.Minute {
		t.Fatalf("state ttl = %s", cfg.StateTTL())
	}
}

func TestValidateRejectsUnknownAwardMode(t *testing.T) {
	data := strings.Replace(GenerateDefault(), "completion_award: proof_gated", "completion_award: sometimes", 1)
	if _, err := FromYAML([]byte(data)); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidateRejectsMissingPriority(t *testing.T) {
	data := strings.Replace(GenerateDefault(), "    urgent: 100\n", "", 1)
	_, err := FromYAML([]byte(data))
	if err == nil || !strings.Contains(err.Error(), "urgent") {
		t.Fatalf("expected urgent priority error, got %v", err)
	}
}

func TestValidateRejectsUnknownIntegration(t *testing.T) {
	cfg := Default()
	cfg.Integrations["trello"] = cfg.Integrations["jira"]
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unsupported service error")
	}
}

func TestIntegrationDefaultsAreCopies(t *testing.T) {
	cfg := Default()
	a := cfg.IntegrationDefaults("jira")
	a.StatusMappings["Done"] = "rejected"
	b := cfg.IntegrationDefaults("jira")
	if b.StatusMappings["Done"] != "completed" {
		t.Fatalf("defaults mutated through copy")
	}
	empty := cfg.IntegrationDefaults("clickup")
	if empty.SelectedProjects == nil {
		t.Fatalf("selected projects should be non-nil")
	}
}

func TestRoundTripThroughFile(t *testing.T) {
	cfg := Default()
	cfg.Credits.CompletionAward = AwardOnCompletion
	data, err := cfg.ToYAML()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "honourus.yml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := FromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Credits.CompletionAward != AwardOnCompletion {
		t.Fatalf("award mode lost: %s", loaded.Credits.CompletionAward)
	}
}
