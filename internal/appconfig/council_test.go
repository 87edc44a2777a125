package appconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateCouncilAcceptsDefault(t *testing.T) {
	raw, err := json.Marshal(DefaultCouncil())
	if err != nil {
		t.Fatalf("marshal default council: %v", err)
	}
	council, err := ValidateCouncil(raw)
	if err != nil {
		t.Fatalf("default council should validate: %v", err)
	}
	if len(council.Members) != 4 {
		t.Fatalf("expected 4 members, got %d", len(council.Members))
	}
	if council.Chairman.Model == "" {
		t.Fatalf("chairman model missing")
	}
}

func TestValidateCouncilRejectsMissingFields(t *testing.T) {
	_, err := ValidateCouncil([]byte(`{"council_members":[{"id":"a","name":"A"}],"chairman":{"id":"c","name":"C","model":"m"}}`))
	if err == nil {
		t.Fatalf("member without model should fail validation")
	}
	if !strings.Contains(err.Error(), "validation") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateCouncilRejectsDuplicateIDs(t *testing.T) {
	raw := []byte(`{
		"council_members": [
			{"id":"x","name":"One","model":"m1"},
			{"id":"x","name":"Two","model":"m2"}
		],
		"chairman": {"id":"chairman","name":"Chair","model":"m3"}
	}`)
	_, err := ValidateCouncil(raw)
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate id error, got: %v", err)
	}
}

func TestLoadCouncilFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "council_config.json")

	council := LoadCouncil(path)
	if len(council.Members) != len(DefaultCouncil().Members) {
		t.Fatalf("missing file should yield default council")
	}

	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	council = LoadCouncil(path)
	if len(council.Members) != len(DefaultCouncil().Members) {
		t.Fatalf("corrupt file should yield default council")
	}
}

func TestSaveCouncilRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "council_config.json")

	raw := []byte(`{
		"council_members": [
			{"id":"a","name":"Alpha","model":"openai/gpt-5.1"},
			{"id":"b","name":"Beta","model":"x-ai/grok-4.1-fast","system_prompt":"be brief"}
		],
		"chairman": {"id":"chairman","name":"Chair","model":"openai/gpt-5.1"}
	}`)
	saved, err := SaveCouncil(path, raw)
	if err != nil {
		t.Fatalf("save council: %v", err)
	}
	if saved.Members[1].SystemPrompt != "be brief" {
		t.Fatalf("system prompt lost on save")
	}

	loaded := LoadCouncil(path)
	if len(loaded.Members) != 2 || loaded.Members[0].ID != "a" {
		t.Fatalf("reload mismatch: %+v", loaded.Members)
	}
}
