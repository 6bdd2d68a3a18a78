package models

import (
	"strings"
	"testing"
)

func TestDeriveTitle(t *testing.T) {
	forty := strings.Repeat("abcdefghij", 4)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "Hello", "Hello"},
		{"exactly 30", forty[:30], forty[:30]},
		{"31 chars", forty[:31], forty[:30] + "..."},
		{"40 chars", forty, forty[:30] + "..."},
		{"empty", "", ""},
		{"multibyte kept whole", strings.Repeat("ộ", 31), strings.Repeat("ộ", 30) + "..."},
		{"multibyte under limit", "Xin chào bạn", "Xin chào bạn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveTitle(tt.in); got != tt.want {
				t.Errorf("DeriveTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHasUserMessage(t *testing.T) {
	c := &Chat{Messages: []Message{{Role: RoleSystem, Content: "prompt"}}}
	if c.HasUserMessage() {
		t.Fatal("seeded chat should have no user message")
	}
	c.Messages = append(c.Messages, Message{Role: RoleUser, Content: "hi"})
	if !c.HasUserMessage() {
		t.Fatal("expected user message to be detected")
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{RoleSystem, RoleUser, RoleAssistant} {
		if !ValidRole(r) {
			t.Errorf("ValidRole(%q) = false", r)
		}
	}
	if ValidRole("tool") {
		t.Error("ValidRole(tool) = true")
	}
}
