package tui

import (
	"testing"

	"github.com/charmbracelet/bubbletea"
)

func TestValidateSessionName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"work", true},
		{"my-session-2", true},
		{"A1", true},
		{"x", true},
		{"", false},
		{"has space", false},
		{"-leading", false},
		{"trailing-", false},
		{"under_score", false},
		{"semi;colon", false},
	}
	for _, tc := range tests {
		err := ValidateSessionName(tc.name)
		if tc.valid && err != nil {
			t.Fatalf("ValidateSessionName(%q) = %v, want nil", tc.name, err)
		}
		if !tc.valid && err == nil {
			t.Fatalf("ValidateSessionName(%q) = nil, want error", tc.name)
		}
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestSessionSelector_PickExisting(t *testing.T) {
	s := NewSessionSelector(NewTheme("light"), []string{"alpha", "beta"})

	model, _ := s.Update(tea.KeyMsg{Type: tea.KeyDown})
	s = model.(*SessionSelector)
	model, _ = s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	s = model.(*SessionSelector)

	if s.Choice != "beta" || s.IsNew || s.Cancelled {
		t.Fatalf("Choice = %q, IsNew = %v, Cancelled = %v", s.Choice, s.IsNew, s.Cancelled)
	}
}

func TestSessionSelector_CreateNewValidates(t *testing.T) {
	s := NewSessionSelector(NewTheme("light"), []string{"alpha"})

	model, _ := s.Update(keyRunes("n"))
	s = model.(*SessionSelector)
	for _, r := range "bad name" {
		model, _ = s.Update(keyRunes(string(r)))
		s = model.(*SessionSelector)
	}
	model, _ = s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	s = model.(*SessionSelector)
	if s.Choice != "" {
		t.Fatalf("invalid name accepted: %q", s.Choice)
	}
	if s.notice == "" {
		t.Fatal("expected a validation notice")
	}

	s.input.SetValue("good-name")
	model, _ = s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	s = model.(*SessionSelector)
	if s.Choice != "good-name" || !s.IsNew {
		t.Fatalf("Choice = %q, IsNew = %v", s.Choice, s.IsNew)
	}
}

func TestSessionSelector_DuplicateNameRejected(t *testing.T) {
	s := NewSessionSelector(NewTheme("light"), []string{"alpha"})

	model, _ := s.Update(keyRunes("n"))
	s = model.(*SessionSelector)
	s.input.SetValue("alpha")
	model, _ = s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	s = model.(*SessionSelector)
	if s.Choice != "" {
		t.Fatalf("duplicate name accepted: %q", s.Choice)
	}
}

func TestSessionSelector_RenameRecorded(t *testing.T) {
	s := NewSessionSelector(NewTheme("light"), []string{"alpha", "beta"})

	model, _ := s.Update(keyRunes("r"))
	s = model.(*SessionSelector)
	s.input.SetValue("gamma")
	model, _ = s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	s = model.(*SessionSelector)

	if s.Renames["alpha"] != "gamma" {
		t.Fatalf("Renames = %v", s.Renames)
	}
	if s.sessions[0] != "gamma" {
		t.Fatalf("sessions = %v", s.sessions)
	}
	if s.state != selStatePick {
		t.Fatalf("state = %v, want pick", s.state)
	}
}

func TestSessionSelector_Cancel(t *testing.T) {
	s := NewSessionSelector(NewTheme("light"), []string{"alpha"})
	model, _ := s.Update(keyRunes("q"))
	s = model.(*SessionSelector)
	if !s.Cancelled {
		t.Fatal("expected Cancelled")
	}
}
