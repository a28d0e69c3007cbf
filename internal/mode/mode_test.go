package mode

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want InputMode
	}{
		{"normal", Normal},
		{"Locked", Locked},
		{"  LOCKED ", Locked},
		{"", Normal},
		{"resize", InputMode("resize")},
	}
	for _, tt := range tests {
		if got := Parse(tt.in); got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestManaged(t *testing.T) {
	if !Normal.Managed() || !Locked.Managed() {
		t.Error("normal and locked should be managed")
	}
	if InputMode("pane").Managed() {
		t.Error("pane mode should not be managed")
	}
	if !Locked.IsLocked() || Locked.IsNormal() {
		t.Error("locked predicates wrong")
	}
}
