package registry

import (
	"testing"

	"github.com/bborn/autolock/internal/mode"
	"github.com/bborn/autolock/internal/pane"
)

func TestRegisterIfAbsentIsIdempotent(t *testing.T) {
	r := New()
	id := pane.Terminal(1)

	if !r.RegisterIfAbsent(id, mode.Locked) {
		t.Fatal("first registration should create an entry")
	}
	if r.RegisterIfAbsent(id, mode.Normal) {
		t.Error("second registration should not create an entry")
	}
	if m, _ := r.Get(id); m != mode.Locked {
		t.Errorf("got %q, want locked", m)
	}
}

func TestSetOverwrites(t *testing.T) {
	r := New()
	id := pane.Terminal(1)
	r.RegisterIfAbsent(id, mode.Normal)
	r.Set(id, mode.Locked)
	if m, ok := r.Get(id); !ok || m != mode.Locked {
		t.Errorf("got %q, %v", m, ok)
	}
}

func TestRemove(t *testing.T) {
	r := New()
	id := pane.Terminal(4)
	r.RegisterIfAbsent(id, mode.Locked)
	r.Remove(id)
	if _, ok := r.Get(id); ok {
		t.Error("entry should be gone")
	}
	r.Remove(pane.Terminal(99))
	if r.Len() != 0 {
		t.Errorf("Len() = %d", r.Len())
	}

	// a reused id starts fresh
	if !r.RegisterIfAbsent(id, mode.Normal) {
		t.Error("reused id should register again")
	}
}

func TestTerminalAndPluginIDsAreDistinct(t *testing.T) {
	r := New()
	r.Set(pane.Terminal(1), mode.Locked)
	if _, ok := r.Get(pane.Plugin(1)); ok {
		t.Error("plugin_1 must not alias terminal_1")
	}
}

func TestEntriesIsACopy(t *testing.T) {
	r := New()
	r.Set(pane.Terminal(1), mode.Normal)
	e := r.Entries()
	e[pane.Terminal(2)] = mode.Locked
	if r.Len() != 1 {
		t.Error("mutating Entries() result leaked into registry")
	}
}
