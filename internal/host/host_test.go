package host

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/bborn/autolock/internal/mode"
	"github.com/bborn/autolock/internal/pane"
	"github.com/bborn/autolock/internal/reconcile"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		line string
		want reconcile.Notification
	}{
		{"permission", `{"kind":"permission_result","granted":true}`, reconcile.PermissionResult{Granted: true}},
		{"permission denied", `{"kind":"permission_result","granted":false}`, reconcile.PermissionResult{Granted: false}},
		{"mode", `{"kind":"mode_update","mode":"Locked"}`, reconcile.ModeUpdate{Mode: mode.Locked}},
		{"other mode", `{"kind":"mode_update","mode":"resize"}`, reconcile.ModeUpdate{Mode: "resize"}},
		{"closed", `{"kind":"pane_closed","pane":"terminal_4"}`, reconcile.PaneClosed{Pane: pane.Terminal(4)}},
		{"closed numeric", `{"kind":"pane_closed","pane":4}`, reconcile.PaneClosed{Pane: pane.Terminal(4)}},
		{"message", `{"kind":"message","name":"program_update","payload":"vim x"}`, reconcile.Message{Name: "program_update", Payload: "vim x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.line))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodePanes(t *testing.T) {
	line := `{"kind":"pane_update","panes":{"0":[{"id":"terminal_1","focused":true,"command":"vim"},{"id":"2","plugin":true}],"1":[]}}`
	n, err := Decode([]byte(line))
	if err != nil {
		t.Fatal(err)
	}
	pu, ok := n.(reconcile.PaneUpdate)
	if !ok {
		t.Fatalf("got %T", n)
	}
	if len(pu.Panes) != 2 || len(pu.Panes[0]) != 2 {
		t.Fatalf("panes = %v", pu.Panes)
	}
	if pu.Panes[0][0] != (pane.Info{ID: pane.Terminal(1), Focused: true, Command: "vim"}) {
		t.Errorf("first pane = %+v", pu.Panes[0][0])
	}
	if pu.Panes[0][1].ID != pane.Plugin(2) {
		t.Errorf("plugin flag should mark the id: %v", pu.Panes[0][1].ID)
	}
}

func TestDecodeNumericPaneIDs(t *testing.T) {
	line := `{"kind":"pane_update","panes":{"0":[{"id":1,"focused":true,"plugin":false,"command":"vim"},{"id":2,"plugin":true}]}}`
	n, err := Decode([]byte(line))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	pu := n.(reconcile.PaneUpdate)
	if len(pu.Panes[0]) != 2 {
		t.Fatalf("panes = %v", pu.Panes)
	}
	if pu.Panes[0][0] != (pane.Info{ID: pane.Terminal(1), Focused: true, Command: "vim"}) {
		t.Errorf("first pane = %+v", pu.Panes[0][0])
	}
	if pu.Panes[0][1].ID != pane.Plugin(2) {
		t.Errorf("second pane = %v, want plugin_2", pu.Panes[0][1].ID)
	}
}

func TestDecodeTabs(t *testing.T) {
	n, err := Decode([]byte(`{"kind":"tab_update","tabs":[{"position":0},{"position":1,"active":true}]}`))
	if err != nil {
		t.Fatal(err)
	}
	tu := n.(reconcile.TabUpdate)
	if pos, ok := pane.ActiveTab(tu.Tabs); !ok || pos != 1 {
		t.Errorf("active = %d, %v", pos, ok)
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, line := range []string{
		`{`,
		`{}`,
		`{"kind":"bogus"}`,
		`{"kind":"mode_update"}`,
		`{"kind":"pane_closed"}`,
		`{"kind":"pane_closed","pane":"x"}`,
		`{"kind":"permission_result"}`,
		`{"kind":"message","payload":"vim"}`,
	} {
		if _, err := Decode([]byte(line)); err == nil {
			t.Errorf("Decode(%s) should fail", line)
		}
	}
}

func TestEncodeDecodePaneUpdate(t *testing.T) {
	in := reconcile.PaneUpdate{Panes: pane.Manifest{
		3: {{ID: pane.Terminal(9), Focused: true, Command: "htop"}, {ID: pane.Plugin(1)}},
	}}
	data, err := Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if !out.(reconcile.PaneUpdate).Panes.Equal(in.Panes) {
		t.Errorf("got %s", data)
	}
}

func TestHostWritesRequests(t *testing.T) {
	var buf bytes.Buffer
	h := New(NewWriterSender(&buf))

	h.RequestPermission(reconcile.ReadApplicationState, reconcile.ChangeApplicationState)
	h.Subscribe(reconcile.Kinds...)
	h.SwitchMode(mode.Locked)
	h.HideSelf()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}

	var reqs []Request
	for _, l := range lines {
		var r Request
		if err := json.Unmarshal([]byte(l), &r); err != nil {
			t.Fatalf("bad line %q: %v", l, err)
		}
		reqs = append(reqs, r)
	}
	if reqs[0].Request != RequestPermission || len(reqs[0].Permissions) != 2 {
		t.Errorf("permission request = %+v", reqs[0])
	}
	if reqs[1].Request != RequestSubscribe || len(reqs[1].Events) != len(reconcile.Kinds) {
		t.Errorf("subscribe request = %+v", reqs[1])
	}
	if reqs[2].Request != RequestSwitchMode || reqs[2].Mode != "locked" {
		t.Errorf("switch request = %+v", reqs[2])
	}
	if reqs[3].Request != RequestHideSelf {
		t.Errorf("hide request = %+v", reqs[3])
	}
}

func TestReaderSkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		`{"kind":"mode_update","mode":"locked"}`,
		`not json`,
		``,
		`{"kind":"pane_closed","pane":"terminal_2"}`,
	}, "\n")

	out := make(chan reconcile.Notification, 10)
	if err := NewReader(strings.NewReader(input), nil).Run(context.Background(), out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(out)

	var got []reconcile.Notification
	for n := range out {
		got = append(got, n)
	}
	if len(got) != 2 {
		t.Fatalf("got %d notifications: %v", len(got), got)
	}
	if got[1] != (reconcile.PaneClosed{Pane: pane.Terminal(2)}) {
		t.Errorf("second = %#v", got[1])
	}
}

func TestReaderStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan reconcile.Notification)
	err := NewReader(strings.NewReader(`{"kind":"mode_update","mode":"locked"}`), nil).Run(ctx, out)
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
