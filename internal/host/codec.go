// Package host speaks the line-delimited JSON protocol between autolock and
// a multiplexer plugin shim.
package host

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bborn/autolock/internal/mode"
	"github.com/bborn/autolock/internal/pane"
	"github.com/bborn/autolock/internal/reconcile"
)

type wireTab struct {
	Position int  `json:"position"`
	Active   bool `json:"active"`
}

type wirePane struct {
	ID      pane.ID `json:"id"`
	Focused bool    `json:"focused"`
	Plugin  bool    `json:"plugin"`
	Command string  `json:"command,omitempty"`
}

// wireNotification is the envelope of every inbound line.
type wireNotification struct {
	Kind    reconcile.Kind     `json:"kind"`
	Granted *bool              `json:"granted,omitempty"`
	Mode    string             `json:"mode,omitempty"`
	Tabs    []wireTab          `json:"tabs,omitempty"`
	Panes   map[int][]wirePane `json:"panes,omitempty"`
	Pane    *pane.ID           `json:"pane,omitempty"`
	Name    string             `json:"name,omitempty"`
	Payload string             `json:"payload,omitempty"`
}

// Decode parses one inbound line. Pane ids may be strings ("terminal_1",
// "plugin_2", "%3", "4") or bare numbers; numeric ids name terminal panes
// unless the descriptor sets "plugin".
func Decode(data []byte) (reconcile.Notification, error) {
	var w wireNotification
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}

	switch w.Kind {
	case reconcile.KindPermission:
		if w.Granted == nil {
			return nil, fmt.Errorf("%s: missing granted", w.Kind)
		}
		return reconcile.PermissionResult{Granted: *w.Granted}, nil
	case reconcile.KindMode:
		if w.Mode == "" {
			return nil, fmt.Errorf("%s: missing mode", w.Kind)
		}
		return reconcile.ModeUpdate{Mode: mode.Parse(w.Mode)}, nil
	case reconcile.KindTabs:
		tabs := make([]pane.Tab, len(w.Tabs))
		for i, t := range w.Tabs {
			tabs[i] = pane.Tab{Position: t.Position, Active: t.Active}
		}
		return reconcile.TabUpdate{Tabs: tabs}, nil
	case reconcile.KindPanes:
		m := make(pane.Manifest, len(w.Panes))
		for pos, panes := range w.Panes {
			infos := make([]pane.Info, len(panes))
			for i, p := range panes {
				id := p.ID
				id.Plugin = id.Plugin || p.Plugin
				infos[i] = pane.Info{ID: id, Focused: p.Focused, Command: p.Command}
			}
			m[pos] = infos
		}
		return reconcile.PaneUpdate{Panes: m}, nil
	case reconcile.KindPaneClosed:
		if w.Pane == nil {
			return nil, fmt.Errorf("%s: missing pane", w.Kind)
		}
		return reconcile.PaneClosed{Pane: *w.Pane}, nil
	case reconcile.KindMessage:
		if w.Name == "" {
			return nil, fmt.Errorf("%s: missing name", w.Kind)
		}
		return reconcile.Message{Name: w.Name, Payload: w.Payload}, nil
	case "":
		return nil, fmt.Errorf("missing kind")
	default:
		return nil, fmt.Errorf("unknown kind %q", w.Kind)
	}
}

// Encode renders a notification in wire form.
func Encode(n reconcile.Notification) ([]byte, error) {
	w := wireNotification{Kind: n.Kind()}
	switch n := n.(type) {
	case reconcile.PermissionResult:
		granted := n.Granted
		w.Granted = &granted
	case reconcile.ModeUpdate:
		w.Mode = n.Mode.String()
	case reconcile.TabUpdate:
		for _, t := range n.Tabs {
			w.Tabs = append(w.Tabs, wireTab{Position: t.Position, Active: t.Active})
		}
	case reconcile.PaneUpdate:
		w.Panes = make(map[int][]wirePane, len(n.Panes))
		for pos, panes := range n.Panes {
			out := make([]wirePane, len(panes))
			for i, p := range panes {
				out[i] = wirePane{ID: p.ID, Focused: p.Focused, Plugin: p.ID.Plugin, Command: p.Command}
			}
			w.Panes[pos] = out
		}
	case reconcile.PaneClosed:
		id := n.Pane
		w.Pane = &id
	case reconcile.Message:
		w.Name = n.Name
		w.Payload = n.Payload
	default:
		return nil, fmt.Errorf("encode notification: unsupported kind %q", n.Kind())
	}
	return json.Marshal(w)
}

// Request names.
const (
	RequestPermission = "permission"
	RequestSubscribe  = "subscribe"
	RequestSwitchMode = "switch_mode"
	RequestHideSelf   = "hide_self"
)

// Request is one outbound line.
type Request struct {
	Request     string   `json:"request"`
	Permissions []string `json:"permissions,omitempty"`
	Events      []string `json:"events,omitempty"`
	Mode        string   `json:"mode,omitempty"`
}

func permissionRequest(perms []reconcile.Permission) Request {
	r := Request{Request: RequestPermission}
	for _, p := range perms {
		r.Permissions = append(r.Permissions, string(p))
	}
	return r
}

func subscribeRequest(kinds []reconcile.Kind) Request {
	r := Request{Request: RequestSubscribe}
	for _, k := range kinds {
		r.Events = append(r.Events, string(k))
	}
	sort.Strings(r.Events)
	return r
}
