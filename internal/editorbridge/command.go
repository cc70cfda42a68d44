package editorbridge

import (
	"encoding/json"
	"fmt"
)

// Command names.
const (
	CmdConnect       = "connect"
	CmdReplace       = "replace"
	CmdDisconnectAll = "disconnect_all"
	CmdDisconnect    = "disconnect"
	CmdClone         = "clone"
	CmdRelease       = "release"
	CmdConnectable   = "connectable"
	CmdSetRoot       = "set_root"
	CmdSetCycle      = "set_cycle"
	CmdStart         = "start"
	CmdStop          = "stop"
	CmdPause         = "pause"
	CmdPlugins       = "plugins"
)

// Commands lists every command the dispatcher understands.
var Commands = []string{
	CmdConnect, CmdReplace, CmdDisconnectAll, CmdDisconnect, CmdClone, CmdRelease,
	CmdConnectable, CmdSetRoot, CmdSetCycle, CmdStart, CmdStop, CmdPause, CmdPlugins,
}

// Command carries the arguments of any command. Each command reads the
// fields it needs.
type Command struct {
	ID     string   `json:"id"`
	Prev   string   `json:"prev,omitempty"`
	Target string   `json:"target,omitempty"`
	Old    string   `json:"old,omitempty"`
	New    string   `json:"new,omitempty"`
	Nexts  []string `json:"nexts,omitempty"`
	Node   string   `json:"node,omitempty"`
	Branch string   `json:"branch,omitempty"`
	Src    string   `json:"src,omitempty"`
	Dst    string   `json:"dst,omitempty"`
	Every  int      `json:"every,omitempty"`
}

// Result answers one command.
type Result struct {
	ID    string `json:"id"`
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// DecodeCommand converts a socket.io payload into a Command. The payload
// is whatever the transport decoded from JSON, usually a map.
func DecodeCommand(payload any) (Command, error) {
	var cmd Command
	if payload == nil {
		return cmd, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return cmd, fmt.Errorf("encoding payload: %w", err)
	}
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return cmd, fmt.Errorf("decoding command: %w", err)
	}
	return cmd, nil
}

// PluginInfo describes one node for the editor's plugin list.
type PluginInfo struct {
	Name         string   `json:"name" yaml:"name"`
	Base         string   `json:"base" yaml:"base"`
	Category     string   `json:"category" yaml:"category"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Version      int      `json:"version" yaml:"version"`
	Inputs       []string `json:"inputs" yaml:"inputs"`
	Outputs      []string `json:"outputs" yaml:"outputs"`
	Available    []string `json:"available" yaml:"available"`
	ActiveOutput int      `json:"active_output" yaml:"active_output"`
	Clone        bool     `json:"clone" yaml:"clone"`
	Origin       string   `json:"origin,omitempty" yaml:"origin,omitempty"`
	Prev         string   `json:"prev,omitempty" yaml:"prev,omitempty"`
	Next         []string `json:"next" yaml:"next"`
	Root         bool     `json:"root" yaml:"root"`
}

// StateNotice is pushed to the editor on lifecycle changes.
type StateNotice struct {
	State  string `json:"state"`
	RunID  string `json:"run_id,omitempty"`
	Node   string `json:"node,omitempty"`
	Error  string `json:"error,omitempty"`
	Frames uint64 `json:"frames"`
}
