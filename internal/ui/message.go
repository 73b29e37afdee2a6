package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/trackbot/internal/chat"
)

// MsgKind enumerates all message types in the console.
type MsgKind int

// Msg represents all possible messages in the console (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgReply MsgKind = iota
	MsgDelivered
)

type delivered struct {
	id  string
	err error
}

// replyMsg is the constructor for [MsgReply]
func replyMsg(out chat.Outbound) Msg {
	return Msg{kind: MsgReply, data: out}
}

// deliveredMsg is the constructor for [MsgDelivered]
func deliveredMsg(id string, err error) Msg {
	return Msg{kind: MsgDelivered, data: delivered{id: id, err: err}}
}
