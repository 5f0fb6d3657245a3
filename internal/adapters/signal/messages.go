package signal

import (
	"github.com/codesketch/hub/internal/core"
	"github.com/codesketch/hub/internal/domain"
)

// Outbound message shapes. Every message carries its type so clients
// can dispatch the same way the server does.

type userJoinedMsg struct {
	Type     string            `json:"type"`
	Clients  []core.MemberView `json:"clients"`
	Username string            `json:"username"`
	SocketID core.SessionID    `json:"socketId"`
}

type userLeftMsg struct {
	Type     string         `json:"type"`
	SocketID core.SessionID `json:"socketId"`
	Username string         `json:"username"`
}

// syncCodeMsg is unicast to a joining connection only. It is how a
// late joiner converges to the shared document.
type syncCodeMsg struct {
	Type     string          `json:"type"`
	Code     string          `json:"code"`
	Language domain.Language `json:"language"`
	Stdin    string          `json:"stdin"`
	Output   string          `json:"output"`
	IsError  bool            `json:"isError"`
}

type codeChangedMsg struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

type languageChangedMsg struct {
	Type     string          `json:"type"`
	Language domain.Language `json:"language"`
}

type inputChangedMsg struct {
	Type  string `json:"type"`
	Stdin string `json:"stdin"`
}

type executionStartedMsg struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

type executionResultMsg struct {
	Type     string `json:"type"`
	Output   string `json:"output"`
	IsError  bool   `json:"isError"`
	Username string `json:"username"`
}

type errorMsg struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Event     Op     `json:"event"`
	Timestamp string `json:"timestamp"`
}

type pongMsg struct {
	Type string `json:"type"`
}
