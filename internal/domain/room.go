// Package domain contains entity without logic, just meta-data
package domain

import "time"

type RoomID string

// Language is the shared editor language selection.
type Language string

const (
	LangCpp        Language = "cpp"
	LangC          Language = "c"
	LangJavaScript Language = "javascript"
	LangJava       Language = "java"
	LangPython     Language = "python"

	DefaultLanguage = LangCpp
)

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	switch l {
	case LangCpp, LangC, LangJavaScript, LangJava, LangPython:
		return true
	}
	return false
}

const (
	MaxCodeLen  = 100000
	MaxStdinLen = 10000
)

// Room is the shared document of one collaboration session.
// Mutable fields are owned by core.RoomStore; nothing outside the
// store holds a live reference.
type Room struct {
	ID           RoomID
	Code         string
	Language     Language
	Stdin        string
	Output       string
	IsError      bool
	CreatedAt    time.Time
	CreatedBy    string
	CreatorEmail string
}
