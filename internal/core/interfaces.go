package core

// Frame is a raw outbound payload, already encoded.
type Frame []byte

// SessionID identifies one transport connection.
type SessionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberView is a read-only view for APIs (no transport fields).
type MemberView struct {
	SessionID SessionID `json:"socketId"`
	Username  string    `json:"username"`
	UserID    string    `json:"userId,omitempty"`
	Email     string    `json:"userEmail,omitempty"`
}
