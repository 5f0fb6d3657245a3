package domain

// Member represents user's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	Username string
	UserID   string
	Email    string
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(username string, identity *Identity) Member {
	m := Member{Username: username}
	if identity != nil {
		m.UserID = identity.ID
		m.Email = identity.Email
	}
	return m
}
