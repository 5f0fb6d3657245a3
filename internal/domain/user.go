package domain

// Identity is an authenticated user, independent of any particular
// connection or room.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}
