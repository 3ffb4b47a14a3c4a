package domain

// Identity is the current user as seen by the chat core.
type Identity struct {
	UserID string
	Role   Role
	Token  string
}
