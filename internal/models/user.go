package models

// Identity is what the chat layer knows about a user: the authentication
// subsystem owns everything else.
type Identity struct {
	ID     string `json:"userId"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}
