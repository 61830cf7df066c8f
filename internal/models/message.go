package models

import "time"

// Message is a single chat line. It is never modified after it is appended to a room.
type Message struct {
	Content      string    `json:"message"`
	AuthorID     string    `json:"userId,omitempty"`
	AuthorName   string    `json:"name"`
	AuthorAvatar string    `json:"avatar"`
	SentAt       time.Time `json:"sentAt"`
	Time         string    `json:"time"`
}

// DisplayTime renders t the way chat lines show it, e.g. "09:05".
func DisplayTime(t time.Time) string {
	return t.Format("15:04")
}
