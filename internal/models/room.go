package models

import "time"

type RoomSummary struct {
	ID          string    `json:"roomId"`
	Name        string    `json:"name"`
	CreatorID   string    `json:"creatorId"`
	CreatorName string    `json:"creatorName"`
	SubForum    string    `json:"subForum"`
	UserLimit   int       `json:"userLimit"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Reopened    bool      `json:"reopened"`
	Status      string    `json:"status"`
}

type RoomWithPresence struct {
	RoomSummary
	OnlineUsers int `json:"onlineUsers"`
}
