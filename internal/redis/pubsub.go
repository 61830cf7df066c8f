package redisc

import "encoding/json"

// PresenceChannel carries a notice after every presence write so forum
// processes can refresh without polling.
const PresenceChannel = "chat:presence"

type notice struct {
	Rooms  map[string]int `json:"rooms"`
	Online int            `json:"online"`
}

func presenceNotice(s snapshot) ([]byte, error) {
	rooms := s.counts
	if rooms == nil {
		rooms = map[string]int{}
	}
	return json.Marshal(notice{Rooms: rooms, Online: len(s.online)})
}
