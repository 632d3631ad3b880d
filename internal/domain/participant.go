package domain

// Profile is the public identity a participant presents to a room.
type Profile struct {
	ParticipantID ParticipantID `json:"userId"`
	Name          string        `json:"userName"`
	Avatar        string        `json:"avatar"`
}
