package domain

// RoomID names a conference room. Rooms are created lazily on first join and
// live for the lifetime of the process.
type RoomID string

// ConnectionID identifies one signaling connection. A participant that
// reconnects gets a fresh ConnectionID.
type ConnectionID string

// ParticipantID is the persisted identity of a user, stable across connections.
type ParticipantID string
