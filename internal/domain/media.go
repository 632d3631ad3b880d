package domain

// MediaKind tags what a producer carries.
type MediaKind string

const (
	MediaAudio  MediaKind = "audio"
	MediaVideo  MediaKind = "video"
	MediaData   MediaKind = "data"
	MediaScreen MediaKind = "screen"
)
