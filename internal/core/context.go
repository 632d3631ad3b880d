package core

import "github.com/voxhall/voxhall/internal/domain"

// Context is the per-room state not tied to a single connection. Snapshots of
// it are broadcast to the whole room whenever it changes.
type Context struct {
	Room                   domain.RoomID       `json:"room"`
	IsSharing              bool                `json:"isSharing"`
	SharerConnID           domain.ConnectionID `json:"sharerSocketId,omitempty"`
	SharerName             string              `json:"sharerUserName,omitempty"`
	ScreenShareProducerID  string              `json:"screenShareProducerId,omitempty"`
	HasSpecialPresenter    bool                `json:"hasSpecialPresenter"`
	SpecialPresenterConnID domain.ConnectionID `json:"specialPresenterSocketId,omitempty"`
	Flags                  map[string]bool     `json:"flags,omitempty"`
}

// ContextUpdate merges into Context field by field; nil fields are untouched.
type ContextUpdate struct {
	IsSharing              *bool
	SharerConnID           *domain.ConnectionID
	SharerName             *string
	ScreenShareProducerID  *string
	HasSpecialPresenter    *bool
	SpecialPresenterConnID *domain.ConnectionID
	Flags                  map[string]bool
}

func (u ContextUpdate) apply(c *Context) {
	if u.IsSharing != nil {
		c.IsSharing = *u.IsSharing
	}
	if u.SharerConnID != nil {
		c.SharerConnID = *u.SharerConnID
	}
	if u.SharerName != nil {
		c.SharerName = *u.SharerName
	}
	if u.ScreenShareProducerID != nil {
		c.ScreenShareProducerID = *u.ScreenShareProducerID
	}
	if u.HasSpecialPresenter != nil {
		c.HasSpecialPresenter = *u.HasSpecialPresenter
	}
	if u.SpecialPresenterConnID != nil {
		c.SpecialPresenterConnID = *u.SpecialPresenterConnID
	}
	if len(u.Flags) > 0 {
		if c.Flags == nil {
			c.Flags = make(map[string]bool, len(u.Flags))
		}
		for k, v := range u.Flags {
			c.Flags[k] = v
		}
	}
}

// AdmissionState tracks one join request; accepted/rejected are terminal.
type AdmissionState int

const (
	AdmissionPending AdmissionState = iota
	AdmissionAccepted
	AdmissionRejected
)
