package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxhall/voxhall/internal/domain"
)

func TestRegistryGetOrCreateIsIdempotent(t *testing.T) {
	reg := NewRegistry()

	var mu sync.Mutex
	rooms := make(map[*Room]struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := reg.GetOrCreate("r1")
			mu.Lock()
			rooms[r] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, rooms, 1)
}

func TestRegistryBindAndRoomOf(t *testing.T) {
	reg := NewRegistry()
	room := reg.GetOrCreate("r1")

	reg.Bind("c1", "r1")
	got, ok := reg.RoomOf("c1")
	require.True(t, ok)
	require.Same(t, room, got)

	reg.Unbind("c1")
	_, ok = reg.RoomOf("c1")
	require.False(t, ok)
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry()
	reg.GetOrCreate("r1").Upsert("c1", SetProfile{Profile: domain.Profile{ParticipantID: "u1"}})
	reg.GetOrCreate("r2")

	infos := reg.List()
	require.Len(t, infos, 2)
	byID := make(map[domain.RoomID]int)
	for _, info := range infos {
		byID[info.ID] = info.ParticipantCount
	}
	require.Equal(t, 1, byID["r1"])
	require.Equal(t, 0, byID["r2"])
}
