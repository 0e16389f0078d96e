package session

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/junsooki/streamlink/internal/media"
)

type countingArmer struct {
	n int
}

func (a *countingArmer) Arm() { a.n++ }

func newTestRegistry() (*Registry, *countingArmer) {
	a := &countingArmer{}
	return NewRegistry(a, zerolog.Nop()), a
}

func TestUpsertIsIdempotent(t *testing.T) {
	r, _ := newTestRegistry()

	s, created := r.Upsert("s1", RolePublish, "tok", "")
	require.True(t, created)
	require.Equal(t, media.StateNew, s.State)

	again, created := r.Upsert("s1", RolePublish, "", "room1")
	require.False(t, created)
	require.Same(t, s, again)
	require.Equal(t, "tok", again.Token)
	require.Equal(t, "room1", again.RoomID)
	require.Equal(t, 1, r.Len())
}

func TestUpsertChangesRole(t *testing.T) {
	r, _ := newTestRegistry()
	r.Upsert("s1", RoleConference, "", "room1")
	s, created := r.Upsert("s1", RolePublish, "tok", "")
	require.False(t, created)
	require.Equal(t, RolePublish, s.Role)
	require.Equal(t, "room1", s.RoomID)
	require.Empty(t, r.AllByRole(RoleConference))
}

func TestSetConnectivityArms(t *testing.T) {
	r, a := newTestRegistry()
	r.Upsert("s1", RolePlay, "", "")

	require.True(t, r.SetConnectivity("s1", media.StateConnected))
	require.Equal(t, 0, a.n)

	require.True(t, r.SetConnectivity("s1", media.StateNew))
	require.Equal(t, 1, a.n, "falling back to new after connected")

	for _, st := range []media.ConnectivityState{media.StateDisconnected, media.StateFailed, media.StateClosed} {
		r.SetConnectivity("s1", st)
	}
	require.Equal(t, 4, a.n)

	require.False(t, r.SetConnectivity("missing", media.StateFailed))
	require.Equal(t, 4, a.n)
}

func TestResetConnectivity(t *testing.T) {
	r, a := newTestRegistry()
	r.Upsert("s1", RoleConference, "", "room1")
	r.SetConnectivity("s1", media.StateConnected)

	require.True(t, r.ResetConnectivity("s1"))
	s, _ := r.Get("s1")
	require.Equal(t, media.StateNew, s.State)
	require.Equal(t, 0, a.n)

	// the connected history is gone too, so New again does not arm
	r.SetConnectivity("s1", media.StateNew)
	require.Equal(t, 0, a.n)
	require.False(t, r.ResetConnectivity("missing"))
}

func TestNewBeforeConnectedDoesNotArm(t *testing.T) {
	r, a := newTestRegistry()
	r.Upsert("s1", RolePublish, "", "")
	r.SetConnectivity("s1", media.StateNew)
	require.Equal(t, 0, a.n)
}

func TestCreationOrder(t *testing.T) {
	r, _ := newTestRegistry()
	r.Upsert("c", RolePlay, "", "")
	r.Upsert("a", RolePublish, "", "")
	r.Upsert("b", RolePlay, "", "")

	ids := func(ss []*Session) []string {
		var out []string
		for _, s := range ss {
			out = append(out, s.ID)
		}
		return out
	}
	require.Equal(t, []string{"c", "a", "b"}, ids(r.All()))
	require.Equal(t, []string{"c", "b"}, ids(r.AllByRole(RolePlay)))

	p, ok := r.Primary(RolePlay)
	require.True(t, ok)
	require.Equal(t, "c", p.ID)
}

func TestPrimaryPrecedence(t *testing.T) {
	r, _ := newTestRegistry()
	_, ok := r.Primary(DefaultRoles...)
	require.False(t, ok)
	require.Equal(t, "", r.PublisherID())
	require.Equal(t, "", r.DefaultID(""))

	r.Upsert("p1", RolePlay, "", "")
	require.Equal(t, "p1", r.DefaultID(""))
	require.Equal(t, "", r.PublisherID())

	r.Upsert("room-pub", RoleConference, "", "room1")
	require.Equal(t, "room-pub", r.PublisherID())

	r.Upsert("pub1", RolePublish, "", "")
	require.Equal(t, "pub1", r.PublisherID())
	require.Equal(t, "pub1", r.DefaultID(""))
	require.Equal(t, "explicit", r.DefaultID("explicit"))
}

func TestRemoveAndClear(t *testing.T) {
	r, _ := newTestRegistry()
	r.Upsert("a", RolePublish, "", "")
	r.Upsert("b", RolePlay, "", "")

	s, ok := r.Remove("a")
	require.True(t, ok)
	require.Equal(t, "a", s.ID)
	_, ok = r.Remove("a")
	require.False(t, ok)

	all := r.Clear()
	require.Len(t, all, 1)
	require.Equal(t, 0, r.Len())
}

func TestRekey(t *testing.T) {
	r, _ := newTestRegistry()
	r.Upsert("", RoleConference, "", "room1")
	r.Upsert("x", RolePlay, "", "")
	other, _ := r.Upsert("srv1", RolePlay, "", "")

	s, displaced, ok := r.Rekey("", "srv1")
	require.True(t, ok)
	require.Same(t, other, displaced)
	require.Equal(t, "srv1", s.ID)

	got, ok := r.Get("srv1")
	require.True(t, ok)
	require.Same(t, s, got)
	_, ok = r.Get("")
	require.False(t, ok)

	// keeps its creation slot
	require.Equal(t, "srv1", r.All()[0].ID)

	_, _, ok = r.Rekey("missing", "y")
	require.False(t, ok)
}

func TestByRoomAndRoster(t *testing.T) {
	r, _ := newTestRegistry()
	r.Upsert("pub", RolePublish, "", "room1")
	r.Upsert("other", RolePublish, "", "room2")
	require.Len(t, r.ByRoom("room1"), 1)
	require.Empty(t, r.ByRoom(""))

	joined, left, ok := r.ReplaceRoster("pub", []string{"a"})
	require.True(t, ok)
	require.Equal(t, []string{"a"}, joined)
	require.Nil(t, left)

	joined, left, _ = r.ReplaceRoster("pub", []string{"a", "b"})
	require.Equal(t, []string{"b"}, joined)
	require.Nil(t, left)

	s, _ := r.Get("pub")
	require.True(t, s.InRoster("b"))
	require.ElementsMatch(t, []string{"a", "b"}, s.Roster())

	r.ClearRoster("pub")
	require.Empty(t, s.Roster())

	_, _, ok = r.ReplaceRoster("missing", nil)
	require.False(t, ok)
}

func TestCountByRole(t *testing.T) {
	r, _ := newTestRegistry()
	r.Upsert("a", RolePublish, "", "")
	r.Upsert("b", RolePlay, "", "")
	r.Upsert("c", RolePlay, "", "")
	counts := r.CountByRole()
	require.Equal(t, 1, counts[RolePublish])
	require.Equal(t, 2, counts[RolePlay])
	require.Equal(t, 0, counts[RoleConference])
}
