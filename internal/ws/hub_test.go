package ws

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHubAddRemove(t *testing.T) {
	hub := NewHub()

	a1 := &Conn{ID: "c1", UserID: "alice"}
	a2 := &Conn{ID: "c2", UserID: "alice"}
	hub.Add(a1)
	hub.Add(a2)
	require.Equal(t, 2, hub.ConnCount("alice"))

	hub.Remove(a1)
	require.Equal(t, 1, hub.ConnCount("alice"))

	hub.Remove(a2)
	require.Zero(t, hub.ConnCount("alice"))
}

func TestHubRemoveUnknownConnIsNoOp(t *testing.T) {
	hub := NewHub()
	hub.Remove(&Conn{ID: "ghost", UserID: "alice"})
	require.Zero(t, hub.ConnCount("alice"))
}

func TestHubPushToUnknownUserIsNoOp(t *testing.T) {
	hub := NewHub()
	hub.Push("nobody", []byte(`{}`))
}

func TestHubConcurrentAccess(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			conn := &Conn{ID: string(rune('a' + i%26)), UserID: "alice"}
			hub.Add(conn)
			hub.Remove(conn)
		}
	}()
	for i := 0; i < 100; i++ {
		hub.ConnCount("alice")
	}
	<-done
}
