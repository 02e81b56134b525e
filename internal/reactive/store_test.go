package reactive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_SubscribeReceivesSets(t *testing.T) {
	s := New(0)
	var got []int
	unsub := s.Subscribe(func(v int) { got = append(got, v) })
	defer unsub()

	s.Set(1)
	s.Set(2)
	require.Equal(t, []int{1, 2}, got)
	require.Equal(t, 2, s.Value())
}

func TestStore_UnsubscribeStopsNotifications(t *testing.T) {
	s := New("")
	calls := 0
	unsub := s.Subscribe(func(v string) { calls++ })
	s.Set("a")
	unsub()
	s.Set("b")
	require.Equal(t, 1, calls)
}

func TestStore_UnsubscribeIsIdempotent(t *testing.T) {
	s := New(0)
	unsub := s.Subscribe(func(v int) {})
	unsub()
	require.NotPanics(t, func() { unsub() })
}

func TestStore_OnEmptyFiresOnceListenersDrain(t *testing.T) {
	s := New(0)
	emptied := 0
	s.OnEmpty(func() { emptied++ })

	unsubA := s.Subscribe(func(v int) {})
	unsubB := s.Subscribe(func(v int) {})
	unsubA()
	require.Equal(t, 0, emptied)
	unsubB()
	require.Equal(t, 1, emptied)
}

func TestStore_SnapshotDuringNotification(t *testing.T) {
	s := New(0)
	var secondCalls int
	var unsubSecond Unsubscribe
	s.Subscribe(func(v int) {
		if unsubSecond != nil {
			unsubSecond()
		}
	})
	unsubSecond = s.Subscribe(func(v int) { secondCalls++ })

	s.Set(1) // first listener unsubscribes second mid-notification; snapshot already taken
	require.Equal(t, 1, secondCalls)

	s.Set(2) // second listener now actually removed
	require.Equal(t, 1, secondCalls)
}
