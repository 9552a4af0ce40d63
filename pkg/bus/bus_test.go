package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBus_SubscribeAndDeliverInOrder(t *testing.T) {
	b := New(8)
	s := b.Subscribe()
	defer b.Unsubscribe(s)

	b.Update("a.md")
	b.Remove("b.md")

	ev1 := <-s.Ch
	require.Equal(t, EventUpdate, ev1.Type)
	require.Equal(t, "a.md", ev1.Path)

	ev2 := <-s.Ch
	require.Equal(t, EventRemove, ev2.Type)
	require.Equal(t, "b.md", ev2.Path)
}

func TestBus_SlowSubscriberDropped(t *testing.T) {
	b := New(1)
	_ = b.Subscribe()

	b.Update("a.md")
	b.Update("b.md") // buffer full, subscriber dropped per best-effort delivery

	require.Equal(t, 0, b.SubscriberCount())
}

func TestBus_MultipleSubscribersIndependentOrder(t *testing.T) {
	b := New(8)
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer b.Unsubscribe(s1)
	defer b.Unsubscribe(s2)

	b.Update("x.md")

	e1 := <-s1.Ch
	e2 := <-s2.Ch
	require.Equal(t, "x.md", e1.Path)
	require.Equal(t, "x.md", e2.Path)
}
