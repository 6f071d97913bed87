package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anuragrao04/qr-attendance/models"
)

func TestNotifyScopesBySession(t *testing.T) {
	hub := NewHub(nil)
	a := hub.Subscribe("sess_a", 4)
	b := hub.Subscribe("sess_b", 4)
	all := hub.Subscribe("", 4)
	defer a.Close()
	defer b.Close()
	defer all.Close()

	hub.Notify(models.Event{Type: models.EventAttendanceUpdate, SessionID: "sess_a"})

	require.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 0)
	assert.Len(t, all.Events(), 1)

	ev := <-a.Events()
	assert.Equal(t, models.EventAttendanceUpdate, ev.Type)
}

func TestNotifyDropsWhenFull(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("sess_a", 1)
	defer sub.Close()

	hub.Notify(models.Event{Type: models.EventAttendanceUpdate, SessionID: "sess_a"})
	hub.Notify(models.Event{Type: models.EventSessionEnded, SessionID: "sess_a"})

	require.Len(t, sub.Events(), 1)
	assert.Equal(t, models.EventAttendanceUpdate, (<-sub.Events()).Type)
}

func TestCloseUnregisters(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("sess_a", 1)
	assert.Equal(t, 1, hub.Subscribers())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Subscribers())

	_, open := <-sub.Events()
	assert.False(t, open)

	// no panic sending after close
	hub.Notify(models.Event{Type: models.EventSessionEnded, SessionID: "sess_a"})
}
