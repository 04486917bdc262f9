package session

import (
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestBroadcastExcludesSender(t *testing.T) {
	registry := NewSessionRegistry()
	broadcaster := NewBroadcaster(registry)

	aTransport := newTestTransport()
	bTransport := newTestTransport()
	a := registry.Attach("d1", Participant{UserId: "a", Status: StatusViewing}, aTransport)
	registry.Attach("d1", Participant{UserId: "b", Status: StatusViewing}, bTransport)

	broadcaster.Broadcast("d1", &ContentUpdateMessage{
		Type:   MessageTypeContentUpdate,
		Pages:  []string{"hi"},
		UserId: "a",
	}, a)

	assert.Equal(t, 0, aTransport.messageCount())
	assert.Equal(t, 1, bTransport.messageCount())

	message := decode[ContentUpdateMessage](t, bTransport.messages[0])
	assert.Equal(t, MessageTypeContentUpdate, message.Type)
	assert.Equal(t, []string{"hi"}, message.Pages)
	assert.Equal(t, "a", message.UserId)
}

func TestBroadcastUnknownChannel(t *testing.T) {
	registry := NewSessionRegistry()
	broadcaster := NewBroadcaster(registry)

	// nothing to deliver, no error to the caller
	broadcaster.Broadcast("missing", &PresenceMessage{Type: MessageTypePresence}, nil)
	broadcaster.BroadcastRoster("missing")
}

func TestBroadcastEvictsFailedTransport(t *testing.T) {
	registry := NewSessionRegistry()
	broadcaster := NewBroadcaster(registry)

	aTransport := newTestTransport()
	bTransport := newTestTransport()
	cTransport := newTestTransport()
	registry.Attach("d1", Participant{UserId: "a", Status: StatusViewing}, aTransport)
	registry.Attach("d1", Participant{UserId: "b", Status: StatusViewing}, bTransport)
	registry.Attach("d1", Participant{UserId: "c", Status: StatusViewing}, cTransport)

	bTransport.setFailWrites(true)

	broadcaster.Broadcast("d1", &PresenceMessage{
		Type:   MessageTypePresence,
		UserId: "a",
	}, nil)

	// the failed write did not stop delivery to the remaining recipients
	participants := registry.ListParticipants("d1")
	assert.Equal(t, 2, len(participants))
	assert.Equal(t, "a", participants[0].UserId)
	assert.Equal(t, "c", participants[1].UserId)

	// survivors got the message and then a fresh roster without b
	assert.Equal(t, 2, aTransport.messageCount())
	assert.Equal(t, 2, cTransport.messageCount())

	roster := decode[UserListMessage](t, aTransport.messages[1])
	assert.Equal(t, MessageTypeUserList, roster.Type)
	assert.Equal(t, 2, len(roster.Users))
	assert.Equal(t, "a", roster.Users[0].UserId)
	assert.Equal(t, "c", roster.Users[1].UserId)
}

func TestBroadcastEvictionBounded(t *testing.T) {
	registry := NewSessionRegistry()
	broadcaster := NewBroadcaster(registry)

	// the whole channel is stale. The delivery pass evicts everyone and the
	// single roster re-broadcast has no recipients left. No recursion, no
	// error.
	aTransport := newTestTransport()
	bTransport := newTestTransport()
	registry.Attach("d1", Participant{UserId: "a", Status: StatusViewing}, aTransport)
	registry.Attach("d1", Participant{UserId: "b", Status: StatusViewing}, bTransport)
	aTransport.setFailWrites(true)
	bTransport.setFailWrites(true)

	broadcaster.BroadcastRoster("d1")

	assert.Equal(t, 0, len(registry.ListParticipants("d1")))
	assert.Equal(t, true, registry.channel("d1") == nil)
}

func TestBroadcastRosterCarriesStatus(t *testing.T) {
	registry := NewSessionRegistry()
	broadcaster := NewBroadcaster(registry)

	aTransport := newTestTransport()
	a := registry.Attach("d1", Participant{UserId: "a", UserName: "A", Color: "#123456", Status: StatusViewing}, aTransport)
	registry.UpdateStatus("d1", a, StatusTyping)

	broadcaster.BroadcastRoster("d1")

	roster := decode[UserListMessage](t, aTransport.messages[0])
	assert.Equal(t, 1, len(roster.Users))
	assert.Equal(t, "A", roster.Users[0].UserName)
	assert.Equal(t, "#123456", roster.Users[0].Color)
	assert.Equal(t, string(StatusTyping), roster.Users[0].Status)
	// the roster never carries carets
	assert.Equal(t, false, strings.Contains(string(aTransport.messages[0]), "caret"))
}
