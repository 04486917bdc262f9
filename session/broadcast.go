package session

import (
	"encoding/json"

	"github.com/golang/glog"
)

// Broadcaster delivers messages to every participant of a channel.
// A failed write to one participant never aborts delivery to the rest:
// the unreachable participant is detached from the registry after the
// delivery pass and the roster is re-announced once. The re-announce is
// bounded to one pass per triggering call so a fully stale channel cannot
// cause an eviction storm.
type Broadcaster struct {
	registry *SessionRegistry
}

func NewBroadcaster(registry *SessionRegistry) *Broadcaster {
	return &Broadcaster{
		registry: registry,
	}
}

// Broadcast sends message to every participant on the channel except
// exclude. The message is marshaled once so each recipient sees the same
// bytes.
func (self *Broadcaster) Broadcast(channelId string, message any, exclude *ParticipantHandle) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		glog.Infof("[b]%s marshal error = %s\n", channelId, err)
		return
	}

	channel := self.registry.channel(channelId)
	if channel == nil {
		return
	}
	channel.sendLock.Lock()
	defer channel.sendLock.Unlock()

	evicted := self.deliver(channel, messageBytes, exclude)
	self.finish(channelId, channel, evicted)
}

// BroadcastRoster announces the current participant list to the whole
// channel. The roster snapshot is taken under the channel send lock, after
// the mutation that triggered the announce, so the last roster delivered on
// a channel always reflects its latest state.
func (self *Broadcaster) BroadcastRoster(channelId string) {
	channel := self.registry.channel(channelId)
	if channel == nil {
		return
	}
	channel.sendLock.Lock()
	defer channel.sendLock.Unlock()

	evicted := self.deliverRoster(channel)
	self.finish(channelId, channel, evicted)
}

// must be called with the channel send lock held
func (self *Broadcaster) deliver(channel *sessionChannel, messageBytes []byte, exclude *ParticipantHandle) []*ParticipantHandle {
	evicted := []*ParticipantHandle{}
	for _, handle := range channel.memberSnapshot() {
		if handle == exclude {
			continue
		}
		if err := handle.transport.WriteMessage(messageBytes); err != nil {
			glog.Infof("[b]%s-> write error = %s\n", handle.participant.UserId, err)
			evicted = append(evicted, handle)
		} else {
			glog.V(2).Infof("[b]%s->\n", handle.participant.UserId)
		}
	}
	return evicted
}

// must be called with the channel send lock held
func (self *Broadcaster) deliverRoster(channel *sessionChannel) []*ParticipantHandle {
	messageBytes, err := json.Marshal(NewUserListMessage(channel.roster()))
	if err != nil {
		glog.Infof("[b]roster marshal error = %s\n", err)
		return nil
	}
	return self.deliver(channel, messageBytes, nil)
}

// detach the unreachable participants, then issue at most one fresh roster
// broadcast. Participants that fail during that pass are detached silently.
func (self *Broadcaster) finish(channelId string, channel *sessionChannel, evicted []*ParticipantHandle) {
	if len(evicted) == 0 {
		return
	}
	for _, handle := range evicted {
		self.registry.Detach(channelId, handle)
	}
	for _, handle := range self.deliverRoster(channel) {
		self.registry.Detach(channelId, handle)
	}
}
