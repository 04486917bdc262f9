package session

import (
	"sync"

	"golang.org/x/exp/slices"
)

// Participant is one live connection's identity and ephemeral presence state
// within a channel. UserId, UserName and Color are fixed at attach time;
// Status and Caret are mutated in place while the connection is active.
// Duplicate UserIds across connections are permitted and not deduplicated.
type Participant struct {
	UserId   string
	UserName string
	Color    string
	Status   ParticipantStatus
	Caret    *CaretPosition
}

func (self Participant) copy() Participant {
	if self.Caret != nil {
		caret := *self.Caret
		self.Caret = &caret
	}
	return self
}

// ParticipantHandle identifies one attached connection. Handle identity is
// connection identity: two handles are distinct even when their participants
// carry identical attributes.
type ParticipantHandle struct {
	transport Transport
	// guarded by the owning channel's stateLock
	participant Participant
}

type sessionChannel struct {
	// serializes delivery passes so broadcasts reach every recipient of a
	// channel in submission order
	sendLock sync.Mutex

	stateLock sync.Mutex
	// insertion order
	members []*ParticipantHandle
}

func (self *sessionChannel) memberSnapshot() []*ParticipantHandle {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return slices.Clone(self.members)
}

func (self *sessionChannel) roster() []Participant {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	participants := make([]Participant, 0, len(self.members))
	for _, handle := range self.members {
		participants = append(participants, handle.participant.copy())
	}
	return participants
}

// SessionRegistry is the per-channel table of attached participants.
// Channels are created lazily on first attach and removed when the last
// participant detaches. The registry performs no I/O and no broadcasting;
// callers decide when to announce a mutation.
type SessionRegistry struct {
	stateLock sync.Mutex
	channels  map[string]*sessionChannel
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		channels: map[string]*sessionChannel{},
	}
}

func (self *SessionRegistry) channel(channelId string) *sessionChannel {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.channels[channelId]
}

func (self *SessionRegistry) Attach(channelId string, participant Participant, transport Transport) *ParticipantHandle {
	handle := &ParticipantHandle{
		transport:   transport,
		participant: participant.copy(),
	}

	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	channel, ok := self.channels[channelId]
	if !ok {
		channel = &sessionChannel{}
		self.channels[channelId] = channel
	}
	channel.stateLock.Lock()
	channel.members = append(channel.members, handle)
	channel.stateLock.Unlock()
	return handle
}

// Detach tolerates double removal. The disconnect path can race with
// eviction from a failed broadcast, and both must be able to call it.
func (self *SessionRegistry) Detach(channelId string, handle *ParticipantHandle) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	channel, ok := self.channels[channelId]
	if !ok {
		return
	}
	channel.stateLock.Lock()
	i := slices.Index(channel.members, handle)
	if 0 <= i {
		channel.members = slices.Delete(channel.members, i, i+1)
	}
	empty := len(channel.members) == 0
	channel.stateLock.Unlock()

	if empty {
		delete(self.channels, channelId)
	}
}

// ListParticipants returns a snapshot in attach order.
// Unknown channels yield an empty list.
func (self *SessionRegistry) ListParticipants(channelId string) []Participant {
	channel := self.channel(channelId)
	if channel == nil {
		return []Participant{}
	}
	return channel.roster()
}

func (self *SessionRegistry) UpdateStatus(channelId string, handle *ParticipantHandle, status ParticipantStatus) {
	self.updateParticipant(channelId, handle, func(participant *Participant) {
		participant.Status = status
	})
}

// UpdateCaret with caret nil clears the participant's caret.
func (self *SessionRegistry) UpdateCaret(channelId string, handle *ParticipantHandle, caret *CaretPosition) {
	if caret != nil {
		c := *caret
		caret = &c
	}
	self.updateParticipant(channelId, handle, func(participant *Participant) {
		participant.Caret = caret
	})
}

// no-op if the handle is no longer attached
func (self *SessionRegistry) updateParticipant(channelId string, handle *ParticipantHandle, update func(*Participant)) {
	channel := self.channel(channelId)
	if channel == nil {
		return
	}
	channel.stateLock.Lock()
	defer channel.stateLock.Unlock()

	if slices.Contains(channel.members, handle) {
		update(&handle.participant)
	}
}
