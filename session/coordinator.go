package session

import (
	"context"
	"encoding/json"

	"github.com/golang/glog"
)

type ChannelCoordinatorSettings struct {
	DefaultVersionSummary string
}

func DefaultChannelCoordinatorSettings() *ChannelCoordinatorSettings {
	return &ChannelCoordinatorSettings{
		DefaultVersionSummary: "Manual Save",
	}
}

// ChannelCoordinator runs the protocol state machine for every attached
// connection: admission, initial state delivery, inbound event dispatch, and
// detach. It owns the session registry and broadcaster; the document store
// is the external collaborator holding canonical document state.
type ChannelCoordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	registry    *SessionRegistry
	broadcaster *Broadcaster
	documents   *DocumentStore

	settings *ChannelCoordinatorSettings
}

func NewChannelCoordinatorWithDefaults(ctx context.Context, documents *DocumentStore) *ChannelCoordinator {
	return NewChannelCoordinator(ctx, documents, DefaultChannelCoordinatorSettings())
}

func NewChannelCoordinator(ctx context.Context, documents *DocumentStore, settings *ChannelCoordinatorSettings) *ChannelCoordinator {
	cancelCtx, cancel := context.WithCancel(ctx)
	registry := NewSessionRegistry()
	return &ChannelCoordinator{
		ctx:         cancelCtx,
		cancel:      cancel,
		registry:    registry,
		broadcaster: NewBroadcaster(registry),
		documents:   documents,
		settings:    settings,
	}
}

func (self *ChannelCoordinator) Registry() *SessionRegistry {
	return self.registry
}

func (self *ChannelCoordinator) Close() {
	self.cancel()
}

// persistence is fire-and-forget with respect to the originating
// connection. The in-memory mutation is already applied and is not rolled
// back; a failed durable write is logged and never reported to the sender.
func (self *ChannelCoordinator) persist() {
	if err := self.documents.Persist(); err != nil {
		glog.Infof("[cc]persist error = %s\n", err)
	}
}

// HandleConnection runs one connection's state machine and blocks until the
// connection closes. The transport is read by this call only, so events
// from one connection are processed strictly in receipt order.
func (self *ChannelCoordinator) HandleConnection(channelId string, participant Participant, transport Transport) {
	conn := &connection{
		coordinator: self,
		channelId:   channelId,
		userId:      participant.UserId,
		userName:    participant.UserName,
		color:       participant.Color,
		transport:   transport,
		state:       connectionStateConnecting,
	}
	conn.run(participant)
}

type connectionState int

const (
	connectionStateConnecting connectionState = iota
	connectionStateActive
	// terminal. No events are accepted after this point.
	connectionStateClosed
)

// connection is one live attachment to a channel
type connection struct {
	coordinator *ChannelCoordinator
	channelId   string

	// fixed at admission
	userId   string
	userName string
	color    string

	transport Transport
	handle    *ParticipantHandle
	state     connectionState
}

func (self *connection) run(participant Participant) {
	c := self.coordinator

	// admission: register, ensure the document exists, send the snapshot to
	// this connection only, then announce the updated roster to the channel
	self.handle = c.registry.Attach(self.channelId, participant, self.transport)
	defer self.close()

	document, created := c.documents.EnsureDocument(self.channelId)
	if created {
		c.persist()
	}
	stateBytes, err := json.Marshal(&DocumentStateMessage{
		Type:     MessageTypeDocumentState,
		Document: document,
	})
	if err != nil {
		glog.Infof("[cc]%s document state marshal error = %s\n", self.channelId, err)
		return
	}
	if err := self.transport.WriteMessage(stateBytes); err != nil {
		glog.Infof("[cc]%s-> document state error = %s\n", self.userId, err)
		return
	}
	c.broadcaster.BroadcastRoster(self.channelId)
	self.state = connectionStateActive

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		message, err := self.transport.ReadMessage()
		if err != nil {
			glog.V(2).Infof("[cc]%s<- closed = %s\n", self.userId, err)
			return
		}
		event, ok := ParseEvent(message)
		if !ok {
			// unknown or malformed events are dropped without ending the
			// session or surfacing an error to the sender
			glog.V(2).Infof("[cc]%s<- ignored malformed event\n", self.userId)
			continue
		}
		self.dispatch(event)
	}
}

func (self *connection) dispatch(event Event) {
	c := self.coordinator

	switch event := event.(type) {
	case *ContentUpdateEvent:
		// full page-set replace, last write wins
		pages, ok := c.documents.SetPages(self.channelId, event.Pages)
		if !ok {
			return
		}
		c.persist()
		c.broadcaster.Broadcast(self.channelId, &ContentUpdateMessage{
			Type:     MessageTypeContentUpdate,
			Pages:    pages,
			UserId:   self.userId,
			UserName: self.userName,
		}, self.handle)
	case *TypingStatusEvent:
		status := StatusViewing
		if event.IsTyping {
			status = StatusTyping
		}
		c.registry.UpdateStatus(self.channelId, self.handle, status)
		c.broadcaster.BroadcastRoster(self.channelId)
	case *PresenceEvent:
		c.registry.UpdateCaret(self.channelId, self.handle, event.Caret)
		c.broadcaster.Broadcast(self.channelId, &PresenceMessage{
			Type:     MessageTypePresence,
			UserId:   self.userId,
			UserName: self.userName,
			Color:    self.color,
			Caret:    event.Caret,
		}, nil)
	case *SaveVersionEvent:
		summary := c.settings.DefaultVersionSummary
		if event.Summary != nil {
			summary = *event.Summary
		}
		version, ok := c.documents.AppendVersion(self.channelId, self.userName, summary)
		if !ok {
			return
		}
		c.persist()
		c.broadcaster.Broadcast(self.channelId, &VersionCreatedMessage{
			Type:    MessageTypeVersionCreated,
			Version: version,
		}, nil)
	}
}

func (self *connection) close() {
	if self.state == connectionStateClosed {
		return
	}
	self.state = connectionStateClosed

	c := self.coordinator
	c.registry.Detach(self.channelId, self.handle)
	c.broadcaster.BroadcastRoster(self.channelId)
}
