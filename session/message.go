package session

import (
	"encoding/json"
)

// wire message kinds. One JSON object per message, discriminated by `type`
const (
	MessageTypeDocumentState  = "document_state"
	MessageTypeUserList       = "user_list"
	MessageTypeContentUpdate  = "content_update"
	MessageTypeTypingStatus   = "typing_status"
	MessageTypePresence       = "presence"
	MessageTypeSaveVersion    = "save_version"
	MessageTypeVersionCreated = "version_created"
)

type ParticipantStatus string

const (
	StatusViewing ParticipantStatus = "Viewing"
	StatusTyping  ParticipantStatus = "Typing"
)

type CaretPosition struct {
	PageIndex int `json:"pageIndex"`
	Offset    int `json:"offset"`
}

// Event is one validated inbound message. The set of variants is closed:
// anything that does not decode into one of them is dropped by ParseEvent.
type Event interface {
	isEvent()
}

type ContentUpdateEvent struct {
	Pages []string
}

type TypingStatusEvent struct {
	IsTyping bool
}

// Caret nil is an explicit clear, not a missing update
type PresenceEvent struct {
	Caret *CaretPosition
}

// Summary nil means the sender did not supply one
type SaveVersionEvent struct {
	Summary *string
}

func (self *ContentUpdateEvent) isEvent() {}
func (self *TypingStatusEvent) isEvent()  {}
func (self *PresenceEvent) isEvent()      {}
func (self *SaveVersionEvent) isEvent()   {}

// ParseEvent decodes one inbound message. A missing or unknown `type`,
// malformed json, or a missing required field all return ok=false.
// The caller ignores those without surfacing an error to the peer.
func ParseEvent(message []byte) (Event, bool) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		return nil, false
	}

	switch envelope.Type {
	case MessageTypeContentUpdate:
		var event struct {
			Pages []string `json:"pages"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			return nil, false
		}
		if event.Pages == nil {
			return nil, false
		}
		return &ContentUpdateEvent{Pages: event.Pages}, true
	case MessageTypeTypingStatus:
		var event struct {
			IsTyping bool `json:"is_typing"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			return nil, false
		}
		return &TypingStatusEvent{IsTyping: event.IsTyping}, true
	case MessageTypePresence:
		// a missing caret key is treated the same as an explicit null
		var event struct {
			Caret *CaretPosition `json:"caret"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			return nil, false
		}
		return &PresenceEvent{Caret: event.Caret}, true
	case MessageTypeSaveVersion:
		var event struct {
			Summary *string `json:"summary"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			return nil, false
		}
		return &SaveVersionEvent{Summary: event.Summary}, true
	default:
		return nil, false
	}
}

// outbound messages

type DocumentStateMessage struct {
	Type     string    `json:"type"`
	Document *Document `json:"document"`
}

type RosterEntry struct {
	UserId   string `json:"user_id"`
	UserName string `json:"user_name"`
	Color    string `json:"color"`
	Status   string `json:"status"`
}

type UserListMessage struct {
	Type  string        `json:"type"`
	Users []RosterEntry `json:"users"`
}

func NewUserListMessage(participants []Participant) *UserListMessage {
	users := make([]RosterEntry, 0, len(participants))
	for _, participant := range participants {
		users = append(users, RosterEntry{
			UserId:   participant.UserId,
			UserName: participant.UserName,
			Color:    participant.Color,
			Status:   string(participant.Status),
		})
	}
	return &UserListMessage{
		Type:  MessageTypeUserList,
		Users: users,
	}
}

type ContentUpdateMessage struct {
	Type     string   `json:"type"`
	Pages    []string `json:"pages"`
	UserId   string   `json:"user_id"`
	UserName string   `json:"user_name"`
}

// Caret is always serialized, possibly as null, so a cleared caret is
// distinguishable from a message that never carried one
type PresenceMessage struct {
	Type     string         `json:"type"`
	UserId   string         `json:"user_id"`
	UserName string         `json:"user_name"`
	Color    string         `json:"color"`
	Caret    *CaretPosition `json:"caret"`
}

type VersionCreatedMessage struct {
	Type    string   `json:"type"`
	Version *Version `json:"version"`
}
