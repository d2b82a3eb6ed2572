package collab

import (
	"encoding/json"
	"errors"

	"github.com/docsync/docsync/internal/presence"
)

// Event names carried in the frame envelope.
const (
	EventJoinDocument   = "join-document"
	EventLoadDocument   = "load-document"
	EventActiveUsers    = "active-users"
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
	EventSendChanges    = "send-changes"
	EventReceiveChanges = "receive-changes"
	EventSaveDocument   = "save-document"
	EventLeaveDocument  = "leave-document"
	EventCursorPosition = "cursor-position"
	EventCursorUpdate   = "cursor-update"
	EventJoinFailed     = "join-failed"
)

const anonymousUsername = "Anonymous"

var ErrInvalidPayload = errors.New("invalid payload")

// Client to server.

type JoinRequest struct {
	DocumentID string `json:"documentId" validate:"required,max=256"`
	UserID     string `json:"userId" validate:"required,max=256"`
	Username   string `json:"username" validate:"max=256"`
}

type ChangesRequest struct {
	DocumentID string          `json:"documentId" validate:"required"`
	Delta      json.RawMessage `json:"delta" validate:"required"`
}

type SaveRequest struct {
	DocumentID string `json:"documentId" validate:"required,max=256"`
	Content    string `json:"content"`
	Title      string `json:"title"`
}

type LeaveRequest struct {
	DocumentID string `json:"documentId" validate:"required"`
	UserID     string `json:"userId"`
}

type CursorRequest struct {
	DocumentID string          `json:"documentId" validate:"required"`
	UserID     string          `json:"userId"`
	Username   string          `json:"username"`
	Position   json.RawMessage `json:"position"`
}

// Server to client.

type LoadDocument struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	Content    string `json:"content"`
}

type UserJoined = presence.Entry

type UserLeft struct {
	UserID string `json:"userId"`
}

type CursorUpdate struct {
	UserID   string          `json:"userId"`
	Username string          `json:"username"`
	Position json.RawMessage `json:"position"`
}

type JoinFailed struct {
	DocumentID string `json:"documentId"`
	Error      string `json:"error"`
}
