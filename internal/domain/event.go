package domain

import (
	"time"
)

// DefaultEventKind is recorded when a webhook envelope carries no "event" field.
const DefaultEventKind = "form.submitted"

// WebhookEvent is one verified inbound notification. It is written once and
// never updated.
type WebhookEvent struct {
	ID           string         `json:"id" bson:"_id,omitempty"`
	Event        string         `json:"event" bson:"event"`
	FormID       string         `json:"form_id" bson:"form_id"`
	SubmissionID string         `json:"submission_id" bson:"submission_id"`
	Payload      map[string]any `json:"payload" bson:"payload"`
	ReceivedAt   time.Time      `json:"received_at" bson:"received_at"`
	CreatedAt    time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" bson:"updated_at"`
}

// Submission holds the nested data document of an event envelope. It refers
// to its WebhookEvent only through SubmissionID.
type Submission struct {
	ID           string         `json:"id" bson:"_id,omitempty"`
	SubmissionID string         `json:"submission_id" bson:"submission_id"`
	FormID       string         `json:"form_id" bson:"form_id"`
	WorkspaceID  string         `json:"workspace_id,omitempty" bson:"workspace_id,omitempty"`
	Data         map[string]any `json:"data" bson:"data"`
	ReceivedAt   time.Time      `json:"received_at" bson:"received_at"`
	CreatedAt    time.Time      `json:"created_at" bson:"created_at"`
}
