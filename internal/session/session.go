// Package session defines the unit of work for one profile-creation effort
// and its persistence. A session is shared by a primary user and optional
// friends, all contributing over SMS.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tandemhq/profile-agent/internal/stage"
)

// Role identifies how a participant joined the session.
type Role string

const (
	RoleCreator Role = "creator"
	RoleFriend  Role = "friend"
)

// Participant is one contact taking part in the conversation.
type Participant struct {
	ContactID   string    `json:"contact_id"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

// PrimaryUser is the person whose profile is being built.
type PrimaryUser struct {
	ContactID   string    `json:"contact_id"`
	DisplayName string    `json:"display_name"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// Message is one entry of the conversational memory passed to the LLM.
type Message struct {
	Role            string    `json:"role"` // user | agent
	Text            string    `json:"text"`
	SenderContactID string    `json:"sender_contact_id,omitempty"`
	SentAt          time.Time `json:"sent_at"`
}

// ActionRecord is one audit entry: the literal action payload and its result,
// success or failure. The action log is a replayable history of the session.
type ActionRecord struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	ActionType string          `json:"action_type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Success    bool            `json:"success"`
	Error      string          `json:"error,omitempty"`
}

// ProfileStatus is the lifecycle state of a profile snapshot.
type ProfileStatus string

const (
	StatusPendingReview ProfileStatus = "pending_review"
	StatusCommitted     ProfileStatus = "committed"
)

// Snapshot is a frozen copy of the profile fields plus publication metadata.
type Snapshot struct {
	ID         string         `json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	Status     ProfileStatus  `json:"status"`
	Fields     map[string]any `json:"fields"`
	Photos     []string       `json:"photos"`
	ProfileURL string         `json:"profile_url,omitempty"`
}

// Candidate is one recommended profile in a daily drop.
type Candidate struct {
	ProfileID string `json:"profile_id"`
	Headline  string `json:"headline"`
}

// DailyDrop records one batch of recommended candidates and the user's pick.
type DailyDrop struct {
	Timestamp  time.Time   `json:"timestamp"`
	Candidates []Candidate `json:"candidates"`
	UserChoice string      `json:"user_choice,omitempty"`
}

// AuxData is the free-form bag for uploaded media and scratch preferences.
type AuxData struct {
	Photos      []string          `json:"photos,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
}

// Session is the unit of work for one profile-creation effort.
// The session ID is immutable once created and participants is never empty
// while the session exists.
type Session struct {
	ID               string         `json:"id"`
	Participants     []Participant  `json:"participants"`
	PrimaryUser      *PrimaryUser   `json:"primary_user,omitempty"`
	Stage            stage.Stage    `json:"stage"`
	ProfileFields    map[string]any `json:"profile_fields"`
	Aux              AuxData        `json:"aux_data"`
	MessageLog       []Message      `json:"message_log"`
	ActionLog        []ActionRecord `json:"action_log"`
	GeneratedProfile *Snapshot      `json:"generated_profile,omitempty"`
	CommittedProfile *Snapshot      `json:"committed_profile,omitempty"`
	DailyDrops       []DailyDrop    `json:"daily_drops,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// New creates a session with its first participant as creator.
func New(contactID, displayName string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:    NewID(),
		Stage: stage.Greeting,
		Participants: []Participant{{
			ContactID:   contactID,
			DisplayName: displayName,
			Role:        RoleCreator,
			JoinedAt:    now,
		}},
		ProfileFields: make(map[string]any),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Participant returns the participant with the given contact ID.
func (s *Session) Participant(contactID string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.ContactID == contactID {
			return p, true
		}
	}
	return Participant{}, false
}

// Join adds a friend participant. Idempotent when the contact is already a
// member.
func (s *Session) Join(contactID, displayName string) Participant {
	if p, ok := s.Participant(contactID); ok {
		return p
	}
	p := Participant{
		ContactID:   contactID,
		DisplayName: displayName,
		Role:        RoleFriend,
		JoinedAt:    time.Now().UTC(),
	}
	s.Participants = append(s.Participants, p)
	return p
}

// AppendMessage records a conversational message.
func (s *Session) AppendMessage(role, text, senderContactID string) {
	s.MessageLog = append(s.MessageLog, Message{
		Role:            role,
		Text:            text,
		SenderContactID: senderContactID,
		SentAt:          time.Now().UTC(),
	})
}

// AppendAction records an audit entry.
func (s *Session) AppendAction(rec ActionRecord) {
	s.ActionLog = append(s.ActionLog, rec)
}

// AddPhoto records an uploaded media reference. Duplicates are ignored.
func (s *Session) AddPhoto(url string) {
	for _, p := range s.Aux.Photos {
		if p == url {
			return
		}
	}
	s.Aux.Photos = append(s.Aux.Photos, url)
}

// HasPhoto reports whether at least one photo has been uploaded.
func (s *Session) HasPhoto() bool { return len(s.Aux.Photos) > 0 }

// sessionAlias avoids UnmarshalJSON recursion.
type sessionAlias Session

type sessionWire struct {
	sessionAlias
	Stage string `json:"stage"`
}

// UnmarshalJSON decodes a persisted session, resolving legacy stage names to
// their canonical equivalents at the boundary so business logic only ever
// sees canonical stages.
func (s *Session) UnmarshalJSON(data []byte) error {
	var w sessionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	st, err := stage.Parse(w.Stage)
	if err != nil {
		return fmt.Errorf("session %s: %w", w.ID, err)
	}
	*s = Session(w.sessionAlias)
	s.Stage = st
	if s.ProfileFields == nil {
		s.ProfileFields = make(map[string]any)
	}
	return nil
}
