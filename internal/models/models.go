package models

import "time"

// SchemaVersion is written into every persisted collection so a future
// release can migrate old data files.
const SchemaVersion = 1

// Message roles. RoleSystem is reserved for backend-injected context and
// never appears in user-created messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Account roles. Exactly one root account exists; it is provisioned once
// at first run. Members are created and removed by root.
const (
	AccountRoot   = "root"
	AccountMember = "member"
)

type User struct {
	Username        string    `json:"username"`
	Role            string    `json:"role"`
	CredentialHash  string    `json:"credential_hash"`
	ModelPreference string    `json:"model_preference,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat is a named, owned, ordered sequence of messages bound to one model.
// Owner is set at creation and never reassigned. Renamed records that the
// owner explicitly named the chat, which stops the auto-title rule from
// touching it again.
type Chat struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"created_by"`
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	Renamed   bool      `json:"renamed,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserSet is the persisted users collection: the single root record plus
// the member list.
type UserSet struct {
	Root    *User  `json:"root,omitempty"`
	Members []User `json:"members"`
}
