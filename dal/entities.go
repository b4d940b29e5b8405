package dal

import (
	"encoding/json"
	"time"
)

// Follower is one remote actor subscribed to a location's posts.
type Follower struct {
	Id          string    `json:"id"`                    // https://genart.social/users/twilliability
	Inbox       string    `json:"inbox"`                 // https://genart.social/users/twilliability/inbox
	SharedInbox string    `json:"sharedInbox,omitempty"` // https://genart.social/inbox
	FollowedAt  time.Time `json:"followedAt"`
}

// DeliveryJob is one pending signed POST to one inbox, persisted in the
// retry queue between attempts.
type DeliveryJob struct {
	Key       string          `json:"-"` // store key; not serialized
	InboxUrl  string          `json:"inboxUrl"`
	ActorId   string          `json:"actorId"`
	Activity  json.RawMessage `json:"activity"`
	Attempt   int             `json:"attempt"` // attempts already made
	NotBefore time.Time       `json:"notBefore"`
}
