package model

import (
	"sort"
	"time"
)

// Conversation field names, shared by the mongo store for filters/updates.
const (
	ConversationFieldID           = "_id"
	ConversationFieldPairKey      = "pair_key"
	ConversationFieldParticipants = "participants"
	ConversationFieldUnread       = "unread"
	ConversationFieldCreateTime   = "create_time"
	ConversationFieldLastActivity = "last_activity"
)

// Conversation is the durable record of a two-party thread. Exactly two
// distinct participants; at most one conversation per unordered pair,
// enforced by the unique index on PairKey.
type Conversation struct {
	ID           string           `bson:"_id" json:"id"`
	PairKey      string           `bson:"pair_key" json:"-"`
	Participants []string         `bson:"participants" json:"participants"` // always len 2
	Unread       map[string]int64 `bson:"unread" json:"unread"`             // participant id -> count
	CreateTime   time.Time        `bson:"create_time" json:"create_time"`
	LastActivity time.Time        `bson:"last_activity" json:"last_activity"`
}

func (*Conversation) TableName() string { return "conversation" }

// PairKeyOf builds the canonical key of an unordered participant pair.
func PairKeyOf(a, b string) string {
	p := []string{a, b}
	sort.Strings(p)
	return p[0] + ":" + p[1]
}

// HasParticipant reports whether user is one of the two parties.
func (c *Conversation) HasParticipant(user string) bool {
	for _, p := range c.Participants {
		if p == user {
			return true
		}
	}
	return false
}

// Other returns the peer of user, or "" if user is not a participant.
func (c *Conversation) Other(user string) string {
	if len(c.Participants) != 2 || !c.HasParticipant(user) {
		return ""
	}
	if c.Participants[0] == user {
		return c.Participants[1]
	}
	return c.Participants[0]
}
