package entity

import (
	"sort"
	"strings"
	"time"
)

type ChatStatus string

const (
	ChatStatusActive   ChatStatus = "active"
	ChatStatusArchived ChatStatus = "archived"
)

// Chat is the aggregate of its participants, their message history and the
// per-participant unread counters. Only the chat store mutates it.
//
// MessageCount counts every message ever appended and is the source of
// Message.Seq; it does not go down when a message is deleted.
type Chat struct {
	ID              string         `json:"id" firestore:"id" bson:"_id"`
	Participants    []string       `json:"participants" firestore:"participants" bson:"participants"`
	Messages        []Message      `json:"messages" firestore:"-" bson:"messages"`
	MessageCount    int            `json:"messageCount" firestore:"messageCount" bson:"messageCount"`
	UnreadCounts    map[string]int `json:"unreadCounts" firestore:"unreadCounts" bson:"unreadCounts"`
	LastMessage     time.Time      `json:"lastMessage" firestore:"lastMessage" bson:"lastMessage"`
	RepairListingID string         `json:"repairListingId,omitempty" firestore:"repairListingId,omitempty" bson:"repairListingId,omitempty"`
	PairKey         string         `json:"-" firestore:"pairKey" bson:"pairKey"`
	Status          ChatStatus     `json:"status" firestore:"status" bson:"status"`
	CreatedAt       time.Time      `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt" firestore:"updatedAt" bson:"updatedAt"`
}

// HasParticipant reports whether userID is a member of the chat.
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipants returns every participant except userID, in chat order.
func (c *Chat) OtherParticipants(userID string) []string {
	others := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != userID {
			others = append(others, p)
		}
	}
	return others
}

// UnreadFor returns the unread counter of userID, 0 when absent.
func (c *Chat) UnreadFor(userID string) int {
	if c.UnreadCounts == nil {
		return 0
	}
	return c.UnreadCounts[userID]
}

// LastMessageEntry returns the newest message, or nil for an empty chat.
func (c *Chat) LastMessageEntry() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// RefreshLastMessage recomputes LastMessage from the message sequence. An
// empty chat keeps its previous value.
func (c *Chat) RefreshLastMessage() {
	if last := c.LastMessageEntry(); last != nil {
		c.LastMessage = last.Timestamp
	}
}

// Clone returns a deep copy so callers can hand chats across goroutines
// without sharing the message slice or the unread map.
func (c *Chat) Clone() *Chat {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	cp.Messages = make([]Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	for i := range cp.Messages {
		if c.Messages[i].EditedAt != nil {
			t := *c.Messages[i].EditedAt
			cp.Messages[i].EditedAt = &t
		}
	}
	cp.UnreadCounts = make(map[string]int, len(c.UnreadCounts))
	for k, v := range c.UnreadCounts {
		cp.UnreadCounts[k] = v
	}
	return &cp
}

// PairKey builds the identity used to find an existing chat between the same
// participants about the same listing.
func PairKey(participants []string, repairListingID string) string {
	ids := append([]string(nil), participants...)
	sort.Strings(ids)
	return strings.Join(ids, ":") + "|" + repairListingID
}
