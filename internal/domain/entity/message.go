package entity

import "time"

// Message is one entry of a chat's history. ID, Seq and Timestamp are
// assigned by the store at append time.
type Message struct {
	ID        string     `json:"id" firestore:"id" bson:"id"`
	Seq       int        `json:"seq" firestore:"seq" bson:"seq"`
	SenderID  string     `json:"senderId" firestore:"senderId" bson:"senderId"`
	Content   string     `json:"content" firestore:"content" bson:"content"`
	Timestamp time.Time  `json:"timestamp" firestore:"timestamp" bson:"timestamp"`
	Read      bool       `json:"read" firestore:"read" bson:"read"`
	Edited    bool       `json:"edited" firestore:"edited" bson:"edited"`
	EditedAt  *time.Time `json:"editedAt,omitempty" firestore:"editedAt,omitempty" bson:"editedAt,omitempty"`
}
