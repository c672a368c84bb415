package entity

import (
	"time"
)

const (
	UserTypeVehicleOwner = "vehicle_owner"
	UserTypeMechanic     = "mechanic"
)

type User struct {
	ID           string `json:"id" firestore:"id" bson:"_id"`
	FullName     string `json:"fullName" firestore:"fullName" bson:"fullName"`
	Email        string `json:"email" firestore:"email" bson:"email"`
	UserType     string `json:"userType" firestore:"userType" bson:"userType"`
	ProfileImage string `json:"profileImage,omitempty" firestore:"profileImage,omitempty" bson:"profileImage,omitempty"`

	// Device token used for out-of-band message notifications.
	PushToken string `json:"-" firestore:"pushToken,omitempty" bson:"pushToken,omitempty"`

	CreatedAt time.Time `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt" bson:"updatedAt"`
}

// DisplayName is the name shown to other users, falling back to the email.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}
