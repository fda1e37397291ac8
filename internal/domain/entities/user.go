package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// User represents a user in the system
type User struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Email    string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Name     string    `json:"name" gorm:"type:varchar(255);not null"`
	IsActive bool      `json:"is_active" gorm:"default:true;not null"`

	// Dating profile
	Age          int            `json:"age" gorm:"type:integer;default:0"`
	Gender       *string        `json:"gender,omitempty" gorm:"type:varchar(20)"`
	Bio          *string        `json:"bio,omitempty" gorm:"type:text"`
	Interests    datatypes.JSON `json:"interests" gorm:"type:jsonb;default:'[]'"`
	ProfileImage *string        `json:"profile_image,omitempty" gorm:"type:varchar(500)"`
	Location     *string        `json:"location,omitempty" gorm:"type:varchar(255)"`
	Occupation   *string        `json:"occupation,omitempty" gorm:"type:varchar(255)"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty" gorm:"type:timestamp"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// NewUser creates a new user with default values
func NewUser(email, name string) *User {
	now := time.Now()
	interests, _ := json.Marshal([]string{})

	return &User{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		IsActive:  true,
		Interests: interests,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UpdateLastLogin updates the last login timestamp
func (u *User) UpdateLastLogin() {
	now := time.Now()
	u.LastLoginAt = &now
	u.UpdatedAt = now
}

// Validate validates user data
func (u *User) Validate() error {
	if u.Email == "" {
		return ErrInvalidEmail
	}
	if u.Name == "" {
		return ErrInvalidName
	}
	return nil
}

// UserStats aggregates a user's conversation history
type UserStats struct {
	TotalConversations int     `json:"total_conversations"`
	AverageMatchScore  float64 `json:"average_match_score"`
	BestMatchScore     int     `json:"best_match_score"`
	TotalDuration      int     `json:"total_duration"` // seconds
}

// PublicUser returns a user with sensitive fields removed
type PublicUser struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Age          int       `json:"age"`
	Bio          *string   `json:"bio,omitempty"`
	ProfileImage *string   `json:"profile_image,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToPublic converts User to PublicUser
func (u *User) ToPublic() *PublicUser {
	return &PublicUser{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Age:          u.Age,
		Bio:          u.Bio,
		ProfileImage: u.ProfileImage,
		CreatedAt:    u.CreatedAt,
	}
}
