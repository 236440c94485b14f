package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

type User struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email          string    `gorm:"uniqueIndex;not null" json:"email"`
	Password       string    `gorm:"not null" json:"-"`
	Name           string    `gorm:"size:32;not null" json:"name"`
	Surname        string    `gorm:"size:32;not null" json:"surname"`
	Birthday       time.Time `gorm:"not null" json:"birthday"`
	Gender         Gender    `json:"gender,omitempty"`
	AvatarKey      *string   `json:"-"`
	EmailConfirmed bool      `gorm:"not null;default:false" json:"is_email_confirmed"`
	CreatedAt      time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
