package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vintoniuk/anadeabot/internal/conversation"
)

// User is a person talking to the bot, keyed by their chat id.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExternalID  string    `gorm:"not null;uniqueIndex"`
	Personality *string
	CreatedAt   time.Time

	Orders   []Order   `gorm:"constraint:OnDelete:CASCADE"`
	Requests []Request `gorm:"constraint:OnDelete:CASCADE"`
}

// Order is a placed T-shirt order.
type Order struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Key      string    `gorm:"not null;uniqueIndex"`
	Color    string    `gorm:"not null"`
	Size     string    `gorm:"not null"`
	Style    string    `gorm:"not null"`
	Gender   string    `gorm:"not null"`
	Printing string    `gorm:"not null"`
	PlacedAt time.Time `gorm:"autoCreateTime"`
}

// Design returns the ordered design.
func (o Order) Design() conversation.Design {
	return conversation.Design{
		Color:    o.Color,
		Size:     o.Size,
		Style:    o.Style,
		Gender:   o.Gender,
		Printing: o.Printing,
	}
}

// Request is a message forwarded to customer support.
type Request struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index"`
	Key         string    `gorm:"not null;uniqueIndex"`
	Details     string    `gorm:"not null"`
	SubmittedAt time.Time `gorm:"autoCreateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

func (r *Request) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
