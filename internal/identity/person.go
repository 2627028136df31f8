package identity

import (
	"context"
	"time"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Floor is the hostel floor a student lives on.
type Floor string

const (
	FloorGround Floor = "GF"
	FloorFirst  Floor = "FF"
	FloorSecond Floor = "SF"
	FloorThird  Floor = "TF"
)

// Person is a registered student or administrator. BadgeID, Floor and
// RoomNumber are set for students only.
type Person struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	BadgeID      string    `json:"student_id,omitempty"`
	Floor        Floor     `json:"floor,omitempty"`
	RoomNumber   string    `json:"room_number,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p Person) IsAdmin() bool { return p.Role == RoleAdmin }

// Store persists people. Implementations return apperr NotFound for
// unknown ids and apperr Conflict when email or badge uniqueness would break.
type Store interface {
	Create(ctx context.Context, p Person) error
	Get(ctx context.Context, id string) (Person, error)
	GetByEmail(ctx context.Context, email string) (Person, error)
	GetByBadge(ctx context.Context, badgeID string) (Person, error)
	List(ctx context.Context) ([]Person, error)
	Update(ctx context.Context, p Person) error
	Delete(ctx context.Context, id string) error
}
