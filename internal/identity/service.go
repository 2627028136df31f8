package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"hostelattendance/internal/apperr"
	"hostelattendance/internal/validation"
)

// Registration is the input for creating an account.
type Registration struct {
	Name       string `json:"name" validate:"required,max=120"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	Role       Role   `json:"role" validate:"oneof=student admin"`
	BadgeID    string `json:"student_id" validate:"required_if=Role student,max=64"`
	Floor      Floor  `json:"floor" validate:"required_if=Role student,omitempty,oneof=GF FF SF TF"`
	RoomNumber string `json:"room_number" validate:"required_if=Role student,omitempty,roomnumber"`
}

// Changes holds the admin-editable attributes; nil fields are left as is.
type Changes struct {
	Name       *string `json:"name" validate:"omitempty,max=120"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Floor      *Floor  `json:"floor" validate:"omitempty,oneof=GF FF SF TF"`
	RoomNumber *string `json:"room_number" validate:"omitempty,roomnumber"`
}

// Service registers, authenticates and administers people.
type Service struct {
	store    Store
	validate *validator.Validate
	cost     int
	now      func() time.Time
}

// NewService creates a service. cost is the bcrypt cost; values outside
// bcrypt's range fall back to bcrypt.DefaultCost.
func NewService(store Store, cost int) *Service {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		store:    store,
		validate: validation.New(),
		cost:     cost,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register validates the registration, hashes the password and stores the
// person. Location attributes are dropped for admins.
func (s *Service) Register(ctx context.Context, in Registration) (Person, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.BadgeID = strings.TrimSpace(in.BadgeID)
	if in.Role == "" {
		in.Role = RoleStudent
	}
	if in.Role == RoleAdmin {
		in.BadgeID, in.Floor, in.RoomNumber = "", "", ""
	}
	if err := s.validate.Struct(in); err != nil {
		return Person{}, apperr.Invalid(validation.Format(err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return Person{}, err
	}

	now := s.now()
	p := Person{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		BadgeID:      in.BadgeID,
		Floor:        in.Floor,
		RoomNumber:   in.RoomNumber,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return Person{}, err
	}
	return p, nil
}

// Authenticate checks an email/password pair. Unknown emails and wrong
// passwords produce the same Unauthorized error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Person, error) {
	p, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return Person{}, apperr.Unauthorized("invalid email or password")
		}
		return Person{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return Person{}, apperr.Unauthorized("invalid email or password")
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (Person, error) {
	if id == "" {
		return Person{}, apperr.Invalid("user id is required")
	}
	if !ValidID(id) {
		return Person{}, apperr.NotFound("user not found")
	}
	return s.store.Get(ctx, id)
}

// ValidID reports whether id has the canonical form of a person id.
// Anything else cannot name a stored person.
func ValidID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// ResolveBadge maps a scanned badge identifier to its student.
func (s *Service) ResolveBadge(ctx context.Context, badgeID string) (Person, error) {
	badgeID = strings.TrimSpace(badgeID)
	if badgeID == "" {
		return Person{}, apperr.Invalid("student id is required")
	}
	return s.store.GetByBadge(ctx, badgeID)
}

func (s *Service) List(ctx context.Context) ([]Person, error) {
	return s.store.List(ctx)
}

// Update applies admin edits. Floor and room can only be set on students.
func (s *Service) Update(ctx context.Context, id string, ch Changes) (Person, error) {
	if err := s.validate.Struct(ch); err != nil {
		return Person{}, apperr.Invalid(validation.Format(err))
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return Person{}, err
	}
	if p.Role != RoleStudent && (ch.Floor != nil || ch.RoomNumber != nil) {
		return Person{}, apperr.Invalid("floor and room number apply to students only")
	}

	if ch.Name != nil {
		name := strings.TrimSpace(*ch.Name)
		if name == "" {
			return Person{}, apperr.Invalid("Field 'name' is required")
		}
		p.Name = name
	}
	if ch.Email != nil {
		p.Email = normalizeEmail(*ch.Email)
	}
	if ch.Floor != nil {
		p.Floor = *ch.Floor
	}
	if ch.RoomNumber != nil {
		p.RoomNumber = *ch.RoomNumber
	}
	p.UpdatedAt = s.now()

	if err := s.store.Update(ctx, p); err != nil {
		return Person{}, err
	}
	return p, nil
}

// Delete removes a person. Their attendance rows are kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperr.Invalid("user id is required")
	}
	if !ValidID(id) {
		return apperr.NotFound("user not found")
	}
	return s.store.Delete(ctx, id)
}

// EnsureAdmin creates an admin account unless the email is already taken.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (Person, bool, error) {
	existing, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return existing, false, nil
	}
	if !apperr.Is(err, apperr.CodeNotFound) {
		return Person{}, false, err
	}
	p, err := s.Register(ctx, Registration{Name: name, Email: email, Password: password, Role: RoleAdmin})
	if err != nil {
		var conflict *apperr.Error
		if errors.As(err, &conflict) && conflict.Code == apperr.CodeConflict {
			existing, gerr := s.store.GetByEmail(ctx, normalizeEmail(email))
			return existing, false, gerr
		}
		return Person{}, false, err
	}
	return p, true, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
