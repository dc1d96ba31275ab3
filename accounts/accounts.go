/*
Package accounts manages the shop staff who may use the ledgers.

PURPOSE:
  Staff register themselves with a phone number and password. They cannot
  sign in until an approved admin approves them. One admin is seeded at
  startup so a fresh install is usable.

KEY CONCEPTS:
  - User:         A staff member or admin, keyed by a generated id
  - Phone index:  users_by_phone/{phone} -> user id, created with the user so
                  the store's id uniqueness enforces unique phone numbers
  - Approval:     Only approved users authenticate; only approved admins
                  approve others

SEE ALSO:
  - api/auth.go: HTTP Basic middleware built on Authenticate
  - cmd/server: bootstrap-admin command and startup seeding
*/
package accounts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/shopbook/shopbook/generic"
)

const (
	UsersCollection   generic.Collection = "users"
	PhoneIndex        generic.Collection = "users_by_phone"
	MinPasswordLength                    = 6
)

var (
	ErrInvalidCredentials = errors.New("invalid phone or password")
	ErrNotApproved        = errors.New("account is waiting for admin approval")
	ErrForbidden          = errors.New("admin approval rights required")
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone"`
	PasswordHash string     `json:"password_hash"`
	Role         Role       `json:"role"`
	Approved     bool       `json:"approved"`
	ApprovedBy   string     `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// CanApprove reports whether u may approve other users.
func (u User) CanApprove() bool { return u.IsAdmin() && u.Approved }

type phoneEntry struct {
	UserID string `json:"user_id"`
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store generic.Store
	log   *zap.Logger
	now   func() time.Time
	cost  int
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func NewService(store generic.Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   zap.NewNop(),
		now:   func() time.Time { return time.Now().UTC() },
		cost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// REGISTRATION
// =============================================================================

// RegisterInput is a self-registration request.
type RegisterInput struct {
	Name     string
	Phone    string
	Password string
}

func (in RegisterInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return generic.Invalid("name", "name is required")
	}
	if normalizePhone(in.Phone) == "" {
		return generic.Invalid("phone", "phone is required")
	}
	if len(in.Password) < MinPasswordLength {
		return generic.Invalid("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	return nil
}

// Register creates an unapproved staff account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	if err := in.Validate(); err != nil {
		return User{}, err
	}
	return s.create(ctx, in, RoleStaff, false)
}

func (s *Service) create(ctx context.Context, in RegisterInput, role Role, approved bool) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	u := User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Phone:        normalizePhone(in.Phone),
		PasswordHash: string(hash),
		Role:         role,
		Approved:     approved,
		CreatedAt:    now,
	}
	if approved {
		u.ApprovedAt = &now
	}

	err = s.store.Create(ctx, phoneRef(u.Phone), phoneEntry{UserID: u.ID})
	if errors.Is(err, generic.ErrAlreadyExists) {
		return User{}, generic.Invalid("phone", "phone number is already registered")
	}
	if err != nil {
		return User{}, fmt.Errorf("reserve phone: %w", err)
	}
	if err := s.store.Create(ctx, userRef(u.ID), u); err != nil {
		_ = s.store.Delete(ctx, phoneRef(u.Phone))
		return User{}, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user registered",
		zap.String("user_id", u.ID),
		zap.String("role", string(u.Role)),
		zap.Bool("approved", u.Approved),
	)
	return u, nil
}

// =============================================================================
// AUTHENTICATION AND APPROVAL
// =============================================================================

// Authenticate checks a phone/password pair. Unknown phones and wrong
// passwords both return ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, phone, password string) (User, error) {
	u, err := s.ByPhone(ctx, phone)
	if generic.IsNotFound(err) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !u.Approved {
		return User{}, ErrNotApproved
	}
	return u, nil
}

// Approve marks userID approved on behalf of actor.
func (s *Service) Approve(ctx context.Context, actor User, userID string) (User, error) {
	if !actor.CanApprove() {
		return User{}, ErrForbidden
	}
	var approved User
	err := s.store.Update(ctx, userRef(userID), func(doc generic.Document) (any, error) {
		if err := doc.Decode(&approved); err != nil {
			return nil, err
		}
		if approved.Approved {
			return approved, nil
		}
		now := s.now()
		approved.Approved = true
		approved.ApprovedBy = actor.ID
		approved.ApprovedAt = &now
		return approved, nil
	})
	if errors.Is(err, generic.ErrDocumentNotFound) {
		return User{}, generic.NotFound(UsersCollection, userID)
	}
	if err != nil {
		return User{}, err
	}
	s.log.Info("user approved", zap.String("user_id", userID), zap.String("approved_by", actor.ID))
	return approved, nil
}

// ListPending returns unapproved users, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]User, error) {
	docs, err := s.store.Query(ctx, UsersCollection)
	if err != nil {
		return nil, err
	}
	var pending []User
	for _, doc := range docs {
		var u User
		if err := doc.Decode(&u); err != nil {
			return nil, err
		}
		if !u.Approved {
			pending = append(pending, u)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	return pending, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	doc, err := s.store.Get(ctx, userRef(id))
	if err != nil {
		return User{}, err
	}
	if doc == nil {
		return User{}, generic.NotFound(UsersCollection, id)
	}
	var u User
	return u, doc.Decode(&u)
}

// ByPhone resolves a user through the phone index.
func (s *Service) ByPhone(ctx context.Context, phone string) (User, error) {
	phone = normalizePhone(phone)
	doc, err := s.store.Get(ctx, phoneRef(phone))
	if err != nil {
		return User{}, err
	}
	if doc == nil {
		return User{}, generic.NotFound(PhoneIndex, phone)
	}
	var entry phoneEntry
	if err := doc.Decode(&entry); err != nil {
		return User{}, err
	}
	return s.Get(ctx, entry.UserID)
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

// AdminSeed is the default admin created on a fresh install.
type AdminSeed struct {
	Name     string
	Phone    string
	Password string
}

// EnsureDefaultAdmin creates an approved admin for seed.Phone unless a user
// with that phone already exists. Safe to call on every startup.
func (s *Service) EnsureDefaultAdmin(ctx context.Context, seed AdminSeed) (User, bool, error) {
	if seed.Name == "" {
		seed.Name = "Admin"
	}
	in := RegisterInput{Name: seed.Name, Phone: seed.Phone, Password: seed.Password}
	if err := in.Validate(); err != nil {
		return User{}, false, fmt.Errorf("default admin: %w", err)
	}

	existing, err := s.ByPhone(ctx, seed.Phone)
	if err == nil {
		return existing, false, nil
	}
	if !generic.IsNotFound(err) {
		return User{}, false, err
	}

	u, err := s.create(ctx, in, RoleAdmin, true)
	if err != nil {
		return User{}, false, err
	}
	return u, true, nil
}

func userRef(id string) generic.Ref {
	return generic.Ref{Collection: UsersCollection, ID: id}
}

func phoneRef(phone string) generic.Ref {
	return generic.Ref{Collection: PhoneIndex, ID: phone}
}

// normalizePhone drops spaces and dashes so "98765 43210" and
// "98765-43210" are the same account.
func normalizePhone(phone string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))
}
