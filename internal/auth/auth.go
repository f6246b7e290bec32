// Package auth is the sign-in stub. Any credentials with an email sign in as
// the fixed demo user.
package auth

import (
	"errors"
	"strings"
	"sync"

	"github.com/mark3labs/carepath/internal/logger"
)

// RoleIndividual is the only role the demo user holds.
const RoleIndividual = "individual"

var (
	// ErrEmailRequired is returned by SignIn and SignUp when email is blank.
	ErrEmailRequired = errors.New("email is required")

	// ErrNameRequired is returned by SignUp when the full name is blank.
	ErrNameRequired = errors.New("full name is required")
)

// User is the signed-in account.
type User struct {
	ID          string   `json:"id"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	CurrentRole string   `json:"currentRole"`
}

// FullName returns "First Last".
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Session holds the current user.
type Session struct {
	mu   sync.Mutex
	user *User
}

// SignIn signs in as the demo user under email. The password is ignored.
func (s *Session) SignIn(email, password string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return User{}, ErrEmailRequired
	}
	u := User{
		ID:          "u1",
		FirstName:   "Demo",
		LastName:    "User",
		Email:       email,
		Roles:       []string{RoleIndividual},
		CurrentRole: RoleIndividual,
	}

	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()

	logger.Info("Signed in as %s", email)
	return u, nil
}

// SignUp creates an account from a full name and signs it in. Nothing is
// stored; the first word becomes the first name and the rest the last name.
func (s *Session) SignUp(fullName, email, password string) (User, error) {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return User{}, ErrNameRequired
	}
	u, err := s.SignIn(email, password)
	if err != nil {
		return User{}, err
	}
	u.FirstName = parts[0]
	u.LastName = strings.Join(parts[1:], " ")

	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	return u, nil
}

// SignOut clears the session.
func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
}

// User returns the signed-in user, if any.
func (s *Session) User() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return User{}, false
	}
	u := *s.user
	u.Roles = append([]string(nil), u.Roles...)
	return u, true
}

// Submitter returns the email to attribute submissions to, falling back to
// fallback when nobody is signed in.
func (s *Session) Submitter(fallback string) string {
	if u, ok := s.User(); ok {
		return u.Email
	}
	return fallback
}
