package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Lokman32/leadprep/internal/apperr"
)

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

type Service struct {
	users  UserStore
	issuer *Issuer
	log    logrus.FieldLogger
}

func NewService(users UserStore, issuer *Issuer, log logrus.FieldLogger) *Service {
	return &Service{users: users, issuer: issuer, log: log.WithField("module", "auth")}
}

// Login looks up the badge holder and issues a session token.
func (s *Service) Login(ctx context.Context, matricule string) (*Session, error) {
	matricule = strings.TrimSpace(matricule)
	if matricule == "" {
		return nil, apperr.Validation("matricule is required")
	}
	u, err := s.users.Get(ctx, matricule)
	if err != nil {
		return nil, apperr.Wrap(err, "look up user")
	}
	if u == nil {
		return nil, apperr.NotFound("user not found")
	}
	token, exp, err := s.issuer.Issue(*u)
	if err != nil {
		return nil, apperr.Wrap(err, "issue token")
	}
	s.log.WithFields(logrus.Fields{"matricule": u.Matricule, "role": u.Role}).Info("login")
	return &Session{Token: token, ExpiresAt: exp, User: *u}, nil
}

// Register creates a user. Used by the admin CLI.
func (s *Service) Register(ctx context.Context, u User) error {
	u.Matricule = strings.TrimSpace(u.Matricule)
	if u.Matricule == "" {
		return apperr.Validation("matricule is required")
	}
	role, ok := ParseRole(string(u.Role))
	if !ok {
		return apperr.Validation("unknown role %q", u.Role)
	}
	u.Role = role
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrUserExists) {
			return apperr.Conflict("user %s already exists", u.Matricule)
		}
		return apperr.Wrap(err, "create user")
	}
	return nil
}
