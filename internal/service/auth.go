package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Skotchmaster/auth_service/internal/events"
	"github.com/Skotchmaster/auth_service/internal/hash"
	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/models"
	"github.com/Skotchmaster/auth_service/internal/repo"
	"github.com/Skotchmaster/auth_service/internal/roles"
	"github.com/Skotchmaster/auth_service/internal/session"
	"github.com/Skotchmaster/auth_service/internal/tokens"
)

const publishTimeout = 5 * time.Second

type AuthService struct {
	Repo     *repo.GormRepo
	Sessions *session.Manager
	Events   events.Publisher
}

// Result is what a successful register, login or refresh hands back to the
// transport layer.
type Result struct {
	User *models.User
	Pair session.Pair
}

func payloadFor(u *models.User) tokens.Payload {
	return tokens.Payload{
		Subject: strconv.FormatUint(uint64(u.ID), 10),
		Role:    roles.Role(u.Role),
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	in = in.normalized()
	if err := validateRegister(in); err != nil {
		l.Warn("register_failed", "status", 400, "reason", "validation", "error", err)
		return nil, err
	}
	l.Debug("register_request", "email", in.Email, "first_name", in.FirstName, "last_name", in.LastName)

	taken, err := s.Repo.EmailTaken(ctx, in.Email)
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "db_error", "error", err)
		return nil, err
	}
	if taken {
		l.Warn("register_failed", "status", 400, "reason", "email_taken")
		return nil, ErrEmailTaken
	}

	pwHash, err := hash.HashPassword(in.Password)
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: pwHash,
		Role:         roles.Customer.String(),
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			l.Warn("register_failed", "status", 400, "reason", "email_taken")
			return nil, ErrEmailTaken
		}
		l.Error("register_failed", "status", 500, "reason", "db_error", "error", err)
		return nil, err
	}
	l.Info("user_created", "user_id", user.ID)

	pair, err := s.Sessions.IssuePair(ctx, payloadFor(user))
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "issue_tokens", "user_id", user.ID, "error", err)
		return nil, err
	}

	s.publish(ctx, events.TypeUserRegistered, user)
	return &Result{User: user, Pair: pair}, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Result, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	in = in.normalized()
	if err := validateLogin(in); err != nil {
		l.Warn("login_failed", "status", 400, "reason", "validation", "error", err)
		return nil, err
	}

	user, err := s.Repo.FindUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			l.Warn("login_failed", "status", 400, "reason", "unknown email")
			return nil, ErrAuthentication
		}
		l.Error("login_failed", "status", 500, "reason", "db_error", "error", err)
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, in.Password) {
		l.Warn("login_failed", "status", 400, "reason", "password mismatch", "user_id", user.ID)
		return nil, ErrAuthentication
	}

	pair, err := s.Sessions.IssuePair(ctx, payloadFor(user))
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "issue_tokens", "user_id", user.ID, "error", err)
		return nil, err
	}

	l.Info("login_successful", "user_id", user.ID)
	s.publish(ctx, events.TypeUserLoggedIn, user)
	return &Result{User: user, Pair: pair}, nil
}

// Self loads the user named by a verified access token.
func (s *AuthService) Self(ctx context.Context, p tokens.Payload) (*models.User, error) {
	return s.userFor(ctx, p)
}

// Refresh verifies the refresh token, reloads the user so a changed role
// takes effect, and rotates the pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Result, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	p, ledgerID, err := s.Sessions.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "error", err)
		return nil, err
	}

	user, err := s.userFor(ctx, p)
	if err != nil {
		l.Warn("refresh_failed", "status", 400, "reason", "user lookup", "subject", p.Subject, "error", err)
		return nil, err
	}
	p.Role = roles.Role(user.Role)

	pair, err := s.Sessions.RotateRefresh(ctx, ledgerID, p)
	if err != nil {
		l.Warn("refresh_failed", "reason", "rotate", "ledger_id", ledgerID, "error", err)
		return nil, err
	}

	l.Info("token_rotated", "user_id", user.ID, "old_ledger_id", ledgerID, "new_ledger_id", pair.LedgerID)
	s.publish(ctx, events.TypeTokenRotated, user)
	return &Result{User: user, Pair: pair}, nil
}

// Logout revokes the ledger record behind refreshToken. Tokens that no longer
// verify have nothing to revoke, so only storage failures are returned.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")
	if refreshToken == "" {
		return nil
	}

	p, ledgerID, err := s.Sessions.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		if isTokenError(err) {
			l.Info("logout_noop", "reason", err.Error())
			return nil
		}
		l.Error("logout_failed", "status", 500, "error", err)
		return err
	}

	if err := s.Sessions.Revoke(ctx, ledgerID); err != nil {
		l.Error("logout_failed", "status", 500, "reason", "cannot revoke refreshToken", "error", err)
		return err
	}

	l.Info("successful_logout", "subject", p.Subject, "ledger_id", ledgerID)
	if id, err := strconv.ParseUint(p.Subject, 10, 0); err == nil {
		s.publish(ctx, events.TypeUserLoggedOut, &models.User{ID: uint(id), Role: p.Role.String()})
	}
	return nil
}

func (s *AuthService) userFor(ctx context.Context, p tokens.Payload) (*models.User, error) {
	id, err := strconv.ParseUint(p.Subject, 10, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: subject %q", ErrUserNotFound, p.Subject)
	}
	user, err := s.Repo.GetUserByID(ctx, uint(id))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) publish(ctx context.Context, typ string, u *models.User) {
	if s.Events == nil {
		return
	}
	e := events.New(typ, u.ID)
	e.Email = u.Email
	e.Role = u.Role

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.Events.Publish(pctx, e); err != nil {
		logging.FromContext(ctx).Error("event_publish_failed", "type", typ, "user_id", u.ID, "error", err)
	}
}

func isTokenError(err error) bool {
	return errors.Is(err, tokens.ErrInvalidToken) ||
		errors.Is(err, tokens.ErrMalformedToken) ||
		errors.Is(err, tokens.ErrExpiredToken) ||
		errors.Is(err, tokens.ErrRevokedToken)
}
