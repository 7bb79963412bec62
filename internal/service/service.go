package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"communitysite/internal/auth"
	"communitysite/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid milestone token")
)

var tokenPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Store is the persistence the service needs; *repo.Repo implements it.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash string) (string, error)
	GetUserByEmail(ctx context.Context, email string) (string, string, error)
	GetUserByID(ctx context.Context, userID string) (models.User, error)
	CreateSession(ctx context.Context, userID, token string, expiresAt time.Time) error
	AddUserMilestones(ctx context.Context, userID string, tokens []string) (int, error)
	ListUserMilestones(ctx context.Context, userID string) ([]string, error)
	CreateContactSubmission(ctx context.Context, s models.ContactSubmission) (string, error)
}

type Service struct {
	Repo      Store
	Auth      *auth.Manager
	TokenTTL  time.Duration
	RefreshTT time.Duration
}

func New(repo Store, authManager *auth.Manager) *Service {
	return &Service{Repo: repo, Auth: authManager, TokenTTL: time.Hour, RefreshTT: 7 * 24 * time.Hour}
}

func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	hash, err := s.Auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	return s.Repo.CreateUser(ctx, strings.ToLower(strings.TrimSpace(email)), hash)
}

func (s *Service) Login(ctx context.Context, email, password string) (string, string, error) {
	userID, hash, err := s.Repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", "", ErrInvalidCredentials
	}
	if err := s.Auth.ComparePassword(hash, password); err != nil {
		return "", "", ErrInvalidCredentials
	}
	accessToken, err := s.Auth.GenerateToken(userID, s.TokenTTL)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := s.generateRefreshToken()
	if err != nil {
		return "", "", err
	}
	if err := s.Repo.CreateSession(ctx, userID, refreshToken, time.Now().Add(s.RefreshTT)); err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// SaveUserMilestones stores the visitor's full token set for the account.
// It accepts only hash tokens, never raw milestone ids.
func (s *Service) SaveUserMilestones(ctx context.Context, userID string, tokens []string) (bool, error) {
	for _, token := range tokens {
		if !tokenPattern.MatchString(token) {
			return false, fmt.Errorf("%w: %q", ErrInvalidToken, token)
		}
	}
	if _, err := s.Repo.AddUserMilestones(ctx, userID, tokens); err != nil {
		return false, err
	}
	return true, nil
}

// Account loads the user a token was issued for. Accounts deleted since then
// come back as repo.ErrNotFound.
func (s *Service) Account(ctx context.Context, userID string) (models.User, error) {
	return s.Repo.GetUserByID(ctx, userID)
}

func (s *Service) UserMilestones(ctx context.Context, userID string) ([]string, error) {
	return s.Repo.ListUserMilestones(ctx, userID)
}

func (s *Service) SubmitContact(ctx context.Context, submission models.ContactSubmission) (string, error) {
	return s.Repo.CreateContactSubmission(ctx, submission)
}

func (s *Service) generateRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
