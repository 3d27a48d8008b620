package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skillswap-api/internal/dto"
	"github.com/noah-isme/skillswap-api/internal/identity"
	"github.com/noah-isme/skillswap-api/internal/repository"
	"github.com/noah-isme/skillswap-api/pkg/apperrors"
)

// SessionService issues and revokes caller identities. Login is a mock of the
// campus identity provider: any well formed net id is accepted.
type SessionService interface {
	Login(ctx context.Context, req dto.SessionCreateRequest) (dto.SessionResponse, error)
	Logout(ctx context.Context, caller identity.Identity) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type sessionService struct {
	profiles     repository.ProfileRepository
	redis        *redis.Client
	revokePrefix string
	secret       []byte
	ttl          time.Duration
	validator    *validator.Validate
	logger       zerolog.Logger
	now          func() time.Time
}

// NewSessionService constructs the session service.
func NewSessionService(profiles repository.ProfileRepository, redisClient *redis.Client, channelBase string, secret string, ttl time.Duration, validate *validator.Validate, logger zerolog.Logger) SessionService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if channelBase == "" {
		channelBase = "skillswap"
	}

	return &sessionService{
		profiles:     profiles,
		redis:        redisClient,
		revokePrefix: channelBase + ":session:revoked:",
		secret:       []byte(secret),
		ttl:          ttl,
		validator:    validate,
		logger:       logger.With().Str("component", "session_service").Logger(),
		now:          time.Now,
	}
}

func (s *sessionService) Login(ctx context.Context, req dto.SessionCreateRequest) (dto.SessionResponse, error) {
	req.NetID = normalizeNetID(req.NetID)
	if err := validate(s.validator, req); err != nil {
		return dto.SessionResponse{}, err
	}

	profileExists := true
	if _, err := s.profiles.FindByNetID(ctx, req.NetID); err != nil {
		if !apperrors.IsNotFound(err) {
			return dto.SessionResponse{}, err
		}
		profileExists = false
	}

	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   req.NetID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return dto.SessionResponse{}, apperrors.Wrap(apperrors.CodeInternal, "failed to sign session token", err)
	}

	s.logger.Info().Str("net_id", req.NetID).Bool("profile_exists", profileExists).Msg("session issued")

	return dto.SessionResponse{
		Token:         token,
		NetID:         req.NetID,
		ExpiresAt:     expiresAt,
		ProfileExists: profileExists,
	}, nil
}

func (s *sessionService) Logout(ctx context.Context, caller identity.Identity) error {
	if caller.NetID == "" {
		return apperrors.Unauthorized("no active session")
	}
	if caller.TokenID == "" || s.redis == nil {
		return nil
	}

	ttl := time.Until(caller.ExpiresAt)
	if caller.ExpiresAt.IsZero() || ttl > s.ttl {
		ttl = s.ttl
	}
	if ttl <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, s.revokePrefix+caller.TokenID, caller.NetID, ttl).Err(); err != nil {
		return apperrors.Storage("failed to revoke session", err)
	}

	s.logger.Info().Str("net_id", caller.NetID).Msg("session revoked")
	return nil
}

func (s *sessionService) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if s.redis == nil || tokenID == "" {
		return false, nil
	}

	count, err := s.redis.Exists(ctx, s.revokePrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("check session revocation: %w", err)
	}
	return count > 0, nil
}
