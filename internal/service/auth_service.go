package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"
	"vending-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuthServiceImpl implements ports.AuthService. The API key is checked
// either against an Argon2id hash or, when no hash is configured, against
// the plaintext key in constant time.
type AuthServiceImpl struct {
	apiKey   string
	keyHash  string
	hashSvc  ports.HashService
	tokenSvc ports.TokenService
	audit    ports.AuditService
	log      zerolog.Logger

	mu       sync.RWMutex
	verified [sha256.Size]byte // digest of the last key that matched keyHash
	hasCache bool
}

// NewAuthService creates a new AuthServiceImpl. At least one of apiKey and
// keyHash must be set.
func NewAuthService(
	apiKey, keyHash string,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	audit ports.AuditService,
	log zerolog.Logger,
) (*AuthServiceImpl, error) {
	if apiKey == "" && keyHash == "" {
		return nil, fmt.Errorf("auth: api_key or api_key_hash must be configured")
	}
	if keyHash != "" {
		if _, _, _, err := decodeArgon2(keyHash); err != nil {
			return nil, fmt.Errorf("auth: api_key_hash: %w", err)
		}
	}
	return &AuthServiceImpl{
		apiKey:   apiKey,
		keyHash:  keyHash,
		hashSvc:  hashSvc,
		tokenSvc: tokenSvc,
		audit:    audit,
		log:      log,
	}, nil
}

// VerifyAPIKey reports whether presented is the configured API key.
func (s *AuthServiceImpl) VerifyAPIKey(presented string) bool {
	if presented == "" {
		return false
	}
	if s.keyHash == "" {
		return subtle.ConstantTimeCompare([]byte(presented), []byte(s.apiKey)) == 1
	}

	// fast path for a key that already matched
	digest := sha256.Sum256([]byte(presented))
	s.mu.RLock()
	if s.hasCache && subtle.ConstantTimeCompare(digest[:], s.verified[:]) == 1 {
		s.mu.RUnlock()
		return true
	}
	s.mu.RUnlock()

	ok, err := s.hashSvc.Verify(presented, s.keyHash)
	if err != nil {
		s.log.Error().Err(err).Msg("api key hash verification failed")
		return false
	}
	if ok {
		s.mu.Lock()
		s.verified = digest
		s.hasCache = true
		s.mu.Unlock()
	}
	return ok
}

// IssueClientToken signs a wallet-API token for clientID.
func (s *AuthServiceImpl) IssueClientToken(ctx context.Context, clientID, ip string) (string, time.Time, error) {
	if clientID == "" {
		return "", time.Time{}, apperror.Validation("client_id is required")
	}

	token, expiry, err := s.tokenSvc.Generate(clientID)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	s.audit.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		Actor:        "admin",
		Action:       domain.AuditActionTokenIssue,
		ResourceType: "client_token",
		ResourceID:   clientID,
		IPAddress:    ip,
		CreatedAt:    time.Now().UTC(),
	})
	s.log.Info().Str("client_id", clientID).Time("expires_at", expiry).Msg("client token issued")

	return token, expiry, nil
}
