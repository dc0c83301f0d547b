package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-performance-api/internal/models"
	appErrors "github.com/noah-isme/sma-performance-api/pkg/errors"
)

// ServiceClient is a machine client allowed to exchange its secret for an access token.
type ServiceClient struct {
	ID         string
	SecretHash string
	Role       models.UserRole
}

// AuthConfig defines configuration for token issuance and validation.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	Clients           []ServiceClient
}

// AuthService validates access tokens and issues tokens to configured service clients.
type AuthService struct {
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	clients   map[string]ServiceClient
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = time.Hour
	}
	clients := make(map[string]ServiceClient, len(config.Clients))
	for _, client := range config.Clients {
		if client.Role == "" {
			client.Role = models.RoleService
		}
		clients[client.ID] = client
	}
	return &AuthService{validator: validate, logger: logger, config: config, clients: clients}
}

// IssueClientToken verifies client credentials and returns a signed access token.
func (s *AuthService) IssueClientToken(ctx context.Context, req models.ClientTokenRequest) (*models.ClientTokenResponse, error) {
	if err := s.validator.StructCtx(ctx, req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid token request")
	}

	client, ok := s.clients[strings.TrimSpace(req.ClientID)]
	if !ok {
		s.logger.Warn("unknown client requested token", zap.String("client_id", req.ClientID))
		return nil, appErrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(req.ClientSecret)); err != nil {
		s.logger.Warn("client secret mismatch", zap.String("client_id", client.ID))
		return nil, appErrors.ErrInvalidCredentials
	}

	claims := &models.JWTClaims{UserID: client.ID, Role: client.Role}
	signed, issuedAt, expiresAt, err := s.sign(claims)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	s.logger.Info("issued client token", zap.String("client_id", client.ID), zap.String("role", string(client.Role)))
	return &models.ClientTokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(expiresAt.Sub(issuedAt).Seconds()),
		IssuedAt:    issuedAt,
	}, nil
}

// IssueToken signs claims for a user authenticated elsewhere, such as the school portal.
func (s *AuthService) IssueToken(claims *models.JWTClaims) (string, error) {
	signed, _, _, err := s.sign(claims)
	return signed, err
}

func (s *AuthService) sign(claims *models.JWTClaims) (string, time.Time, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    s.config.Issuer,
		Subject:   claims.UserID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	return signed, issuedAt, expiresAt, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithIssuer(s.config.Issuer))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}
