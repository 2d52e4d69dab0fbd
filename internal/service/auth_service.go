package service

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stemsi/exam-engine/internal/config"
)

// Claims extends JWT standard claims with the candidate identity the engine
// needs. Token issuance belongs to the identity collaborator; this service
// only validates.
type Claims struct {
	jwt.RegisteredClaims
	CandidateID int `json:"candidate_id"`
}

// AuthService validates bearer tokens issued by the identity collaborator.
type AuthService struct {
	cfg *config.Config
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg}
}

// ValidateToken parses and verifies a candidate JWT.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.CandidateID <= 0 {
		return nil, errors.New("token has no candidate identity")
	}
	return claims, nil
}
