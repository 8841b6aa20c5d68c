package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionTokenTTL = 24 * time.Hour
	deviceTokenTTL  = 90 * 24 * time.Hour
)

// TokenService issues and verifies the HS256 tokens used for browser
// sessions and paired companion devices.
type TokenService struct {
	secret []byte
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// IssueSession returns a signed session token for the given user.
func (s *TokenService) IssueSession(userID string) (string, error) {
	return s.sign(jwt.MapClaims{
		"sub": userID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(sessionTokenTTL).Unix(),
	})
}

// IssueDeviceToken returns a long-lived signed token bound to a pairing
// code, handed out when a companion device registers.
func (s *TokenService) IssueDeviceToken(userID, deviceCode string) (string, error) {
	return s.sign(jwt.MapClaims{
		"sub":    userID,
		"device": deviceCode,
		"iat":    time.Now().Unix(),
		"exp":    time.Now().Add(deviceTokenTTL).Unix(),
	})
}

func (s *TokenService) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify validates a token and returns the user ID it was issued for.
func (s *TokenService) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		sub, ok := claims["sub"].(string)
		if !ok || sub == "" {
			return "", fmt.Errorf("token has no subject")
		}
		return sub, nil
	}

	return "", fmt.Errorf("invalid token")
}
