// Package utils holds token helpers shared by the auth middleware and
// operator tooling.
package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed JWT and its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// Claims are the identity fields the API reads from a token.
type Claims struct {
	UID  string
	Role string
}

// NewAccessToken signs an HS256 JWT carrying sub (the user id), role, exp
// and iat.
func NewAccessToken(secret, uid, role string, ttl time.Duration) (AccessToken, error) {
	if uid == "" {
		return AccessToken{}, errors.New("uid is required")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  uid,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken validates raw against secret and returns its claims.
// Only HMAC signed tokens with a string subject are accepted.
func ParseAccessToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, err
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return Claims{}, errors.New("invalid claims")
	}
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, errors.New("token has no subject")
	}
	role, _ := mc["role"].(string)
	return Claims{UID: sub, Role: role}, nil
}
