package apitest

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jonwraymond/storesync/session"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

var errTokenType = errors.New("apitest: wrong token type")

type claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// mintLocked signs a token pair for u and records the access token as
// valid.
func (s *Server) mintLocked(u User) (session.Tokens, error) {
	access, jti, err := s.sign(u, tokenAccess, s.opts.AccessTTL)
	if err != nil {
		return session.Tokens{}, err
	}
	refresh, _, err := s.sign(u, tokenRefresh, s.opts.RefreshTTL)
	if err != nil {
		return session.Tokens{}, err
	}
	s.access[jti] = u.ID
	return session.Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Server) sign(u User, typ string, ttl time.Duration) (string, string, error) {
	now := time.Now()
	jti := uuid.NewString()
	c := claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			Issuer:    "apitest",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	return signed, jti, err
}

func (s *Server) parse(raw, typ string) (*claims, error) {
	c := &claims{}
	_, err := jwt.ParseWithClaims(raw, c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer("apitest"))
	if err != nil {
		return nil, err
	}
	if c.Type != typ {
		return nil, errTokenType
	}
	return c, nil
}
