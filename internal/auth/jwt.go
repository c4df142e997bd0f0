package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidSubject = errors.New("token subject is not a user id")

type Config struct {
	Secret        string
	RefreshSecret string
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type JWTAuthenticator struct {
	cfg Config
	now func() time.Time
}

func NewJWTAuthenticator(cfg Config) *JWTAuthenticator {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 72 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 9 * 24 * time.Hour
	}
	return &JWTAuthenticator{cfg: cfg, now: time.Now}
}

// GenerateTokens generates both access and refresh tokens
func (a *JWTAuthenticator) GenerateTokens(userID int64) (string, string, error) {
	now := a.now()
	accessClaims := jwt.MapClaims{
		"sub": userID,
		"exp": now.Add(a.cfg.AccessTTL).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"iss": a.cfg.Issuer,
		"aud": a.cfg.Audience,
	}
	refreshClaims := jwt.MapClaims{
		"sub": userID,
		"exp": now.Add(a.cfg.RefreshTTL).Unix(),
		"iat": now.Unix(),
		"iss": a.cfg.Issuer,
	}

	accessToken, err := sign(accessClaims, a.cfg.Secret)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := sign(refreshClaims, a.cfg.RefreshSecret)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func sign(claims jwt.Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (a *JWTAuthenticator) ValidateAccessToken(token string) (*jwt.Token, error) {
	return a.parse(token, a.cfg.Secret, jwt.WithAudience(a.cfg.Audience))
}

func (a *JWTAuthenticator) ValidateRefreshToken(token string) (*jwt.Token, error) {
	return a.parse(token, a.cfg.RefreshSecret)
}

func (a *JWTAuthenticator) parse(token, secret string, extra ...jwt.ParserOption) (*jwt.Token, error) {
	opts := append([]jwt.ParserOption{
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(a.cfg.Issuer),
		jwt.WithTimeFunc(a.now),
	}, extra...)
	return jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, opts...)
}

// UserID reads the numeric "sub" claim of a validated token.
func UserID(token *jwt.Token) (int64, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidSubject
	}
	sub, ok := claims["sub"].(float64)
	if !ok || sub <= 0 {
		return 0, ErrInvalidSubject
	}
	return int64(sub), nil
}
