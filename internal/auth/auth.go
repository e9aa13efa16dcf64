// Package auth handles accounts and JWT tokens. Authentication is
// optional: requests without a valid token act as the shared default
// user, so the service works out of the box for single-user setups.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/paperforge/internal/db"
)

// DefaultUserID owns the sessions of unauthenticated requests.
const DefaultUserID = "default_user"

// ErrInvalidCredentials covers both unknown handles and bad passwords.
var ErrInvalidCredentials = errors.New("invalid credentials")

type Claims struct {
	UserID string `json:"user_id"`
	Handle string `json:"handle"`
	jwt.RegisteredClaims
}

// Service issues and validates tokens and manages accounts.
type Service struct {
	store  *db.DB
	secret []byte
	expiry time.Duration
}

func New(store *db.DB, secret string, expiryMinutes int) *Service {
	return &Service{
		store:  store,
		secret: []byte(secret),
		expiry: time.Duration(expiryMinutes) * time.Minute,
	}
}

// Register creates an account and returns a fresh token for it.
func (s *Service) Register(handle, password string) (string, *db.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}
	u, err := s.store.CreateUser(handle, string(hash))
	if err != nil {
		return "", nil, err
	}
	token, err := s.GenerateToken(u.UserID, u.Handle)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// Login verifies a handle and password and returns a token.
func (s *Service) Login(handle, password string) (string, *db.User, error) {
	u, err := s.store.GetUserByHandle(handle)
	if errors.Is(err, db.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.GenerateToken(u.UserID, u.Handle)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *Service) GenerateToken(userID, handle string) (string, error) {
	claims := Claims{
		UserID: userID,
		Handle: handle,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// ExtractClaims reads the JWT from the Authorization header (Bearer
// token). Returns nil if no valid token is present.
func (s *Service) ExtractClaims(r *http.Request) *Claims {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil
	}
	claims, err := s.ValidateToken(parts[1])
	if err != nil {
		return nil
	}
	return claims
}

// UserID resolves the requesting user, falling back to the shared
// default user when the request carries no valid token.
func (s *Service) UserID(r *http.Request) string {
	if claims := s.ExtractClaims(r); claims != nil {
		return claims.UserID
	}
	return DefaultUserID
}
