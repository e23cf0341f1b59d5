// Package auth authenticates parking operators and issues the JWTs the HTTP
// API expects.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

var tracer = otel.Tracer("parking-manager/auth")

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

type Operator struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	PasswordHash string `json:"-"`
}

type Claims struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

type Service struct {
	operators map[string]Operator
	secret    []byte
	expiresIn time.Duration
	now       func() time.Time
}

func NewService(operators []Operator, secret string, expiresIn time.Duration) *Service {
	byName := make(map[string]Operator, len(operators))
	for _, op := range operators {
		byName[op.Username] = op
	}
	return &Service{
		operators: byName,
		secret:    []byte(secret),
		expiresIn: expiresIn,
		now:       time.Now,
	}
}

// DefaultOperators hashes password for the built-in accounts.
func DefaultOperators(password string, cost int) ([]Operator, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash operator password: %w", err)
	}
	return []Operator{
		{ID: 1, Username: "admin", Name: "Administrador", Role: RoleAdmin, PasswordHash: string(hash)},
		{ID: 2, Username: "operador01", Name: "Operador Turno Mañana", Role: RoleOperator, PasswordHash: string(hash)},
		{ID: 3, Username: "operador02", Name: "Operador Turno Tarde", Role: RoleOperator, PasswordHash: string(hash)},
	}, nil
}

// Operator returns the account a verified token was issued to.
func (s *Service) Operator(username string) (Operator, bool) {
	op, ok := s.operators[username]
	return op, ok
}

// Login checks the password and returns a signed token. Unknown usernames and
// wrong passwords fail the same way.
func (s *Service) Login(ctx context.Context, username, password string) (string, Operator, error) {
	_, span := tracer.Start(ctx, "auth.login")
	defer span.End()

	span.SetAttributes(attribute.String("operator.username", username))

	op, ok := s.operators[username]
	if !ok {
		span.SetAttributes(attribute.Bool("login.success", false))
		return "", Operator{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		span.SetAttributes(attribute.Bool("login.success", false))
		return "", Operator{}, ErrInvalidCredentials
	}

	token, err := s.generateToken(op)
	if err != nil {
		return "", Operator{}, err
	}

	span.SetAttributes(
		attribute.Int64("operator.id", op.ID),
		attribute.Bool("login.success", true),
	)
	return token, op, nil
}

func (s *Service) generateToken(op Operator) (string, error) {
	now := s.now()
	claims := Claims{
		Username: op.Username,
		Role:     op.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(op.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
