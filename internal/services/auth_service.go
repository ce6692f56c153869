// internal/services/auth_service.go
package services

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mermaid-studio/engine/internal/access"
	"github.com/mermaid-studio/engine/internal/models"
	"github.com/mermaid-studio/engine/internal/repository"
	appErr "github.com/mermaid-studio/engine/pkg/errors"
	"github.com/mermaid-studio/engine/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	ParseToken(token string) (access.Principal, error)
}

// Claims is the JWT payload issued on login.
type Claims struct {
	Admin bool     `json:"adm,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

type authService struct {
	userRepo   repository.UserRepository
	hmacSecret []byte
	adminEmail string
}

// NewAuthService signs tokens with secret. A user registering with
// adminEmail is created with the elevated role.
func NewAuthService(userRepo repository.UserRepository, secret []byte, adminEmail string) AuthService {
	return &authService{
		userRepo:   userRepo,
		hmacSecret: secret,
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
	}
}

var _ AuthService = (*authService)(nil)

func (s *authService) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var existing models.User
	err := s.userRepo.GetByEmail(ctx, email, &existing)
	if err == nil {
		return nil, appErr.New(appErr.CodeConflict, "email already registered").WithMeta("field", "email")
	}
	if !appErr.IsCode(err, appErr.CodeNotFound) {
		return nil, err
	}

	// Hash password
	ph, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "hash password failed")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(ph),
		Name:         name,
		IsAdmin:      s.adminEmail != "" && email == s.adminEmail,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.L().Info("user registered", zap.String("user_id", user.ID.String()), zap.Bool("admin", user.IsAdmin))
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	var user models.User
	if err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)), &user); err != nil {
		return "", nil, appErr.New(appErr.CodeUnauthorized, "invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, appErr.New(appErr.CodeUnauthorized, "invalid credentials")
	}

	// Generate JWT
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Admin: user.IsAdmin,
		Roles: user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	})

	tokenString, err := token.SignedString(s.hmacSecret)
	if err != nil {
		return "", nil, appErr.Wrap(err, appErr.CodeInternal, "sign token failed")
	}

	return tokenString, &user, nil
}

// ParseToken verifies an HS256 token and returns the caller it names.
func (s *authService) ParseToken(tokenString string) (access.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return s.hmacSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return access.Principal{}, appErr.Wrap(err, appErr.CodeUnauthorized, "invalid token")
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return access.Principal{}, appErr.Wrap(err, appErr.CodeUnauthorized, "invalid token subject")
	}
	return access.Principal{UserID: uid, IsAdmin: claims.Admin, Roles: claims.Roles}, nil
}
