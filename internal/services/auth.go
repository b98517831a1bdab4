package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yungbote/noc-backend/internal/data/repos"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/auth"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
	"github.com/yungbote/noc-backend/internal/pkg/ctxutil"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/logger"
)

const minPasswordLength = 8

type RegisterInput struct {
	TenantName  string `json:"tenant_name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

type CreateUserInput struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	Role        string `json:"role" binding:"required"`
	DisplayName string `json:"display_name"`
}

type AuthService interface {
	Register(dbc dbctx.Context, in RegisterInput) (*types.User, *types.Tenant, error)
	Login(dbc dbctx.Context, email, password string) (string, *types.User, error)
	CreateUser(dbc dbctx.Context, in CreateUserInput) (*types.User, error)
	Me(dbc dbctx.Context) (*types.User, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	GetAccessTTL() time.Duration
}

// JWTClaims carry enough to authorize a request without a user lookup.
type JWTClaims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	db           *gorm.DB
	log          *logger.Logger
	tenantRepo   repos.TenantRepo
	userRepo     repos.UserRepo
	jwtSecretKey string
	accessTTL    time.Duration
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	tenantRepo repos.TenantRepo,
	userRepo repos.UserRepo,
	jwtSecretKey string,
	accessTTL time.Duration,
) AuthService {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &authService{
		db:           db,
		log:          log.With("service", "AuthService"),
		tenantRepo:   tenantRepo,
		userRepo:     userRepo,
		jwtSecretKey: jwtSecretKey,
		accessTTL:    accessTTL,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return apierr.Invalid("invalid_email", "invalid email %q", email)
	}
	if len(password) < minPasswordLength {
		return apierr.Invalid("weak_password", "password must be at least %d characters", minPasswordLength)
	}
	return nil
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases name and joins alphanumeric runs with '-'.
func Slugify(name string) string {
	s := slugUnsafe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "tenant"
	}
	if len(s) > 48 {
		s = strings.TrimRight(s[:48], "-")
	}
	return s
}

func (as *authService) Register(dbc dbctx.Context, in RegisterInput) (*types.User, *types.Tenant, error) {
	email := normalizeEmail(in.Email)
	if err := validateCredentials(email, in.Password); err != nil {
		return nil, nil, err
	}
	name := strings.TrimSpace(in.TenantName)
	if name == "" {
		return nil, nil, apierr.Invalid("missing_tenant_name", "tenant name is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	var user *types.User
	var tenant *types.Tenant
	err = inTx(as.db, dbc, func(inner dbctx.Context) error {
		exists, err := as.userRepo.EmailExists(inner, email)
		if err != nil {
			return err
		}
		if exists {
			return apierr.Conflict("email_taken", "email already registered")
		}
		slug, err := as.uniqueSlug(inner, Slugify(name))
		if err != nil {
			return err
		}
		tenant, err = as.tenantRepo.Create(inner, &types.Tenant{Slug: slug, Name: name})
		if err != nil {
			return fmt.Errorf("create tenant: %w", err)
		}
		created, err := as.userRepo.Create(inner, []*types.User{{
			TenantID:     tenant.ID,
			Email:        email,
			PasswordHash: string(hash),
			Role:         auth.RoleAdmin,
			DisplayName:  strings.TrimSpace(in.DisplayName),
		}})
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apierr.Conflict("email_taken", "email already registered")
			}
			return fmt.Errorf("create user: %w", err)
		}
		user = created[0]
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	as.log.Info("Tenant registered", "tenant_id", tenant.ID, "slug", tenant.Slug, "user_id", user.ID)
	return user, tenant, nil
}

func (as *authService) uniqueSlug(dbc dbctx.Context, base string) (string, error) {
	slug := base
	for i := 2; i < 100; i++ {
		exists, err := as.tenantRepo.SlugExists(dbc, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(i)
	}
	return base + "-" + uuid.NewString()[:8], nil
}

func (as *authService) Login(dbc dbctx.Context, email, password string) (string, *types.User, error) {
	email = normalizeEmail(email)
	user, err := as.userRepo.GetByEmail(dbc, email)
	if err != nil {
		return "", nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return "", nil, apierr.Unauthorized("invalid_credentials", "invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, apierr.Unauthorized("invalid_credentials", "invalid email or password")
	}
	tok, err := as.generateAccessToken(user)
	if err != nil {
		return "", nil, fmt.Errorf("generate access token: %w", err)
	}
	now := time.Now().UTC()
	if err := as.userRepo.TouchLogin(dbc, user.ID, now); err != nil {
		as.log.Warn("Touch login failed", "user_id", user.ID, "error", err)
	} else {
		user.LastLoginAt = &now
	}
	return tok, user, nil
}

func (as *authService) CreateUser(dbc dbctx.Context, in CreateUserInput) (*types.User, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthorized("unauthenticated", "not authenticated")
	}
	if !rd.Can(auth.CapUsersManage) {
		return nil, apierr.Forbidden("forbidden", "missing capability %s", auth.CapUsersManage)
	}
	email := normalizeEmail(in.Email)
	if err := validateCredentials(email, in.Password); err != nil {
		return nil, err
	}
	if !auth.ValidRole(in.Role) {
		return nil, apierr.Invalid("invalid_role", "unknown role %q", in.Role)
	}
	exists, err := as.userRepo.EmailExists(dbc, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apierr.Conflict("email_taken", "email already registered")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	created, err := as.userRepo.Create(dbc, []*types.User{{
		TenantID:     rd.TenantID,
		Email:        email,
		PasswordHash: string(hash),
		Role:         in.Role,
		DisplayName:  strings.TrimSpace(in.DisplayName),
	}})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apierr.Conflict("email_taken", "email already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created[0], nil
}

func (as *authService) Me(dbc dbctx.Context) (*types.User, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.Unauthorized("unauthenticated", "not authenticated")
	}
	user, err := as.userRepo.GetByID(dbc, rd.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.TenantID != rd.TenantID {
		return nil, apierr.NotFound("user_not_found", "user %s", rd.UserID)
	}
	return user, nil
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		TenantID: user.TenantID.String(),
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, apierr.Unauthorized("missing_token", "missing token")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return ctx, apierr.Unauthorized("invalid_token", "parse token: %v", err)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, apierr.Unauthorized("invalid_token", "invalid or expired token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, apierr.Unauthorized("invalid_token", "invalid user id in token")
	}
	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return ctx, apierr.Unauthorized("invalid_token", "invalid tenant id in token")
	}
	rd := &ctxutil.RequestData{
		TokenString:  tokenString,
		UserID:       userID,
		TenantID:     tenantID,
		Role:         claims.Role,
		Capabilities: auth.Capabilities(claims.Role),
	}
	return ctxutil.WithRequestData(ctx, rd), nil
}

func (as *authService) GetAccessTTL() time.Duration {
	return as.accessTTL
}
