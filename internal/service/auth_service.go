package service

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/atcms-project/atcms-api/internal/models"
	"github.com/atcms-project/atcms-api/pkg/config"
	appErrors "github.com/atcms-project/atcms-api/pkg/errors"
)

type authUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	ExistsByEmailOrMatricule(ctx context.Context, email, matricule string) (bool, error)
	Create(ctx context.Context, user *models.User) error
}

type authFacultyRepository interface {
	FindByCode(ctx context.Context, code string) (*models.Faculty, error)
}

// AuthService handles registration, login and token issuance.
type AuthService struct {
	users     authUserRepository
	faculties authFacultyRepository
	cfg       config.JWTConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAuthService constructs the auth service.
func NewAuthService(users authUserRepository, faculties authFacultyRepository, cfg config.JWTConfig, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{users: users, faculties: faculties, cfg: cfg, validator: validate, logger: logger}
}

// Login authenticates by email or matricule. Both unknown identifier and bad
// password collapse into the same credentials error.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.users.FindByIdentifier(ctx, req.Identifier)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up account")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}
	if user.Status != models.StatusActive {
		return nil, appErrors.ErrInactiveAccount
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue token")
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return &models.AuthResponse{Token: token, User: user.Info()}, nil
}

// Register self-provisions a student account after checking the chosen
// faculty offers the chosen program.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	faculty, err := s.faculties.FindByCode(ctx, req.Faculty)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Validation("unknown faculty", appErrors.FieldError{Field: "faculty", Message: "faculty does not exist"})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	if !faculty.HasProgram(req.Program) {
		return nil, appErrors.Validation("unknown program", appErrors.FieldError{Field: "program", Message: "program is not offered by this faculty"})
	}

	exists, err := s.users.ExistsByEmailOrMatricule(ctx, req.Email, req.Matricule)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate identifiers")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email or matricule already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		Matricule:    &req.Matricule,
		Role:         models.RoleStudent,
		Faculty:      &req.Faculty,
		Program:      &req.Program,
		Status:       models.StatusActive,
		PasswordHash: string(hash),
	}
	if req.Phone != "" {
		user.Phone = &req.Phone
	}
	if problems := user.RoleFieldProblems(); len(problems) > 0 {
		return nil, appErrors.Validation("invalid profile for role", fieldErrors(problems)...)
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue token")
	}

	s.logger.Info("student registered", zap.String("user_id", user.ID), zap.String("matricule", req.Matricule))
	return &models.AuthResponse{Token: token, User: user.Info()}, nil
}

// AdminCreateUser provisions an account of any role, enforcing the
// role-conditional field rules.
func (s *AuthService) AdminCreateUser(ctx context.Context, req models.AdminCreateUserRequest) (*models.UserInfo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	if !models.ValidRole(req.Role) {
		return nil, appErrors.Validation("unknown role", appErrors.FieldError{Field: "role", Message: "role must be student, hod, coordinator or admin"})
	}

	user := &models.User{
		Name:   req.Name,
		Email:  req.Email,
		Role:   req.Role,
		Status: models.StatusActive,
	}
	if req.Matricule != "" {
		user.Matricule = &req.Matricule
	}
	if req.Faculty != "" {
		user.Faculty = &req.Faculty
	}
	if req.Program != "" {
		user.Program = &req.Program
	}
	if len(req.Programs) > 0 {
		user.Programs = append(user.Programs, req.Programs...)
	}
	if req.Phone != "" {
		user.Phone = &req.Phone
	}
	if problems := user.RoleFieldProblems(); len(problems) > 0 {
		return nil, appErrors.Validation("invalid profile for role", fieldErrors(problems)...)
	}

	if user.Faculty != nil {
		faculty, err := s.faculties.FindByCode(ctx, *user.Faculty)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Validation("unknown faculty", appErrors.FieldError{Field: "faculty", Message: "faculty does not exist"})
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
		}
		if user.Program != nil && !faculty.HasProgram(*user.Program) {
			return nil, appErrors.Validation("unknown program", appErrors.FieldError{Field: "program", Message: "program is not offered by this faculty"})
		}
		for _, program := range user.Programs {
			if !faculty.HasProgram(program) {
				return nil, appErrors.Validation("unknown program", appErrors.FieldError{Field: "programs", Message: "program " + program + " is not offered by this faculty"})
			}
		}
	}

	exists, err := s.users.ExistsByEmailOrMatricule(ctx, req.Email, req.Matricule)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate identifiers")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email or matricule already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user.PasswordHash = string(hash)

	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}

	s.logger.Info("account provisioned", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	info := user.Info()
	return &info, nil
}

// Me returns the authenticated user's profile.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	info := user.Info()
	return &info, nil
}

// ParseToken validates a bearer token and returns its claims.
func (s *AuthService) ParseToken(raw string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, appErrors.ErrUnauthorized
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.ErrUnauthorized
	}
	return claims, nil
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	now := time.Now().UTC()
	claims := models.JWTClaims{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.Expiration)),
		},
	}
	if user.Matricule != nil {
		claims.Matricule = *user.Matricule
	}
	if user.Faculty != nil {
		claims.Faculty = *user.Faculty
	}
	if user.Program != nil {
		claims.Program = *user.Program
	}
	if len(user.Programs) > 0 {
		claims.Programs = append(claims.Programs, user.Programs...)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.Secret))
}

// fieldErrors converts a problems map into sorted field error details.
func fieldErrors(problems map[string]string) []appErrors.FieldError {
	fields := make([]string, 0, len(problems))
	for field := range problems {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	details := make([]appErrors.FieldError, 0, len(fields))
	for _, field := range fields {
		details = append(details, appErrors.FieldError{Field: field, Message: problems[field]})
	}
	return details
}
