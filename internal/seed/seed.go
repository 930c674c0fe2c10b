package seed

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/atcms-project/atcms-api/internal/models"
	"github.com/atcms-project/atcms-api/internal/repository"
)

// Seeder bootstraps faculty reference data and the initial staff accounts.
// Every step is idempotent so it can run on each startup.
type Seeder struct {
	users     *repository.UserRepository
	faculties *repository.FacultyRepository
	logger    *zap.Logger
}

// New constructs a Seeder.
func New(users *repository.UserRepository, faculties *repository.FacultyRepository, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{users: users, faculties: faculties, logger: logger}
}

// Run seeds faculties first, then staff accounts. Staff seeding is skipped
// entirely once any user exists, matching a fresh-install-only bootstrap.
func (s *Seeder) Run(ctx context.Context) error {
	if err := s.seedFaculties(ctx); err != nil {
		return err
	}
	return s.seedStaff(ctx)
}

func (s *Seeder) seedFaculties(ctx context.Context) error {
	faculties := []models.Faculty{
		{
			Name: "College of Engineering",
			Code: "COT",
			Programs: models.ProgramList{
				{Name: "Computer Engineering", Code: "CEC"},
				{Name: "Electrical Engineering", Code: "EEC"},
				{Name: "Mechanical Engineering", Code: "MEC"},
			},
		},
		{
			Name: "Faculty of Science",
			Code: "SCI",
			Programs: models.ProgramList{
				{Name: "Mathematics", Code: "MATH"},
				{Name: "Physics", Code: "PHYS"},
				{Name: "Chemistry", Code: "CHEM"},
			},
		},
		{
			Name: "Faculty of Arts",
			Code: "ART",
			Programs: models.ProgramList{
				{Name: "Literature", Code: "LIT"},
				{Name: "History", Code: "HIST"},
			},
		},
	}

	for i := range faculties {
		if err := s.faculties.Upsert(ctx, &faculties[i]); err != nil {
			return fmt.Errorf("seed faculties: %w", err)
		}
	}

	s.logger.Info("faculty seed complete", zap.Int("faculties", len(faculties)))
	return nil
}

type staffAccount struct {
	name     string
	email    string
	password string
	role     models.UserRole
	faculty  string
	program  string
	programs []string
}

func (s *Seeder) seedStaff(ctx context.Context) error {
	admins, err := s.users.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("seed staff: %w", err)
	}
	if admins > 0 {
		s.logger.Info("staff seed skipped, admin account already present")
		return nil
	}

	accounts := []staffAccount{
		{name: "System Admin", email: "admin@atcms.com", password: "admin123", role: models.RoleAdmin},
		{name: "Eng Coordinator", email: "eng.coord@atcms.com", password: "coord123", role: models.RoleCoordinator, faculty: "COT", programs: []string{"CEC", "EEC", "MEC"}},
		{name: "Sci Coordinator", email: "sci.coord@atcms.com", password: "coord123", role: models.RoleCoordinator, faculty: "SCI", programs: []string{"MATH", "PHYS", "CHEM"}},
		{name: "Art Coordinator", email: "art.coord@atcms.com", password: "coord123", role: models.RoleCoordinator, faculty: "ART", programs: []string{"LIT", "HIST"}},
		{name: "Computer Eng HOD", email: "cec.hod@atcms.com", password: "hod123", role: models.RoleHOD, faculty: "COT", program: "CEC"},
		{name: "Electrical Eng HOD", email: "eec.hod@atcms.com", password: "hod123", role: models.RoleHOD, faculty: "COT", program: "EEC"},
		{name: "Mechanical Eng HOD", email: "mec.hod@atcms.com", password: "hod123", role: models.RoleHOD, faculty: "COT", program: "MEC"},
		{name: "Mathematics HOD", email: "math.hod@atcms.com", password: "hod123", role: models.RoleHOD, faculty: "SCI", program: "MATH"},
		{name: "Physics HOD", email: "phy.hod@atcms.com", password: "hod123", role: models.RoleHOD, faculty: "SCI", program: "PHYS"},
		{name: "Literature HOD", email: "lit.hod@atcms.com", password: "hod123", role: models.RoleHOD, faculty: "ART", program: "LIT"},
	}

	created := 0
	for _, account := range accounts {
		exists, err := s.users.ExistsByEmailOrMatricule(ctx, account.email, "")
		if err != nil {
			return fmt.Errorf("seed staff: %w", err)
		}
		if exists {
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(account.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("seed staff: hash password for %s: %w", account.email, err)
		}

		user := models.User{
			Name:         account.name,
			Email:        account.email,
			Role:         account.role,
			Status:       models.StatusActive,
			PasswordHash: string(hash),
			Programs:     account.programs,
		}
		if account.faculty != "" {
			faculty := account.faculty
			user.Faculty = &faculty
		}
		if account.program != "" {
			program := account.program
			user.Program = &program
		}

		if err := s.users.Create(ctx, &user); err != nil {
			s.logger.Error("failed to seed staff account", zap.String("email", account.email), zap.Error(err))
			continue
		}
		created++
	}

	s.logger.Info("staff seed complete", zap.Int("created", created))
	return nil
}
