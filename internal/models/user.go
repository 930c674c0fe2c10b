package models

import (
	"time"

	"github.com/lib/pq"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent     UserRole = "student"
	RoleHOD         UserRole = "hod"
	RoleCoordinator UserRole = "coordinator"
	RoleAdmin       UserRole = "admin"
)

// StaffRoles lists every role allowed to act on entities it does not own.
var StaffRoles = []UserRole{RoleHOD, RoleCoordinator, RoleAdmin}

// ValidRole reports whether the role is one of the known roles.
func ValidRole(r UserRole) bool {
	switch r {
	case RoleStudent, RoleHOD, RoleCoordinator, RoleAdmin:
		return true
	}
	return false
}

// UserStatus is the account activation state.
type UserStatus string

const (
	StatusActive   UserStatus = "Active"
	StatusInactive UserStatus = "Inactive"
)

// User represents an application user stored in the users table.
//
// Which of matricule/faculty/program/programs are set is dictated by the role;
// see RoleFieldProblems.
type User struct {
	ID           string         `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	Email        string         `db:"email" json:"email"`
	Matricule    *string        `db:"matricule" json:"matricule,omitempty"`
	Role         UserRole       `db:"role" json:"role"`
	Faculty      *string        `db:"faculty" json:"faculty,omitempty"`
	Program      *string        `db:"program" json:"program,omitempty"`
	Programs     pq.StringArray `db:"programs" json:"programs,omitempty"`
	Status       UserStatus     `db:"status" json:"status"`
	PasswordHash string         `db:"password_hash" json:"-"`
	Phone        *string        `db:"phone" json:"phone,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// IsStaff reports whether the user holds a staff role.
func (u *User) IsStaff() bool {
	return u.Role == RoleHOD || u.Role == RoleCoordinator || u.Role == RoleAdmin
}

// RoleFieldProblems checks the role-conditional field table and returns a
// problem message per violated rule. An empty result means the profile is
// consistent with its role:
//
//	student:     matricule, faculty, program required; programs forbidden
//	hod:         faculty, program required; programs forbidden
//	coordinator: faculty, non-empty programs required; program forbidden
//	admin:       matricule, faculty, program, programs all forbidden
func (u *User) RoleFieldProblems() map[string]string {
	problems := make(map[string]string)

	hasMatricule := u.Matricule != nil && *u.Matricule != ""
	hasFaculty := u.Faculty != nil && *u.Faculty != ""
	hasProgram := u.Program != nil && *u.Program != ""
	hasPrograms := len(u.Programs) > 0

	switch u.Role {
	case RoleStudent:
		if !hasMatricule {
			problems["matricule"] = "matricule is required for students"
		}
		if !hasFaculty {
			problems["faculty"] = "faculty is required for students"
		}
		if !hasProgram {
			problems["program"] = "program is required for students"
		}
		if hasPrograms {
			problems["programs"] = "programs is not allowed for students"
		}
	case RoleHOD:
		if !hasFaculty {
			problems["faculty"] = "faculty is required for HODs"
		}
		if !hasProgram {
			problems["program"] = "program is required for HODs"
		}
		if hasPrograms {
			problems["programs"] = "programs is not allowed for HODs"
		}
	case RoleCoordinator:
		if hasMatricule {
			problems["matricule"] = "matricule is not allowed for coordinators"
		}
		if !hasFaculty {
			problems["faculty"] = "faculty is required for coordinators"
		}
		if hasProgram {
			problems["program"] = "program is not allowed for coordinators"
		}
		if !hasPrograms {
			problems["programs"] = "coordinator must have at least one program assigned"
		}
	case RoleAdmin:
		if hasMatricule {
			problems["matricule"] = "matricule is not allowed for admins"
		}
		if hasFaculty {
			problems["faculty"] = "faculty is not allowed for admins"
		}
		if hasProgram {
			problems["program"] = "program is not allowed for admins"
		}
		if hasPrograms {
			problems["programs"] = "programs is not allowed for admins"
		}
	default:
		problems["role"] = "unknown role"
	}

	return problems
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Status    *UserStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// UserInfo is the public projection of a user.
type UserInfo struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Matricule string   `json:"matricule,omitempty"`
	Role      UserRole `json:"role"`
	Faculty   string   `json:"faculty,omitempty"`
	Program   string   `json:"program,omitempty"`
	Programs  []string `json:"programs,omitempty"`
}

// Info builds the public projection.
func (u *User) Info() UserInfo {
	info := UserInfo{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
	if u.Matricule != nil {
		info.Matricule = *u.Matricule
	}
	if u.Faculty != nil {
		info.Faculty = *u.Faculty
	}
	if u.Program != nil {
		info.Program = *u.Program
	}
	if len(u.Programs) > 0 {
		info.Programs = append(info.Programs, u.Programs...)
	}
	return info
}
