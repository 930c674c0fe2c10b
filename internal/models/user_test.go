package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strptr(s string) *string { return &s }

func TestRoleFieldProblems(t *testing.T) {
	cases := []struct {
		name    string
		user    User
		invalid []string
	}{
		{
			name: "valid student",
			user: User{Role: RoleStudent, Matricule: strptr("CT2021001"), Faculty: strptr("COT"), Program: strptr("CSE")},
		},
		{
			name:    "student missing matricule",
			user:    User{Role: RoleStudent, Faculty: strptr("COT"), Program: strptr("CSE")},
			invalid: []string{"matricule"},
		},
		{
			name:    "student with programs",
			user:    User{Role: RoleStudent, Matricule: strptr("CT2021001"), Faculty: strptr("COT"), Program: strptr("CSE"), Programs: []string{"CSE"}},
			invalid: []string{"programs"},
		},
		{
			name: "valid hod",
			user: User{Role: RoleHOD, Faculty: strptr("COT"), Program: strptr("CSE")},
		},
		{
			name:    "hod missing program",
			user:    User{Role: RoleHOD, Faculty: strptr("COT")},
			invalid: []string{"program"},
		},
		{
			name: "valid coordinator",
			user: User{Role: RoleCoordinator, Faculty: strptr("COT"), Programs: []string{"CSE", "EEE"}},
		},
		{
			name:    "coordinator with singular program",
			user:    User{Role: RoleCoordinator, Faculty: strptr("COT"), Program: strptr("CSE"), Programs: []string{"CSE"}},
			invalid: []string{"program"},
		},
		{
			name:    "coordinator without programs",
			user:    User{Role: RoleCoordinator, Faculty: strptr("COT")},
			invalid: []string{"programs"},
		},
		{
			name: "valid admin",
			user: User{Role: RoleAdmin},
		},
		{
			name:    "admin with academic fields",
			user:    User{Role: RoleAdmin, Matricule: strptr("X"), Faculty: strptr("COT"), Program: strptr("CSE")},
			invalid: []string{"matricule", "faculty", "program"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			problems := tc.user.RoleFieldProblems()
			if len(tc.invalid) == 0 {
				assert.Empty(t, problems)
				return
			}
			assert.Len(t, problems, len(tc.invalid))
			for _, field := range tc.invalid {
				assert.Contains(t, problems, field)
			}
		})
	}
}

func TestUserInfoProjection(t *testing.T) {
	user := User{
		ID:        "u-1",
		Name:      "Jane Doe",
		Email:     "jane@ub.edu",
		Matricule: strptr("CT2021001"),
		Role:      RoleStudent,
		Faculty:   strptr("COT"),
		Program:   strptr("CSE"),
	}
	info := user.Info()
	assert.Equal(t, "CT2021001", info.Matricule)
	assert.Equal(t, "COT", info.Faculty)
	assert.Equal(t, "CSE", info.Program)
	assert.Empty(t, info.Programs)
}

func TestIsStaff(t *testing.T) {
	assert.False(t, (&User{Role: RoleStudent}).IsStaff())
	assert.True(t, (&User{Role: RoleHOD}).IsStaff())
	assert.True(t, (&User{Role: RoleCoordinator}).IsStaff())
	assert.True(t, (&User{Role: RoleAdmin}).IsStaff())
}
