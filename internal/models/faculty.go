package models

import "database/sql/driver"

// Program is a degree program offered by a faculty.
type Program struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// ProgramList is the ordered program set embedded in a faculty row as JSONB.
type ProgramList []Program

// Value implements driver.Valuer.
func (p ProgramList) Value() (driver.Value, error) {
	if p == nil {
		p = ProgramList{}
	}
	return marshalJSON(p)
}

// Scan implements sql.Scanner.
func (p *ProgramList) Scan(src interface{}) error {
	return scanJSON(src, p)
}

// Faculty is reference data: a faculty and its programs, seeded at bootstrap
// and immutable during normal operation.
type Faculty struct {
	ID       string      `db:"id" json:"id"`
	Name     string      `db:"name" json:"name"`
	Code     string      `db:"code" json:"code"`
	Programs ProgramList `db:"programs" json:"programs"`
}

// HasProgram reports whether the faculty offers the given program code.
func (f *Faculty) HasProgram(code string) bool {
	for _, p := range f.Programs {
		if p.Code == code {
			return true
		}
	}
	return false
}
