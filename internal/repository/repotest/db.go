// Package repotest builds migrated in-memory databases and seeds directory
// fixtures for tests.
package repotest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stanstork/campus-api/internal/migration"
	"github.com/stanstork/campus-api/internal/models"
	"github.com/stanstork/campus-api/internal/repository"
)

// NewTestDB opens a fresh in-memory SQLite database with all migrations
// applied. It is closed when the test completes.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	ctx := context.Background()
	db, err := repository.Open(ctx, "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("closing test db: %v", err)
		}
	})

	if err := migration.RunMigrations(ctx, db.DB, "sqlite", zerolog.Nop()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db
}

// Seeder inserts directory rows. Every method fails the test on error.
type Seeder struct {
	t  *testing.T
	db *sqlx.DB
}

func NewSeeder(t *testing.T, db *sqlx.DB) *Seeder {
	return &Seeder{t: t, db: db}
}

func (s *Seeder) exec(query string, args ...interface{}) {
	s.t.Helper()
	if _, err := s.db.Exec(s.db.Rebind(query), args...); err != nil {
		s.t.Fatalf("seeding: %v\nquery: %s", err, query)
	}
}

func (s *Seeder) Department(id, name string) {
	s.t.Helper()
	s.exec(`INSERT INTO departments (id, name) VALUES (?, ?)`, id, name)
}

// User inserts an active user. departmentID may be empty.
func (s *Seeder) User(id, firstName, lastName string, role models.Role, departmentID string) {
	s.t.Helper()
	var dept interface{}
	if departmentID != "" {
		dept = departmentID
	}
	s.exec(`INSERT INTO users (id, email, first_name, last_name, role, department_id, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, id+"@campus.test", firstName, lastName, string(role), dept, true)
}

func (s *Seeder) Deactivate(userID string) {
	s.t.Helper()
	s.exec(`UPDATE users SET is_active = ? WHERE id = ?`, false, userID)
}

func (s *Seeder) Course(id, code string) {
	s.t.Helper()
	s.exec(`INSERT INTO courses (id, code, title) VALUES (?, ?, ?)`, id, code, code)
}

// Enroll places a student in a section. The course is taken from the
// section, so the section must be seeded first.
func (s *Seeder) Enroll(studentID, sectionID, status string) {
	s.t.Helper()
	s.exec(`INSERT INTO enrollments (id, student_id, course_id, section_id, status)
		SELECT ?, ?, course_id, id, ? FROM course_sections WHERE id = ?`,
		studentID+":"+sectionID, studentID, status, sectionID)
	var n int
	if err := s.db.Get(&n, s.db.Rebind(`SELECT COUNT(*) FROM enrollments WHERE id = ?`), studentID+":"+sectionID); err != nil || n != 1 {
		s.t.Fatalf("enrolling %s: section %s not seeded (err=%v)", studentID, sectionID, err)
	}
}

func (s *Seeder) Section(id, courseID, teacherID string) {
	s.t.Helper()
	s.exec(`INSERT INTO course_sections (id, course_id, teacher_id, label) VALUES (?, ?, ?, ?)`,
		id, courseID, teacherID, id)
}

func (s *Seeder) Class(id, name string, memberIDs ...string) {
	s.t.Helper()
	if memberIDs == nil {
		memberIDs = []string{}
	}
	raw, err := json.Marshal(memberIDs)
	if err != nil {
		s.t.Fatalf("encoding class members: %v", err)
	}
	s.exec(`INSERT INTO classes (id, name, member_ids) VALUES (?, ?, ?)`, id, name, string(raw))
}
