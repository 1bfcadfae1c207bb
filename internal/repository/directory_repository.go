package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stanstork/campus-api/internal/models"
)

// DirectoryRepository answers read-only membership queries over the user,
// department, enrollment, section and class tables.
type DirectoryRepository interface {
	UsersInDepartment(ctx context.Context, departmentID string, role *models.Role) ([]models.UserSummary, error)
	EnrolledStudents(ctx context.Context, courseID string) ([]models.UserSummary, error)
	ClassRosterMembers(ctx context.Context, classID string) ([]models.UserSummary, error)
	StudentsTaughtBy(ctx context.Context, teacherID string) ([]models.UserSummary, error)
	AllUsersExcept(ctx context.Context, userID string) ([]models.UserSummary, error)
	AllTeachers(ctx context.Context) ([]models.UserSummary, error)

	SectionsTaughtBy(ctx context.Context, teacherID string) ([]string, error)
	StudentsInSection(ctx context.Context, sectionID string) ([]models.UserSummary, error)
}

type directoryRepository struct {
	db *sqlx.DB
}

func NewDirectoryRepository(db *sqlx.DB) DirectoryRepository {
	return &directoryRepository{db: db}
}

const userColumns = `u.id, u.first_name, u.last_name, u.email, u.role, u.department_id`

type userRow struct {
	ID           string         `db:"id"`
	FirstName    string         `db:"first_name"`
	LastName     string         `db:"last_name"`
	Email        string         `db:"email"`
	Role         string         `db:"role"`
	DepartmentID sql.NullString `db:"department_id"`
}

func (u userRow) summary() models.UserSummary {
	summary := models.UserSummary{
		ID:          u.ID,
		DisplayName: strings.TrimSpace(u.FirstName + " " + u.LastName),
		Email:       u.Email,
		Role:        models.NormalizeRole(models.Role(u.Role)),
	}
	if u.DepartmentID.Valid {
		dept := u.DepartmentID.String
		summary.DepartmentID = &dept
	}
	return summary
}

func (r *directoryRepository) selectUsers(ctx context.Context, op, query string, args ...interface{}) ([]models.UserSummary, error) {
	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, op)
	}
	users := make([]models.UserSummary, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.summary())
	}
	return users, nil
}

func (r *directoryRepository) UsersInDepartment(ctx context.Context, departmentID string, role *models.Role) ([]models.UserSummary, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		WHERE u.is_active = ? AND u.department_id = ?`
	args := []interface{}{true, departmentID}
	if role != nil {
		query += ` AND u.role = ?`
		args = append(args, string(models.NormalizeRole(*role)))
	}
	query += ` ORDER BY u.id`

	return r.selectUsers(ctx, "listing department members", query, args...)
}

func (r *directoryRepository) EnrolledStudents(ctx context.Context, courseID string) ([]models.UserSummary, error) {
	const query = `
		SELECT DISTINCT ` + userColumns + `
		FROM enrollments e
		JOIN users u ON u.id = e.student_id
		WHERE e.course_id = ? AND e.status = 'active' AND u.is_active = ?
		ORDER BY u.id`

	return r.selectUsers(ctx, "listing enrolled students", query, courseID, true)
}

// ClassRosterMembers treats the class's stored member list as the source of
// truth and keeps only ids that still belong to active students. Ids in the
// list that no longer match a user are ignored.
func (r *directoryRepository) ClassRosterMembers(ctx context.Context, classID string) ([]models.UserSummary, error) {
	var raw string
	err := r.db.GetContext(ctx, &raw, r.db.Rebind(`SELECT member_ids FROM classes WHERE id = ?`), classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.UserSummary{}, nil
		}
		return nil, errors.Wrapf(err, "loading roster of class %s", classID)
	}

	var memberIDs []string
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &memberIDs); err != nil {
			return nil, errors.Wrapf(err, "decoding roster of class %s", classID)
		}
	}
	memberIDs = compactIDs(memberIDs)
	if len(memberIDs) == 0 {
		return []models.UserSummary{}, nil
	}

	query, args, err := sqlx.In(`
		SELECT `+userColumns+`
		FROM users u
		WHERE u.id IN (?) AND u.role = ? AND u.is_active = ?
		ORDER BY u.id`, memberIDs, string(models.RoleStudent), true)
	if err != nil {
		return nil, errors.Wrap(err, "expanding roster query")
	}
	return r.selectUsers(ctx, "listing class roster members", query, args...)
}

func (r *directoryRepository) StudentsTaughtBy(ctx context.Context, teacherID string) ([]models.UserSummary, error) {
	const query = `
		SELECT DISTINCT ` + userColumns + `
		FROM course_sections s
		JOIN enrollments e ON e.section_id = s.id AND e.status = 'active'
		JOIN users u ON u.id = e.student_id
		WHERE s.teacher_id = ? AND u.is_active = ?
		ORDER BY u.id`

	return r.selectUsers(ctx, "listing students taught by teacher", query, teacherID, true)
}

func (r *directoryRepository) SectionsTaughtBy(ctx context.Context, teacherID string) ([]string, error) {
	var ids []string
	query := r.db.Rebind(`SELECT id FROM course_sections WHERE teacher_id = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &ids, query, teacherID); err != nil {
		return nil, errors.Wrapf(err, "listing sections of teacher %s", teacherID)
	}
	return ids, nil
}

func (r *directoryRepository) StudentsInSection(ctx context.Context, sectionID string) ([]models.UserSummary, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM course_sections s
		JOIN enrollments e ON e.section_id = s.id AND e.status = 'active'
		JOIN users u ON u.id = e.student_id
		WHERE s.id = ? AND u.is_active = ?
		ORDER BY u.id`

	return r.selectUsers(ctx, "listing section students", query, sectionID, true)
}

func (r *directoryRepository) AllUsersExcept(ctx context.Context, userID string) ([]models.UserSummary, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users u
		WHERE u.is_active = ? AND u.id <> ?
		ORDER BY u.id`

	return r.selectUsers(ctx, "listing all users", query, true, userID)
}

func (r *directoryRepository) AllTeachers(ctx context.Context) ([]models.UserSummary, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users u
		WHERE u.is_active = ? AND u.role = ?
		ORDER BY u.id`

	return r.selectUsers(ctx, "listing teachers", query, true, string(models.RoleTeacher))
}

func compactIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
