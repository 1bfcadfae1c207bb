package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stanstork/campus-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Variants(t *testing.T) {
	teacher := models.RoleTeacher

	dir := &fakeDirectory{
		usersInDepartment: func(departmentID string, role *models.Role) ([]models.UserSummary, error) {
			if role != nil && *role == models.RoleTeacher {
				return users("t2", "t1"), nil
			}
			return users("s1", "t1", "t2", "s1"), nil
		},
		enrolledStudents: func(courseID string) ([]models.UserSummary, error) {
			return users("s3", "s1", "s3"), nil
		},
		classRosterMembers: func(classID string) ([]models.UserSummary, error) {
			return users("s2", "", "  "), nil
		},
		studentsTaughtBy: func(teacherID string) ([]models.UserSummary, error) {
			return users("s2", "s1", "s2"), nil
		},
		allUsersExcept: func(userID string) ([]models.UserSummary, error) {
			return users("a1", "s1", userID), nil
		},
		allTeachers: func() ([]models.UserSummary, error) {
			return users("t1", "t2"), nil
		},
	}
	resolver := NewResolver(dir, 2, zerolog.Nop())

	tests := []struct {
		name string
		spec models.AudienceSpec
		want []string
	}{
		{name: "single user", spec: models.SingleUser("u9"), want: []string{"u9"}},
		{name: "department all roles", spec: models.Department("7", nil), want: []string{"s1", "t1", "t2"}},
		{name: "department teachers", spec: models.Department("7", &teacher), want: []string{"t1", "t2"}},
		{name: "course roster", spec: models.CourseRoster("c1"), want: []string{"s1", "s3"}},
		{name: "class roster drops blank ids", spec: models.ClassRoster("k1"), want: []string{"s2"}},
		{name: "teacher roster", spec: models.TeacherRoster("t1"), want: []string{"s1", "s2"}},
		{name: "all users except", spec: models.AllUsersExcept("a1"), want: []string{"s1"}},
		{name: "all teachers", spec: models.AllTeachers(), want: []string{"t1", "t2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(context.Background(), tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_SingleUserSkipsDirectory(t *testing.T) {
	dir := &fakeDirectory{}
	resolver := NewResolver(dir, 0, zerolog.Nop())

	got, err := resolver.Resolve(context.Background(), models.SingleUser("u1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, got)
	assert.Zero(t, dir.calls.Load())
}

func TestResolver_EmptyAudienceIsNotAnError(t *testing.T) {
	resolver := NewResolver(&fakeDirectory{}, 0, zerolog.Nop())

	got, err := resolver.Resolve(context.Background(), models.CourseRoster("empty"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolver_InvalidSpecFailsBeforeDirectory(t *testing.T) {
	dir := &fakeDirectory{}
	resolver := NewResolver(dir, 0, zerolog.Nop())

	for _, spec := range []models.AudienceSpec{
		{},
		{Kind: "everyone"},
		models.Department("", nil),
		models.TeacherRoster(" "),
	} {
		_, err := resolver.Resolve(context.Background(), spec)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "spec %+v", spec)
	}
	assert.Zero(t, dir.calls.Load())
}

func TestResolver_DirectoryFailure(t *testing.T) {
	cause := errors.New("connection refused")
	dir := &fakeDirectory{
		enrolledStudents: func(string) ([]models.UserSummary, error) { return nil, cause },
	}
	resolver := NewResolver(dir, 0, zerolog.Nop())

	_, err := resolver.Resolve(context.Background(), models.CourseRoster("c1"))
	var derr *DirectoryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, string(models.AudienceCourseRoster), derr.Op)
	assert.ErrorIs(t, err, cause)
}

func TestResolver_TeacherRosterPerSection(t *testing.T) {
	dir := &fakeSectionDirectory{
		sections: map[string][]string{"t1": {"sec-a", "sec-b", "sec-c"}},
		students: map[string][]string{
			"sec-a": {"s1", "s2"},
			"sec-b": {"s2", "s3"},
			"sec-c": {"s1"},
		},
	}
	resolver := NewResolver(dir, 2, zerolog.Nop())

	got, err := resolver.Resolve(context.Background(), models.TeacherRoster("t1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2", "s3"}, got)
	// one section listing plus one query per section
	assert.EqualValues(t, 4, dir.calls.Load())
}

func TestResolver_TeacherRosterSectionFailure(t *testing.T) {
	dir := &fakeSectionDirectory{
		sections: map[string][]string{"t1": {"sec-a", "sec-b"}},
		students: map[string][]string{"sec-a": {"s1"}},
		failOn:   "sec-b",
	}
	resolver := NewResolver(dir, 1, zerolog.Nop())

	_, err := resolver.Resolve(context.Background(), models.TeacherRoster("t1"))
	var derr *DirectoryError
	require.ErrorAs(t, err, &derr)
	assert.Contains(t, err.Error(), "sec-b")
}

func TestResolver_TeacherWithoutSections(t *testing.T) {
	dir := &fakeSectionDirectory{}
	resolver := NewResolver(dir, 0, zerolog.Nop())

	got, err := resolver.Resolve(context.Background(), models.TeacherRoster("t-none"))
	require.NoError(t, err)
	assert.Empty(t, got)
}
