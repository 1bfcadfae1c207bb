package notification

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/campus-api/internal/models"
	"golang.org/x/sync/errgroup"
)

// Directory is the read-only membership contract the resolver depends on.
type Directory interface {
	UsersInDepartment(ctx context.Context, departmentID string, role *models.Role) ([]models.UserSummary, error)
	EnrolledStudents(ctx context.Context, courseID string) ([]models.UserSummary, error)
	ClassRosterMembers(ctx context.Context, classID string) ([]models.UserSummary, error)
	StudentsTaughtBy(ctx context.Context, teacherID string) ([]models.UserSummary, error)
	AllUsersExcept(ctx context.Context, userID string) ([]models.UserSummary, error)
	AllTeachers(ctx context.Context) ([]models.UserSummary, error)
}

// SectionDirectory is optionally implemented by a Directory that can list a
// teacher's sections individually. The resolver then queries the sections in
// parallel instead of issuing a single StudentsTaughtBy call.
type SectionDirectory interface {
	SectionsTaughtBy(ctx context.Context, teacherID string) ([]string, error)
	StudentsInSection(ctx context.Context, sectionID string) ([]models.UserSummary, error)
}

const defaultSectionWorkers = 4

// Resolver maps an AudienceSpec to a deduplicated set of recipient ids. It
// has no side effects.
type Resolver struct {
	directory      Directory
	sectionWorkers int
	logger         zerolog.Logger
}

func NewResolver(directory Directory, sectionWorkers int, logger zerolog.Logger) *Resolver {
	if sectionWorkers <= 0 {
		sectionWorkers = defaultSectionWorkers
	}
	return &Resolver{
		directory:      directory,
		sectionWorkers: sectionWorkers,
		logger:         logger.With().Str("component", "audience_resolver").Logger(),
	}
}

// Resolve returns the recipients for spec in ascending id order. An empty
// result is not an error. Provider failures come back as *DirectoryError and
// an invalid spec as *ValidationError.
func (r *Resolver) Resolve(ctx context.Context, spec models.AudienceSpec) ([]string, error) {
	if field, err := spec.Validate(); err != nil {
		return nil, validationErrorf("audience."+field, "%v", err)
	}

	var (
		users []models.UserSummary
		err   error
		op    = string(spec.Kind)
	)

	switch spec.Kind {
	case models.AudienceSingleUser:
		// Existence is enforced by the store's referential constraints.
		return []string{strings.TrimSpace(spec.UserID)}, nil
	case models.AudienceDepartment:
		var role *models.Role
		if spec.Role != nil {
			normalized := models.NormalizeRole(*spec.Role)
			role = &normalized
		}
		users, err = r.directory.UsersInDepartment(ctx, spec.DepartmentID, role)
	case models.AudienceCourseRoster:
		users, err = r.directory.EnrolledStudents(ctx, spec.CourseID)
	case models.AudienceClassRoster:
		users, err = r.directory.ClassRosterMembers(ctx, spec.ClassID)
	case models.AudienceTeacherRoster:
		return r.resolveTeacherRoster(ctx, spec.TeacherID)
	case models.AudienceAllUsersExcept:
		users, err = r.directory.AllUsersExcept(ctx, spec.ExcludedID)
	case models.AudienceAllTeachers:
		users, err = r.directory.AllTeachers(ctx)
	}
	if err != nil {
		return nil, &DirectoryError{Op: op, Err: err}
	}

	set := newRecipientSet(len(users))
	set.addUsers(users)
	if spec.Kind == models.AudienceAllUsersExcept {
		set.remove(spec.ExcludedID)
	}

	r.logger.Debug().Str("audience", spec.String()).Int("recipients", set.len()).Msg("resolved audience")
	return set.sorted(), nil
}

// resolveTeacherRoster walks teacher -> sections -> enrolled students and
// merges the per-section rosters by set union.
func (r *Resolver) resolveTeacherRoster(ctx context.Context, teacherID string) ([]string, error) {
	const op = string(models.AudienceTeacherRoster)

	sections, ok := r.directory.(SectionDirectory)
	if !ok {
		users, err := r.directory.StudentsTaughtBy(ctx, teacherID)
		if err != nil {
			return nil, &DirectoryError{Op: op, Err: err}
		}
		set := newRecipientSet(len(users))
		set.addUsers(users)
		return set.sorted(), nil
	}

	sectionIDs, err := sections.SectionsTaughtBy(ctx, teacherID)
	if err != nil {
		return nil, &DirectoryError{Op: op, Err: errors.Wrapf(err, "sections of teacher %s", teacherID)}
	}

	var (
		mu  sync.Mutex
		set = newRecipientSet(0)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.sectionWorkers)
	for _, sectionID := range sectionIDs {
		sectionID := sectionID
		g.Go(func() error {
			users, err := sections.StudentsInSection(gctx, sectionID)
			if err != nil {
				return errors.Wrapf(err, "students of section %s", sectionID)
			}
			mu.Lock()
			set.addUsers(users)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &DirectoryError{Op: op, Err: err}
	}

	r.logger.Debug().
		Str("teacher_id", teacherID).
		Int("sections", len(sectionIDs)).
		Int("recipients", set.len()).
		Msg("resolved teacher roster")
	return set.sorted(), nil
}

type recipientSet map[string]struct{}

func newRecipientSet(capacity int) recipientSet {
	return make(recipientSet, capacity)
}

func (s recipientSet) addUsers(users []models.UserSummary) {
	for _, u := range users {
		s.add(u.ID)
	}
}

func (s recipientSet) add(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	s[id] = struct{}{}
}

func (s recipientSet) remove(id string) {
	delete(s, strings.TrimSpace(id))
}

func (s recipientSet) len() int { return len(s) }

func (s recipientSet) sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
