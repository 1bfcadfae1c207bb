package notification

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stanstork/campus-api/internal/models"
	"github.com/stanstork/campus-api/internal/repository"
)

func users(ids ...string) []models.UserSummary {
	out := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.UserSummary{ID: id})
	}
	return out
}

// fakeDirectory answers membership queries from func fields and counts calls.
type fakeDirectory struct {
	calls atomic.Int32

	usersInDepartment  func(departmentID string, role *models.Role) ([]models.UserSummary, error)
	enrolledStudents   func(courseID string) ([]models.UserSummary, error)
	classRosterMembers func(classID string) ([]models.UserSummary, error)
	studentsTaughtBy   func(teacherID string) ([]models.UserSummary, error)
	allUsersExcept     func(userID string) ([]models.UserSummary, error)
	allTeachers        func() ([]models.UserSummary, error)
}

func (f *fakeDirectory) UsersInDepartment(_ context.Context, departmentID string, role *models.Role) ([]models.UserSummary, error) {
	f.calls.Add(1)
	if f.usersInDepartment == nil {
		return nil, nil
	}
	return f.usersInDepartment(departmentID, role)
}

func (f *fakeDirectory) EnrolledStudents(_ context.Context, courseID string) ([]models.UserSummary, error) {
	f.calls.Add(1)
	if f.enrolledStudents == nil {
		return nil, nil
	}
	return f.enrolledStudents(courseID)
}

func (f *fakeDirectory) ClassRosterMembers(_ context.Context, classID string) ([]models.UserSummary, error) {
	f.calls.Add(1)
	if f.classRosterMembers == nil {
		return nil, nil
	}
	return f.classRosterMembers(classID)
}

func (f *fakeDirectory) StudentsTaughtBy(_ context.Context, teacherID string) ([]models.UserSummary, error) {
	f.calls.Add(1)
	if f.studentsTaughtBy == nil {
		return nil, nil
	}
	return f.studentsTaughtBy(teacherID)
}

func (f *fakeDirectory) AllUsersExcept(_ context.Context, userID string) ([]models.UserSummary, error) {
	f.calls.Add(1)
	if f.allUsersExcept == nil {
		return nil, nil
	}
	return f.allUsersExcept(userID)
}

func (f *fakeDirectory) AllTeachers(_ context.Context) ([]models.UserSummary, error) {
	f.calls.Add(1)
	if f.allTeachers == nil {
		return nil, nil
	}
	return f.allTeachers()
}

// fakeSectionDirectory additionally lists sections so the resolver takes the
// per-section path.
type fakeSectionDirectory struct {
	fakeDirectory
	sections map[string][]string
	students map[string][]string
	failOn   string
}

func (f *fakeSectionDirectory) SectionsTaughtBy(_ context.Context, teacherID string) ([]string, error) {
	f.calls.Add(1)
	return f.sections[teacherID], nil
}

func (f *fakeSectionDirectory) StudentsInSection(_ context.Context, sectionID string) ([]models.UserSummary, error) {
	f.calls.Add(1)
	if sectionID == f.failOn {
		return nil, fmt.Errorf("section %s unavailable", sectionID)
	}
	return users(f.students[sectionID]...), nil
}

// memoryStore is a concurrency-safe in-memory Store.
type memoryStore struct {
	mu            sync.Mutex
	notifications []models.Notification
	seq           int
	now           func() time.Time

	fail        map[string]error
	createDelay time.Duration
	creates     atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newMemoryStore() *memoryStore {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int64
	return &memoryStore{
		fail: map[string]error{},
		now: func() time.Time {
			return base.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Second)
		},
	}
}

func (s *memoryStore) Create(_ context.Context, params repository.CreateNotificationParams) (string, error) {
	s.creates.Add(1)
	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.maxInFlight.Load()
		if current <= peak || s.maxInFlight.CompareAndSwap(peak, current) {
			break
		}
	}
	if s.createDelay > 0 {
		time.Sleep(s.createDelay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail[params.RecipientID]; ok {
		return "", err
	}
	s.seq++
	id := fmt.Sprintf("n-%04d", s.seq)
	s.notifications = append(s.notifications, models.Notification{
		ID:          id,
		SenderID:    params.SenderID,
		RecipientID: params.RecipientID,
		Type:        params.Type,
		Title:       params.Title,
		Message:     params.Message,
		Payload:     params.Payload,
		CreatedAt:   s.now(),
	})
	return id, nil
}

func (s *memoryStore) ListByRecipient(_ context.Context, recipientID string, limit, offset int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if offset >= len(out) {
		return []models.Notification{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) CountUnread(_ context.Context, recipientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, n := range s.notifications {
		if n.RecipientID == recipientID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *memoryStore) MarkRead(_ context.Context, notificationID, recipientID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		n := &s.notifications[i]
		if n.ID == notificationID && n.RecipientID == recipientID && !n.Read {
			n.Read = true
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) MarkAllRead(_ context.Context, recipientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updated int64
	for i := range s.notifications {
		n := &s.notifications[i]
		if n.RecipientID == recipientID && !n.Read {
			n.Read = true
			updated++
		}
	}
	return updated, nil
}

func (s *memoryStore) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.notifications))
	for _, n := range s.notifications {
		ids = append(ids, n.RecipientID)
	}
	sort.Strings(ids)
	return ids
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notifications)
}
