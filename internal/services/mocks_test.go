package services

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"github.com/medcode-academy/assignment-service/internal/models"
	"github.com/medcode-academy/assignment-service/internal/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockRepository is an in-memory repositories.Repository for service tests.
type mockRepository struct {
	assignment *mockAssignmentRepo
	submission *mockSubmissionRepo
	user       *mockUserRepo
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		assignment: &mockAssignmentRepo{assignments: make(map[uint]*models.Assignment)},
		submission: &mockSubmissionRepo{submissions: make(map[uint]*models.Submission)},
		user:       &mockUserRepo{users: make(map[string]*models.User)},
	}
}

func (r *mockRepository) Assignment() repositories.AssignmentRepository { return r.assignment }
func (r *mockRepository) Submission() repositories.SubmissionRepository { return r.submission }
func (r *mockRepository) User() repositories.UserRepository             { return r.user }

func (r *mockRepository) WithTransaction(_ context.Context, fn func(repositories.Repository) error) error {
	return fn(r)
}

func (r *mockRepository) Ping(_ context.Context) error { return nil }
func (r *mockRepository) Close() error                 { return nil }

// ===== assignments =====

type mockAssignmentRepo struct {
	mu          sync.Mutex
	assignments map[uint]*models.Assignment
	nextID      uint
}

func (m *mockAssignmentRepo) put(a *models.Assignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == 0 {
		m.nextID++
		a.ID = m.nextID
	}
	m.assignments[a.ID] = a
}

func (m *mockAssignmentRepo) Create(_ context.Context, _ *gorm.DB, a *models.Assignment) error {
	m.put(a)
	return nil
}

func (m *mockAssignmentRepo) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return a, nil
}

func (m *mockAssignmentRepo) Update(_ context.Context, _ *gorm.DB, a *models.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignments[a.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.assignments[a.ID] = a
	return nil
}

func (m *mockAssignmentRepo) Delete(_ context.Context, _ *gorm.DB, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignments[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.assignments, id)
	return nil
}

func (m *mockAssignmentRepo) List(_ context.Context, _ *gorm.DB, _ repositories.AssignmentFilters) ([]*models.Assignment, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Assignment, 0, len(m.assignments))
	for _, a := range m.assignments {
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

func (m *mockAssignmentRepo) GetByCategory(_ context.Context, _ *gorm.DB, category string) ([]*models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Assignment
	for _, a := range m.assignments {
		if a.Category == category {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAssignmentRepo) CountByCategory(ctx context.Context, tx *gorm.DB, category string) (int64, error) {
	list, err := m.GetByCategory(ctx, tx, category)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (m *mockAssignmentRepo) ListCategories(_ context.Context, _ *gorm.DB) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, a := range m.assignments {
		if !seen[a.Category] {
			seen[a.Category] = true
			out = append(out, a.Category)
		}
	}
	return out, nil
}

func (m *mockAssignmentRepo) GetSubAssignment(_ context.Context, _ *gorm.DB, assignmentID, subID uint) (*models.SubAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[assignmentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	for i := range a.SubAssignments {
		if a.SubAssignments[i].ID == subID {
			return &a.SubAssignments[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssignmentRepo) DeleteSubAssignment(_ context.Context, _ *gorm.DB, assignmentID, subID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[assignmentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range a.SubAssignments {
		if a.SubAssignments[i].ID == subID {
			a.SubAssignments = append(a.SubAssignments[:i], a.SubAssignments[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ===== submissions =====

type mockSubmissionRepo struct {
	mu          sync.Mutex
	submissions map[uint]*models.Submission
	nextID      uint

	// missForUpdate makes the next locked read miss even when the pair's
	// row exists, the way a reader that raced a concurrent first insert
	// does. One-shot.
	missForUpdate bool
}

func (m *mockSubmissionRepo) Create(_ context.Context, _ *gorm.DB, s *models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.submissions {
		if existing.StudentID == s.StudentID && existing.AssignmentID == s.AssignmentID {
			return gorm.ErrDuplicatedKey
		}
	}
	m.nextID++
	s.ID = m.nextID
	copied := *s
	m.submissions[s.ID] = &copied
	return nil
}

func (m *mockSubmissionRepo) Update(_ context.Context, _ *gorm.DB, s *models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.submissions[s.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *s
	m.submissions[s.ID] = &copied
	return nil
}

func (m *mockSubmissionRepo) Delete(_ context.Context, _ *gorm.DB, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.submissions[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.submissions, id)
	return nil
}

func (m *mockSubmissionRepo) GetByID(_ context.Context, _ *gorm.DB, id uint) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *mockSubmissionRepo) GetByStudentAndAssignment(_ context.Context, _ *gorm.DB, studentID string, assignmentID uint) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.submissions {
		if s.StudentID == studentID && s.AssignmentID == assignmentID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubmissionRepo) GetByStudentAndAssignmentForUpdate(ctx context.Context, tx *gorm.DB, studentID string, assignmentID uint) (*models.Submission, error) {
	m.mu.Lock()
	if m.missForUpdate {
		m.missForUpdate = false
		m.mu.Unlock()
		return nil, gorm.ErrRecordNotFound
	}
	m.mu.Unlock()
	return m.GetByStudentAndAssignment(ctx, tx, studentID, assignmentID)
}

func (m *mockSubmissionRepo) GetByStudent(_ context.Context, _ *gorm.DB, studentID string, _ repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Submission
	for _, s := range m.submissions {
		if s.StudentID == studentID {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockSubmissionRepo) GetByAssignment(_ context.Context, _ *gorm.DB, assignmentID uint, _ repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Submission
	for _, s := range m.submissions {
		if s.AssignmentID == assignmentID {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockSubmissionRepo) GetLatestForAssignments(_ context.Context, _ *gorm.DB, studentID string, assignmentIDs []uint) (map[uint]*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[uint]bool, len(assignmentIDs))
	for _, id := range assignmentIDs {
		wanted[id] = true
	}
	out := make(map[uint]*models.Submission)
	for _, s := range m.submissions {
		if s.StudentID != studentID || !wanted[s.AssignmentID] {
			continue
		}
		if existing, ok := out[s.AssignmentID]; !ok || s.SubmittedAt.After(existing.SubmittedAt) {
			copied := *s
			out[s.AssignmentID] = &copied
		}
	}
	return out, nil
}

// ===== users =====

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, err := m.GetByID(ctx, id); err == nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) List(_ context.Context, _ repositories.UserFilters) ([]*models.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (m *mockUserRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	_, err := m.GetByID(ctx, id)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (m *mockUserRepo) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	u, err := m.GetByID(ctx, id)
	if err != nil {
		return false, nil
	}
	return u.Role == role, nil
}
