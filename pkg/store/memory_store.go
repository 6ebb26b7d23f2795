package store

import (
	"sync"
	"time"

	"learncircle/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs tests and DATABASE_URL=memory.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[string]domain.User // key: user ID
	email        map[string]string      // email -> user ID
	roleRequests []domain.RoleRequest
	courses      map[string]domain.Course
	courseOrder  []string
	chapters     map[string]map[int]domain.Chapter // course ID -> chapter number
	circles      map[string]domain.Circle
	circleOrder  []string
	members      map[string][]string // circle ID -> user IDs in join order
	links        map[string][]string // circle ID -> course IDs in link order
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		email:    make(map[string]string),
		courses:  make(map[string]domain.Course),
		chapters: make(map[string]map[int]domain.Chapter),
		circles:  make(map[string]domain.Circle),
		members:  make(map[string][]string),
		links:    make(map[string][]string),
	}
}

// SaveUser stores or replaces a user and keeps the email index current.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok && prev.Email != u.Email {
		delete(m.email, prev.Email)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUsersByIDs returns the users that exist, in the order of ids.
func (m *MemoryStore) GetUsersByIDs(ids []string) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			res = append(res, u)
		}
	}
	return res, nil
}

func (m *MemoryStore) SaveRoleRequest(r domain.RoleRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.roleRequests {
		if existing.ID == r.ID {
			m.roleRequests[i] = r
			return nil
		}
	}
	m.roleRequests = append(m.roleRequests, r)
	return nil
}

// GetPendingRoleRequest returns the newest pending request of a user.
func (m *MemoryStore) GetPendingRoleRequest(userID string) (domain.RoleRequest, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.roleRequests) - 1; i >= 0; i-- {
		r := m.roleRequests[i]
		if r.UserID == userID && r.Status == domain.RoleRequestPending {
			return r, true, nil
		}
	}
	return domain.RoleRequest{}, false, nil
}

// SaveCourse stores course metadata and tracks insertion order.
func (m *MemoryStore) SaveCourse(c domain.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.courses[c.ID]; !exists {
		m.courseOrder = append(m.courseOrder, c.ID)
	}
	c.Content = nil
	m.courses[c.ID] = c
	return nil
}

func (m *MemoryStore) GetCourse(id string) (domain.Course, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[id]
	return c, ok, nil
}

func (m *MemoryStore) ListCoursesByCreator(creatorID string) ([]domain.Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Course, 0)
	for _, id := range m.courseOrder {
		if c, ok := m.courses[id]; ok && c.CreatorID == creatorID {
			res = append(res, c)
		}
	}
	return res, nil
}

func (m *MemoryStore) ListCoursesByIDs(ids []string) ([]domain.Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Course, 0, len(ids))
	for _, id := range ids {
		if c, ok := m.courses[id]; ok {
			res = append(res, c)
		}
	}
	return res, nil
}

func (m *MemoryStore) UpdateCourseMeta(courseID, name, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[courseID]
	if !ok {
		return nil
	}
	c.Name = name
	c.Description = description
	c.UpdatedAt = time.Now().UTC()
	m.courses[courseID] = c
	return nil
}

func (m *MemoryStore) SetContentJob(courseID, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[courseID]
	if !ok {
		return nil
	}
	c.ContentJobID = jobID
	m.courses[courseID] = c
	return nil
}

func (m *MemoryStore) SetContentState(courseID string, state domain.ContentState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[courseID]
	if !ok {
		return nil
	}
	c.ContentState = state
	c.UpdatedAt = time.Now().UTC()
	m.courses[courseID] = c
	return nil
}

func (m *MemoryStore) SetPublished(courseID string, published bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[courseID]
	if !ok {
		return nil
	}
	c.Published = published
	c.UpdatedAt = time.Now().UTC()
	m.courses[courseID] = c
	return nil
}

// UpsertChapters replaces each listed chapter by number, including its quizzes.
func (m *MemoryStore) UpsertChapters(courseID string, chapters []domain.Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	course, ok := m.courses[courseID]
	if !ok {
		return nil
	}
	byNumber, ok := m.chapters[courseID]
	if !ok {
		byNumber = make(map[int]domain.Chapter)
		m.chapters[courseID] = byNumber
	}
	for _, ch := range chapters {
		quizzes := domain.AssignQuizPositions(ch.Quiz)
		for i := range quizzes {
			quizzes[i].Choices = domain.UniqueChoices(quizzes[i].Choices)
		}
		ch.Quiz = quizzes
		byNumber[ch.Chapter] = ch
	}
	course.UpdatedAt = time.Now().UTC()
	m.courses[courseID] = course
	return nil
}

func (m *MemoryStore) ListChapters(courseID string) ([]domain.Chapter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byNumber := m.chapters[courseID]
	res := make([]domain.Chapter, 0, len(byNumber))
	for _, ch := range byNumber {
		quizzes := make([]domain.Quiz, len(ch.Quiz))
		for i, q := range ch.Quiz {
			q.Choices = append([]domain.Choice{}, q.Choices...)
			quizzes[i] = q
		}
		ch.Quiz = quizzes
		res = append(res, ch)
	}
	domain.SortChapters(res)
	return res, nil
}

// DeleteCourse removes a course, its content and every circle link to it.
func (m *MemoryStore) DeleteCourse(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.courses, id)
	delete(m.chapters, id)
	m.courseOrder = removeString(m.courseOrder, id)
	for circleID, courseIDs := range m.links {
		m.links[circleID] = removeString(courseIDs, id)
	}
	return nil
}

func (m *MemoryStore) SaveCircle(c domain.Circle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.circles[c.ID]; !exists {
		m.circleOrder = append(m.circleOrder, c.ID)
	}
	m.circles[c.ID] = c
	return nil
}

func (m *MemoryStore) GetCircle(id string) (domain.Circle, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.circles[id]
	return c, ok, nil
}

func (m *MemoryStore) ListCirclesByMember(userID string) ([]domain.Circle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Circle, 0)
	for _, id := range m.circleOrder {
		if containsString(m.members[id], userID) {
			res = append(res, m.circles[id])
		}
	}
	return res, nil
}

func (m *MemoryStore) AddMember(circleID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if containsString(m.members[circleID], userID) {
		return false, nil
	}
	m.members[circleID] = append(m.members[circleID], userID)
	return true, nil
}

func (m *MemoryStore) IsMember(circleID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return containsString(m.members[circleID], userID), nil
}

func (m *MemoryStore) ListMemberIDs(circleID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.members[circleID]...), nil
}

func (m *MemoryStore) LinkCourse(circleID, courseID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if containsString(m.links[circleID], courseID) {
		return false, nil
	}
	m.links[circleID] = append(m.links[circleID], courseID)
	return true, nil
}

func (m *MemoryStore) UnlinkCourse(circleID, courseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[circleID] = removeString(m.links[circleID], courseID)
	return nil
}

func (m *MemoryStore) IsCourseLinked(circleID, courseID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return containsString(m.links[circleID], courseID), nil
}

func (m *MemoryStore) ListCourseIDsInCircle(circleID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.links[circleID]...), nil
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, item := range list {
		if item != v {
			out = append(out, item)
		}
	}
	return out
}
