package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/apperr"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/model"
	"github.com/Freeeeeet/drivingschool_scheduler/internal/repository"
)

// memStore in-memory state shared by the fake repositories.
type memStore struct {
	slots       map[int64]model.Slot
	courses     map[int64]model.StudentCourse
	assignments map[int64]model.ClassAssignment
	changes     []model.ClassChange
	templates   map[uuid.UUID]model.AvailabilityTemplate

	nextID int64
	failOn string
}

func newMemStore() *memStore {
	return &memStore{
		slots:       make(map[int64]model.Slot),
		courses:     make(map[int64]model.StudentCourse),
		assignments: make(map[int64]model.ClassAssignment),
		templates:   make(map[uuid.UUID]model.AvailabilityTemplate),
		nextID:      1000,
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) snapshot() *memStore {
	c := &memStore{
		slots:       make(map[int64]model.Slot, len(m.slots)),
		courses:     make(map[int64]model.StudentCourse, len(m.courses)),
		assignments: make(map[int64]model.ClassAssignment, len(m.assignments)),
		changes:     slices.Clone(m.changes),
		templates:   make(map[uuid.UUID]model.AvailabilityTemplate, len(m.templates)),
		nextID:      m.nextID,
		failOn:      m.failOn,
	}
	for k, v := range m.slots {
		c.slots[k] = v
	}
	for k, v := range m.courses {
		c.courses[k] = v
	}
	for k, v := range m.assignments {
		c.assignments[k] = v
	}
	for k, v := range m.templates {
		c.templates[k] = v
	}
	return c
}

func (m *memStore) restore(from *memStore) {
	m.slots = from.slots
	m.courses = from.courses
	m.assignments = from.assignments
	m.changes = from.changes
	m.templates = from.templates
	m.nextID = from.nextID
}

var errInjected = errors.New("injected failure")

func (m *memStore) fail(op string) error {
	if m.failOn == op {
		return errInjected
	}
	return nil
}

func (m *memStore) addSlot(instructorID int64, start time.Time) int64 {
	id := m.id()
	m.slots[id] = model.Slot{
		ID:           id,
		InstructorID: instructorID,
		StartTime:    start,
		EndTime:      start.Add(model.ClassDuration),
		Status:       model.SlotStatusFree,
	}
	return id
}

func (m *memStore) addCourse(studentID int64, total, remaining int) int64 {
	id := m.id()
	m.courses[id] = model.StudentCourse{
		ID:               id,
		StudentID:        studentID,
		CourseID:         1,
		TotalClasses:     total,
		RemainingClasses: remaining,
		State:            model.CourseStateActive,
		Result:           model.CourseResultPending,
	}
	return id
}

// fakeTxManager serialises transactions with one mutex and restores a snapshot on error.
type fakeTxManager struct {
	mu    sync.Mutex
	store *memStore
}

func (f *fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos repository.TxRepositories) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	before := f.store.snapshot()
	repos := repository.TxRepositories{
		Slots:       &fakeSlotRepo{store: f.store},
		Courses:     &fakeCourseRepo{store: f.store},
		Assignments: &fakeAssignmentRepo{store: f.store},
		Changes:     &fakeChangeRepo{store: f.store},
		Templates:   &fakeTemplateRepo{store: f.store},
	}
	if err := fn(ctx, repos); err != nil {
		f.store.restore(before)
		return err
	}
	return nil
}

// courses and friends return repos used outside WithTx, guarded by the same mutex.
func (f *fakeTxManager) courses() *fakeCourseRepo {
	return &fakeCourseRepo{store: f.store, mu: &f.mu}
}

func (f *fakeTxManager) assignments() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{store: f.store, mu: &f.mu}
}

func (f *fakeTxManager) slots() *fakeSlotRepo {
	return &fakeSlotRepo{store: f.store, mu: &f.mu}
}

func (f *fakeTxManager) templates() *fakeTemplateRepo {
	return &fakeTemplateRepo{store: f.store, mu: &f.mu}
}

type guard struct {
	mu *sync.Mutex
}

func (g guard) lock() func() {
	if g.mu == nil {
		return func() {}
	}
	g.mu.Lock()
	return g.mu.Unlock
}

type fakeSlotRepo struct {
	store *memStore
	mu    *sync.Mutex
}

func (r *fakeSlotRepo) CreateSeeds(ctx context.Context, seeds []model.SlotSeed) (int, error) {
	defer guard{r.mu}.lock()()
	if err := r.store.fail("slots.create"); err != nil {
		return 0, err
	}
	created := 0
	for _, seed := range seeds {
		exists := false
		for _, s := range r.store.slots {
			if s.InstructorID == seed.InstructorID && s.StartTime.Equal(seed.Start) {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		templateID := seed.TemplateID
		id := r.store.id()
		r.store.slots[id] = model.Slot{
			ID:           id,
			InstructorID: seed.InstructorID,
			TemplateID:   &templateID,
			StartTime:    seed.Start,
			EndTime:      seed.End,
			Status:       model.SlotStatusFree,
		}
		created++
	}
	return created, nil
}

func (r *fakeSlotRepo) GetByID(ctx context.Context, id int64) (*model.Slot, error) {
	defer guard{r.mu}.lock()()
	s, ok := r.store.slots[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *fakeSlotRepo) GetByIDForUpdate(ctx context.Context, id int64) (*model.Slot, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeSlotRepo) LockByIDs(ctx context.Context, ids []int64) ([]*model.Slot, error) {
	defer guard{r.mu}.lock()()
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	var out []*model.Slot
	for _, id := range sorted {
		if s, ok := r.store.slots[id]; ok {
			out = append(out, &s)
		}
	}
	return out, nil
}

func (r *fakeSlotRepo) Book(ctx context.Context, slotID, studentCourseID int64) (bool, error) {
	defer guard{r.mu}.lock()()
	if err := r.store.fail("slots.book"); err != nil {
		return false, err
	}
	s, ok := r.store.slots[slotID]
	if !ok || s.Status != model.SlotStatusFree {
		return false, nil
	}
	s.Status = model.SlotStatusBooked
	s.StudentCourseID = &studentCourseID
	r.store.slots[slotID] = s
	return true, nil
}

func (r *fakeSlotRepo) Release(ctx context.Context, slotID, studentCourseID int64) (bool, error) {
	defer guard{r.mu}.lock()()
	s, ok := r.store.slots[slotID]
	if !ok || s.Status != model.SlotStatusBooked || s.StudentCourseID == nil || *s.StudentCourseID != studentCourseID {
		return false, nil
	}
	s.Status = model.SlotStatusFree
	s.StudentCourseID = nil
	r.store.slots[slotID] = s
	return true, nil
}

func (r *fakeSlotRepo) Query(ctx context.Context, filter model.SlotFilter) ([]*model.Slot, error) {
	defer guard{r.mu}.lock()()
	out := make([]*model.Slot, 0)
	for _, s := range r.store.slots {
		if filter.InstructorID != nil && s.InstructorID != *filter.InstructorID {
			continue
		}
		if filter.Availability != "" && string(s.Status) != string(filter.Availability) {
			continue
		}
		if filter.From != nil && s.StartTime.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !s.StartTime.Before(*filter.To) {
			continue
		}
		if filter.TimeBucket != "" && !filter.TimeBucket.Contains(s.StartTime) {
			continue
		}
		if filter.StudentID != nil {
			if s.StudentCourseID == nil {
				continue
			}
			c := r.store.courses[*s.StudentCourseID]
			if c.StudentID != *filter.StudentID {
				continue
			}
		}
		slot := s
		out = append(out, &slot)
	}
	slices.SortFunc(out, func(a, b *model.Slot) int { return a.StartTime.Compare(b.StartTime) })
	return out, nil
}

func (r *fakeSlotRepo) FreeDates(ctx context.Context, from, to time.Time, instructorID *int64) ([]time.Time, error) {
	defer guard{r.mu}.lock()()
	seen := make(map[string]time.Time)
	for _, s := range r.store.slots {
		if s.Status != model.SlotStatusFree || s.StartTime.Before(from) || !s.StartTime.Before(to) {
			continue
		}
		if instructorID != nil && s.InstructorID != *instructorID {
			continue
		}
		day := time.Date(s.StartTime.Year(), s.StartTime.Month(), s.StartTime.Day(), 0, 0, 0, 0, time.UTC)
		seen[day.Format(DateLayout)] = day
	}
	out := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out, nil
}

type fakeCourseRepo struct {
	store *memStore
	mu    *sync.Mutex
}

func (r *fakeCourseRepo) Create(ctx context.Context, sc *model.StudentCourse) error {
	defer guard{r.mu}.lock()()
	if err := r.store.fail("courses.create"); err != nil {
		return err
	}
	sc.ID = r.store.id()
	sc.CreatedAt = time.Now()
	sc.UpdatedAt = sc.CreatedAt
	r.store.courses[sc.ID] = *sc
	return nil
}

func (r *fakeCourseRepo) GetByID(ctx context.Context, id int64) (*model.StudentCourse, error) {
	defer guard{r.mu}.lock()()
	sc, ok := r.store.courses[id]
	if !ok {
		return nil, nil
	}
	return &sc, nil
}

func (r *fakeCourseRepo) GetByIDForUpdate(ctx context.Context, id int64) (*model.StudentCourse, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeCourseRepo) ListByStudent(ctx context.Context, studentID int64) ([]*model.StudentCourse, error) {
	defer guard{r.mu}.lock()()
	out := make([]*model.StudentCourse, 0)
	for _, sc := range r.store.courses {
		if sc.StudentID == studentID {
			c := sc
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *model.StudentCourse) int { return int(a.ID - b.ID) })
	return out, nil
}

func (r *fakeCourseRepo) Debit(ctx context.Context, id int64, count int) (bool, error) {
	defer guard{r.mu}.lock()()
	if err := r.store.fail("courses.debit"); err != nil {
		return false, err
	}
	sc, ok := r.store.courses[id]
	if !ok || sc.RemainingClasses < count {
		return false, nil
	}
	sc.RemainingClasses -= count
	r.store.courses[id] = sc
	return true, nil
}

func (r *fakeCourseRepo) Credit(ctx context.Context, id int64, count int) (bool, error) {
	defer guard{r.mu}.lock()()
	sc, ok := r.store.courses[id]
	if !ok || sc.RemainingClasses+count > sc.TotalClasses {
		return false, nil
	}
	sc.RemainingClasses += count
	r.store.courses[id] = sc
	return true, nil
}

func (r *fakeCourseRepo) UpdateStatus(ctx context.Context, sc *model.StudentCourse) error {
	defer guard{r.mu}.lock()()
	cur, ok := r.store.courses[sc.ID]
	if !ok {
		return errors.New("student course not found")
	}
	cur.State = sc.State
	cur.Result = sc.Result
	cur.Comment = sc.Comment
	r.store.courses[sc.ID] = cur
	return nil
}

func (r *fakeCourseRepo) FailInactive(ctx context.Context, studentID int64, createdBefore time.Time) (int64, error) {
	defer guard{r.mu}.lock()()
	var n int64
	for id, sc := range r.store.courses {
		if sc.StudentID == studentID && sc.Result == model.CourseResultSuspended && sc.CreatedAt.Before(createdBefore) {
			sc.Result = model.CourseResultFailed
			r.store.courses[id] = sc
			n++
		}
	}
	return n, nil
}

type fakeAssignmentRepo struct {
	store *memStore
	mu    *sync.Mutex
}

func (r *fakeAssignmentRepo) Create(ctx context.Context, a *model.ClassAssignment) error {
	defer guard{r.mu}.lock()()
	if err := r.store.fail("assignments.create"); err != nil {
		return err
	}
	a.ID = r.store.id()
	r.store.assignments[a.ID] = *a
	return nil
}

func (r *fakeAssignmentRepo) GetByID(ctx context.Context, id int64) (*model.ClassAssignment, error) {
	defer guard{r.mu}.lock()()
	a, ok := r.store.assignments[id]
	if !ok {
		return nil, nil
	}
	a.Slot = nil
	return &a, nil
}

func (r *fakeAssignmentRepo) GetByIDForUpdate(ctx context.Context, id int64) (*model.ClassAssignment, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeAssignmentRepo) ListByStudentCourse(ctx context.Context, studentCourseID int64) ([]*model.ClassAssignment, error) {
	defer guard{r.mu}.lock()()
	out := make([]*model.ClassAssignment, 0)
	for _, a := range r.store.assignments {
		if a.StudentCourseID == studentCourseID {
			c := a
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *model.ClassAssignment) int { return int(a.ID - b.ID) })
	return out, nil
}

func (r *fakeAssignmentRepo) Rebind(ctx context.Context, a *model.ClassAssignment, newSlotID int64) error {
	defer guard{r.mu}.lock()()
	cur := r.store.assignments[a.ID]
	cur.SlotID = newSlotID
	cur.RescheduleCount++
	r.store.assignments[a.ID] = cur
	a.SlotID = cur.SlotID
	a.RescheduleCount = cur.RescheduleCount
	return nil
}

func (r *fakeAssignmentRepo) UpdateStatus(ctx context.Context, a *model.ClassAssignment, status model.AssignmentStatus) error {
	defer guard{r.mu}.lock()()
	cur := r.store.assignments[a.ID]
	cur.Status = status
	r.store.assignments[a.ID] = cur
	a.Status = status
	return nil
}

type fakeChangeRepo struct {
	store *memStore
}

func (r *fakeChangeRepo) Create(ctx context.Context, c *model.ClassChange) error {
	if err := r.store.fail("changes.create"); err != nil {
		return err
	}
	c.ID = r.store.id()
	r.store.changes = append(r.store.changes, *c)
	return nil
}

func (r *fakeChangeRepo) ListByAssignment(ctx context.Context, assignmentID int64) ([]*model.ClassChange, error) {
	out := make([]*model.ClassChange, 0)
	for _, c := range r.store.changes {
		if c.AssignmentID == assignmentID {
			cc := c
			out = append(out, &cc)
		}
	}
	return out, nil
}

type fakeTemplateRepo struct {
	store *memStore
	mu    *sync.Mutex
}

func (r *fakeTemplateRepo) Create(ctx context.Context, t *model.AvailabilityTemplate) error {
	defer guard{r.mu}.lock()()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	r.store.templates[t.ID] = *t
	return nil
}

func (r *fakeTemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.AvailabilityTemplate, error) {
	defer guard{r.mu}.lock()()
	t, ok := r.store.templates[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *fakeTemplateRepo) GetActiveByInstructor(ctx context.Context, instructorID int64) (*model.AvailabilityTemplate, error) {
	defer guard{r.mu}.lock()()
	for _, t := range r.store.templates {
		if t.InstructorID == instructorID && t.SupersededAt == nil {
			tt := t
			return &tt, nil
		}
	}
	return nil, nil
}

func (r *fakeTemplateRepo) SupersedeActive(ctx context.Context, instructorID int64, at time.Time) (int64, error) {
	defer guard{r.mu}.lock()()
	var n int64
	for id, t := range r.store.templates {
		if t.InstructorID == instructorID && t.SupersededAt == nil {
			ts := at
			t.SupersededAt = &ts
			r.store.templates[id] = t
			n++
		}
	}
	return n, nil
}

// recordingNotifier captures notifications.
type recordingNotifier struct {
	mu      sync.Mutex
	booked  int
	changed []model.ChangeOutcomeKind
	err     error
}

func (n *recordingNotifier) ClassesBooked(ctx context.Context, course *model.StudentCourse, assignments []*model.ClassAssignment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.booked += len(assignments)
	return n.err
}

func (n *recordingNotifier) ClassChanged(ctx context.Context, outcome *model.ChangeOutcome) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, outcome.Outcome)
	return n.err
}

// memSlotCache in-memory SlotCacheStore.
type memSlotCache struct {
	mu          sync.Mutex
	generation  int64
	data        map[string][]*model.Slot
	invalidated int
	err         error
}

func newMemSlotCache() *memSlotCache {
	return &memSlotCache{data: make(map[string][]*model.Slot)}
}

func (c *memSlotCache) Generation(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, c.err
}

func (c *memSlotCache) BumpGeneration(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.generation++
	c.invalidated++
	return c.generation, nil
}

func (c *memSlotCache) Load(ctx context.Context, key string) ([]*model.Slot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	slots, ok := c.data[key]
	if !ok {
		return nil, apperr.ErrCacheMiss
	}
	return slots, nil
}

func (c *memSlotCache) Save(ctx context.Context, key string, slots []*model.Slot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.data[key] = slots
	return nil
}

func (c *memSlotCache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// fixedClock is a settable clock for notice-window tests.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
