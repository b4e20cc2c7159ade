package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/models"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/repositories"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRepository is an in-memory Repository. Transactions run fn directly.
type fakeRepository struct {
	mu sync.Mutex

	nextID    uint
	sessions  map[uint]*models.QuizSession
	links     []models.SessionQuestion
	answers   []models.SessionAnswer
	questions map[uint]*models.Question
	history   map[string]*models.UserQuestionHistory
	events    []models.ProctoringEvent

	dashboardCalls int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		sessions:  map[uint]*models.QuizSession{},
		questions: map[uint]*models.Question{},
		history:   map[string]*models.UserQuestionHistory{},
	}
}

func (r *fakeRepository) id() uint {
	r.nextID++
	return r.nextID
}

func (r *fakeRepository) addQuestion(category, difficulty string, options []string, correct int) *models.Question {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := &models.Question{
		ID:         r.id(),
		Text:       "question " + category,
		Category:   category,
		Difficulty: models.DifficultyLevel(difficulty),
		CreatedBy:  "teacher-1",
	}
	for i, text := range options {
		q.Options = append(q.Options, models.QuestionOption{
			ID:         r.id(),
			QuestionID: q.ID,
			Position:   i,
			Text:       text,
			IsCorrect:  i == correct,
		})
	}
	r.questions[q.ID] = q
	return q
}

func (r *fakeRepository) Session() repositories.SessionRepository       { return fakeSessions{r} }
func (r *fakeRepository) Question() repositories.QuestionRepository     { return fakeQuestions{r} }
func (r *fakeRepository) History() repositories.HistoryRepository       { return fakeHistory{r} }
func (r *fakeRepository) Proctoring() repositories.ProctoringRepository { return fakeProctoring{r} }
func (r *fakeRepository) Dashboard() repositories.DashboardRepository   { return fakeDashboard{r} }

func (r *fakeRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(r)
}

func (r *fakeRepository) Ping(ctx context.Context) error { return nil }
func (r *fakeRepository) Close() error                   { return nil }

// ===== sessions =====

type fakeSessions struct{ r *fakeRepository }

func (f fakeSessions) Create(ctx context.Context, tx *gorm.DB, session *models.QuizSession) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	session.ID = f.r.id()
	stored := *session
	stored.Questions, stored.Answers, stored.ProctoringEvents = nil, nil, nil
	f.r.sessions[session.ID] = &stored
	return nil
}

func (f fakeSessions) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizSession, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	s, ok := f.r.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *s
	return &out, nil
}

func (f fakeSessions) GetWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizSession, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	s, ok := f.r.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *s
	for _, link := range f.r.links {
		if link.SessionID == id {
			link.Question = *f.r.questions[link.QuestionID]
			out.Questions = append(out.Questions, link)
		}
	}
	for _, a := range f.r.answers {
		if a.SessionID == id {
			out.Answers = append(out.Answers, a)
		}
	}
	for _, e := range f.r.events {
		if e.SessionID == id {
			out.ProctoringEvents = append(out.ProctoringEvents, e)
		}
	}
	return &out, nil
}

func (f fakeSessions) LockForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.QuizSession, error) {
	return f.GetByID(ctx, tx, id)
}

func (f fakeSessions) ListByUser(ctx context.Context, tx *gorm.DB, userID string, filters repositories.SessionFilters) ([]*models.QuizSession, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.QuizSession
	for _, s := range f.r.sessions {
		if s.UserID != userID {
			continue
		}
		if filters.Status != nil && s.Status != *filters.Status {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := int64(len(out))
	if filters.Offset < len(out) {
		out = out[filters.Offset:]
	} else {
		out = nil
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, total, nil
}

func (f fakeSessions) CountActive(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var n int64
	for _, s := range f.r.sessions {
		if s.UserID == userID && s.Status == models.SessionActive {
			n++
		}
	}
	return n, nil
}

func (f fakeSessions) AddQuestions(ctx context.Context, tx *gorm.DB, questions []models.SessionQuestion) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, q := range questions {
		q.ID = f.r.id()
		f.r.links = append(f.r.links, q)
	}
	return nil
}

func (f fakeSessions) SaveAnswer(ctx context.Context, tx *gorm.DB, answer *models.SessionAnswer) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, a := range f.r.answers {
		if a.SessionID == answer.SessionID && a.QuestionID == answer.QuestionID {
			return nil
		}
	}
	answer.ID = f.r.id()
	f.r.answers = append(f.r.answers, *answer)
	return nil
}

func (f fakeSessions) HasAnswer(ctx context.Context, tx *gorm.DB, sessionID, questionID uint) (bool, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, a := range f.r.answers {
		if a.SessionID == sessionID && a.QuestionID == questionID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeSessions) ListAnswersByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.SessionAnswer, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.SessionAnswer
	for i := range f.r.answers {
		s, ok := f.r.sessions[f.r.answers[i].SessionID]
		if !ok || !s.IsCompleted() {
			continue
		}
		if f.r.answers[i].UserID == userID {
			a := f.r.answers[i]
			out = append(out, &a)
		}
	}
	return out, nil
}

func (f fakeSessions) AverageTimeByQuestion(ctx context.Context, tx *gorm.DB, questionIDs []uint) (map[uint]float64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	sums := map[uint]int64{}
	counts := map[uint]int64{}
	for _, a := range f.r.answers {
		if a.TimeSpent > 0 {
			sums[a.QuestionID] += a.TimeSpent
			counts[a.QuestionID]++
		}
	}
	out := map[uint]float64{}
	for _, id := range questionIDs {
		if counts[id] > 0 {
			out[id] = float64(sums[id]) / float64(counts[id])
		}
	}
	return out, nil
}

func (f fakeSessions) Complete(ctx context.Context, tx *gorm.DB, session *models.QuizSession) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	s, ok := f.r.sessions[session.ID]
	if !ok || s.Status != models.SessionActive {
		return repositories.ErrNotFound
	}
	s.Status = models.SessionCompleted
	s.CompletedAt = session.CompletedAt
	s.TotalQuestions = session.TotalQuestions
	s.CorrectAnswers = session.CorrectAnswers
	s.IncorrectAnswers = session.IncorrectAnswers
	s.Percentage = session.Percentage
	s.Analytics = session.Analytics
	return nil
}

// ===== questions =====

type fakeQuestions struct{ r *fakeRepository }

func (f fakeQuestions) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	question.ID = f.r.id()
	for i := range question.Options {
		question.Options[i].ID = f.r.id()
		question.Options[i].QuestionID = question.ID
	}
	cp := *question
	f.r.questions[question.ID] = &cp
	return nil
}

func (f fakeQuestions) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	q, ok := f.r.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *q
	return &cp, nil
}

func (f fakeQuestions) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Question
	for _, id := range ids {
		if q, ok := f.r.questions[id]; ok {
			cp := *q
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Random returns matching questions in id order so tests stay deterministic.
func (f fakeQuestions) Random(ctx context.Context, tx *gorm.DB, filters repositories.RandomQuestionFilters) ([]*models.Question, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Question
	for _, q := range f.r.questions {
		if filters.Category != nil && q.Category != *filters.Category {
			continue
		}
		if filters.Difficulty != nil && q.Difficulty != *filters.Difficulty {
			continue
		}
		cp := *q
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > filters.Count {
		out = out[:filters.Count]
	}
	return out, nil
}

// ===== history =====

type fakeHistory struct{ r *fakeRepository }

func historyKey(userID string, questionID uint) string {
	return userID + "/" + formatID(questionID)
}

func (f fakeHistory) Upsert(ctx context.Context, tx *gorm.DB, userID string, outcomes []repositories.AnswerOutcome) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, o := range outcomes {
		key := historyKey(userID, o.QuestionID)
		h, ok := f.r.history[key]
		if !ok {
			h = &models.UserQuestionHistory{ID: f.r.id(), UserID: userID, QuestionID: o.QuestionID}
			f.r.history[key] = h
		}
		h.Category = o.Category
		h.TotalAttempts++
		if o.IsCorrect {
			h.CorrectAttempts++
		}
		h.LastAttemptAt = o.AnsweredAt
	}
	return nil
}

func (f fakeHistory) ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.UserQuestionHistory, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.UserQuestionHistory
	for _, h := range f.r.history {
		if h.UserID == userID {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

// ===== proctoring =====

type fakeProctoring struct{ r *fakeRepository }

func (f fakeProctoring) Create(ctx context.Context, tx *gorm.DB, event *models.ProctoringEvent) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	event.ID = f.r.id()
	f.r.events = append(f.r.events, *event)
	return nil
}

func (f fakeProctoring) ListBySession(ctx context.Context, tx *gorm.DB, sessionID uint) ([]*models.ProctoringEvent, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.ProctoringEvent
	for i := range f.r.events {
		if f.r.events[i].SessionID == sessionID {
			e := f.r.events[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

func (f fakeProctoring) CountBySession(ctx context.Context, tx *gorm.DB, sessionID uint) (int64, error) {
	events, _ := f.ListBySession(ctx, tx, sessionID)
	return int64(len(events)), nil
}

// ===== dashboard =====

type fakeDashboard struct{ r *fakeRepository }

func (f fakeDashboard) GetTotalSessions(ctx context.Context, tx *gorm.DB) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	f.r.dashboardCalls++
	return int64(len(f.r.sessions)), nil
}

func (f fakeDashboard) GetCompletedSessions(ctx context.Context, tx *gorm.DB) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var n int64
	for _, s := range f.r.sessions {
		if s.IsCompleted() {
			n++
		}
	}
	return n, nil
}

func (f fakeDashboard) GetTotalQuestions(ctx context.Context, tx *gorm.DB) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	return int64(len(f.r.questions)), nil
}

func (f fakeDashboard) GetActiveUsers(ctx context.Context, tx *gorm.DB, since time.Time) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	users := map[string]bool{}
	for _, s := range f.r.sessions {
		if !s.StartedAt.Before(since) {
			users[s.UserID] = true
		}
	}
	return int64(len(users)), nil
}

func (f fakeDashboard) GetAverageScore(ctx context.Context, tx *gorm.DB) (float64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var sum, n int
	for _, s := range f.r.sessions {
		if s.IsCompleted() {
			sum += s.Percentage
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return float64(sum) / float64(n), nil
}

func (f fakeDashboard) GetPerformanceByCategory(ctx context.Context, tx *gorm.DB, limit int) ([]repositories.CategoryPerformanceData, error) {
	return nil, nil
}

func (f fakeDashboard) GetActivityTrends(ctx context.Context, tx *gorm.DB, since time.Time) ([]repositories.ActivityTrendData, error) {
	return nil, nil
}
