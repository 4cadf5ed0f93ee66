// Package storetest provides in-memory fakes of the service storage
// interfaces for tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/campus-hunt/internal/domain"
)

type progressKey struct {
	userID     string
	locationID string
}

type boardEntry struct {
	userID string
	points int
}

// Store is an in-memory implementation of service.Store. All methods follow
// the same sentinel and nil-return conventions as the Postgres repository.
type Store struct {
	mu sync.Mutex

	users      map[string]*domain.User
	locations  map[string]*domain.Location
	challenges map[string]*domain.Challenge
	hints      map[string][]domain.Hint
	tokens     map[string]*domain.AccessToken
	progress   map[progressKey]*domain.Progress

	// board preserves entry creation order so ties rank first-registered first
	board []boardEntry

	// Participations records every appended history row for assertions
	Participations []domain.Participation
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		users:      make(map[string]*domain.User),
		locations:  make(map[string]*domain.Location),
		challenges: make(map[string]*domain.Challenge),
		hints:      make(map[string][]domain.Hint),
		tokens:     make(map[string]*domain.AccessToken),
		progress:   make(map[progressKey]*domain.Progress),
	}
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return domain.ErrEmailTaken
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// AddLocation registers a location with its challenge and ordered hints
func (s *Store) AddLocation(l *domain.Location, c *domain.Challenge, hints ...domain.Hint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *l
	s.locations[l.ID] = &cp
	if c != nil {
		ccp := *c
		s.challenges[l.ID] = &ccp
	}
	ordered := append([]domain.Hint(nil), hints...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })
	s.hints[l.ID] = ordered
}

func (s *Store) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locations[id]
	if !ok {
		return nil, domain.ErrLocationNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *Store) GetLocationByQR(ctx context.Context, qrCode string) (*domain.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.locations {
		if l.QRCode == qrCode {
			cp := *l
			return &cp, nil
		}
	}
	return nil, domain.ErrLocationNotFound
}

func (s *Store) GetChallengeByLocation(ctx context.Context, locationID string) (*domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[locationID]
	if !ok {
		return nil, domain.ErrNoChallenge
	}
	cp := *c
	return &cp, nil
}

func (s *Store) CreateAccessToken(ctx context.Context, t *domain.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tokens[t.Token] = &cp

	key := progressKey{t.UserID, t.LocationID}
	if _, ok := s.progress[key]; !ok {
		now := time.Now()
		s.progress[key] = &domain.Progress{
			UserID:     t.UserID,
			LocationID: t.LocationID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	return nil
}

func (s *Store) GetAccessToken(ctx context.Context, token string) (*domain.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	cp := *t
	return &cp, nil
}

// ExpireToken backdates a stored token so it reads as expired
func (s *Store) ExpireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[token]; ok {
		t.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

func (s *Store) GetProgress(ctx context.Context, userID, locationID string) (*domain.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[progressKey{userID, locationID}]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *Store) CompleteChallenge(ctx context.Context, userID, locationID string, points int) (*domain.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := progressKey{userID, locationID}
	now := time.Now()
	p, ok := s.progress[key]
	if !ok {
		p = &domain.Progress{UserID: userID, LocationID: locationID, CreatedAt: now}
		s.progress[key] = p
	}
	if p.Completed {
		return nil, domain.ErrLocationCompleted
	}

	p.Completed = true
	p.Points = points
	p.CompletedAt = &now
	p.UpdatedAt = now

	s.addPoints(userID, points)
	s.Participations = append(s.Participations, domain.Participation{
		UserID:     userID,
		LocationID: locationID,
		Action:     domain.ActionCompletedChallenge,
		CreatedAt:  now,
	})

	cp := *p
	return &cp, nil
}

func (s *Store) DispenseHint(ctx context.Context, userID, locationID string) (*domain.Hint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.progress[progressKey{userID, locationID}]
	if !ok {
		return nil, domain.ErrNoProgress
	}

	hints := s.hints[locationID]
	if p.CurrentHint >= len(hints) {
		return nil, nil
	}
	hint := hints[p.CurrentHint]
	p.CurrentHint++
	p.UpdatedAt = time.Now()
	return &hint, nil
}

func (s *Store) CreateLeaderboardEntry(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.board {
		if e.userID == userID {
			return nil
		}
	}
	s.board = append(s.board, boardEntry{userID: userID})
	return nil
}

func (s *Store) Ranking(ctx context.Context) ([]domain.RankedPlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append([]boardEntry(nil), s.board...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].points > entries[j].points })

	ranking := make([]domain.RankedPlayer, 0, len(entries))
	for i, e := range entries {
		var name, email string
		if u, ok := s.users[e.userID]; ok {
			name = u.FullName()
			email = u.Email
		}
		ranking = append(ranking, domain.RankedPlayer{
			Rank:   i + 1,
			Name:   name,
			Email:  email,
			Points: e.points,
		})
	}
	return ranking, nil
}

func (s *Store) GetTotalPoints(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.board {
		if e.userID == userID {
			return e.points, nil
		}
	}
	return 0, nil
}

func (s *Store) addPoints(userID string, points int) {
	for i := range s.board {
		if s.board[i].userID == userID {
			s.board[i].points += points
			return
		}
	}
	s.board = append(s.board, boardEntry{userID: userID, points: points})
}

// Cache is an in-memory implementation of service.RankingCache
type Cache struct {
	mu      sync.Mutex
	ranking []domain.RankedPlayer
	set     bool
	sets    int
}

// NewCache creates an empty ranking cache
func NewCache() *Cache {
	return &Cache{}
}

func (c *Cache) GetRanking(ctx context.Context) ([]domain.RankedPlayer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set {
		return nil, nil
	}
	return append([]domain.RankedPlayer(nil), c.ranking...), nil
}

func (c *Cache) SetRanking(ctx context.Context, ranking []domain.RankedPlayer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ranking = append([]domain.RankedPlayer(nil), ranking...)
	c.set = true
	c.sets++
	return nil
}

// SetCount returns how many times SetRanking was called
func (c *Cache) SetCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

func (c *Cache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ranking = nil
	c.set = false
	return nil
}

// Publisher records published game events
type Publisher struct {
	mu     sync.Mutex
	events []domain.GameEvent
}

// NewPublisher creates an empty event recorder
func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Publish(event domain.GameEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// Events returns a copy of the recorded events
func (p *Publisher) Events() []domain.GameEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.GameEvent(nil), p.events...)
}
