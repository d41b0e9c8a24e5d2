package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/config"
	"github.com/sakif/codecraft/internal/entitlement"
	"github.com/sakif/codecraft/internal/events"
	"github.com/sakif/codecraft/internal/executor"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

// =========================================================================
// IN-MEMORY STORE
// =========================================================================
//
// fakeStore implements every repository interface on plain maps so the
// service rules can be tested without SQLite. It mirrors the guarantees the
// real store gives: unique identities, unique (user, snippet) stars and an
// all-or-nothing cascade.

type starKey struct{ user, snippet string }

type fakeStore struct {
	mu sync.Mutex

	nextID int
	clock  time.Time

	users    map[string]*model.User // by identity
	snippets map[string]*model.Snippet
	comments map[string]*model.Comment
	stars    map[starKey]time.Time
	execs    []model.Execution

	// failCascade makes DeleteCascade fail before touching anything,
	// the way a rolled-back transaction looks from outside.
	failCascade error
}

var (
	_ repository.UserRepository      = (*fakeStore)(nil)
	_ repository.SnippetRepository   = (*fakeStore)(nil)
	_ repository.CommentRepository   = (*fakeStore)(nil)
	_ repository.StarRepository      = (*fakeStore)(nil)
	_ repository.ExecutionRepository = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		users:    make(map[string]*model.User),
		snippets: make(map[string]*model.Snippet),
		comments: make(map[string]*model.Comment),
		stars:    make(map[starKey]time.Time),
	}
}

// tick returns a strictly increasing timestamp so orderings are stable.
func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// --- users ---

func (f *fakeStore) InsertIfAbsent(_ context.Context, u *model.User) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.users[u.Identity]; ok {
		cp := *existing
		return &cp, nil
	}
	stored := model.User{
		ID:        f.id("user"),
		Identity:  u.Identity,
		Email:     strings.ToLower(u.Email),
		Name:      u.Name,
		CreatedAt: f.tick(),
	}
	f.users[u.Identity] = &stored
	cp := stored
	return &cp, nil
}

func (f *fakeStore) GetUserByIdentity(_ context.Context, identity string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[identity]
	if !ok {
		return nil, apperror.UserNotFound(identity)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user with email", email)
}

func (f *fakeStore) UpgradeToPro(_ context.Context, identity string, up model.ProUpgrade) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[identity]
	if !ok {
		return apperror.UserNotFound(identity)
	}
	at := up.At
	u.IsPro = true
	u.ProSince = &at
	u.LemonSqueezyCustomerID = up.CustomerID
	u.LemonSqueezyOrderID = up.OrderID
	return nil
}

// --- snippets ---

func (f *fakeStore) Create(_ context.Context, s *model.Snippet) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s.ID = f.id("snip")
	s.CreatedAt = f.tick()
	stored := *s
	f.snippets[s.ID] = &stored
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*model.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", id)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) List(_ context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]model.Snippet, 0, len(f.snippets))
	for _, s := range f.snippets {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, opts), nil
}

func (f *fakeStore) ListByIDs(_ context.Context, ids []string) ([]model.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []model.Snippet{}
	for _, id := range ids {
		if s, ok := f.snippets[id]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteCascade(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCascade != nil {
		return f.failCascade
	}
	if _, ok := f.snippets[id]; !ok {
		return apperror.NotFound("snippet", id)
	}
	for cid, c := range f.comments {
		if c.SnippetID == id {
			delete(f.comments, cid)
		}
	}
	for k := range f.stars {
		if k.snippet == id {
			delete(f.stars, k)
		}
	}
	delete(f.snippets, id)
	return nil
}

// --- comments ---

func (f *fakeStore) CreateComment(_ context.Context, c *model.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.snippets[c.SnippetID]; !ok {
		return fmt.Errorf("foreign key: snippet %s", c.SnippetID)
	}
	c.ID = f.id("comment")
	c.CreatedAt = f.tick()
	stored := *c
	f.comments[c.ID] = &stored
	return nil
}

func (f *fakeStore) GetCommentByID(_ context.Context, id string) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.comments[id]
	if !ok {
		return nil, apperror.NotFound("comment", id)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) ListComments(_ context.Context, snippetID string) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []model.Comment{}
	for _, c := range f.comments {
		if c.SnippetID == snippetID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) DeleteComment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.comments[id]; !ok {
		return apperror.NotFound("comment", id)
	}
	delete(f.comments, id)
	return nil
}

// --- stars ---

func (f *fakeStore) ToggleStar(_ context.Context, user, snippet string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	k := starKey{user, snippet}
	if _, ok := f.stars[k]; ok {
		delete(f.stars, k)
		return false, nil
	}
	f.stars[k] = f.tick()
	return true, nil
}

func (f *fakeStore) IsStarred(_ context.Context, user, snippet string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.stars[starKey{user, snippet}]
	return ok, nil
}

func (f *fakeStore) CountStars(_ context.Context, snippet string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.stars {
		if k.snippet == snippet {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) StarredSnippetIDs(_ context.Context, user string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	type entry struct {
		id string
		at time.Time
	}
	var entries []entry
	for k, at := range f.stars {
		if k.user == user {
			entries = append(entries, entry{k.snippet, at})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.id)
	}
	return ids, nil
}

// --- executions ---

func (f *fakeStore) CreateExecution(_ context.Context, e *model.Execution) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e.ID = f.id("exec")
	e.CreatedAt = f.tick()
	f.execs = append(f.execs, *e)
	return nil
}

func (f *fakeStore) ListExecutions(_ context.Context, owner string, opts repository.ListOptions) ([]model.Execution, error) {
	all, _ := f.AllExecutions(context.Background(), owner)
	// newest first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return page(all, opts), nil
}

func (f *fakeStore) AllExecutions(_ context.Context, owner string) ([]model.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []model.Execution{}
	for _, e := range f.execs {
		if e.OwnerIdentity == owner {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) countExecutions(owner string) int {
	all, _ := f.AllExecutions(context.Background(), owner)
	return len(all)
}

func page[T any](items []T, opts repository.ListOptions) []T {
	if opts.Offset >= len(items) {
		return []T{}
	}
	items = items[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

// =========================================================================
// OTHER COLLABORATORS
// =========================================================================

// recordingPublisher remembers every event it was given.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// fakeSandbox returns a canned result (or error) and counts calls.
type fakeSandbox struct {
	result *executor.ExecutionResult
	err    error
	calls  int
	last   executor.ExecutionRequest
}

func (s *fakeSandbox) Execute(_ context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	s.calls++
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalogue(t *testing.T) *config.Catalogue {
	t.Helper()
	cat, err := config.LoadCatalogue("")
	if err != nil {
		t.Fatalf("LoadCatalogue: %v", err)
	}
	return cat
}

// services bundles everything a test may need, all backed by one store.
type services struct {
	store      *fakeStore
	publisher  *recordingPublisher
	sandbox    *fakeSandbox
	users      *UserService
	snippets   *SnippetService
	engagement *EngagementService
	executions *ExecutionService
}

func newServices(t *testing.T) *services {
	t.Helper()
	store := newFakeStore()
	pub := &recordingPublisher{}
	sandbox := &fakeSandbox{result: &executor.ExecutionResult{Stdout: "ok\n", Output: "ok\n"}}
	logger := testLogger()

	exec := NewExecutionService(ExecutionDeps{
		Executions: store,
		Users:      store,
		Stars:      store,
		Snippets:   store,
		Policy:     entitlement.NewPolicy("javascript"),
		Languages:  testCatalogue(t),
		Sandbox:    sandbox,
	}, logger)
	exec.now = func() time.Time { return store.clock }

	return &services{
		store:      store,
		publisher:  pub,
		sandbox:    sandbox,
		users:      NewUserService(store, pub, logger),
		snippets:   NewSnippetService(store, store, pub, logger),
		engagement: NewEngagementService(store, store, store, store, logger),
		executions: exec,
	}
}

// mustUser syncs identity with a derived email and name.
func (s *services) mustUser(t *testing.T, identity string) *model.User {
	t.Helper()
	u, err := s.users.EnsureUser(context.Background(), identity, identity+"@example.com", "Name "+identity)
	if err != nil {
		t.Fatalf("EnsureUser(%s): %v", identity, err)
	}
	return u
}

func (s *services) mustSnippet(t *testing.T, owner, language string) *model.Snippet {
	t.Helper()
	sn, err := s.snippets.Create(context.Background(), owner, "Snippet by "+owner, language, "print(1)")
	if err != nil {
		t.Fatalf("Create snippet: %v", err)
	}
	return sn
}
