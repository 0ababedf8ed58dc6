package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/planner/comms"
)

// fakeDirectory is an in-memory Directory that counts remote calls.
type fakeDirectory struct {
	mu        sync.Mutex
	byEmail   map[string]string // email -> password
	uids      map[string]string // email -> uid
	registers int
	fail      error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{byEmail: map[string]string{}, uids: map[string]string{}}
}

func (f *fakeDirectory) Authenticate(_ context.Context, email, password string) (Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return Identity{}, f.fail
	}
	pw, ok := f.byEmail[email]
	if !ok {
		return Identity{}, ErrAccountNotFound
	}
	if pw != password {
		return Identity{}, ErrWrongPassword
	}
	return Identity{UID: f.uids[email], Email: email}, nil
}

func (f *fakeDirectory) Register(_ context.Context, email, password string) (Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers++
	if f.fail != nil {
		return Identity{}, f.fail
	}
	if _, ok := f.byEmail[email]; ok {
		return Identity{}, ErrEmailTaken
	}
	f.byEmail[email] = password
	f.uids[email] = "uid-" + email
	return Identity{UID: f.uids[email], Email: email}, nil
}

func (f *fakeDirectory) Lookup(_ context.Context, uid string) (Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for email, u := range f.uids {
		if u == uid {
			return Identity{UID: uid, Email: email}, nil
		}
	}
	return Identity{}, ErrAccountNotFound
}

type recorder struct {
	mu       sync.Mutex
	sessions []Session
}

func (r *recorder) listen(_ context.Context, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.sessions))
	for i, s := range r.sessions {
		out[i] = s.State
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProvider(t *testing.T, dir Directory, file *TokenFile) *Provider {
	t.Helper()
	return NewProvider(dir, NewTokens("provider-test-secret", time.Hour), file, comms.NewInMemoryBus(), quietLogger())
}

func waitReady(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for session restore")
	}
}

func TestProvider_StartResolvesToSignedOut(t *testing.T) {
	p := newTestProvider(t, newFakeDirectory(), nil)
	assert.Equal(t, StateUnknown, p.Current().State)

	var rec recorder
	sub := p.Subscribe(context.Background(), rec.listen)
	defer sub.Close()
	assert.Empty(t, rec.states(), "no notification while unknown")

	waitReady(t, p.Start(context.Background()))
	waitReady(t, p.Start(context.Background()))

	assert.Equal(t, StateSignedOut, p.Current().State)
	assert.Equal(t, []State{StateSignedOut}, rec.states(), "unknown resolves exactly once")
}

func TestProvider_SignUpSignInSignOut(t *testing.T) {
	dir := newFakeDirectory()
	p := newTestProvider(t, dir, nil)
	ctx := context.Background()
	waitReady(t, p.Start(ctx))

	var rec recorder
	sub := p.Subscribe(ctx, rec.listen)
	defer sub.Close()

	s, token, err := p.SignUp(ctx, " student@example.com ", "password", "password")
	require.NoError(t, err)
	assert.True(t, s.SignedIn())
	assert.Equal(t, "student@example.com", s.Identity.Email)
	assert.NotEmpty(t, token)
	assert.Equal(t, token, p.Token())

	require.NoError(t, p.SignOut(ctx))
	assert.Equal(t, StateSignedOut, p.Current().State)
	assert.Empty(t, p.Token())
	require.NoError(t, p.SignOut(ctx), "signing out twice is harmless")

	s, _, err = p.SignIn(ctx, "student@example.com", "password")
	require.NoError(t, err)
	assert.Equal(t, "uid-student@example.com", s.Identity.UID)

	assert.Equal(t, []State{StateSignedOut, StateSignedIn, StateSignedOut, StateSignedIn}, rec.states())
}

func TestProvider_SignInFailures(t *testing.T) {
	dir := newFakeDirectory()
	p := newTestProvider(t, dir, nil)
	ctx := context.Background()
	waitReady(t, p.Start(ctx))
	_, _, err := p.SignUp(ctx, "student@example.com", "password", "password")
	require.NoError(t, err)
	require.NoError(t, p.SignOut(ctx))

	_, _, err = p.SignIn(ctx, "", "password")
	assert.ErrorIs(t, err, ErrMissingFields)

	_, _, err = p.SignIn(ctx, "student@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = p.SignIn(ctx, "ghost@example.com", "password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	dir.fail = errors.New("network down")
	_, _, err = p.SignIn(ctx, "student@example.com", "password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Equal(t, StateSignedOut, p.Current().State, "failed attempts leave state unchanged")
}

func TestProvider_SignUpValidatesLocally(t *testing.T) {
	dir := newFakeDirectory()
	p := newTestProvider(t, dir, nil)
	ctx := context.Background()

	_, _, err := p.SignUp(ctx, "student@example.com", "", "")
	assert.ErrorIs(t, err, ErrMissingFields)

	_, _, err = p.SignUp(ctx, "student@example.com", "password", "passw0rd")
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	assert.Equal(t, 0, dir.registers, "remote call only after local checks pass")

	_, _, err = p.SignUp(ctx, "student@example.com", "password", "password")
	require.NoError(t, err)
	_, _, err = p.SignUp(ctx, "student@example.com", "password", "password")
	assert.ErrorIs(t, err, ErrAccountCreation)
}

func TestProvider_RestoresSavedSession(t *testing.T) {
	dir := newFakeDirectory()
	file := NewTokenFile(filepath.Join(t.TempDir(), "session.token"))
	ctx := context.Background()

	first := newTestProvider(t, dir, file)
	waitReady(t, first.Start(ctx))
	_, _, err := first.SignUp(ctx, "student@example.com", "password", "password")
	require.NoError(t, err)

	second := newTestProvider(t, dir, file)
	var rec recorder
	sub := second.Subscribe(ctx, rec.listen)
	defer sub.Close()
	waitReady(t, second.Start(ctx))

	require.True(t, second.Current().SignedIn())
	assert.Equal(t, "uid-student@example.com", second.Current().Identity.UID)
	assert.Equal(t, []State{StateSignedIn}, rec.states())

	require.NoError(t, second.SignOut(ctx))
	third := newTestProvider(t, dir, file)
	waitReady(t, third.Start(ctx))
	assert.Equal(t, StateSignedOut, third.Current().State)
}

func TestProvider_RejectsTamperedSavedSession(t *testing.T) {
	file := NewTokenFile(filepath.Join(t.TempDir(), "session.token"))
	require.NoError(t, file.Save("garbage"))

	p := newTestProvider(t, newFakeDirectory(), file)
	waitReady(t, p.Start(context.Background()))

	assert.Equal(t, StateSignedOut, p.Current().State)
	saved, err := file.Load()
	require.NoError(t, err)
	assert.Empty(t, saved, "rejected token is discarded")
}

func TestProvider_SubscribeDeliversCurrentAndCloses(t *testing.T) {
	p := newTestProvider(t, newFakeDirectory(), nil)
	ctx := context.Background()
	waitReady(t, p.Start(ctx))

	var rec recorder
	sub := p.Subscribe(ctx, rec.listen)
	assert.Equal(t, []State{StateSignedOut}, rec.states())

	sub.Close()
	sub.Close()
	_, _, err := p.SignUp(ctx, "student@example.com", "password", "password")
	require.NoError(t, err)
	assert.Len(t, rec.states(), 1, "closed subscription receives nothing")
}

func TestProvider_Authorize(t *testing.T) {
	p := newTestProvider(t, newFakeDirectory(), nil)
	ctx := context.Background()
	waitReady(t, p.Start(ctx))

	_, err := p.Authorize("bogus")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = p.SignUp(ctx, "student@example.com", "password", "password")
	require.NoError(t, err)
	token := p.Token()

	id, err := p.Authorize(token)
	require.NoError(t, err)
	assert.Equal(t, "student@example.com", id.Email)

	require.NoError(t, p.SignOut(ctx))
	_, err = p.Authorize(token)
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestProvider_SignInReturnsItsOwnToken(t *testing.T) {
	dir := newFakeDirectory()
	p := newTestProvider(t, dir, nil)
	ctx := context.Background()
	waitReady(t, p.Start(ctx))

	emails := []string{"first@example.com", "second@example.com"}
	for _, email := range emails {
		_, err := dir.Register(ctx, email, "password")
		require.NoError(t, err)
	}

	type result struct {
		session Session
		token   string
		err     error
	}
	results := make(chan result, 40)
	var wg sync.WaitGroup
	for i := range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, token, err := p.SignIn(ctx, emails[i%2], "password")
			results <- result{s, token, err}
		}()
	}
	wg.Wait()
	close(results)

	for r := range results {
		require.NoError(t, r.err)
		claimed, err := p.tokens.Parse(r.token)
		require.NoError(t, err)
		assert.Equal(t, r.session.Identity.UID, claimed.UID, "token belongs to the caller's account")
	}
}
