package auth

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/GoCodeAlone/planner/comms"
)

// Provider owns the session state machine:
//
//	unknown -> signed_out | signed_in   once, after Start restores any saved session
//	signed_out <-> signed_in            on SignIn, SignUp, SignOut
//
// Every transition is published on the bus under comms.TopicSession.
type Provider struct {
	dir    Directory
	tokens *Tokens
	file   *TokenFile // nil disables session persistence
	bus    comms.Bus
	logger *slog.Logger

	startOnce sync.Once
	ready     chan struct{}

	// pubMu serialises state changes with their notification so that
	// subscribers observe transitions in order.
	pubMu sync.Mutex

	mu      sync.RWMutex
	session Session
	token   string
}

// NewProvider builds a provider in the unknown state. file may be nil.
func NewProvider(dir Directory, tokens *Tokens, file *TokenFile, bus comms.Bus, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		dir:     dir,
		tokens:  tokens,
		file:    file,
		bus:     bus,
		logger:  logger,
		session: Session{State: StateUnknown},
		ready:   make(chan struct{}),
	}
}

// Current returns the present session snapshot.
func (p *Provider) Current() Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session
}

// Token returns the token of the active session, or "".
func (p *Provider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// Start checks for a saved session in the background and resolves the
// unknown state. Only the first call has any effect. The returned channel is
// closed once the state is resolved.
func (p *Provider) Start(ctx context.Context) <-chan struct{} {
	p.startOnce.Do(func() {
		go func() {
			defer close(p.ready)
			p.restore(ctx)
		}()
	})
	return p.ready
}

func (p *Provider) restore(ctx context.Context) {
	next := Session{State: StateSignedOut}
	var token string

	if p.file != nil {
		saved, err := p.file.Load()
		if err != nil {
			p.logger.Warn("load saved session", slog.Any("err", err))
		}
		if saved != "" {
			if id, err := p.resume(ctx, saved); err != nil {
				p.logger.Info("saved session rejected", slog.Any("err", err))
				_ = p.file.Clear()
			} else {
				next = Session{State: StateSignedIn, Identity: id}
				token = saved
			}
		}
	}

	p.pubMu.Lock()
	defer p.pubMu.Unlock()
	// An explicit sign-in may have already resolved the state.
	if p.Current().State != StateUnknown {
		return
	}
	p.transitionLocked(ctx, next, token)
}

func (p *Provider) resume(ctx context.Context, token string) (Identity, error) {
	claimed, err := p.tokens.Parse(token)
	if err != nil {
		return Identity{}, err
	}
	return p.dir.Lookup(ctx, claimed.UID)
}

// SignIn authenticates and switches to the signed-in state. It returns the
// new session and the token issued for it. Any rejection from the directory
// is reported as ErrInvalidCredentials.
func (p *Provider) SignIn(ctx context.Context, email, password string) (Session, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return p.Current(), "", ErrMissingFields
	}
	id, err := p.dir.Authenticate(ctx, email, password)
	if err != nil {
		p.logger.Info("sign in rejected", slog.String("email", email), slog.Any("err", err))
		return p.Current(), "", ErrInvalidCredentials
	}
	return p.establish(ctx, id)
}

// SignUp creates an account and signs it in, returning the session and its
// token like SignIn. Fields are checked locally before the directory is
// contacted; any directory rejection is reported as ErrAccountCreation.
func (p *Provider) SignUp(ctx context.Context, email, password, confirm string) (Session, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return p.Current(), "", ErrMissingFields
	}
	if password != confirm {
		return p.Current(), "", ErrPasswordMismatch
	}
	id, err := p.dir.Register(ctx, email, password)
	if err != nil {
		p.logger.Info("sign up rejected", slog.String("email", email), slog.Any("err", err))
		return p.Current(), "", ErrAccountCreation
	}
	return p.establish(ctx, id)
}

func (p *Provider) establish(ctx context.Context, id Identity) (Session, string, error) {
	token, err := p.tokens.Issue(id)
	if err != nil {
		return p.Current(), "", err
	}
	if p.file != nil {
		if err := p.file.Save(token); err != nil {
			p.logger.Warn("persist session", slog.Any("err", err))
		}
	}

	next := Session{State: StateSignedIn, Identity: id}
	p.pubMu.Lock()
	defer p.pubMu.Unlock()
	p.transitionLocked(ctx, next, token)
	return next, token, nil
}

// SignOut ends the session. Signing out while signed out is a no-op.
func (p *Provider) SignOut(ctx context.Context) error {
	if p.file != nil {
		if err := p.file.Clear(); err != nil {
			p.logger.Warn("clear session", slog.Any("err", err))
		}
	}
	p.pubMu.Lock()
	defer p.pubMu.Unlock()
	if p.Current().State == StateSignedOut {
		return nil
	}
	p.transitionLocked(ctx, Session{State: StateSignedOut}, "")
	return nil
}

// Authorize checks that token is valid and belongs to the active identity.
func (p *Provider) Authorize(token string) (Identity, error) {
	id, err := p.tokens.Parse(token)
	if err != nil {
		return Identity{}, err
	}
	cur := p.Current()
	if !cur.SignedIn() {
		return Identity{}, ErrNotSignedIn
	}
	if cur.Identity.UID != id.UID {
		return Identity{}, ErrInvalidToken
	}
	return cur.Identity, nil
}

// transitionLocked records next and notifies subscribers. pubMu must be held.
func (p *Provider) transitionLocked(ctx context.Context, next Session, token string) {
	p.mu.Lock()
	prev := p.session
	p.session = next
	p.token = token
	p.mu.Unlock()

	p.logger.Info("session changed",
		slog.String("from", string(prev.State)),
		slog.String("to", string(next.State)),
		slog.String("uid", next.Identity.UID),
	)
	err := p.bus.Publish(ctx, &comms.Event{
		Type:      comms.TypeSessionChanged,
		Topic:     comms.TopicSession,
		Payload:   next,
		Timestamp: time.Now(),
	})
	if err != nil {
		p.logger.Error("session listener failed", slog.Any("err", err))
	}
}

// Listener receives session snapshots.
type Listener func(ctx context.Context, s Session)

// Subscription is a cancellable registration of a Listener.
type Subscription struct {
	once  sync.Once
	unsub func()
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.unsub)
}

// Subscribe registers fn for session changes. When the state is already
// resolved, fn is first called with the current session before Subscribe
// returns.
func (p *Provider) Subscribe(ctx context.Context, fn Listener) *Subscription {
	p.pubMu.Lock()
	defer p.pubMu.Unlock()

	unsub := p.bus.Subscribe(comms.TopicSession, func(ctx context.Context, ev *comms.Event) error {
		if s, ok := ev.Payload.(Session); ok {
			fn(ctx, s)
		}
		return nil
	})
	if cur := p.Current(); cur.State != StateUnknown {
		fn(ctx, cur)
	}
	return &Subscription{unsub: unsub}
}
