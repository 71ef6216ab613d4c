package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"resumeBuilder/internal/auth"
	"resumeBuilder/internal/database"
)

var (
	// ErrProviderUnavailable 表示未配置外部身份提供方。
	ErrProviderUnavailable = errors.New("sign-in provider is not configured")
	// ErrNoSession 表示会话令牌无效或对应身份不存在。
	ErrNoSession = errors.New("no valid session")
)

// Identity 是当前登录的身份。
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// EventKind 标识身份状态变化。
type EventKind string

const (
	EventSignInStarted EventKind = "sign_in_started"
	EventSignedIn      EventKind = "signed_in"
	EventSignedOut     EventKind = "signed_out"
)

// Event 在身份状态变化时推送给订阅者。
type Event struct {
	Kind     EventKind `json:"kind"`
	Identity *Identity `json:"identity,omitempty"`
	At       time.Time `json:"at"`
}

// ProfileStore 持久化身份资料。
type ProfileStore interface {
	Upsert(ctx context.Context, p database.Profile) error
	Get(ctx context.Context, id string) (database.Profile, error)
}

// Provider 是外部身份提供方（OAuth2 授权码流程）。
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (Identity, error)
}

// TokenParser 校验会话令牌。
type TokenParser interface {
	ParseToken(token, tokenType string) (*auth.TokenClaims, error)
}

// Manager 维护一个工作区的当前身份，并向订阅者广播状态变化。
type Manager struct {
	profiles ProfileStore
	provider Provider
	tokens   TokenParser
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	current *Identity
	subs    map[uint64]chan Event
	nextSub uint64
	closed  bool
}

// NewManager 构造 Manager。provider 可以为 nil，此时 Begin 返回 ErrProviderUnavailable。
func NewManager(profiles ProfileStore, provider Provider, tokens TokenParser, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		profiles: profiles,
		provider: provider,
		tokens:   tokens,
		logger:   logger,
		now:      time.Now,
		subs:     make(map[uint64]chan Event),
	}
}

// Current 返回当前身份。
func (m *Manager) Current() (Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Identity{}, false
	}
	return *m.current, true
}

// Begin 返回提供方的授权地址。完成登录要等回调调用 Complete。
func (m *Manager) Begin(state string) (string, error) {
	if m.provider == nil {
		return "", ErrProviderUnavailable
	}
	url := m.provider.AuthCodeURL(state)
	m.publish(Event{Kind: EventSignInStarted})
	return url, nil
}

// Complete 用授权码换取身份，并建立会话。
func (m *Manager) Complete(ctx context.Context, code string) (Identity, error) {
	if m.provider == nil {
		return Identity{}, ErrProviderUnavailable
	}
	identity, err := m.provider.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := m.Establish(ctx, identity); err != nil {
		return Identity{}, err
	}
	return identity, nil
}

// Establish 写入身份资料后切换为该身份。资料写入失败时身份不变。
func (m *Manager) Establish(ctx context.Context, identity Identity) error {
	if identity.ID == "" {
		return errors.New("identity id is required")
	}
	err := m.profiles.Upsert(ctx, database.Profile{
		ID:    identity.ID,
		Email: identity.Email,
		Name:  identity.Name,
	})
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	m.setCurrent(&identity)
	m.logger.Info("signed in", slog.String("identity_id", identity.ID))
	m.publish(Event{Kind: EventSignedIn, Identity: &identity})
	return nil
}

// Restore 在启动时用访问令牌恢复会话。
func (m *Manager) Restore(ctx context.Context, accessToken string) (Identity, error) {
	claims, err := m.tokens.ParseToken(accessToken, auth.TokenTypeAccess)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	profile, err := m.profiles.Get(ctx, claims.IdentityID())
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: profile missing", ErrNoSession)
		}
		return Identity{}, fmt.Errorf("load profile: %w", err)
	}

	identity := Identity{ID: profile.ID, Email: profile.Email, Name: profile.Name}
	m.setCurrent(&identity)
	m.publish(Event{Kind: EventSignedIn, Identity: &identity})
	return identity, nil
}

// SignOut 清除当前身份。之后的远端操作都会被拒绝。
func (m *Manager) SignOut() {
	m.mu.Lock()
	wasSignedIn := m.current != nil
	m.current = nil
	m.mu.Unlock()

	if wasSignedIn {
		m.logger.Info("signed out")
	}
	m.publish(Event{Kind: EventSignedOut})
}

// Subscribe 注册一个订阅者。buffer 满时新事件被丢弃，不会阻塞发布方。
// 返回的取消函数可以重复调用，首次调用时关闭通道。
func (m *Manager) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			// Close 可能已经关闭了通道。
			if _, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(ch)
			}
		})
	}
}

// Close 关闭所有订阅，工作区被回收时调用。
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}

func (m *Manager) setCurrent(identity *Identity) {
	m.mu.Lock()
	m.current = identity
	m.mu.Unlock()
}

func (m *Manager) publish(ev Event) {
	ev.At = m.now()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.logger.Warn("session event dropped", slog.String("kind", string(ev.Kind)))
		}
	}
}
