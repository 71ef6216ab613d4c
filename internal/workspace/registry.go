package workspace

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"resumeBuilder/internal/editor"
	"resumeBuilder/internal/metrics"
	"resumeBuilder/internal/remote"
	"resumeBuilder/internal/resume"
	"resumeBuilder/internal/session"
	"resumeBuilder/internal/snapshot"
)

// Workspace 是一个设备的应用状态：唯一的活动文档、身份与远端同步器。
type Workspace struct {
	DeviceID string
	Editor   *editor.Store
	Session  *session.Manager
	Remote   *remote.Syncer

	mu       sync.Mutex
	lastSeen time.Time
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

// LastSeen 返回最近一次访问时间。
func (w *Workspace) LastSeen() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// Deps 是构造工作区所需的共享依赖。Provider 可以为 nil。
type Deps struct {
	Snapshots *snapshot.Slots
	Profiles  session.ProfileStore
	Provider  session.Provider
	Tokens    session.TokenParser
	Resumes   remote.Repository
}

// Registry 按设备 id 持有工作区，由调用方注入，不使用包级全局变量。
type Registry struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	spaces map[string]*Workspace
}

func NewRegistry(deps Deps, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		deps:   deps,
		logger: logger,
		now:    time.Now,
		spaces: make(map[string]*Workspace),
	}
}

// Get 返回设备的工作区，不存在时从本地快照恢复（没有快照时使用默认文档）。
func (r *Registry) Get(ctx context.Context, deviceID string) *Workspace {
	if ws, ok := r.Lookup(deviceID); ok {
		return ws
	}

	// 快照读取可能访问 Redis，放在锁外执行。
	ws := r.build(ctx, deviceID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.spaces[deviceID]; ok {
		ws.Session.Close()
		existing.touch(r.now())
		return existing
	}
	r.spaces[deviceID] = ws
	metrics.SetActiveWorkspaces(len(r.spaces))
	r.logger.Info("workspace created", slog.String("device_id", deviceID), slog.Int("workspaces", len(r.spaces)))
	return ws
}

// Lookup 返回已存在的工作区，不会创建。
func (r *Registry) Lookup(deviceID string) (*Workspace, bool) {
	r.mu.Lock()
	ws, ok := r.spaces[deviceID]
	r.mu.Unlock()
	if ok {
		ws.touch(r.now())
	}
	return ws, ok
}

func (r *Registry) build(ctx context.Context, deviceID string) *Workspace {
	logger := r.logger.With(slog.String("device_id", deviceID))

	slot := r.deps.Snapshots.ForDevice(deviceID)
	initial := slot.Read(ctx, resume.NewDocument())

	store := editor.New(initial, slot)
	sess := session.NewManager(r.deps.Profiles, r.deps.Provider, r.deps.Tokens, logger)
	return &Workspace{
		DeviceID: deviceID,
		Editor:   store,
		Session:  sess,
		Remote:   remote.NewSyncer(store, sess, r.deps.Resumes, logger),
		lastSeen: r.now(),
	}
}

// Len 返回当前驻留的工作区数量。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.spaces)
}

// Devices 返回驻留工作区的设备 id，按字典序。
func (r *Registry) Devices() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.spaces))
	for id := range r.spaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EvictIdle 移除超过 ttl 未访问的工作区并关闭其订阅。
// 文档已经写入本地快照，下次访问时会重新恢复。
func (r *Registry) EvictIdle(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	var idle []*Workspace
	for id, ws := range r.spaces {
		if ws.LastSeen().Before(cutoff) {
			idle = append(idle, ws)
			delete(r.spaces, id)
		}
	}
	metrics.SetActiveWorkspaces(len(r.spaces))
	r.mu.Unlock()

	for _, ws := range idle {
		ws.Session.Close()
		r.logger.Info("workspace evicted", slog.String("device_id", ws.DeviceID))
	}
	return len(idle)
}

// Run 周期性清理空闲工作区，直到 ctx 结束。
func (r *Registry) Run(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.EvictIdle(ttl); n > 0 {
				r.logger.Debug("idle workspaces evicted", slog.Int("count", n))
			}
		}
	}
}

// Close 关闭所有工作区的会话订阅。
func (r *Registry) Close() {
	r.mu.Lock()
	spaces := r.spaces
	r.spaces = make(map[string]*Workspace)
	metrics.SetActiveWorkspaces(0)
	r.mu.Unlock()

	for _, ws := range spaces {
		ws.Session.Close()
	}
}
