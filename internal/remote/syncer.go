package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"resumeBuilder/internal/database"
	"resumeBuilder/internal/editor"
	"resumeBuilder/internal/metrics"
	"resumeBuilder/internal/resume"
	"resumeBuilder/internal/session"
)

var (
	// ErrNotSignedIn 表示远端操作需要登录。
	ErrNotSignedIn = errors.New("must be logged in to save your resume")
	// ErrNotFound 表示简历不存在或不属于当前身份。
	ErrNotFound = errors.New("resume not found")
	// ErrOtherOwner 表示活动文档保存在另一个账号下，需要先加载或导入。
	ErrOtherOwner = errors.New("resume was saved under another account")
)

// Repository 是 resumes 表的访问接口，所有方法都按 userID 过滤。
type Repository interface {
	Insert(ctx context.Context, userID string, data []byte) (database.Resume, error)
	Update(ctx context.Context, id uint, userID string, data []byte) (database.Resume, error)
	Get(ctx context.Context, id uint, userID string) (database.Resume, error)
	ListByUser(ctx context.Context, userID string) ([]database.Resume, error)
}

// IdentitySource 提供当前身份。
type IdentitySource interface {
	Current() (session.Identity, bool)
}

// Syncer 把工作区的活动文档与远端存储同步。
type Syncer struct {
	store    *editor.Store
	identity IdentitySource
	repo     Repository
	logger   *slog.Logger

	// 同一工作区的保存串行执行，第二次保存能看到第一次回写的 id。
	saves *semaphore.Weighted

	mu        sync.Mutex
	lastList  []resume.Document
	lastOwner string
}

func NewSyncer(store *editor.Store, identity IdentitySource, repo Repository, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		store:    store,
		identity: identity,
		repo:     repo,
		logger:   logger,
		saves:    semaphore.NewWeighted(1),
	}
}

// Save 保存活动文档。没有 id 时新建一行并回写 id、所有者与时间戳；
// 已有 id 时按 id 与所有者更新。失败时内存与快照都不变。
func (s *Syncer) Save(ctx context.Context) (resume.Document, error) {
	identity, ok := s.identity.Current()
	if !ok {
		metrics.RemoteOp("save", "rejected")
		return resume.Document{}, ErrNotSignedIn
	}

	if err := s.saves.Acquire(ctx, 1); err != nil {
		return resume.Document{}, fmt.Errorf("wait for pending save: %w", err)
	}
	defer s.saves.Release(1)

	// 排队期间可能已经登出或换了身份。
	if now, ok := s.identity.Current(); !ok || now.ID != identity.ID {
		metrics.RemoteOp("save", "rejected")
		return resume.Document{}, ErrNotSignedIn
	}

	doc := s.store.Document()
	if doc.Synced() && doc.UserID != "" && doc.UserID != identity.ID {
		metrics.RemoteOp("save", "rejected")
		return resume.Document{}, ErrOtherOwner
	}
	payload, err := json.Marshal(doc.Content())
	if err != nil {
		return resume.Document{}, fmt.Errorf("encode resume: %w", err)
	}

	logger := s.logger.With(slog.String("identity_id", identity.ID))

	var row database.Resume
	if doc.Synced() {
		row, err = s.repo.Update(ctx, doc.ID, identity.ID, payload)
	} else {
		row, err = s.repo.Insert(ctx, identity.ID, payload)
	}
	if err != nil {
		metrics.RemoteOp("save", "error")
		if errors.Is(err, database.ErrNotFound) {
			logger.Warn("save rejected: row missing or foreign", slog.Uint64("resume_id", uint64(doc.ID)))
			return resume.Document{}, ErrNotFound
		}
		logger.Error("save resume failed", slog.Any("error", err))
		return resume.Document{}, fmt.Errorf("save resume: %w", err)
	}

	meta := editor.RemoteMeta{
		ID:        row.ID,
		UserID:    row.UserID,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if err := s.store.AdoptRemote(ctx, meta); err != nil {
		return resume.Document{}, fmt.Errorf("adopt remote metadata: %w", err)
	}

	metrics.RemoteOp("save", "ok")
	logger.Info("resume saved", slog.Uint64("resume_id", uint64(row.ID)))
	return s.store.Document(), nil
}

// Load 用远端简历替换活动文档。任何失败都不改变当前状态。
func (s *Syncer) Load(ctx context.Context, id uint) (resume.Document, error) {
	identity, ok := s.identity.Current()
	if !ok {
		metrics.RemoteOp("load", "rejected")
		return resume.Document{}, ErrNotSignedIn
	}

	row, err := s.repo.Get(ctx, id, identity.ID)
	if err != nil {
		metrics.RemoteOp("load", "error")
		if errors.Is(err, database.ErrNotFound) {
			return resume.Document{}, ErrNotFound
		}
		return resume.Document{}, fmt.Errorf("load resume %d: %w", id, err)
	}

	doc, err := fromRow(row)
	if err != nil {
		metrics.RemoteOp("load", "error")
		return resume.Document{}, fmt.Errorf("load resume %d: %w", id, err)
	}
	if err := s.store.Replace(ctx, doc); err != nil {
		metrics.RemoteOp("load", "error")
		return resume.Document{}, fmt.Errorf("load resume %d: %w", id, err)
	}

	metrics.RemoteOp("load", "ok")
	return doc, nil
}

// ListSaved 返回当前身份的全部简历，最近更新的在前。
// 未登录时返回空列表；查询失败时返回同一身份上一次成功的列表和错误。
func (s *Syncer) ListSaved(ctx context.Context) ([]resume.Document, error) {
	identity, ok := s.identity.Current()
	if !ok {
		s.forget()
		return []resume.Document{}, nil
	}

	rows, err := s.repo.ListByUser(ctx, identity.ID)
	if err != nil {
		metrics.RemoteOp("list", "error")
		s.logger.Warn("list resumes failed", slog.Any("error", err))
		return s.previous(identity.ID), fmt.Errorf("list resumes: %w", err)
	}

	docs := make([]resume.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := fromRow(row)
		if err != nil {
			s.logger.Warn("skip malformed saved resume",
				slog.Uint64("resume_id", uint64(row.ID)),
				slog.Any("error", err),
			)
			continue
		}
		docs = append(docs, doc)
	}

	s.mu.Lock()
	s.lastList = docs
	s.lastOwner = identity.ID
	s.mu.Unlock()

	metrics.RemoteOp("list", "ok")
	return cloneDocs(docs), nil
}

// previous 只返回属于 owner 的上一次列表。
func (s *Syncer) previous(owner string) []resume.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastList == nil || s.lastOwner != owner {
		return []resume.Document{}
	}
	return cloneDocs(s.lastList)
}

func (s *Syncer) forget() {
	s.mu.Lock()
	s.lastList = nil
	s.lastOwner = ""
	s.mu.Unlock()
}

// fromRow 把远端行还原为文档：payload 加上行的 id、所有者与时间戳。
func fromRow(row database.Resume) (resume.Document, error) {
	doc, err := resume.Decode(row.Data)
	if err != nil {
		return resume.Document{}, err
	}
	created := row.CreatedAt
	updated := row.UpdatedAt
	doc.ID = row.ID
	doc.UserID = row.UserID
	doc.CreatedAt = &created
	doc.UpdatedAt = &updated
	return doc, nil
}

func cloneDocs(docs []resume.Document) []resume.Document {
	out := make([]resume.Document, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}
