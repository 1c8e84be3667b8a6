package memory

import (
	"sort"
	"sync"
	"time"

	"agenticflow/backend/internal/domain"
	"agenticflow/backend/internal/storage"
)

// Store 内存存储实现，适合本地开发与测试。
//
// 所有方法都在互斥锁保护下操作，返回值均为副本，调用方持有的
// 对象不会被后续写入改动。
type Store struct {
	mu sync.RWMutex

	messages        map[string]domain.Message
	classifications map[string][]domain.Classification // messageID -> 按版本升序
	extractions     map[string]domain.NewsletterExtraction
	publishResults  map[string]domain.PublishResult
	replies         map[string][]domain.Reply
	runs            map[string]domain.PipelineRun
	runOrder        []string // 运行 ID，按创建顺序
}

// NewStore 创建内存存储。
func NewStore() *Store {
	return &Store{
		messages:        make(map[string]domain.Message),
		classifications: make(map[string][]domain.Classification),
		extractions:     make(map[string]domain.NewsletterExtraction),
		publishResults:  make(map[string]domain.PublishResult),
		replies:         make(map[string][]domain.Reply),
		runs:            make(map[string]domain.PipelineRun),
	}
}

// SaveMessage 保存邮件，已存在时覆盖。
func (s *Store) SaveMessage(message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	s.messages[message.ID] = *message
	return nil
}

// GetMessage 按 ID 取邮件。
func (s *Store) GetMessage(id string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, storage.ErrMessageNotFound
	}
	return &msg, nil
}

// ListMessages 按接收时间倒序列出邮件。
func (s *Store) ListMessages(limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]domain.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		messages = append(messages, msg)
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Date.After(messages[j].Date)
	})
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

// MarkMessageRead 标记邮件已读。
func (s *Store) MarkMessageRead(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return storage.ErrMessageNotFound
	}
	msg.IsRead = true
	s.messages[id] = msg
	return nil
}

// SaveClassification 追加一条新版本分类。
//
// Version 为 0 时由存储层分配为当前最大版本 + 1；显式指定的版本
// 与已有记录冲突时返回 ErrVersionConflict。
func (s *Store) SaveClassification(c *domain.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.classifications[c.MessageID]
	if c.Version == 0 {
		maxVersion := 0
		for _, prev := range existing {
			if prev.Version > maxVersion {
				maxVersion = prev.Version
			}
		}
		c.Version = maxVersion + 1
	} else {
		for _, prev := range existing {
			if prev.Version == c.Version {
				return storage.ErrVersionConflict
			}
		}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	versions := append(existing, *c)
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version < versions[j].Version
	})
	s.classifications[c.MessageID] = versions
	return nil
}

// GetLatestClassification 取某封邮件最新版本的分类。
func (s *Store) GetLatestClassification(messageID string) (*domain.Classification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.classifications[messageID]
	if len(versions) == 0 {
		return nil, storage.ErrClassificationNotFound
	}
	latest := versions[len(versions)-1]
	return &latest, nil
}

// ListClassifications 按版本升序列出某封邮件的全部分类记录。
func (s *Store) ListClassifications(messageID string) ([]domain.Classification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.classifications[messageID]
	out := make([]domain.Classification, len(versions))
	copy(out, versions)
	return out, nil
}

// SaveExtraction 按 MessageID upsert 提取结果。
func (s *Store) SaveExtraction(e *domain.NewsletterExtraction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.extractions[e.MessageID] = *e
	return nil
}

// GetExtraction 按 MessageID 取提取结果。
func (s *Store) GetExtraction(messageID string) (*domain.NewsletterExtraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.extractions[messageID]
	if !ok {
		return nil, storage.ErrExtractionNotFound
	}
	return &e, nil
}

// SavePublishResult 保存发布记录。
func (s *Store) SavePublishResult(r *domain.PublishResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.publishResults[r.ID] = *r
	return nil
}

// GetPublishResult 按 ID 取发布记录。
func (s *Store) GetPublishResult(id string) (*domain.PublishResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.publishResults[id]
	if !ok {
		return nil, storage.ErrPublishResultNotFound
	}
	return &r, nil
}

// ListDueScheduledPosts 列出到期且仍为 scheduled 的发布记录。
func (s *Store) ListDueScheduledPosts(before time.Time, limit int) ([]domain.PublishResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	due := make([]domain.PublishResult, 0)
	for _, r := range s.publishResults {
		if r.Status != domain.PostStatusScheduled || r.ScheduledAt == nil {
			continue
		}
		if r.ScheduledAt.After(before) {
			continue
		}
		due = append(due, r)
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(*due[j].ScheduledAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// ResolveScheduledPost 仅当记录仍为 scheduled 时更新其终态。
func (s *Store) ResolveScheduledPost(id string, status domain.PostStatus, postID, url, errMsg string, postedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.publishResults[id]
	if !ok {
		return storage.ErrPublishResultNotFound
	}
	if r.Status != domain.PostStatusScheduled {
		return storage.ErrAlreadyResolved
	}

	r.Status = status
	r.PostID = postID
	r.URL = url
	r.Error = errMsg
	if status == domain.PostStatusPosted {
		at := postedAt.UTC()
		r.PostedAt = &at
	}
	s.publishResults[id] = r
	return nil
}

// SaveReply 保存回复草稿。
func (s *Store) SaveReply(r *domain.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.replies[r.MessageID] = append(s.replies[r.MessageID], *r)
	return nil
}

// ListReplies 列出某封邮件的全部回复草稿。
func (s *Store) ListReplies(messageID string) ([]domain.Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	replies := s.replies[messageID]
	out := make([]domain.Reply, len(replies))
	copy(out, replies)
	return out, nil
}

// SaveRun 保存流水线运行记录，已存在时覆盖。
func (s *Store) SaveRun(run *domain.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		s.runOrder = append(s.runOrder, run.ID)
	}
	s.runs[run.ID] = *run
	return nil
}

// GetRun 按 ID 取流水线运行记录。
func (s *Store) GetRun(id string) (*domain.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, storage.ErrRunNotFound
	}
	return &run, nil
}

// ListRuns 按创建顺序倒序列出最近的运行记录。
func (s *Store) ListRuns(limit int) ([]domain.PipelineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PipelineRun, 0, len(s.runOrder))
	for i := len(s.runOrder) - 1; i >= 0; i-- {
		out = append(out, s.runs[s.runOrder[i]])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Health 健康检查。内存存储恒为健康。
func (s *Store) Health() error {
	return nil
}

// Close 关闭存储。内存存储无需清理。
func (s *Store) Close() error {
	return nil
}
