package sql

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver (pgx)
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"agenticflow/backend/internal/domain"
	"agenticflow/backend/internal/storage"
)

// Store SQL 数据库存储实现（支持 MySQL 5.7+ 和 PostgreSQL）
type Store struct {
	db         *sql.DB
	gormDB     *gorm.DB // GORM 实例，仅用于迁移
	driverName string   // "mysql" 或 "postgres"
}

// NewStore 创建 SQL 数据库存储
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
) (*Store, error) {
	if driverName != "mysql" && driverName != "postgres" {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}

	// pgx 通过 database/sql 适配器注册为 "pgx" 驱动
	sqlDriver := driverName
	if driverName == "postgres" {
		sqlDriver = "pgx"
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var gormDB *gorm.DB
	if driverName == "mysql" {
		gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: db}), gormConfig)
	} else {
		gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: db}), gormConfig)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	store := &Store{
		db:         db,
		gormDB:     gormDB,
		driverName: driverName,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Ping()
}

// migrate 执行数据库迁移（使用 GORM AutoMigrate）
func (s *Store) migrate() error {
	if s.gormDB == nil {
		return nil
	}
	return s.gormDB.AutoMigrate(
		&domain.Message{},
		&domain.Classification{},
		&domain.NewsletterExtraction{},
		&domain.PublishResult{},
		&domain.Reply{},
		&domain.PipelineRun{},
	)
}

// placeholder 根据数据库类型返回占位符
func (s *Store) placeholder(n int) string {
	if s.driverName == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// placeholders 生成 n 个占位符的逗号分隔列表
func (s *Store) placeholders(n int) string {
	out := ""
	for i := 1; i <= n; i++ {
		if i > 1 {
			out += ", "
		}
		out += s.placeholder(i)
	}
	return out
}

// toJSON 序列化 JSON 列，nil 序列化为 "null"
func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal json column: %w", err)
	}
	return string(b), nil
}

// fromJSON 反序列化 JSON 列，空串与 NULL 保持零值
func fromJSON(raw sql.NullString, v any) error {
	if !raw.Valid || raw.String == "" || raw.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw.String), v)
}

// ========== Message Repository ==========

// SaveMessage 保存邮件，已存在时整行覆盖。
func (s *Store) SaveMessage(message *domain.Message) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	toAddrs, err := toJSON(message.To)
	if err != nil {
		return err
	}
	cc, err := toJSON(message.Cc)
	if err != nil {
		return err
	}
	bcc, err := toJSON(message.Bcc)
	if err != nil {
		return err
	}
	labels, err := toJSON(message.Labels)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(fmt.Sprintf(`DELETE FROM messages WHERE id = %s`, s.placeholder(1)), message.ID); err != nil {
		return fmt.Errorf("replace message: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO messages
		(id, thread_id, from_address, to_addresses, cc, bcc, subject, date, text, html, snippet, labels, is_read, is_starred, source, created_at)
		VALUES (%s)`, s.placeholders(16))
	_, err = s.db.Exec(query,
		message.ID, message.ThreadID, message.From, toAddrs, cc, bcc,
		message.Subject, message.Date, message.Text, message.HTML, message.Snippet,
		labels, message.IsRead, message.IsStarred, message.Source, message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// GetMessage 按 ID 取邮件。
func (s *Store) GetMessage(id string) (*domain.Message, error) {
	query := fmt.Sprintf(`
		SELECT id, thread_id, from_address, to_addresses, cc, bcc, subject, date, text, html, snippet, labels, is_read, is_starred, source, created_at
		FROM messages WHERE id = %s`, s.placeholder(1))
	msg, err := scanMessage(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// ListMessages 按接收时间倒序列出邮件。
func (s *Store) ListMessages(limit int) ([]domain.Message, error) {
	query := `
		SELECT id, thread_id, from_address, to_addresses, cc, bcc, subject, date, text, html, snippet, labels, is_read, is_starred, source, created_at
		FROM messages ORDER BY date DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// MarkMessageRead 标记邮件已读。
func (s *Store) MarkMessageRead(id string) error {
	query := fmt.Sprintf(`UPDATE messages SET is_read = %s WHERE id = %s`, s.placeholder(1), s.placeholder(2))
	result, err := s.db.Exec(query, true, id)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrMessageNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	var msg domain.Message
	var toAddrs, cc, bcc, labels sql.NullString
	err := row.Scan(
		&msg.ID, &msg.ThreadID, &msg.From, &toAddrs, &cc, &bcc,
		&msg.Subject, &msg.Date, &msg.Text, &msg.HTML, &msg.Snippet,
		&labels, &msg.IsRead, &msg.IsStarred, &msg.Source, &msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := fromJSON(toAddrs, &msg.To); err != nil {
		return nil, err
	}
	if err := fromJSON(cc, &msg.Cc); err != nil {
		return nil, err
	}
	if err := fromJSON(bcc, &msg.Bcc); err != nil {
		return nil, err
	}
	if err := fromJSON(labels, &msg.Labels); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ========== Classification Repository ==========

// SaveClassification 追加一条新版本分类。
//
// Version 为 0 时在事务内分配为当前最大版本 + 1；
// (message_id, version) 唯一索引兜底并发竞争。
func (s *Store) SaveClassification(c *domain.Classification) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	categories, err := toJSON(c.Categories)
	if err != nil {
		return err
	}
	actionItems, err := toJSON(c.ActionItems)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if c.Version == 0 {
		query := fmt.Sprintf(`SELECT COALESCE(MAX(version), 0) FROM classifications WHERE message_id = %s`, s.placeholder(1))
		var maxVersion int
		if err := tx.QueryRow(query, c.MessageID).Scan(&maxVersion); err != nil {
			return fmt.Errorf("query max version: %w", err)
		}
		c.Version = maxVersion + 1
	}

	query := fmt.Sprintf(`
		INSERT INTO classifications
		(id, message_id, version, intent, categories, priority, sentiment, requires_response, summary, action_items, confidence, model, created_at)
		VALUES (%s)`, s.placeholders(13))
	_, err = tx.Exec(query,
		c.ID, c.MessageID, c.Version, c.Intent, categories, string(c.Priority), string(c.Sentiment),
		c.RequiresResponse, c.Summary, actionItems, c.Confidence, c.Model, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrVersionConflict
		}
		return fmt.Errorf("save classification: %w", err)
	}
	return tx.Commit()
}

// isUniqueViolation 判断错误是否为唯一约束冲突。
// PostgreSQL 错误码 23505,MySQL 错误号 1062。
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}

// GetLatestClassification 取某封邮件最新版本的分类。
func (s *Store) GetLatestClassification(messageID string) (*domain.Classification, error) {
	query := fmt.Sprintf(`
		SELECT id, message_id, version, intent, categories, priority, sentiment, requires_response, summary, action_items, confidence, model, created_at
		FROM classifications WHERE message_id = %s ORDER BY version DESC LIMIT 1`, s.placeholder(1))
	c, err := scanClassification(s.db.QueryRow(query, messageID))
	if err == sql.ErrNoRows {
		return nil, storage.ErrClassificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest classification: %w", err)
	}
	return c, nil
}

// ListClassifications 按版本升序列出某封邮件的全部分类记录。
func (s *Store) ListClassifications(messageID string) ([]domain.Classification, error) {
	query := fmt.Sprintf(`
		SELECT id, message_id, version, intent, categories, priority, sentiment, requires_response, summary, action_items, confidence, model, created_at
		FROM classifications WHERE message_id = %s ORDER BY version ASC`, s.placeholder(1))

	rows, err := s.db.Query(query, messageID)
	if err != nil {
		return nil, fmt.Errorf("list classifications: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Classification, 0)
	for rows.Next() {
		c, err := scanClassification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan classification: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanClassification(row rowScanner) (*domain.Classification, error) {
	var c domain.Classification
	var categories, actionItems sql.NullString
	err := row.Scan(
		&c.ID, &c.MessageID, &c.Version, &c.Intent, &categories, &c.Priority, &c.Sentiment,
		&c.RequiresResponse, &c.Summary, &actionItems, &c.Confidence, &c.Model, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := fromJSON(categories, &c.Categories); err != nil {
		return nil, err
	}
	if err := fromJSON(actionItems, &c.ActionItems); err != nil {
		return nil, err
	}
	return &c, nil
}

// ========== Newsletter Repository ==========

// SaveExtraction 按 MessageID upsert 提取结果。
func (s *Store) SaveExtraction(e *domain.NewsletterExtraction) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	articles, err := toJSON(e.Articles)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM newsletter_extractions WHERE message_id = %s`, s.placeholder(1))
	if _, err := s.db.Exec(query, e.MessageID); err != nil {
		return fmt.Errorf("replace extraction: %w", err)
	}

	query = fmt.Sprintf(`
		INSERT INTO newsletter_extractions
		(id, message_id, title, summary, content_type, articles, source, model, error, created_at)
		VALUES (%s)`, s.placeholders(10))
	_, err = s.db.Exec(query,
		e.ID, e.MessageID, e.Title, e.Summary, string(e.ContentType),
		articles, e.Source, e.Model, e.Error, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save extraction: %w", err)
	}
	return nil
}

// GetExtraction 按 MessageID 取提取结果。
func (s *Store) GetExtraction(messageID string) (*domain.NewsletterExtraction, error) {
	query := fmt.Sprintf(`
		SELECT id, message_id, title, summary, content_type, articles, source, model, error, created_at
		FROM newsletter_extractions WHERE message_id = %s`, s.placeholder(1))

	var e domain.NewsletterExtraction
	var articles sql.NullString
	err := s.db.QueryRow(query, messageID).Scan(
		&e.ID, &e.MessageID, &e.Title, &e.Summary, &e.ContentType,
		&articles, &e.Source, &e.Model, &e.Error, &e.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrExtractionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get extraction: %w", err)
	}
	if err := fromJSON(articles, &e.Articles); err != nil {
		return nil, err
	}
	return &e, nil
}

// ========== Publish Repository ==========

// SavePublishResult 保存发布记录，已存在时整行覆盖。
func (s *Store) SavePublishResult(r *domain.PublishResult) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	mediaURLs, err := toJSON(r.MediaURLs)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(fmt.Sprintf(`DELETE FROM publish_results WHERE id = %s`, s.placeholder(1)), r.ID); err != nil {
		return fmt.Errorf("replace publish result: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO publish_results
		(id, article_id, platform, content, media_urls, status, post_id, url, error, scheduled_at, posted_at, created_at)
		VALUES (%s)`, s.placeholders(12))
	_, err = s.db.Exec(query,
		r.ID, r.ArticleID, r.Platform, r.Content, mediaURLs, string(r.Status),
		r.PostID, r.URL, r.Error, r.ScheduledAt, r.PostedAt, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save publish result: %w", err)
	}
	return nil
}

// GetPublishResult 按 ID 取发布记录。
func (s *Store) GetPublishResult(id string) (*domain.PublishResult, error) {
	query := fmt.Sprintf(`
		SELECT id, article_id, platform, content, media_urls, status, post_id, url, error, scheduled_at, posted_at, created_at
		FROM publish_results WHERE id = %s`, s.placeholder(1))
	r, err := scanPublishResult(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrPublishResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get publish result: %w", err)
	}
	return r, nil
}

// ListDueScheduledPosts 列出到期且仍为 scheduled 的发布记录。
func (s *Store) ListDueScheduledPosts(before time.Time, limit int) ([]domain.PublishResult, error) {
	query := fmt.Sprintf(`
		SELECT id, article_id, platform, content, media_urls, status, post_id, url, error, scheduled_at, posted_at, created_at
		FROM publish_results
		WHERE status = %s AND scheduled_at <= %s
		ORDER BY scheduled_at ASC`, s.placeholder(1), s.placeholder(2))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query, string(domain.PostStatusScheduled), before)
	if err != nil {
		return nil, fmt.Errorf("list due scheduled posts: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PublishResult, 0)
	for rows.Next() {
		r, err := scanPublishResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan publish result: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// ResolveScheduledPost 仅当记录仍为 scheduled 时更新其终态。
// 状态条件写进 WHERE 子句，同一条记录并发解析时只有一个写入者生效。
func (s *Store) ResolveScheduledPost(id string, status domain.PostStatus, postID, url, errMsg string, postedAt time.Time) error {
	var postedAtVal any
	if status == domain.PostStatusPosted {
		postedAtVal = postedAt.UTC()
	}

	query := fmt.Sprintf(`
		UPDATE publish_results
		SET status = %s, post_id = %s, url = %s, error = %s, posted_at = %s
		WHERE id = %s AND status = %s`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4),
		s.placeholder(5), s.placeholder(6), s.placeholder(7))
	result, err := s.db.Exec(query,
		string(status), postID, url, errMsg, postedAtVal,
		id, string(domain.PostStatusScheduled),
	)
	if err != nil {
		return fmt.Errorf("resolve scheduled post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := s.GetPublishResult(id); err != nil {
			return err
		}
		return storage.ErrAlreadyResolved
	}
	return nil
}

func scanPublishResult(row rowScanner) (*domain.PublishResult, error) {
	var r domain.PublishResult
	var mediaURLs sql.NullString
	var scheduledAt, postedAt sql.NullTime
	err := row.Scan(
		&r.ID, &r.ArticleID, &r.Platform, &r.Content, &mediaURLs, &r.Status,
		&r.PostID, &r.URL, &r.Error, &scheduledAt, &postedAt, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := fromJSON(mediaURLs, &r.MediaURLs); err != nil {
		return nil, err
	}
	if scheduledAt.Valid {
		t := scheduledAt.Time.UTC()
		r.ScheduledAt = &t
	}
	if postedAt.Valid {
		t := postedAt.Time.UTC()
		r.PostedAt = &t
	}
	return &r, nil
}

// ========== Reply Repository ==========

// SaveReply 保存回复草稿。
func (s *Store) SaveReply(r *domain.Reply) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	actions, err := toJSON(r.SuggestedActions)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO replies
		(id, message_id, subject, body, tone, length, suggested_actions, error, created_at)
		VALUES (%s)`, s.placeholders(9))
	_, err = s.db.Exec(query,
		r.ID, r.MessageID, r.Subject, r.Body, r.Tone, r.Length, actions, r.Error, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save reply: %w", err)
	}
	return nil
}

// ListReplies 列出某封邮件的全部回复草稿。
func (s *Store) ListReplies(messageID string) ([]domain.Reply, error) {
	query := fmt.Sprintf(`
		SELECT id, message_id, subject, body, tone, length, suggested_actions, error, created_at
		FROM replies WHERE message_id = %s ORDER BY created_at ASC`, s.placeholder(1))

	rows, err := s.db.Query(query, messageID)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Reply, 0)
	for rows.Next() {
		var r domain.Reply
		var actions sql.NullString
		err := rows.Scan(&r.ID, &r.MessageID, &r.Subject, &r.Body, &r.Tone, &r.Length, &actions, &r.Error, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		if err := fromJSON(actions, &r.SuggestedActions); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ========== Run Repository ==========

// SaveRun 保存流水线运行记录，已存在时整行覆盖。
func (s *Store) SaveRun(run *domain.PipelineRun) error {
	classification, err := toJSON(run.Classification)
	if err != nil {
		return err
	}
	extraction, err := toJSON(run.Extraction)
	if err != nil {
		return err
	}
	socialPosts, err := toJSON(run.SocialPosts)
	if err != nil {
		return err
	}
	replies, err := toJSON(run.Replies)
	if err != nil {
		return err
	}
	actions, err := toJSON(run.ActionsTaken)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(fmt.Sprintf(`DELETE FROM pipeline_runs WHERE id = %s`, s.placeholder(1)), run.ID); err != nil {
		return fmt.Errorf("replace pipeline run: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO pipeline_runs
		(id, message_id, subject, from_address, classification, is_newsletter, extraction, social_posts, replies, actions_taken, status, error, started_at, finished_at)
		VALUES (%s)`, s.placeholders(14))
	_, err = s.db.Exec(query,
		run.ID, run.MessageID, run.Subject, run.From, classification, run.IsNewsletter,
		extraction, socialPosts, replies, actions, string(run.Status), run.Error,
		run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save pipeline run: %w", err)
	}
	return nil
}

// GetRun 按 ID 取流水线运行记录。
func (s *Store) GetRun(id string) (*domain.PipelineRun, error) {
	query := fmt.Sprintf(`
		SELECT id, message_id, subject, from_address, classification, is_newsletter, extraction, social_posts, replies, actions_taken, status, error, started_at, finished_at
		FROM pipeline_runs WHERE id = %s`, s.placeholder(1))
	run, err := scanRun(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pipeline run: %w", err)
	}
	return run, nil
}

// ListRuns 按开始时间倒序列出最近的运行记录。
func (s *Store) ListRuns(limit int) ([]domain.PipelineRun, error) {
	query := `
		SELECT id, message_id, subject, from_address, classification, is_newsletter, extraction, social_posts, replies, actions_taken, status, error, started_at, finished_at
		FROM pipeline_runs ORDER BY started_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list pipeline runs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PipelineRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pipeline run: %w", err)
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

func scanRun(row rowScanner) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	var classification, extraction, socialPosts, replies, actions sql.NullString
	err := row.Scan(
		&run.ID, &run.MessageID, &run.Subject, &run.From, &classification, &run.IsNewsletter,
		&extraction, &socialPosts, &replies, &actions, &run.Status, &run.Error,
		&run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := fromJSON(classification, &run.Classification); err != nil {
		return nil, err
	}
	if err := fromJSON(extraction, &run.Extraction); err != nil {
		return nil, err
	}
	if err := fromJSON(socialPosts, &run.SocialPosts); err != nil {
		return nil, err
	}
	if err := fromJSON(replies, &run.Replies); err != nil {
		return nil, err
	}
	if err := fromJSON(actions, &run.ActionsTaken); err != nil {
		return nil, err
	}
	return &run, nil
}
