package pipeline

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"agenticflow/backend/internal/agent"
	"agenticflow/backend/internal/cache"
	"agenticflow/backend/internal/config"
	"agenticflow/backend/internal/domain"
	"agenticflow/backend/internal/llm"
	"agenticflow/backend/internal/monitoring"
	"agenticflow/backend/internal/pool"
	"agenticflow/backend/internal/social"
	"agenticflow/backend/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 指标注册到全局 registry,整个测试包只创建一次
var testMetrics = monitoring.NewMetrics()

// fakeGenerator implements agent.Generator with a canned completion.
type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) Complete(_ context.Context, _ llm.Request) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeGenerator) Model() string { return "fake-model" }

// fakePoster accepts every delivery.
type fakePoster struct {
	calls int
}

func (f *fakePoster) Post(_ context.Context, platform, _ string, _ []string) (*social.PostResponse, error) {
	f.calls++
	return &social.PostResponse{PostID: platform + "-1", URL: "https://" + platform + ".example/1"}, nil
}

// fakeFetcher returns a fixed batch once.
type fakeFetcher struct {
	messages []domain.Message
}

func (f *fakeFetcher) Fetch(_ context.Context, limit int, _ bool) []domain.Message {
	if limit > 0 && len(f.messages) > limit {
		return f.messages[:limit]
	}
	return f.messages
}

func testConfig() config.PipelineConfig {
	return config.PipelineConfig{
		FetchLimit:  10,
		Workers:     2,
		Platforms:   []string{"twitter"},
		DefaultTone: "professional",
		AutoPublish: true,
		DedupTTL:    time.Hour,
	}
}

type coordinatorFixture struct {
	coordinator *Coordinator
	store       *memory.Store
	poster      *fakePoster
}

// newFixture wires a coordinator against the in-memory store. The
// analyzer runs without a generator so classification is the
// deterministic keyword heuristic; extractorGen controls the
// newsletter branch.
func newFixture(t *testing.T, extractorGen agent.Generator) *coordinatorFixture {
	t.Helper()
	log := zap.NewNop()
	store := memory.NewStore()

	poster := &fakePoster{}
	publisher := social.NewPublisher(poster, 0, 1, log)
	require.NoError(t, publisher.Connect("twitter", map[string]string{"token": "test"}))

	deps := Deps{
		Store:     store,
		Cache:     cache.NewLocal(time.Hour),
		Analyzer:  agent.NewAnalyzer(nil, log),
		Extractor: agent.NewExtractor(extractorGen, log),
		Formatter: agent.NewFormatter(log),
		ReplyGen:  agent.NewReplyGenerator(nil, log),
		Publisher: publisher,
		Metrics:   testMetrics,
		Log:       log,
	}

	return &coordinatorFixture{
		coordinator: NewCoordinator(deps, testConfig()),
		store:       store,
		poster:      poster,
	}
}

const extractionJSON = `{
	"title": "AI Weekly",
	"summary": "Stories about AI.",
	"content_type": "article",
	"articles": [
		{"title": "Model launch", "summary": "A new model shipped.", "category": "ai", "sentiment": "positive"}
	]
}`

func TestCoordinator_ProcessPlainMessage(t *testing.T) {
	f := newFixture(t, &fakeGenerator{response: extractionJSON})

	msg := &domain.Message{
		ID:      "msg-plain",
		From:    "colleague@example.com",
		Subject: "Status update",
		Text:    "The report has been filed.",
		Source:  "api",
	}

	run, err := f.coordinator.Process(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.False(t, run.IsNewsletter)
	assert.Equal(t, []string{"analyzed"}, run.ActionsTaken)
	assert.Empty(t, run.SocialPosts)
	assert.Empty(t, run.Replies)
	assert.False(t, run.FinishedAt.IsZero())

	// Run and classification are persisted.
	saved, err := f.store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Status, saved.Status)

	classification, err := f.store.GetLatestClassification("msg-plain")
	require.NoError(t, err)
	assert.Equal(t, 1, classification.Version)
}

func TestCoordinator_ProcessNewsletter(t *testing.T) {
	f := newFixture(t, &fakeGenerator{response: extractionJSON})

	msg := &domain.Message{
		ID:      "msg-news",
		From:    "digest@example.com",
		Subject: "Your weekly newsletter",
		Text:    "Top stories. Unsubscribe anytime.",
		Source:  "gmail",
	}

	run, err := f.coordinator.Process(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.True(t, run.IsNewsletter)
	assert.Equal(t,
		[]string{"analyzed", "extracted_newsletter", "formatted_posts", "published_posts"},
		run.ActionsTaken)

	require.Len(t, run.SocialPosts, 1)
	outcome := run.SocialPosts[0]
	assert.Equal(t, "twitter", outcome.Post.Platform)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, domain.PostStatusPosted, outcome.Result.Status)
	assert.Equal(t, run.Extraction.Articles[0].ID, outcome.Result.ArticleID)
	assert.Equal(t, 1, f.poster.calls)

	// Extraction and publish result are persisted.
	_, err = f.store.GetExtraction("msg-news")
	require.NoError(t, err)
	_, err = f.store.GetPublishResult(outcome.Result.ID)
	require.NoError(t, err)
}

func TestCoordinator_ProcessNewsletterDegraded(t *testing.T) {
	// No extractor generator: extraction degrades but the run continues.
	f := newFixture(t, nil)

	msg := &domain.Message{
		ID:      "msg-degraded",
		Subject: "Monthly newsletter",
		Text:    "Unsubscribe link at the bottom.",
	}

	run, err := f.coordinator.Process(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusPartial, run.Status)
	assert.True(t, run.IsNewsletter)
	require.NotNil(t, run.Extraction)
	assert.NotEmpty(t, run.Extraction.Error)
	assert.Empty(t, run.Extraction.Articles)
	assert.Equal(t, []string{"analyzed", "extracted_newsletter"}, run.ActionsTaken)
	assert.Equal(t, 0, f.poster.calls)
}

func TestCoordinator_ProcessReplyBranchFallback(t *testing.T) {
	// Reply generator has no backing model, so the branch produces the
	// fallback body and the run is partial.
	f := newFixture(t, &fakeGenerator{response: extractionJSON})

	msg := &domain.Message{
		ID:      "msg-question",
		From:    "client@example.com",
		Subject: "Quick question",
		Text:    "Can you send over the contract? Please reply.",
	}

	run, err := f.coordinator.Process(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusPartial, run.Status)
	assert.Contains(t, run.ActionsTaken, "generated_reply")
	require.Len(t, run.Replies, 1)
	assert.NotEmpty(t, run.Replies[0].Body)
	assert.NotEmpty(t, run.Replies[0].Error)

	replies, err := f.store.ListReplies("msg-question")
	require.NoError(t, err)
	assert.Len(t, replies, 1)
}

func TestCoordinator_ProcessAnalysisFailure(t *testing.T) {
	f := newFixture(t, nil)
	// Analyzer backed by a generator that returns garbage.
	f.coordinator.deps.Analyzer = agent.NewAnalyzer(&fakeGenerator{response: "not json"}, zap.NewNop())

	msg := &domain.Message{ID: "msg-bad", Subject: "Hi", Text: "body"}

	run, err := f.coordinator.Process(context.Background(), msg)
	require.Error(t, err)
	require.NotNil(t, run)

	assert.Equal(t, domain.RunStatusError, run.Status)
	assert.Contains(t, run.Error, "analysis failed")
	assert.False(t, run.FinishedAt.IsZero())

	// Failed runs are still persisted.
	saved, err := f.store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusError, saved.Status)

	assert.Equal(t, 1, f.coordinator.FailureStreak())

	// A later success resets the streak.
	ok := &domain.Message{ID: "msg-ok", Subject: "Status", Text: "done"}
	f.coordinator.deps.Analyzer = agent.NewAnalyzer(nil, zap.NewNop())
	_, err = f.coordinator.Process(context.Background(), ok)
	require.NoError(t, err)
	assert.Equal(t, 0, f.coordinator.FailureStreak())
}

func TestCoordinator_ProcessDeduplicates(t *testing.T) {
	f := newFixture(t, &fakeGenerator{response: extractionJSON})

	msg := &domain.Message{ID: "msg-dup", Subject: "Status", Text: "done"}

	first, err := f.coordinator.Process(context.Background(), msg)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := f.coordinator.Process(context.Background(), msg)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Nil(t, second)
}

func TestCoordinator_ProcessWithoutCache(t *testing.T) {
	f := newFixture(t, &fakeGenerator{response: extractionJSON})
	f.coordinator.deps.Cache = nil

	msg := &domain.Message{ID: "msg-nocache", Subject: "Status", Text: "done"}

	// Without a cache there is no dedup, both runs succeed.
	_, err := f.coordinator.Process(context.Background(), msg)
	require.NoError(t, err)
	_, err = f.coordinator.Process(context.Background(), msg)
	require.NoError(t, err)
}

func TestCoordinator_ProcessBatch(t *testing.T) {
	f := newFixture(t, &fakeGenerator{response: extractionJSON})

	messages := []domain.Message{
		{ID: "batch-1", Subject: "Status", Text: "done"},
		{ID: "batch-2", Subject: "Newsletter", Text: "unsubscribe"},
		{ID: "batch-1", Subject: "Status", Text: "done"}, // duplicate, skipped
	}

	runs := f.coordinator.ProcessBatch(context.Background(), messages)
	assert.Len(t, runs, 2)

	assert.Empty(t, f.coordinator.ProcessBatch(context.Background(), nil))
}

func TestCoordinator_FetchAndProcess(t *testing.T) {
	f := newFixture(t, &fakeGenerator{response: extractionJSON})
	f.coordinator.deps.Fetcher = &fakeFetcher{messages: []domain.Message{
		{ID: "fetched-1", Subject: "Status", Text: "done", Source: "gmail"},
	}}

	runs := f.coordinator.FetchAndProcess(context.Background())
	require.Len(t, runs, 1)
	assert.Equal(t, "fetched-1", runs[0].MessageID)
}

func TestCoordinator_FetchAndProcessWithoutFetcher(t *testing.T) {
	f := newFixture(t, nil)
	assert.Nil(t, f.coordinator.FetchAndProcess(context.Background()))
}

func TestCoordinator_AutoPublishDisabled(t *testing.T) {
	f := newFixture(t, &fakeGenerator{response: extractionJSON})
	f.coordinator.cfg.AutoPublish = false

	msg := &domain.Message{
		ID:      "msg-nopub",
		Subject: "Newsletter",
		Text:    "unsubscribe",
	}

	run, err := f.coordinator.Process(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusSuccess, run.Status)
	assert.NotContains(t, run.ActionsTaken, "published_posts")
	require.Len(t, run.SocialPosts, 1)
	assert.Nil(t, run.SocialPosts[0].Result)
	assert.Equal(t, 0, f.poster.calls)
}

func TestCoordinator_Submit(t *testing.T) {
	f := newFixture(t, &fakeGenerator{response: extractionJSON})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerPool := pool.NewWorkerPool(1, 4, zap.NewNop())
	workerPool.Start(ctx)
	defer workerPool.Stop()
	f.coordinator.deps.Pool = workerPool

	msg := &domain.Message{ID: "msg-submit", Subject: "Status", Text: "done", Source: "smtp"}
	require.NoError(t, f.coordinator.Submit(ctx, msg))

	// Message is stored synchronously, the run completes in the pool.
	_, err := f.store.GetMessage("msg-submit")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		runs, err := f.store.ListRuns(10)
		return err == nil && len(runs) == 1 && runs[0].MessageID == "msg-submit"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestArticleIDForContent(t *testing.T) {
	articles := []domain.Article{
		{ID: "a-1", Title: "First story"},
		{ID: "a-2", Title: "Second story"},
	}

	post := domain.FormattedPost{Content: "Second story\n\nDetails here"}
	assert.Equal(t, "a-2", articleIDForContent(articles, post))

	// No title match and multiple candidates: unresolved.
	assert.Equal(t, "", articleIDForContent(articles, domain.FormattedPost{Content: "unrelated"}))

	// Single article is an unambiguous fallback.
	assert.Equal(t, "a-1", articleIDForContent(articles[:1], domain.FormattedPost{Content: "unrelated"}))
}
