package bot

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/GustavoLR548/news-relay-bot/internal/caption"
	"github.com/GustavoLR548/news-relay-bot/internal/news"
	"github.com/GustavoLR548/news-relay-bot/internal/schedule"
	"github.com/GustavoLR548/news-relay-bot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockParser is a SourceParser driven by a func field
type MockParser struct {
	id    string
	parse func(ctx context.Context) news.Result
}

func (m *MockParser) ID() string        { return m.id }
func (m *MockParser) SourceKey() string { return "V" }
func (m *MockParser) Category() string  { return "news" }
func (m *MockParser) Parse(ctx context.Context) news.Result {
	return m.parse(ctx)
}

// MockRewriter records its input
type MockRewriter struct {
	rewrite func(text string) (string, error)
	inputs  []string
}

func (m *MockRewriter) Rewrite(ctx context.Context, text string) (string, error) {
	m.inputs = append(m.inputs, text)
	if m.rewrite == nil {
		return "rewritten:" + text, nil
	}
	return m.rewrite(text)
}

type published struct {
	caption  string
	imageURL string
}

// MockPublisher records deliveries and notices
type MockPublisher struct {
	mu         sync.Mutex
	publishErr error
	notifyErr  error
	published  []published
	notices    []string
}

func (m *MockPublisher) Publish(ctx context.Context, caption, imageURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, published{caption: caption, imageURL: imageURL})
	return nil
}

func (m *MockPublisher) NotifyError(ctx context.Context, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	m.notices = append(m.notices, message)
	return m.notifyErr
}

var testNow = time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

func someResult() news.Result {
	return news.Some(news.Item{SourceKey: "V", Category: "news", Title: "X", ImageURL: "http://img/1.jpg"}, "<b>X</b>")
}

func newTestController(t *testing.T, parser news.SourceParser, rewriter *MockRewriter, pub *MockPublisher) *Controller {
	t.Helper()
	ctrl, err := NewController(Config{
		Selector:    schedule.NewSelector(time.UTC),
		Schedule:    []schedule.Entry{{Source: "v:news", Times: []string{"10:00"}}},
		Parsers:     []news.SourceParser{parser},
		Rewriter:    rewriter,
		Publisher:   pub,
		ErrorNotice: "notice",
		Now:         func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return ctrl
}

func TestRunOnce_Outcomes(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name            string
		result          news.Result
		rewrite         func(string) (string, error)
		publishErr      error
		expectOutcome   Outcome
		expectError     bool
		errorContains   string
		expectPublished int
		expectNotices   int
	}{
		{
			name:            "new item is rewritten and published",
			result:          someResult(),
			expectOutcome:   OutcomePublished,
			expectPublished: 1,
		},
		{
			name:          "nothing new",
			result:        news.None("already published"),
			expectOutcome: OutcomeNothingNew,
		},
		{
			name:          "check failure sends no notice",
			result:        news.Failed(boom),
			expectOutcome: OutcomeCheckFailed,
		},
		{
			name:          "rewrite failure sends notice",
			result:        someResult(),
			rewrite:       func(string) (string, error) { return "", boom },
			expectOutcome: OutcomeRunFailed,
			expectError:   true,
			errorContains: "failed to rewrite caption",
			expectNotices: 1,
		},
		{
			name:          "publish failure sends notice",
			result:        someResult(),
			publishErr:    boom,
			expectOutcome: OutcomeRunFailed,
			expectError:   true,
			errorContains: "failed to publish",
			expectNotices: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &MockParser{id: "v:news", parse: func(context.Context) news.Result { return tt.result }}
			rewriter := &MockRewriter{rewrite: tt.rewrite}
			pub := &MockPublisher{publishErr: tt.publishErr}
			ctrl := newTestController(t, parser, rewriter, pub)

			outcome, err := ctrl.RunOnce(context.Background())

			assert.Equal(t, tt.expectOutcome, outcome)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				assert.ErrorIs(t, err, boom)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, pub.published, tt.expectPublished)
			assert.Len(t, pub.notices, tt.expectNotices)
			for _, notice := range pub.notices {
				assert.Equal(t, "notice", notice)
			}

			snapshot := ctrl.Stats().Snapshot()
			assert.Equal(t, tt.expectOutcome, snapshot.LastOutcome)
			assert.Equal(t, "v:news", snapshot.LastSource)
			assert.Equal(t, testNow, snapshot.LastRunAt)
		})
	}
}

func TestRunOnce_PublishesRewrittenCaption(t *testing.T) {
	parser := &MockParser{id: "v:news", parse: func(context.Context) news.Result { return someResult() }}
	rewriter := &MockRewriter{}
	pub := &MockPublisher{}
	ctrl := newTestController(t, parser, rewriter, pub)

	_, err := ctrl.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"<b>X</b>"}, rewriter.inputs)
	require.Len(t, pub.published, 1)
	assert.Equal(t, published{caption: "rewritten:<b>X</b>", imageURL: "http://img/1.jpg"}, pub.published[0])
}

func TestRunOnce_NoticeFailureIsSwallowed(t *testing.T) {
	parser := &MockParser{id: "v:news", parse: func(context.Context) news.Result { return someResult() }}
	pub := &MockPublisher{publishErr: errors.New("down"), notifyErr: errors.New("still down")}
	ctrl := newTestController(t, parser, &MockRewriter{}, pub)

	outcome, err := ctrl.RunOnce(context.Background())
	assert.Equal(t, OutcomeRunFailed, outcome)
	assert.Error(t, err)
	assert.Len(t, pub.notices, 1)
}

func TestRunOnce_NoticeSurvivesExpiredContext(t *testing.T) {
	parser := &MockParser{id: "v:news", parse: func(context.Context) news.Result { return someResult() }}
	pub := &MockPublisher{}
	rewriter := &MockRewriter{rewrite: func(string) (string, error) { return "", context.DeadlineExceeded }}
	ctrl := newTestController(t, parser, rewriter, pub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ctrl.RunOnce(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"notice"}, pub.notices)
}

func TestRunOnce_PanicBecomesRunFailure(t *testing.T) {
	parser := &MockParser{id: "v:news", parse: func(context.Context) news.Result { panic("parser exploded") }}
	pub := &MockPublisher{}
	ctrl := newTestController(t, parser, &MockRewriter{}, pub)

	outcome, err := ctrl.RunOnce(context.Background())
	assert.Equal(t, OutcomeRunFailed, outcome)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parser exploded")
	assert.Len(t, pub.notices, 1)
}

func TestRunOnce_NoUsableSchedule(t *testing.T) {
	parser := &MockParser{id: "v:news", parse: func(context.Context) news.Result {
		t.Fatal("parser must not run")
		return news.Result{}
	}}
	ctrl, err := NewController(Config{
		Selector:  schedule.NewSelector(time.UTC),
		Schedule:  []schedule.Entry{{Source: "v:news", Times: []string{"bogus"}}},
		Parsers:   []news.SourceParser{parser},
		Publisher: &MockPublisher{},
	})
	require.NoError(t, err)

	outcome, err := ctrl.RunOnce(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, OutcomeNoSource, outcome)
	assert.Equal(t, int64(1), ctrl.Stats().Snapshot().NoSource)
}

func TestNewController_Validation(t *testing.T) {
	parser := &MockParser{id: "v:news"}

	tests := []struct {
		name          string
		cfg           Config
		errorContains string
	}{
		{
			name:          "missing selector",
			cfg:           Config{Publisher: &MockPublisher{}},
			errorContains: "schedule selector is required",
		},
		{
			name:          "missing publisher",
			cfg:           Config{Selector: schedule.NewSelector(nil)},
			errorContains: "publisher is required",
		},
		{
			name:          "empty schedule",
			cfg:           Config{Selector: schedule.NewSelector(nil), Publisher: &MockPublisher{}},
			errorContains: "schedule cannot be empty",
		},
		{
			name: "scheduled source without parser",
			cfg: Config{
				Selector:  schedule.NewSelector(nil),
				Publisher: &MockPublisher{},
				Schedule:  []schedule.Entry{{Source: "g:tech", Times: []string{"11:00"}}},
				Parsers:   []news.SourceParser{parser},
			},
			errorContains: `no parser for scheduled source "g:tech"`,
		},
		{
			name: "duplicate parser",
			cfg: Config{
				Selector:  schedule.NewSelector(nil),
				Publisher: &MockPublisher{},
				Schedule:  []schedule.Entry{{Source: "v:news", Times: []string{"11:00"}}},
				Parsers:   []news.SourceParser{parser, parser},
			},
			errorContains: `duplicate parser "v:news"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewController(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestTick_SkipsWhileRunning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	parser := &MockParser{id: "v:news", parse: func(context.Context) news.Result {
		close(started)
		<-release
		return news.None("nothing")
	}}
	ctrl := newTestController(t, parser, &MockRewriter{}, &MockPublisher{})

	require.True(t, ctrl.Trigger())
	<-started
	assert.True(t, ctrl.Running())

	ctrl.Tick()
	assert.False(t, ctrl.Trigger())

	close(release)
	ctrl.Wait()
	assert.False(t, ctrl.Running())

	snapshot := ctrl.Stats().Snapshot()
	assert.Equal(t, int64(2), snapshot.Skipped)
	assert.Equal(t, int64(1), snapshot.NothingNew)
	assert.Equal(t, OutcomeNothingNew, snapshot.LastOutcome)
}

func TestTick_AppliesRunTimeout(t *testing.T) {
	var deadline time.Time
	parser := &MockParser{id: "v:news", parse: func(ctx context.Context) news.Result {
		deadline, _ = ctx.Deadline()
		return news.None("nothing")
	}}
	ctrl := newTestController(t, parser, &MockRewriter{}, &MockPublisher{})
	ctrl.runTimeout = time.Minute

	before := time.Now()
	ctrl.Tick()

	assert.WithinDuration(t, before.Add(time.Minute), deadline, 5*time.Second)
}

const listingPage = `<html><body>
<div class="list list-news">
  <div class="list__item">
    <div class="list__title"><a href="/news/1">X</a></div>
    <img class="list__pic" data-src="http://img/1.jpg">
  </div>
</div>
</body></html>`

const articlePage = `<html><body><div class="article__text"><p>Para one.</p><p>Para two.</p></div></body></html>`

func TestRunOnce_EndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/news":
			_, _ = w.Write([]byte(listingPage))
		case "/news/1":
			_, _ = w.Write([]byte(articlePage))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	backing := storage.NewMemoryBacking(nil)
	store := storage.NewDocumentTitleStore(backing, nil)

	captions, err := caption.ForSource(news.SourceKeyV,
		caption.Footer{ChannelName: "chan", DisplayName: "Chan"},
		caption.Probabilities{},
		rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	parser, err := news.NewVParser(server.URL, "", captions, news.Deps{Store: store})
	require.NoError(t, err)

	pub := &MockPublisher{}
	rewriter := &MockRewriter{rewrite: func(text string) (string, error) { return text, nil }}
	ctrl := newTestController(t, parser, rewriter, pub)

	outcome, err := ctrl.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomePublished, outcome)

	require.Len(t, pub.published, 1)
	assert.Equal(t, "http://img/1.jpg", pub.published[0].imageURL)
	assert.Contains(t, pub.published[0].caption, "<b>X</b>")
	assert.Contains(t, pub.published[0].caption, "<blockquote>Para one.\n\nPara two.</blockquote>")
	assert.Contains(t, pub.published[0].caption, `<a href="https://t.me/chan"><b>Chan</b></a>`)

	doc, err := backing.Load()
	require.NoError(t, err)
	assert.Equal(t, storage.Document{"V": {"news": "X"}}, doc)

	outcome, err = ctrl.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingNew, outcome)
	assert.Len(t, pub.published, 1)
}
