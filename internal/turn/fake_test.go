package turn

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/ideaforge/internal/prompt"
	"github.com/Iron-Ham/ideaforge/internal/upstream"
)

// fakeModel answers each kind of call from a script.
type fakeModel struct {
	mu sync.Mutex

	opinions   func() (string, error)
	analysis   map[prompt.Role]func() (string, error)
	categories func() (string, error)

	// synthesis is streamed in chunkSize pieces. When synthErr is set the
	// stream fails after synthErrAfter chunks.
	synthesis     string
	chunkSize     int
	synthErr      error
	synthErrAfter int

	calls    []string
	requests map[string]upstream.Request
}

func newFakeModel() *fakeModel {
	return &fakeModel{
		opinions: func() (string, error) { return opinionsJSON, nil },
		analysis: map[prompt.Role]func() (string, error){
			prompt.RoleCoordinator: func() (string, error) { return "The panel agrees the problem is real.", nil },
			prompt.RoleCritic:      func() (string, error) { return "Nobody has asked who pays.", nil },
			prompt.RoleCreative:    func() (string, error) { return "Sell to schools, not students.", nil },
		},
		categories: func() (string, error) { return `{"categories":["education","AI","Pizza","SaaS"]}`, nil },
		synthesis:  synthesisJSON,
		chunkSize:  7,
		requests:   make(map[string]upstream.Request),
	}
}

func classify(req upstream.Request) string {
	switch {
	case req.System == prompt.OpinionSystemPrompt:
		return "opinions"
	case req.System == prompt.SynthesisSystemPrompt:
		return "synthesis"
	case strings.HasPrefix(req.System, "Classify"):
		return "categories"
	case strings.Contains(req.System, "COORDINATOR"):
		return string(prompt.RoleCoordinator)
	case strings.Contains(req.System, "CRITIC"):
		return string(prompt.RoleCritic)
	case strings.Contains(req.System, "CREATIVE"):
		return string(prompt.RoleCreative)
	}
	return "unknown"
}

func (m *fakeModel) record(req upstream.Request) string {
	kind := classify(req)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, kind)
	m.requests[kind] = req
	return kind
}

func (m *fakeModel) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == kind {
			n++
		}
	}
	return n
}

func (m *fakeModel) request(kind string) upstream.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[kind]
}

func (m *fakeModel) Complete(ctx context.Context, req upstream.Request) (upstream.Response, error) {
	kind := m.record(req)
	if err := ctx.Err(); err != nil {
		return upstream.Response{}, err
	}
	var fn func() (string, error)
	switch kind {
	case "opinions":
		fn = m.opinions
	case "categories":
		fn = m.categories
	default:
		fn = m.analysis[prompt.Role(kind)]
	}
	if fn == nil {
		return upstream.Response{}, context.DeadlineExceeded
	}
	text, err := fn()
	if err != nil {
		return upstream.Response{}, err
	}
	return upstream.Response{Text: text, Usage: upstream.Usage{TotalTokens: 10}}, nil
}

func (m *fakeModel) Stream(ctx context.Context, req upstream.Request, onDelta upstream.DeltaFunc) (upstream.Response, error) {
	m.record(req)
	size := max(m.chunkSize, 1)
	text := m.synthesis
	sent := 0
	for start := 0; start < len(text); start += size {
		if m.synthErr != nil && sent >= m.synthErrAfter {
			return upstream.Response{}, m.synthErr
		}
		if err := ctx.Err(); err != nil {
			return upstream.Response{}, err
		}
		end := min(start+size, len(text))
		if err := onDelta(text[start:end]); err != nil {
			return upstream.Response{}, err
		}
		sent++
	}
	if m.synthErr != nil {
		return upstream.Response{}, m.synthErr
	}
	return upstream.Response{Text: text, Usage: upstream.Usage{TotalTokens: 100}}, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func testRetrier() *upstream.Retrier {
	r := upstream.NewRetrier()
	r.Sleep = noSleep
	r.Jitter = func(time.Duration) time.Duration { return 0 }
	return r
}

const opinionsJSON = "```json\n" + `{"opinions":[
{"persona":"developer","message":"A web app with a simple matching model is easy to build."},
{"persona":"investor","message":"The market is crowded and willingness to pay is unclear."},
{"persona":"end_user","message":"I would use it before exams if it were free."}]}` + "\n```"

const synthesisJSON = `{"discussion":[
{"persona":"investor","message":"Who actually pays for this? Students rarely do.","tone":"challenge"},
{"persona":"developer","message":"The MVP is a six week build if we skip native apps.","replyTo":"investor","tone":"build"},
{"persona":"endUser","message":"I would try it if my school paid for the licence.","replyTo":"investor","tone":"sarcastic"}],
"responses":[
{"persona":"developer","message":"Ship a web MVP first.","advice":"Build a web-only MVP in six weeks.","linkedCategories":["feasibility","solution","feasibility"]},
{"persona":"investor","message":"Find a paying buyer.","advice":"Interview five school administrators.","linkedCategories":["revenue_model"]},
{"persona":"investor","message":"duplicate"},
{"persona":"wizard","message":"unknown persona"},
{"persona":"endUser","message":"Make the free tier generous.","advice":"Keep a free tier for students."}],
"scorecard":{"problemDefinition":{"current":40,"filled":true},"solution":{"current":3,"filled":false},"feasibility":"9","totalScore":999},
"metrics":{"readiness":140,"confidence":"55","keyRisks":["willingness to pay"," "],"nextSteps":["interview buyers"]},
"categoryUpdates":[{"category":"problemDefinition","delta":40,"reason":"clear target user"},{"category":"feasibility","delta":9,"reason":"simple stack"},{"category":"vibes","delta":3}]}`
