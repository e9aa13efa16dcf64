package paper

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/paperforge/internal/collab"
	"github.com/hazyhaar/paperforge/internal/config"
	"github.com/hazyhaar/paperforge/internal/db"
	"github.com/hazyhaar/paperforge/internal/llm"
)

// routedBackend answers extraction calls with a fixed JSON payload and
// everything else with canned prose, dispatching on the system prompt.
type routedBackend struct {
	extractJSON string
	prose       string
	calls       int
	lastProse   []llm.Message
}

func (r *routedBackend) Name() string                     { return "routed" }
func (r *routedBackend) IsAvailable(context.Context) bool { return true }
func (r *routedBackend) Chat(_ context.Context, msgs []llm.Message, _ float64, _ int) (string, error) {
	r.calls++
	if len(msgs) > 0 && strings.Contains(msgs[0].Content, "information extraction expert") {
		return r.extractJSON, nil
	}
	r.lastProse = msgs
	return r.prose, nil
}

func newTestGenerator(t *testing.T, backend llm.Backend, cfg config.PaperConfig) (*Generator, *db.DB) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := llm.NewRegistry(nil)
	reg.Register("routed", backend)
	engine := collab.NewEngine(reg, config.DefaultConfig().Roles, nil, nil)
	return NewGenerator(store, engine, cfg, nil, nil), store
}

func fullInfoJSON() string {
	pairs := make([]string, len(RequiredFields))
	for i, f := range RequiredFields {
		pairs[i] = fmt.Sprintf("%q: %q", f, "value for "+f)
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

func TestStartNewPaper(t *testing.T) {
	g, store := newTestGenerator(t, &routedBackend{prose: "ok"}, config.DefaultConfig().Paper)

	res, err := g.StartNewPaper(context.Background(), "u1", "My Paper", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, "initial", res.Stage)
	assert.Equal(t, 1, res.Round)
	assert.Contains(t, res.Reply, "Research topic")

	s, err := store.GetSession(res.SessionID)
	require.NoError(t, err)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, "assistant", s.Messages[0].Role)
	assert.Equal(t, "My Paper", s.Title)
}

func TestStartNewPaperWithInfo(t *testing.T) {
	g, store := newTestGenerator(t, &routedBackend{prose: "ok"}, config.DefaultConfig().Paper)

	info := map[string]string{"research topic": "cache eviction"}
	res, err := g.StartNewPaper(context.Background(), "u1", "", info)
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "Information you have provided so far")
	assert.Contains(t, res.Reply, "cache eviction")

	s, err := store.GetSession(res.SessionID)
	require.NoError(t, err)
	stored := s.Context["collected_info"].(map[string]any)
	assert.Equal(t, "cache eviction", stored["research topic"])
}

func TestProcessUserInputAdvancesStages(t *testing.T) {
	backend := &routedBackend{extractJSON: "not structured", prose: "next questions"}
	g, store := newTestGenerator(t, backend, config.DefaultConfig().Paper)

	start, err := g.StartNewPaper(context.Background(), "u1", "", nil)
	require.NoError(t, err)

	wantStages := []string{"research_background", "methodology", "results", "discussion"}
	for i, want := range wantStages {
		res, err := g.ProcessUserInput(context.Background(), start.SessionID, "some answer")
		require.NoError(t, err)
		assert.Equal(t, StatusCollecting, res.Status)
		assert.Equal(t, want, res.Stage)
		// the reported round is the one being entered, so the first
		// user turn answers round 1 and reports round 2
		assert.Equal(t, i+2, res.Round)
		assert.Equal(t, "next questions", res.Reply)
	}

	s, err := store.GetSession(start.SessionID)
	require.NoError(t, err)
	// opening message plus four user/assistant exchanges
	assert.Len(t, s.Messages, 9)
	assert.Equal(t, "discussion", s.Stage)
}

func TestProcessUserInputCollectorSeesLatestTurn(t *testing.T) {
	backend := &routedBackend{extractJSON: "not structured", prose: "next questions"}
	g, _ := newTestGenerator(t, backend, config.DefaultConfig().Paper)

	start, err := g.StartNewPaper(context.Background(), "u1", "", nil)
	require.NoError(t, err)

	_, err = g.ProcessUserInput(context.Background(), start.SessionID, "we measured cache hit rates")
	require.NoError(t, err)

	// the collector call's history must include the turn just submitted
	var seen bool
	for _, m := range backend.lastProse {
		if m.Role == "user" && m.Content == "we measured cache hit rates" {
			seen = true
		}
	}
	assert.True(t, seen)
}

func TestProcessUserInputAsksForMissing(t *testing.T) {
	backend := &routedBackend{extractJSON: "not structured", prose: "questions"}
	g, _ := newTestGenerator(t, backend, config.DefaultConfig().Paper)

	start, err := g.StartNewPaper(context.Background(), "u1", "", nil)
	require.NoError(t, err)

	var res *InputResult
	for i := 0; i < 5; i++ {
		res, err = g.ProcessUserInput(context.Background(), start.SessionID, "vague answer")
		require.NoError(t, err)
	}

	// the synthetic marker travels in the stage field; the status stays
	// collecting until generation actually starts
	assert.Equal(t, StageCollectingMissing, res.Stage)
	assert.Equal(t, StatusCollecting, res.Status)
	assert.Equal(t, 6, res.Round)
	assert.False(t, res.Completeness.Complete)
	for _, field := range res.Completeness.Missing {
		assert.Contains(t, res.Reply, field)
	}

	// the stored stage is untouched by the marker
	s, err := g.store.GetSession(start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "discussion", s.Stage)
}

func TestProcessUserInputGeneratesWhenComplete(t *testing.T) {
	backend := &routedBackend{extractJSON: fullInfoJSON(), prose: "section text"}
	g, store := newTestGenerator(t, backend, config.DefaultConfig().Paper)

	start, err := g.StartNewPaper(context.Background(), "u1", "", nil)
	require.NoError(t, err)

	var res *InputResult
	for i := 0; i < 5; i++ {
		res, err = g.ProcessUserInput(context.Background(), start.SessionID, "detailed answer")
		require.NoError(t, err)
	}

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, StageCompleted, res.Stage)
	assert.True(t, res.Completeness.Complete)
	require.Len(t, res.Paper, len(SectionOrder))
	for _, section := range SectionOrder {
		assert.Equal(t, "section text", res.Paper[section])
	}

	s, err := store.GetSession(start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, s.Status)
	for _, section := range SectionOrder {
		assert.Contains(t, s.Context, section+"_generation_process")
	}

	// the handoff to generation and its completion are both part of the
	// persisted transcript
	require.Len(t, s.Messages, 12)
	assert.Equal(t, transitionNotice, s.Messages[10].Content)
	assert.Contains(t, s.Messages[11].Content, "The paper has been generated")
}

func TestProcessUserInputRoundCeiling(t *testing.T) {
	backend := &routedBackend{extractJSON: "never parseable", prose: "text"}
	cfg := config.PaperConfig{MinRounds: 2, MaxRounds: 3, Iterations: 1}
	g, _ := newTestGenerator(t, backend, cfg)

	start, err := g.StartNewPaper(context.Background(), "u1", "", nil)
	require.NoError(t, err)

	res, err := g.ProcessUserInput(context.Background(), start.SessionID, "a")
	require.NoError(t, err)
	assert.Equal(t, StatusCollecting, res.Status)

	res, err = g.ProcessUserInput(context.Background(), start.SessionID, "b")
	require.NoError(t, err)
	assert.Equal(t, StageCollectingMissing, res.Stage)
	assert.Equal(t, StatusCollecting, res.Status)

	// Third round hits the ceiling and generation proceeds anyway.
	res, err = g.ProcessUserInput(context.Background(), start.SessionID, "c")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.False(t, res.Completeness.Complete)
	require.NotEmpty(t, res.Notices)
	assert.Contains(t, res.Notices[0], "round limit")
}

func TestGenerateNow(t *testing.T) {
	backend := &routedBackend{extractJSON: "x", prose: "forced text"}
	g, _ := newTestGenerator(t, backend, config.DefaultConfig().Paper)

	start, err := g.StartNewPaper(context.Background(), "u1", "", nil)
	require.NoError(t, err)

	res, err := g.GenerateNow(context.Background(), start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Len(t, res.Paper, len(SectionOrder))
	assert.Contains(t, res.Notices[0], "forced")
}

func TestRegenerateSection(t *testing.T) {
	backend := &routedBackend{extractJSON: fullInfoJSON(), prose: "first pass"}
	g, store := newTestGenerator(t, backend, config.DefaultConfig().Paper)

	start, err := g.StartNewPaper(context.Background(), "u1", "", nil)
	require.NoError(t, err)
	_, err = g.GenerateNow(context.Background(), start.SessionID)
	require.NoError(t, err)

	backend.prose = "second pass"
	res, err := g.RegenerateSection(context.Background(), start.SessionID, "abstract")
	require.NoError(t, err)
	assert.Equal(t, "abstract", res.Section)
	assert.Equal(t, "second pass", res.Content)

	content, _, err := g.GetPaperContent(start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "second pass", content["abstract"])
	assert.Equal(t, "first pass", content["introduction"])

	s, err := store.GetSession(start.SessionID)
	require.NoError(t, err)
	assert.Contains(t, s.Context, "abstract_generation_process")
}

func TestRegenerateUnknownSection(t *testing.T) {
	g, _ := newTestGenerator(t, &routedBackend{}, config.DefaultConfig().Paper)
	_, err := g.RegenerateSection(context.Background(), "whatever", "appendix")
	assert.Error(t, err)
}

func TestProcessUserInputUnknownSession(t *testing.T) {
	g, _ := newTestGenerator(t, &routedBackend{}, config.DefaultConfig().Paper)
	_, err := g.ProcessUserInput(context.Background(), "missing", "hello")
	assert.ErrorIs(t, err, db.ErrNotFound)
}
