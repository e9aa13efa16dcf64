package paper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hazyhaar/paperforge/internal/collab"
	"github.com/hazyhaar/paperforge/internal/config"
	"github.com/hazyhaar/paperforge/internal/db"
	"github.com/hazyhaar/paperforge/internal/llm"
	"github.com/hazyhaar/paperforge/internal/prompts"
)

// Stages is the dialogue stage order. The literature review questions
// come after the discussion ones on purpose: users describe their own
// work most fluently before they are asked to place it in the field.
var Stages = []string{
	"initial",
	"research_background",
	"methodology",
	"results",
	"discussion",
	"literature_review",
}

// SectionOrder is the order sections are generated and exported in.
var SectionOrder = []string{
	"abstract",
	"introduction",
	"literature_review",
	"methodology",
	"results",
	"discussion",
	"conclusion",
}

const (
	// StageCollectingMissing is a synthetic response marker, not a
	// member of Stages: the stored stage is left untouched while the
	// user decides between supplying more information and generating.
	StageCollectingMissing = "collecting_missing"
	StageGenerating        = "generating"
	StageCompleted         = "completed"

	StatusCollecting = "collecting"
	StatusGenerating = "generating"
	StatusCompleted  = "completed"
)

// StartResult is the response to opening a new paper session.
type StartResult struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Stage     string `json:"stage"`
	Round     int    `json:"round"`
}

// InputResult is the response to one user turn.
type InputResult struct {
	SessionID    string            `json:"session_id"`
	Reply        string            `json:"reply"`
	Stage        string            `json:"stage"`
	Round        int               `json:"round"`
	Status       string            `json:"status"`
	Completeness Completeness      `json:"completeness"`
	Paper        map[string]string `json:"paper,omitempty"`
	Notices      []string          `json:"notices,omitempty"`
}

// Generator owns the session state machine. All mutation of a session
// goes through a per-session lock, so concurrent turns on the same
// session serialize while distinct sessions proceed in parallel.
type Generator struct {
	store  *db.DB
	engine *collab.Engine
	cfg    config.PaperConfig
	logger *slog.Logger
	tracer trace.Tracer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewGenerator wires the state machine over the store and engine.
func NewGenerator(store *db.DB, engine *collab.Engine, cfg config.PaperConfig, logger *slog.Logger, tracer trace.Tracer) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		store:  store,
		engine: engine,
		cfg:    cfg,
		logger: logger,
		tracer: tracer,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (g *Generator) lock(sessionID string) func() {
	g.mu.Lock()
	m, ok := g.locks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		g.locks[sessionID] = m
	}
	g.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// StartNewPaper creates a session and returns the opening questions.
// info optionally pre-fills the collected information, for callers that
// already know part of the research details.
func (g *Generator) StartNewPaper(ctx context.Context, userID, title string, info map[string]string) (*StartResult, error) {
	if title == "" {
		title = "Untitled paper"
	}
	s, err := g.store.CreateSession(userID, title)
	if err != nil {
		return nil, err
	}
	if len(info) > 0 {
		if err := g.store.UpdateContext(s.SessionID, map[string]any{"collected_info": info}); err != nil {
			return nil, err
		}
	}
	reply := prompts.CollectionMessage("initial", info)
	if err := g.store.AppendMessage(s.SessionID, "assistant", reply, nil); err != nil {
		return nil, err
	}
	g.logger.Info("paper session started", "session_id", s.SessionID, "user_id", userID)
	return &StartResult{SessionID: s.SessionID, Reply: reply, Stage: s.Stage, Round: 1}, nil
}

// ProcessUserInput advances one turn of the dialogue: extract what the
// user provided, merge it into the collected information, then either
// move to the next collection stage, ask for the specific missing
// fields, or generate the paper when the information is complete or
// the round ceiling is hit.
func (g *Generator) ProcessUserInput(ctx context.Context, sessionID, input string) (*InputResult, error) {
	unlock := g.lock(sessionID)
	defer unlock()

	if g.tracer != nil {
		var span trace.Span
		ctx, span = g.tracer.Start(ctx, "paper.process_input",
			trace.WithAttributes(attribute.String("session.id", sessionID)))
		defer span.End()
	}

	s, err := g.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := g.store.AppendMessage(sessionID, "user", input, nil); err != nil {
		return nil, err
	}
	turns := append(s.Messages, db.Message{Role: "user", Content: input})

	extracted := ExtractInformation(ctx, g.engine, input, s.Stage)
	info := collectedInfo(s)
	for k, v := range extracted {
		info[k] = v
	}
	if err := g.store.UpdateContext(sessionID, map[string]any{"collected_info": info}); err != nil {
		return nil, err
	}

	round := len(turns) / 2
	comp := CheckCompleteness(info)
	res := &InputResult{
		SessionID:    sessionID,
		Round:        round + 1,
		Completeness: comp,
	}

	switch {
	case round < g.cfg.MinRounds:
		stage := nextStage(s.Stage)
		if err := g.store.SetStage(sessionID, stage); err != nil {
			return nil, err
		}
		reply := g.engine.CollectInformation(ctx, info, stage, history(turns))
		if err := g.store.AppendMessage(sessionID, "assistant", reply, nil); err != nil {
			return nil, err
		}
		res.Reply = reply
		res.Stage = stage
		res.Status = StatusCollecting
		return res, nil

	case comp.Complete || round >= g.cfg.MaxRounds:
		if round >= g.cfg.MaxRounds && !comp.Complete {
			res.Notices = append(res.Notices,
				fmt.Sprintf("round limit reached with %d field(s) still missing; generating with the information at hand", len(comp.Missing)))
		}
		paperContent, notices, err := g.generateFullPaper(ctx, sessionID, info)
		if err != nil {
			return nil, err
		}
		res.Notices = append(res.Notices, notices...)
		reply := generationReply(paperContent, res.Notices)
		if err := g.store.AppendMessage(sessionID, "assistant", reply, nil); err != nil {
			return nil, err
		}
		res.Reply = reply
		res.Stage = StageCompleted
		res.Status = StatusCompleted
		res.Paper = paperContent
		return res, nil

	default:
		reply := missingReply(comp)
		if err := g.store.AppendMessage(sessionID, "assistant", reply, nil); err != nil {
			return nil, err
		}
		res.Reply = reply
		res.Stage = StageCollectingMissing
		res.Status = StatusCollecting
		return res, nil
	}
}

// transitionNotice is appended to the transcript when the dialogue
// hands off to generation, before the first section call goes out.
const transitionNotice = `I now have the information needed to write the paper. Generation covers the abstract, introduction, literature review, methodology, results, discussion and conclusion, one section at a time, and can take a few minutes. Please hold on...`

// generateFullPaper runs the collaboration loop section by section and
// persists content and per-section process traces. Sections that fail
// keep their last good content and are reported as notices instead of
// failing the whole paper.
func (g *Generator) generateFullPaper(ctx context.Context, sessionID string, info map[string]string) (map[string]string, []string, error) {
	if err := g.store.SetStage(sessionID, StageGenerating); err != nil {
		return nil, nil, err
	}
	if err := g.store.SetStatus(sessionID, StatusGenerating); err != nil {
		return nil, nil, err
	}
	if err := g.store.AppendMessage(sessionID, "assistant", transitionNotice, nil); err != nil {
		return nil, nil, err
	}

	if g.tracer != nil {
		var span trace.Span
		ctx, span = g.tracer.Start(ctx, "paper.generate_full")
		defer span.End()
	}

	content := make(map[string]string, len(SectionOrder))
	var notices []string
	patch := map[string]any{}
	for _, section := range SectionOrder {
		result := g.engine.Generate(ctx, section, info, prompts.SectionRequirements[section], g.cfg.Iterations)
		if result.Content != "" {
			content[section] = result.Content
		}
		if result.Status != "completed" {
			notices = append(notices, fmt.Sprintf("section %q did not finish cleanly", section))
		}
		patch[section+"_generation_process"] = result.Process
	}
	patch["paper_content"] = content
	if err := g.store.UpdateContext(sessionID, patch); err != nil {
		return nil, nil, err
	}
	if err := g.store.SetStage(sessionID, StageCompleted); err != nil {
		return nil, nil, err
	}
	if err := g.store.SetStatus(sessionID, StatusCompleted); err != nil {
		return nil, nil, err
	}
	g.logger.Info("paper generated", "session_id", sessionID, "sections", len(content), "failed", len(notices))
	return content, notices, nil
}

// GenerateNow forces full paper generation with whatever information
// has been collected, regardless of completeness or round count.
func (g *Generator) GenerateNow(ctx context.Context, sessionID string) (*InputResult, error) {
	unlock := g.lock(sessionID)
	defer unlock()

	s, err := g.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	info := collectedInfo(s)
	comp := CheckCompleteness(info)

	res := &InputResult{
		SessionID:    sessionID,
		Round:        len(s.Messages) / 2,
		Completeness: comp,
	}
	if !comp.Complete {
		res.Notices = append(res.Notices,
			fmt.Sprintf("generation forced with %d field(s) missing", len(comp.Missing)))
	}
	content, notices, err := g.generateFullPaper(ctx, sessionID, info)
	if err != nil {
		return nil, err
	}
	res.Notices = append(res.Notices, notices...)
	reply := generationReply(content, res.Notices)
	if err := g.store.AppendMessage(sessionID, "assistant", reply, nil); err != nil {
		return nil, err
	}
	res.Reply = reply
	res.Stage = StageCompleted
	res.Status = StatusCompleted
	res.Paper = content
	return res, nil
}

// RegenerateSection reruns the collaboration loop for one section
// without touching the dialogue state machine.
func (g *Generator) RegenerateSection(ctx context.Context, sessionID, section string) (*collab.Result, error) {
	if !validSection(section) {
		return nil, fmt.Errorf("unknown section %q", section)
	}
	unlock := g.lock(sessionID)
	defer unlock()

	s, err := g.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	info := collectedInfo(s)
	result := g.engine.Generate(ctx, section, info, prompts.SectionRequirements[section], g.cfg.Iterations)

	content := paperContent(s)
	if result.Content != "" {
		content[section] = result.Content
	}
	err = g.store.UpdateContext(sessionID, map[string]any{
		"paper_content":                 content,
		section + "_generation_process": result.Process,
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPaperContent returns the generated sections of a session.
func (g *Generator) GetPaperContent(sessionID string) (map[string]string, string, error) {
	s, err := g.store.GetSession(sessionID)
	if err != nil {
		return nil, "", err
	}
	return paperContent(s), s.Status, nil
}

func validSection(section string) bool {
	for _, s := range SectionOrder {
		if s == section {
			return true
		}
	}
	return false
}

func nextStage(current string) string {
	for i, s := range Stages {
		if s == current && i+1 < len(Stages) {
			return Stages[i+1]
		}
	}
	return Stages[len(Stages)-1]
}

// history converts stored turns into chat messages, keeping the tail
// the collaboration engine will window anyway.
func history(msgs []db.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// collectedInfo reads the collected information out of the session
// context, tolerating the map[string]any shape JSON decoding yields.
func collectedInfo(s *db.Session) map[string]string {
	return stringMap(s.Context["collected_info"])
}

// paperContent reads the generated sections out of the session context.
func paperContent(s *db.Session) map[string]string {
	return stringMap(s.Context["paper_content"])
}

func stringMap(v any) map[string]string {
	out := map[string]string{}
	switch m := v.(type) {
	case map[string]string:
		for k, val := range m {
			out[k] = val
		}
	case map[string]any:
		for k, val := range m {
			if s, ok := val.(string); ok {
				out[k] = s
			}
		}
	}
	return out
}

func missingReply(comp Completeness) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("We have collected %.0f%% of what the paper needs. To proceed I still need:\n", comp.Rate*100))
	for i, field := range comp.Missing {
		sb.WriteString(fmt.Sprintf("\n%d. **%s**", i+1, field))
	}
	sb.WriteString("\n\nPlease fill these in and we can move on to generation.")
	return sb.String()
}

func generationReply(content map[string]string, notices []string) string {
	var sb strings.Builder
	sb.WriteString("The paper has been generated. Sections produced:\n")
	for _, section := range SectionOrder {
		if _, ok := content[section]; ok {
			sb.WriteString("\n- " + section)
		}
	}
	for _, n := range notices {
		sb.WriteString("\n\nNote: " + n)
	}
	sb.WriteString("\n\nYou can export the paper as markdown or plain text, or regenerate any single section.")
	return sb.String()
}
