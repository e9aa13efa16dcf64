package collab

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hazyhaar/paperforge/internal/config"
	"github.com/hazyhaar/paperforge/internal/llm"
	"github.com/hazyhaar/paperforge/internal/prompts"
)

// improvementTemperature overrides the generator's temperature for the
// rework pass, which should stay closer to the reviewed content.
const improvementTemperature = 0.7

// historyWindow bounds how many trailing messages the collector sees.
const historyWindow = 6

// Step records one action of the generation loop for the process trace.
type Step struct {
	Step    string `json:"step"`
	Role    string `json:"role"`
	Backend string `json:"backend"`
	Detail  string `json:"detail,omitempty"`
}

// Result is the outcome of a collaborative generation run. Content
// always holds the best version produced so far, even when a later
// iteration failed.
type Result struct {
	Section string `json:"section"`
	Content string `json:"content"`
	Status  string `json:"status"`
	Process []Step `json:"process"`
}

// Engine drives the role calls against the backend registry.
type Engine struct {
	registry *llm.Registry
	roles    config.RolesConfig
	logger   *slog.Logger
	tracer   trace.Tracer

	mu       sync.Mutex
	assign   *Assignments
	backends int
}

// NewEngine wires the engine over a registry. Logger and tracer may be
// nil.
func NewEngine(registry *llm.Registry, roles config.RolesConfig, logger *slog.Logger, tracer trace.Tracer) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		registry: registry,
		roles:    roles,
		logger:   logger,
		tracer:   tracer,
	}
	e.refreshAssignments()
	return e
}

// refreshAssignments recomputes role assignments when the backend set
// changed since the last call.
func (e *Engine) refreshAssignments() {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.registry.Names())
	if e.assign == nil || n != e.backends {
		e.assign = Assign(e.registry, e.roles)
		e.backends = n
	}
}

func (e *Engine) assignments() *Assignments {
	e.refreshAssignments()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.assign
}

// call runs one role against its assigned backend.
func (e *Engine) call(ctx context.Context, role Role, messages []llm.Message) (string, string, error) {
	a := e.assignments()
	backend := a.Backend(role)
	params := a.Params(role)

	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "collab."+string(role),
			trace.WithAttributes(attribute.String("llm.backend", backend)))
		defer span.End()
	}

	out, err := e.registry.Chat(ctx, messages, backend, params.Temperature, params.MaxTokens)
	if err != nil {
		e.logger.Error("role call failed", "role", role, "backend", backend, "error", err)
		return "", backend, err
	}
	e.logger.Debug("role call done", "role", role, "backend", backend, "chars", len(out))
	return out, backend, nil
}

// CollectInformation produces the collector's next guiding questions
// for the current stage. It degrades to a fixed apology when the
// backend fails, so the dialogue never stalls on an LLM outage.
func (e *Engine) CollectInformation(ctx context.Context, collectedInfo map[string]string, stage string, history []llm.Message) string {
	prompt := prompts.Render(prompts.Collaboration[string(RoleCollector)], map[string]string{
		"collected_info": prompts.FormatCollectedInfo(collectedInfo),
		"current_stage":  stage,
	})

	messages := []llm.Message{{Role: "system", Content: e.assignments().Params(RoleCollector).Description}}
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: prompt})

	out, _, err := e.call(ctx, RoleCollector, messages)
	if err != nil {
		return "Sorry, I ran into a problem while processing your information. Please try again, or tell me more about your research."
	}
	return out
}

// GenerateContent runs the generator role for one paper section.
func (e *Engine) GenerateContent(ctx context.Context, section string, collectedInfo map[string]string, requirements string) (string, error) {
	out, _, err := e.callGenerate(ctx, section, collectedInfo, requirements)
	return out, err
}

// ReviewQuality runs the reviewer role over generated content.
func (e *Engine) ReviewQuality(ctx context.Context, content string) (string, error) {
	out, _, err := e.callReview(ctx, content)
	return out, err
}

// OptimizeStructure runs the optimizer role over generated content.
func (e *Engine) OptimizeStructure(ctx context.Context, content string) (string, error) {
	out, _, err := e.callOptimize(ctx, content)
	return out, err
}

// improve feeds the review and optimization back into the generator at
// a lower temperature.
func (e *Engine) improve(ctx context.Context, content, review, optimization string) (string, string, error) {
	a := e.assignments()
	backend := a.Backend(RoleGenerator)
	params := a.Params(RoleGenerator)

	prompt := prompts.Render(prompts.Improvement, map[string]string{
		"content":      content,
		"review":       review,
		"optimization": optimization,
	})
	messages := []llm.Message{
		{Role: "system", Content: params.Description},
		{Role: "user", Content: prompt},
	}

	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "collab.improve",
			trace.WithAttributes(attribute.String("llm.backend", backend)))
		defer span.End()
	}

	out, err := e.registry.Chat(ctx, messages, backend, improvementTemperature, params.MaxTokens)
	if err != nil {
		e.logger.Error("improvement pass failed", "backend", backend, "error", err)
		return "", backend, err
	}
	return out, backend, nil
}

// Generate runs the full collaborative loop for one section: an
// initial generation followed by iterations of review, structure
// optimization, and an improvement pass. A failure mid-loop stops the
// loop but keeps the last successfully produced content; only a failed
// initial generation yields empty content.
func (e *Engine) Generate(ctx context.Context, section string, collectedInfo map[string]string, requirements string, iterations int) Result {
	if iterations < 1 {
		iterations = 1
	}
	res := Result{Section: section, Status: "completed"}

	content, backend, err := e.callGenerate(ctx, section, collectedInfo, requirements)
	if err != nil {
		res.Status = "error"
		res.Process = append(res.Process, Step{
			Step: "initial_generation", Role: string(RoleGenerator), Backend: backend,
			Detail: err.Error(),
		})
		return res
	}
	res.Content = content
	res.Process = append(res.Process, Step{
		Step: "initial_generation", Role: string(RoleGenerator), Backend: backend,
	})

	for i := 0; i < iterations; i++ {
		review, rbackend, err := e.callReview(ctx, res.Content)
		if err != nil {
			res.Status = "error"
			res.Process = append(res.Process, Step{
				Step: fmt.Sprintf("quality_review_%d", i+1), Role: string(RoleReviewer), Backend: rbackend,
				Detail: err.Error(),
			})
			return res
		}
		res.Process = append(res.Process, Step{
			Step: fmt.Sprintf("quality_review_%d", i+1), Role: string(RoleReviewer), Backend: rbackend,
		})

		optimization, obackend, err := e.callOptimize(ctx, res.Content)
		if err != nil {
			res.Status = "error"
			res.Process = append(res.Process, Step{
				Step: fmt.Sprintf("structure_optimization_%d", i+1), Role: string(RoleOptimizer), Backend: obackend,
				Detail: err.Error(),
			})
			return res
		}
		res.Process = append(res.Process, Step{
			Step: fmt.Sprintf("structure_optimization_%d", i+1), Role: string(RoleOptimizer), Backend: obackend,
		})

		improved, ibackend, err := e.improve(ctx, res.Content, review, optimization)
		if err != nil {
			res.Status = "error"
			res.Process = append(res.Process, Step{
				Step: fmt.Sprintf("improved_generation_%d", i+1), Role: string(RoleGenerator), Backend: ibackend,
				Detail: err.Error(),
			})
			return res
		}
		res.Content = improved
		res.Process = append(res.Process, Step{
			Step: fmt.Sprintf("improved_generation_%d", i+1), Role: string(RoleGenerator), Backend: ibackend,
		})
	}

	e.logger.Info("section generated", "section", section, "iterations", iterations, "chars", len(res.Content))
	return res
}

func (e *Engine) callGenerate(ctx context.Context, section string, collectedInfo map[string]string, requirements string) (string, string, error) {
	prompt := prompts.Render(prompts.Collaboration[string(RoleGenerator)], map[string]string{
		"section":        section,
		"collected_info": prompts.FormatCollectedInfo(collectedInfo),
		"requirements":   requirements,
	})
	return e.call(ctx, RoleGenerator, []llm.Message{
		{Role: "system", Content: e.assignments().Params(RoleGenerator).Description},
		{Role: "user", Content: prompt},
	})
}

func (e *Engine) callReview(ctx context.Context, content string) (string, string, error) {
	prompt := prompts.Render(prompts.Collaboration[string(RoleReviewer)], map[string]string{
		"content": content,
	})
	return e.call(ctx, RoleReviewer, []llm.Message{
		{Role: "system", Content: e.assignments().Params(RoleReviewer).Description},
		{Role: "user", Content: prompt},
	})
}

func (e *Engine) callOptimize(ctx context.Context, content string) (string, string, error) {
	prompt := prompts.Render(prompts.Collaboration[string(RoleOptimizer)], map[string]string{
		"content": content,
	})
	return e.call(ctx, RoleOptimizer, []llm.Message{
		{Role: "system", Content: e.assignments().Params(RoleOptimizer).Description},
		{Role: "user", Content: prompt},
	})
}

// ExtractInformation asks a backend to pull structured fields out of a
// user message. The raw model output is returned; the caller parses it.
func (e *Engine) ExtractInformation(ctx context.Context, input, stage string) (string, error) {
	prompt := prompts.Render(prompts.Extraction, map[string]string{
		"input":         input,
		"current_stage": stage,
	})
	a := e.assignments()
	backend := a.Backend(RoleCollector)
	out, err := e.registry.Chat(ctx, []llm.Message{
		{Role: "system", Content: prompts.ExtractionSystem},
		{Role: "user", Content: prompt},
	}, backend, 0.3, 1000)
	if err != nil {
		return "", err
	}
	return out, nil
}
