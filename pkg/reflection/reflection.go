// Package reflection implements the actor-evaluator-reflector pipeline
// of spec.md §4.G: given a context describing how a task played out
// (its outcome, the events that led there, an optional error), it asks
// an LLM provider to distill a reflection and, optionally, a corrective
// strategy, then persists both as linked records.
//
// Grounded on
// original_source/apps/memory_api/services/reflection_engine_v2.py's
// outcome-keyed prompt selection (success prompts seek patterns to
// reinforce; failure/partial prompts seek root causes and corrective
// strategies) and its two-memory persistence shape (reflection +
// optional strategy, store_reflection's behavior when strategy_text is
// absent).
package reflection

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oceanbase/agentmem/pkg/layers"
	"github.com/oceanbase/agentmem/pkg/llm"
	"github.com/oceanbase/agentmem/pkg/memory"
	"github.com/oceanbase/agentmem/pkg/storage"
)

// Outcome is the result of the task the reflection context describes.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomePartial Outcome = "partial"
)

// EventType classifies a single Event within a ReflectionContext.
type EventType string

const (
	EventToolCall EventType = "tool_call"
	EventMessage  EventType = "message"
	EventError    EventType = "error"
)

// Event is one step of the task trace a reflection is generated from.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Content   string
	ToolName  string
	Error     map[string]interface{}
	Metadata  map[string]interface{}
}

// ErrorInfo describes the failure that ended a task, when Outcome is
// OutcomeFailure.
type ErrorInfo struct {
	Category string
	Message  string
}

// Context is the input to Engine.Reflect: everything the reflection
// prompt needs to know about how a task played out.
type Context struct {
	TenantID    string
	Project     string
	AgentID     string
	Outcome     Outcome
	Events      []Event
	TaskGoal    string
	TaskDesc    string
	Error       *ErrorInfo
	SeedMemoryIDs []uuid.UUID
}

// Result is the structured reflection produced by the LLM, mirroring
// LLMReflectionResponse's fields in reflection_engine_v2.py.
type Result struct {
	ReflectionText string
	StrategyText   string
	Importance     float64
	Confidence     float64
	Tags           []string
	GeneratedAt    time.Time
}

// llmResponse is the wire shape requested from the LLM provider; the
// engine asks for exactly this JSON object in the completion since the
// current llm.Provider interface has no generate_structured/function
// schema call, only Generate's plain-text completion.
type llmResponse struct {
	Reflection string   `json:"reflection"`
	Strategy   string   `json:"strategy,omitempty"`
	Importance float64  `json:"importance"`
	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags,omitempty"`
}

// Engine runs the actor-evaluator-reflector pipeline against an LLM
// provider and persists its output into the reflective layer (and,
// when a strategy is produced, a second linked record).
type Engine struct {
	Store    storage.Store
	LLM      llm.Provider
	minEvents int
}

// NewEngine constructs a reflection Engine.
func NewEngine(store storage.Store, llmP llm.Provider) *Engine {
	return &Engine{Store: store, LLM: llmP}
}

// Reflect runs the actor-evaluator-reflector pipeline against rc and
// persists the resulting reflection (and strategy, if present) into the
// reflective layer. It returns the reflection record; the strategy
// record, if any, is reachable via its tags ("strategy") and its
// metadata's "reflection_id" link.
func (e *Engine) Reflect(ctx context.Context, rc Context) (*memory.Record, error) {
	if e.LLM == nil {
		return nil, memory.WrapOp("reflection.Reflect", fmt.Errorf("%w: no LLM provider configured", memory.ErrInvalidConfig))
	}

	prompt := buildPrompt(rc)
	raw, err := e.LLM.Generate(ctx, prompt, llm.WithTemperature(0.2), llm.WithMaxTokens(600))
	if err != nil {
		return nil, memory.WrapOp("reflection.Reflect", fmt.Errorf("%w: %v", memory.ErrLLMOperation, err))
	}

	var resp llmResponse
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &resp); err != nil {
		return nil, memory.WrapOp("reflection.Reflect", fmt.Errorf("%w: parse reflection response: %v", memory.ErrLLMOperation, err))
	}

	result := Result{
		ReflectionText: resp.Reflection,
		StrategyText:   resp.Strategy,
		Importance:     resp.Importance,
		Confidence:     resp.Confidence,
		Tags:           resp.Tags,
		GeneratedAt:    time.Now().UTC(),
	}

	reflectionRec, _, err := e.storeReflection(ctx, rc, result)
	if err != nil {
		return nil, memory.WrapOp("reflection.Reflect", err)
	}
	return reflectionRec, nil
}

// storeReflection persists result as a reflective-layer record linked
// to rc.SeedMemoryIDs, plus — only if result.StrategyText is non-empty
// — a second reflective record tagged "strategy" and linked back to the
// reflection itself, mirroring store_reflection's two-call/one-call
// split in reflection_engine_v2.py.
func (e *Engine) storeReflection(ctx context.Context, rc Context, result Result) (reflectionRec, strategyRec *memory.Record, err error) {
	reflective := layers.NewReflective(e.Store, rc.TenantID, rc.Project, rc.AgentID, layers.ReflectiveConfig{})

	importance := result.Importance
	reflectionRec, err = reflective.Add(ctx, result.ReflectionText, rc.SeedMemoryIDs,
		layers.WithImportance(importance),
		layers.WithTags(append([]string{"reflection", string(rc.Outcome)}, result.Tags...)...),
		layers.WithMetadata(map[string]interface{}{
			"confidence": result.Confidence,
			"source":     "reflection-engine",
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("store reflection: %w", err)
	}

	if strings.TrimSpace(result.StrategyText) == "" {
		return reflectionRec, nil, nil
	}

	strategyRec, err = reflective.Add(ctx, result.StrategyText, []uuid.UUID{reflectionRec.ID},
		layers.WithImportance(importance),
		layers.WithTags("strategy", string(rc.Outcome)),
		layers.WithMetadata(map[string]interface{}{
			"confidence":    result.Confidence,
			"source":        "reflection-engine",
			"reflection_id": reflectionRec.ID.String(),
		}),
	)
	if err != nil {
		return reflectionRec, nil, fmt.Errorf("store strategy: %w", err)
	}
	return reflectionRec, strategyRec, nil
}

// GenerateReflection satisfies pkg/maintenance.ReflectionGenerator. It
// loads the seed memories, frames them as a single success-outcome
// reflection context (the dreaming worker has no per-event outcome
// information, only a cluster of noteworthy memories), and runs Reflect.
func (e *Engine) GenerateReflection(ctx context.Context, tenantID, project, agentID string, seedIDs []uuid.UUID) (*memory.Record, error) {
	scope := storage.AccessScope{TenantID: tenantID, AgentID: agentID}
	events := make([]Event, 0, len(seedIDs))
	for _, id := range seedIDs {
		rec, err := e.Store.Get(ctx, id, scope)
		if err != nil {
			return nil, memory.WrapOp("reflection.GenerateReflection", err)
		}
		events = append(events, Event{
			ID:        rec.ID.String(),
			Type:      EventMessage,
			Timestamp: rec.CreatedAt,
			Content:   rec.Content,
		})
	}

	rc := Context{
		TenantID:      tenantID,
		Project:       project,
		AgentID:       agentID,
		Outcome:       OutcomeSuccess,
		Events:        events,
		TaskGoal:      "identify recurring patterns across recent memories",
		SeedMemoryIDs: seedIDs,
	}
	return e.Reflect(ctx, rc)
}

// QueryReflections returns up to limit reflective-layer records for
// tenantID/project with importance ≥ minImportance, ordered as the
// store returns them (created_at descending), mirroring
// query_reflections's min-importance filter in reflection_engine_v2.py.
func (e *Engine) QueryReflections(ctx context.Context, tenantID, project string, minImportance float64, limit int) ([]*memory.Record, error) {
	recs, err := e.Store.List(ctx, storage.ListOptions{
		TenantID: tenantID,
		Project:  project,
		Layer:    memory.LayerReflective,
		Limit:    limit,
	})
	if err != nil {
		return nil, memory.WrapOp("reflection.QueryReflections", err)
	}
	out := make([]*memory.Record, 0, len(recs))
	for _, rec := range recs {
		if rec.Importance >= minImportance {
			out = append(out, rec)
		}
	}
	return out, nil
}

const successPromptHeader = `You are evaluating a successful task execution. Identify the pattern that made it succeed so it can be reinforced in future attempts.`

const failurePromptHeader = `You are evaluating a task execution that did not fully succeed. Analyze the traces below for the root cause and propose a corrective strategy.`

// buildPrompt selects the success or failure/partial prompt per
// rc.Outcome and appends the formatted event trace, task goal, and (for
// failures) error info, then asks for the llmResponse JSON shape.
func buildPrompt(rc Context) string {
	var b strings.Builder
	if rc.Outcome == OutcomeSuccess {
		b.WriteString(successPromptHeader)
	} else {
		b.WriteString(failurePromptHeader)
	}
	b.WriteString("\n\nTask goal: ")
	b.WriteString(rc.TaskGoal)
	if rc.TaskDesc != "" {
		b.WriteString("\nTask description: ")
		b.WriteString(rc.TaskDesc)
	}
	if rc.Error != nil {
		fmt.Fprintf(&b, "\nError: [%s] %s", rc.Error.Category, rc.Error.Message)
	}
	b.WriteString("\n\nEvent trace:\n")
	b.WriteString(formatEvents(rc.Events))
	b.WriteString(`

Respond with ONLY a JSON object, no prose, matching this shape:
{"reflection": "...", "strategy": "...", "importance": 0.0, "confidence": 0.0, "tags": ["..."]}

Omit "strategy" (or set it to an empty string) if no corrective strategy applies.`)
	return b.String()
}

// formatEvents renders events as one line each, grounded on
// reflection_engine_v2.py's _format_events (tool name and error payload
// included inline when present).
func formatEvents(events []Event) string {
	var b strings.Builder
	for _, ev := range events {
		b.WriteString(ev.Content)
		if ev.ToolName != "" {
			fmt.Fprintf(&b, " (Tool: %s)", ev.ToolName)
		}
		if ev.Error != nil {
			fmt.Fprintf(&b, " (Error: %v)", ev.Error)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// extractJSONObject trims leading/trailing prose a model sometimes adds
// around the requested JSON object despite being told not to.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
