package langpipe

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// DefaultMaxCalls bounds the tool-calling loop when no limit is configured.
const DefaultMaxCalls = 100

// maxParallelTools caps concurrent tool executions within one turn so a
// model emitting many parallel calls cannot spawn unbounded goroutines.
const maxParallelTools = 10

// HistoryMode selects how the message list is accumulated across turns.
// The mode is an explicit, required choice — never inferred from the
// environment — because mixing the two silently duplicates context.
type HistoryMode int

const (
	// HistoryLocal resends the full message history each turn: the
	// assistant's tool-call message and all tool results are appended to
	// the running list. For endpoints that keep no server-side state.
	HistoryLocal HistoryMode = iota
	// HistoryRemote sends only the new tool-result messages each turn,
	// along with the ThreadID; the hosted endpoint reconstructs context
	// from its own thread state.
	HistoryRemote
)

// RunOptions are the per-call inputs at the orchestration boundary.
type RunOptions struct {
	Messages  []Message
	Variables []Variable
	// ThreadID identifies server-side thread state in HistoryRemote mode.
	ThreadID string
	// APIKey is the vendor credential for this call. Never persisted.
	APIKey string
	// Stream overrides the pipe's stream flag when set.
	Stream *bool
	// RunTools disables automatic tool execution when set to false.
	RunTools *bool
	// Tools passes tool definitions through to the model without binding
	// executables; providing any disables automatic tool execution.
	Tools []ToolDefinition
}

// RunResult is the outcome of one orchestration session. Exactly one of
// Response and Stream is set: Stream for a streaming run whose final turn
// produced a token stream, Response otherwise.
type RunResult struct {
	Response *Response
	Stream   ChunkReader
	ThreadID string
	// Warnings carries non-fatal conditions: a forced non-streaming turn,
	// or loop exhaustion returning the last response.
	Warnings []string
}

// Runner is the public entry point: it decides streaming vs. buffered,
// runs the bounded tool-calling loop, and tees live streams to detect tool
// calls without consuming the caller's copy. Each Run call owns its own
// message list, counters, and stream tee; a Runner is safe for concurrent
// Run calls.
type Runner struct {
	pipe      *Pipe
	registry  Registry
	retrieval *RetrievalEngine
	tools     ToolMap
	toolDefs  []ToolDefinition
	maxCalls  int
	mode      HistoryMode
	logger    *slog.Logger
	tracer    Tracer
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTools registers caller-supplied executable tools.
func WithTools(tools []Tool) RunnerOption {
	return func(r *Runner) {
		r.toolDefs = Definitions(tools)
		m, err := NewToolMap(tools)
		if err != nil {
			// Surfaced on first dispatch; construction stays infallible.
			r.tools = nil
			r.toolDefs = nil
			r.logger.Warn("invalid tool registration", "error", err)
			return
		}
		r.tools = m
	}
}

// WithRetrieval attaches a memory retrieval engine.
func WithRetrieval(e *RetrievalEngine) RunnerOption {
	return func(r *Runner) { r.retrieval = e }
}

// WithMaxCalls bounds the tool-calling loop. Default 100.
func WithMaxCalls(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxCalls = n
		}
	}
}

// WithHistoryMode selects local or remote message accumulation.
func WithHistoryMode(m HistoryMode) RunnerOption {
	return func(r *Runner) { r.mode = m }
}

// WithLogger injects a logger; defaults to a no-op.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithTracer injects a tracer; defaults to none.
func WithTracer(t Tracer) RunnerOption {
	return func(r *Runner) { r.tracer = t }
}

// NewRunner creates a Runner for one pipe over the given provider registry.
func NewRunner(pipe *Pipe, registry Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		pipe:     pipe,
		registry: registry,
		maxCalls: DefaultMaxCalls,
		logger:   nopLogger,
	}
	// Tools declared on the pipe definition (schema-only) are exposed to
	// the model even when no executable is bound.
	r.toolDefs = append(r.toolDefs, pipe.Tools...)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one orchestration session: compose the prompt (augmented
// with retrieved memory), call the model, and loop on tool calls until the
// model produces a final answer or the call budget is spent.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	factory, caps, err := r.registry.Resolve(r.pipe.Model)
	if err != nil {
		return nil, err
	}
	handler := factory(opts.APIKey)

	if r.tracer != nil {
		var span Span
		ctx, span = r.tracer.Start(ctx, "pipe.run",
			StringAttr("pipe", r.pipe.Name),
			StringAttr("model", r.pipe.Model))
		defer span.End()
	}

	// Retrieval query is the most recent user message; it cannot change
	// within the tool loop, so retrieve once per session.
	var chunks []SimilarChunk
	if r.retrieval != nil {
		chunks, err = r.retrieval.Context(ctx, opts.Messages, r.pipe.MemoryNames())
		if err != nil {
			return nil, err
		}
	}

	sess := &session{
		runner:   r,
		handler:  handler,
		caps:     caps,
		opts:     opts,
		chunks:   chunks,
		messages: opts.Messages,
	}
	return sess.run(ctx)
}

// session holds per-Run mutable state so concurrent Run calls never share
// a message list or counters.
type session struct {
	runner   *Runner
	handler  Handler
	caps     Capability
	opts     RunOptions
	chunks   []SimilarChunk
	messages []Message
	warnings []string
	// followup marks turns after the first in HistoryRemote mode, where
	// messages holds only the new tool results and must not be re-wrapped
	// with the composed prompt and seed history.
	followup bool
}

func (s *session) run(ctx context.Context) (*RunResult, error) {
	r := s.runner

	runTools := s.opts.RunTools == nil || *s.opts.RunTools
	if len(s.opts.Tools) > 0 {
		// Caller supplied raw definitions: it owns execution.
		runTools = false
	}

	stream := r.pipe.Stream
	if s.opts.Stream != nil {
		stream = *s.opts.Stream
	}

	toolDefs := s.toolDefinitions()
	hasTools := len(toolDefs) > 0

	// A vendor that cannot combine tool calls with streaming gets a
	// buffered turn instead of an invalid request.
	if stream && hasTools && !s.caps.StreamToolCallSupport {
		stream = false
		s.warn(fmt.Sprintf("model %s does not support streaming with tools; falling back to non-streaming mode", r.pipe.Model))
	}

	if stream {
		return s.runStreaming(ctx, toolDefs, runTools)
	}
	return s.runBuffered(ctx, toolDefs, runTools)
}

// runBuffered is the non-streaming path: one request per turn, tool calls
// executed concurrently between turns, bounded by maxCalls.
func (s *session) runBuffered(ctx context.Context, toolDefs []ToolDefinition, runTools bool) (*RunResult, error) {
	r := s.runner

	var last *Response
	for call := 0; call < r.maxCalls; call++ {
		req := s.buildRequest(toolDefs, false)
		resp, err := s.handler.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		last = resp

		calls := resp.ToolCalls()
		if len(calls) == 0 || !runTools {
			return s.result(resp, nil), nil
		}

		toolResults, err := s.executeTools(ctx, calls)
		if err != nil {
			return nil, err
		}
		s.advance(calls, resp.Completion(), toolResults)
	}

	s.warn(fmt.Sprintf("reached maximum number of calls (%d); returning last response", r.maxCalls))
	return s.result(last, nil), nil
}

// runStreaming issues streaming requests and tees each response stream: one
// copy is scanned for tool-call deltas, the other is handed to the caller
// untouched when the turn carries no tool calls.
func (s *session) runStreaming(ctx context.Context, toolDefs []ToolDefinition, runTools bool) (*RunResult, error) {
	r := s.runner

	for call := 0; ; call++ {
		req := s.buildRequest(toolDefs, true)
		stream, err := s.handler.Stream(ctx, req)
		if err != nil {
			return nil, err
		}

		if len(toolDefs) == 0 || !runTools {
			return s.result(nil, stream), nil
		}

		detect, caller := Tee(stream)
		calls, err := ScanToolCalls(detect)
		detect.Close()
		if err != nil {
			caller.Close()
			return nil, err
		}

		if len(calls) == 0 {
			return s.result(nil, caller), nil
		}
		if call >= r.maxCalls-1 {
			// Budget spent: hand over the last stream rather than failing.
			s.warn(fmt.Sprintf("reached maximum number of calls (%d); returning last response", r.maxCalls))
			return s.result(nil, caller), nil
		}
		caller.Close()

		toolResults, err := s.executeTools(ctx, calls)
		if err != nil {
			return nil, err
		}
		s.advance(calls, "", toolResults)
	}
}

// advance merges one turn's assistant tool-call message and tool results
// into the running message list according to the history mode.
func (s *session) advance(calls []ToolCall, content string, toolResults []Message) {
	if s.runner.mode == HistoryRemote {
		// The hosted endpoint holds the thread; send only what is new.
		s.messages = toolResults
		s.followup = true
		return
	}
	assistant := Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
	s.messages = append(append(s.messages, assistant), toolResults...)
}

// buildRequest assembles the canonical request for one turn, attaching
// only the tool parameters the resolved model supports.
func (s *session) buildRequest(toolDefs []ToolDefinition, stream bool) Request {
	p := s.runner.pipe

	// Remote follow-up turns carry the thread key and only the new tool
	// results; the endpoint already holds the prompt and prior turns.
	messages := s.messages
	if !s.followup {
		messages = Thread(p, s.chunks, s.messages, s.opts.Variables)
	}

	req := Request{
		Model:            modelName(p.Model),
		Messages:         messages,
		Stream:           stream,
		Temperature:      p.Temperature,
		TopP:             p.TopP,
		MaxTokens:        p.MaxTokens,
		PresencePenalty:  p.PresencePenalty,
		FrequencyPenalty: p.FrequencyPenalty,
		Stop:             p.Stop,
		JSONMode:         p.JSON,
		ThreadID:         s.opts.ThreadID,
	}

	if len(toolDefs) == 0 {
		return req
	}
	req.Tools = toolDefs
	if s.caps.ToolChoiceSupport {
		tc := s.runner.pipe.ToolChoice.ToolChoice
		if tc.Mode == "" {
			tc.Mode = ToolChoiceAuto
		}
		req.ToolChoice = &tc
	}
	if s.caps.ParallelToolCallSupport {
		parallel := p.ParallelToolCalls
		req.ParallelToolCalls = &parallel
	}
	return req
}

// toolDefinitions picks the definitions for this session: the caller's
// raw pass-through definitions win over registered tools, and a model
// without tool support gets none at all.
func (s *session) toolDefinitions() []ToolDefinition {
	if !s.caps.ToolSupport {
		return nil
	}
	if len(s.opts.Tools) > 0 {
		return s.opts.Tools
	}
	return s.runner.toolDefs
}

// executeTools runs every tool call of one turn concurrently and returns
// the tool result messages in call order. All names are resolved before
// anything executes, so an unknown tool fails the turn without side
// effects; any single failing execution fails the whole turn.
func (s *session) executeTools(ctx context.Context, calls []ToolCall) ([]Message, error) {
	tools := s.runner.tools
	for _, tc := range calls {
		if _, ok := tools[tc.Function.Name]; !ok {
			return nil, &ToolNotFoundError{Tool: tc.Function.Name}
		}
	}

	if len(calls) == 1 {
		msg, err := safeExecute(ctx, tools, calls[0])
		if err != nil {
			return nil, err
		}
		return []Message{msg}, nil
	}

	type indexed struct {
		idx int
		msg Message
		err error
	}
	work := make(chan int, len(calls))
	for i := range calls {
		work <- i
	}
	close(work)
	results := make(chan indexed, len(calls))

	workers := len(calls)
	if workers > maxParallelTools {
		workers = maxParallelTools
	}
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range work {
				msg, err := safeExecute(ctx, tools, calls[i])
				results <- indexed{idx: i, msg: msg, err: err}
			}
		}()
	}
	wg.Wait()
	close(results)

	msgs := make([]Message, len(calls))
	var firstErr error
	for res := range results {
		if res.err != nil && firstErr == nil {
			firstErr = res.err
		}
		msgs[res.idx] = res.msg
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return msgs, nil
}

// safeExecute converts a panicking tool into a turn-fatal error instead of
// crashing the process.
func safeExecute(ctx context.Context, tools ToolMap, tc ToolCall) (msg Message, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tool %q panic: %v", tc.Function.Name, p)
		}
	}()
	return tools.execute(ctx, tc)
}

func (s *session) result(resp *Response, stream ChunkReader) *RunResult {
	return &RunResult{
		Response: resp,
		Stream:   stream,
		ThreadID: s.opts.ThreadID,
		Warnings: s.warnings,
	}
}

func (s *session) warn(msg string) {
	s.warnings = append(s.warnings, msg)
	s.runner.logger.Warn(msg, "pipe", s.runner.pipe.Name)
}

func modelName(id string) string {
	_, model := SplitModel(id)
	if model == "" {
		return id
	}
	return model
}
