package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/langpipe/langpipe"
)

// threadIDHeader carries the thread identifier back to the client so it can
// continue the conversation on a follow-up run.
const threadIDHeader = "lb-thread-id"

// runRequest is the wire shape of POST /v1/pipes/run. The pipe definition
// travels inline; the caller may override streaming and supply its own
// tool definitions, variables, and vendor key.
type runRequest struct {
	Pipe      *langpipe.Pipe            `json:"pipe"`
	Stream    *bool                     `json:"stream,omitempty"`
	Messages  []langpipe.Message        `json:"messages"`
	Variables []langpipe.Variable       `json:"variables,omitempty"`
	Tools     []langpipe.ToolDefinition `json:"tools,omitempty"`
	ThreadID  string                    `json:"threadId,omitempty"`
	APIKey    string                    `json:"llmApiKey,omitempty"`
}

// runResponse is the buffered response: the provider's full response with
// the final text lifted into a top-level completion field.
type runResponse struct {
	Completion string `json:"completion"`
	*langpipe.Response
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 10<<20)).Decode(&req); err != nil {
		s.writeError(w, &langpipe.APIError{
			Status:  http.StatusBadRequest,
			Code:    langpipe.CodeBadRequest,
			Message: fmt.Sprintf("invalid request body: %v", err),
		})
		return
	}
	if err := validateRun(&req); err != nil {
		s.writeError(w, err)
		return
	}

	apiKey := req.APIKey
	if apiKey == "" && s.resolve != nil {
		vendor, _ := langpipe.SplitModel(req.Pipe.Model)
		key, err := s.resolve(vendor)
		if err != nil {
			s.writeError(w, &langpipe.APIError{
				Status:  http.StatusBadRequest,
				Code:    langpipe.CodeBadRequest,
				Message: err.Error(),
			})
			return
		}
		apiKey = key
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = langpipe.NewID()
	}

	s.logger.Info("pipe run",
		"pipe", req.Pipe.Name,
		"model", req.Pipe.Model,
		"thread", threadID,
		"stream", req.Stream != nil && *req.Stream,
		"key", redactKey(apiKey),
	)

	opts := []langpipe.RunnerOption{langpipe.WithLogger(s.logger)}
	if s.retrieval != nil {
		opts = append(opts, langpipe.WithRetrieval(s.retrieval))
	}
	if s.maxCalls > 0 {
		opts = append(opts, langpipe.WithMaxCalls(s.maxCalls))
	}
	if s.tracer != nil {
		opts = append(opts, langpipe.WithTracer(s.tracer))
	}
	runner := langpipe.NewRunner(req.Pipe, s.registry, opts...)

	result, err := runner.Run(r.Context(), langpipe.RunOptions{
		Messages:  req.Messages,
		Variables: req.Variables,
		ThreadID:  threadID,
		APIKey:    apiKey,
		Stream:    req.Stream,
		Tools:     req.Tools,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	for _, warning := range result.Warnings {
		s.logger.Warn(warning, "pipe", req.Pipe.Name, "thread", threadID)
	}

	w.Header().Set(threadIDHeader, threadID)
	if result.Stream != nil {
		s.writeStream(w, r, result.Stream)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runResponse{
		Completion: result.Response.Completion(),
		Response:   result.Response,
	})
}

// writeStream relays the chunk stream as server-sent events, one data line
// per chunk plus a terminal [DONE] marker, flushing after every event.
func (s *Server) writeStream(w http.ResponseWriter, r *http.Request, stream langpipe.ChunkReader) {
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			fmt.Fprint(w, "data: [DONE]\n\n")
			if flusher != nil {
				flusher.Flush()
			}
			return
		}
		if err != nil {
			// Headers are gone; the best we can do is log and drop.
			s.logger.Error("stream aborted", "error", err)
			return
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			s.logger.Error("stream chunk encode", "error", err)
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
		if r.Context().Err() != nil {
			return
		}
	}
}

func validateRun(req *runRequest) error {
	verr := &langpipe.ValidationError{}
	if req.Pipe == nil {
		verr.Add("pipe", "pipe definition is required")
	} else {
		if req.Pipe.Model == "" {
			verr.Add("pipe.model", "model is required")
		}
		if vendor, model := langpipe.SplitModel(req.Pipe.Model); req.Pipe.Model != "" && (vendor == "" || model == "") {
			verr.Add("pipe.model", `model must be of the form "vendor:model"`)
		}
	}
	if len(req.Messages) == 0 {
		verr.Add("messages", "at least one message is required")
	}
	for i, m := range req.Messages {
		switch m.Role {
		case langpipe.RoleSystem, langpipe.RoleUser, langpipe.RoleAssistant, langpipe.RoleTool:
		default:
			verr.Add(fmt.Sprintf("messages[%d].role", i), fmt.Sprintf("unknown role %q", m.Role))
		}
	}
	for i, t := range req.Tools {
		if t.Name == "" {
			verr.Add(fmt.Sprintf("tools[%d].name", i), "tool name is required")
		}
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

// writeError maps domain errors to the JSON error envelope. Validation and
// resolution failures are 400s; provider errors keep their status; anything
// unrecognized is a 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	body := errorBody{
		Status:  http.StatusInternalServerError,
		Code:    langpipe.CodeInternalServerError,
		Message: err.Error(),
	}

	var (
		apiErr      *langpipe.APIError
		valErr      *langpipe.ValidationError
		providerErr *langpipe.UnsupportedProviderError
		modelErr    *langpipe.UnsupportedModelError
		toolErr     *langpipe.ToolNotFoundError
	)
	switch {
	case errors.As(err, &apiErr):
		body.Status = apiErr.Status
		body.Code = apiErr.Code
		body.Message = apiErr.Message
	case errors.As(err, &valErr):
		body.Status = http.StatusBadRequest
		body.Code = langpipe.CodeBadRequest
	case errors.As(err, &providerErr):
		body.Status = http.StatusBadRequest
		body.Code = langpipe.CodeUnsupportedProvider
	case errors.As(err, &modelErr):
		body.Status = http.StatusBadRequest
		body.Code = langpipe.CodeUnsupportedModel
	case errors.As(err, &toolErr):
		body.Status = http.StatusBadRequest
		body.Code = langpipe.CodeToolNotFound
	}

	if body.Status >= 500 {
		s.logger.Error("pipe run failed", "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(body.Status)
	json.NewEncoder(w).Encode(errorEnvelope{Error: body})
}

// redactKey keeps the first characters of a vendor key for log correlation
// and masks the rest.
func redactKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:8] + strings.Repeat("*", 45)
}
