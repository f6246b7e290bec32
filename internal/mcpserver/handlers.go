package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/mark3labs/carepath/internal/forms"
	"github.com/mark3labs/carepath/internal/logger"
	"github.com/mark3labs/carepath/internal/submission"
	"github.com/mark3labs/carepath/internal/wizard"
	"github.com/mark3labs/mcp-go/mcp"
)

type fieldInfo struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Kind     string   `json:"kind"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

type stepInfo struct {
	Ordinal int         `json:"ordinal"`
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Fields  []fieldInfo `json:"fields"`
}

type flowInfo struct {
	Name  string     `json:"name"`
	Title string     `json:"title"`
	Steps []stepInfo `json:"steps"`
}

// state is the JSON view of a session returned by most tools.
type state struct {
	Session   string            `json:"session"`
	Flow      string            `json:"flow"`
	Step      int               `json:"step"`
	Total     int               `json:"total"`
	StepID    string            `json:"step_id"`
	StepTitle string            `json:"step_title"`
	Terminal  bool              `json:"terminal"`
	Valid     bool              `json:"valid"`
	Missing   []string          `json:"missing,omitempty"`
	Messages  map[string]string `json:"messages,omitempty"`
	Fields    []fieldInfo       `json:"fields"`
	Draft     map[string]any    `json:"draft"`
}

type submitResult struct {
	Reference   string          `json:"reference"`
	Flow        string          `json:"flow"`
	SubmittedAt time.Time       `json:"submitted_at"`
	Fields      map[string]any  `json:"fields"`
	Ack         *submission.Ack `json:"ack,omitempty"`
	AckError    string          `json:"ack_error,omitempty"`
}

func describeStep(step wizard.StepDefinition) stepInfo {
	info := stepInfo{Ordinal: step.Ordinal(), ID: step.ID, Title: step.Title}
	for _, f := range step.Fields {
		info.Fields = append(info.Fields, fieldInfo{
			Key:      f.Key,
			Label:    f.Label,
			Kind:     f.Kind.String(),
			Required: f.Required,
			Options:  f.Options,
		})
	}
	return info
}

func snapshot(id string, fs *flowSession) state {
	e := fs.engine
	cur, total := e.Progress()
	step := e.Current()
	v := e.ValidateStep(cur)
	return state{
		Session:   id,
		Flow:      e.Flow(),
		Step:      cur,
		Total:     total,
		StepID:    step.ID,
		StepTitle: step.Title,
		Terminal:  e.IsTerminal(),
		Valid:     v.OK(),
		Missing:   v.Missing,
		Messages:  v.Messages,
		Fields:    describeStep(step).Fields,
		Draft:     e.Draft().Map(),
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// stringArg extracts a string argument. Missing or blank required values
// produce a message suitable for a tool error.
func stringArg(request mcp.CallToolRequest, name string, required bool) (string, string) {
	args := request.GetArguments()
	raw, ok := args[name]
	if !ok || raw == nil {
		if required {
			return "", fmt.Sprintf("missing '%s' parameter", name)
		}
		return "", ""
	}
	str, ok := raw.(string)
	if !ok {
		return "", fmt.Sprintf("'%s' must be a string", name)
	}
	if required && strings.TrimSpace(str) == "" {
		return "", fmt.Sprintf("'%s' must not be empty", name)
	}
	return str, ""
}

// withSession runs fn with the named session while holding sessMu.
func (s *Server) withSession(request mcp.CallToolRequest, fn func(id string, fs *flowSession) (*mcp.CallToolResult, error)) (*mcp.CallToolResult, error) {
	id, msg := stringArg(request, "session", true)
	if msg != "" {
		return mcp.NewToolResultError(msg), nil
	}

	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	fs, ok := s.sessions[id]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown session %q: call start-flow first", id)), nil
	}
	return fn(id, fs)
}

func (s *Server) handleListFlows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var out []flowInfo
	for _, name := range s.registry.Names() {
		flow, err := s.registry.Get(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		fi := flowInfo{Name: flow.Name, Title: flow.Title}
		for i, step := range flow.Steps() {
			info := describeStep(step)
			info.Ordinal = i + 1
			fi.Steps = append(fi.Steps, info)
		}
		out = append(out, fi)
	}
	return jsonResult(out)
}

func (s *Server) handleStartFlow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, msg := stringArg(request, "flow", true)
	if msg != "" {
		return mcp.NewToolResultError(msg), nil
	}
	flow, err := s.registry.Get(strings.TrimSpace(name))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var opts []wizard.Option
	if s.opts.Observer != nil {
		opts = append(opts, wizard.WithObserver(s.opts.Observer))
	}
	engine, err := flow.NewEngine(opts...)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start flow: %v", err)), nil
	}

	id := fmt.Sprintf("%s-%s", slug.Make(flow.Name), uuid.NewString()[:8])
	fs := &flowSession{flow: flow, engine: engine}

	s.sessMu.Lock()
	s.sessions[id] = fs
	st := snapshot(id, fs)
	s.sessMu.Unlock()

	logger.Info("Started %s session %s", flow.Name, id)
	return jsonResult(st)
}

func (s *Server) handleSetField(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, msg := stringArg(request, "key", true)
	if msg != "" {
		return mcp.NewToolResultError(msg), nil
	}
	value, msg := stringArg(request, "value", false)
	if msg != "" {
		return mcp.NewToolResultError(msg), nil
	}
	return s.withSession(request, func(id string, fs *flowSession) (*mcp.CallToolResult, error) {
		forms.SetRaw(fs.engine, key, value)
		return jsonResult(snapshot(id, fs))
	})
}

func (s *Server) handleToggleOption(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, msg := stringArg(request, "key", true)
	if msg != "" {
		return mcp.NewToolResultError(msg), nil
	}
	option, msg := stringArg(request, "option", true)
	if msg != "" {
		return mcp.NewToolResultError(msg), nil
	}
	return s.withSession(request, func(id string, fs *flowSession) (*mcp.CallToolResult, error) {
		fs.engine.ToggleMultiSelect(key, option)
		return jsonResult(snapshot(id, fs))
	})
}

func (s *Server) handleNextStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withSession(request, func(id string, fs *flowSession) (*mcp.CallToolResult, error) {
		if err := fs.engine.GoNext(); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(snapshot(id, fs))
	})
}

func (s *Server) handlePreviousStep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withSession(request, func(id string, fs *flowSession) (*mcp.CallToolResult, error) {
		if err := fs.engine.GoPrevious(); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(snapshot(id, fs))
	})
}

func (s *Server) handleProgress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withSession(request, func(id string, fs *flowSession) (*mcp.CallToolResult, error) {
		return jsonResult(snapshot(id, fs))
	})
}

func (s *Server) handleSubmitFlow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var receipt wizard.Receipt
	res, err := s.withSession(request, func(id string, fs *flowSession) (*mcp.CallToolResult, error) {
		r, err := fs.engine.Submit()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		delete(s.sessions, id)
		logger.Info("Session %s submitted as %s", id, r.Reference)
		receipt = r
		return nil, nil
	})
	if res != nil || err != nil {
		return res, err
	}

	// The desk may block; acknowledge without holding sessMu.
	out := submitResult{
		Reference:   receipt.Reference,
		Flow:        receipt.Flow,
		SubmittedAt: receipt.SubmittedAt,
		Fields:      receipt.Fields.Map(),
	}
	if s.opts.Desk != nil {
		ack, err := s.opts.Desk.Acknowledge(ctx, receipt, s.opts.Submitter)
		if s.opts.OnAck != nil {
			s.opts.OnAck(receipt.Flow, err)
		}
		if err != nil {
			out.AckError = err.Error()
		} else {
			out.Ack = &ack
		}
	}
	return jsonResult(out)
}

func (s *Server) handleCancelFlow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.withSession(request, func(id string, fs *flowSession) (*mcp.CallToolResult, error) {
		fs.engine.Cancel()
		delete(s.sessions, id)
		return mcp.NewToolResultText(fmt.Sprintf("session %s cancelled", id)), nil
	})
}

func (s *Server) handleListSubmissions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.opts.Desk == nil {
		return mcp.NewToolResultError("acknowledgements are disabled"), nil
	}
	flow, msg := stringArg(request, "flow", false)
	if msg != "" {
		return mcp.NewToolResultError(msg), nil
	}
	records, err := s.opts.Desk.List(ctx, strings.TrimSpace(flow))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list submissions: %v", err)), nil
	}
	if records == nil {
		records = []submission.Record{}
	}
	return jsonResult(records)
}
