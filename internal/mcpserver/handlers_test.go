package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/carepath/internal/forms"
	"github.com/mark3labs/carepath/internal/submission"
	"github.com/mark3labs/carepath/internal/wizard"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestServer creates a server backed by the builtin flows and a real
// acknowledgement desk.
func setupTestServer(t *testing.T) *Server {
	t.Helper()
	reg, err := forms.Builtin()
	require.NoError(t, err)

	desk, closeDesk, err := submission.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeDesk() })

	return New(reg, Options{Desk: desk, Submitter: "demo@user.com"})
}

// extractText extracts text from CallToolResult.Content[0]
func extractText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if textContent, ok := result.Content[0].(mcp.TextContent); ok {
		return textContent.Text
	}
	return ""
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func decodeState(t *testing.T, result *mcp.CallToolResult) state {
	t.Helper()
	require.False(t, result.IsError, extractText(result))
	var st state
	require.NoError(t, json.Unmarshal([]byte(extractText(result)), &st))
	return st
}

func startFlow(t *testing.T, s *Server, flow string) string {
	t.Helper()
	st := decodeState(t, call(t, s.handleStartFlow, map[string]any{"flow": flow}))
	require.True(t, strings.HasPrefix(st.Session, flow+"-"), st.Session)
	assert.Equal(t, 1, st.Step)
	assert.Equal(t, 3, st.Total)
	return st.Session
}

func TestListFlows(t *testing.T) {
	s := setupTestServer(t)
	result := call(t, s.handleListFlows, nil)
	require.False(t, result.IsError)

	var flows []flowInfo
	require.NoError(t, json.Unmarshal([]byte(extractText(result)), &flows))
	require.Len(t, flows, 2)
	assert.Equal(t, "claim", flows[0].Name)
	assert.Equal(t, 2, flows[0].Steps[1].Ordinal)
	assert.Equal(t, "single_select", flows[0].Steps[1].Fields[0].Kind)
}

func TestClaimFlowOverTools(t *testing.T) {
	s := setupTestServer(t)
	id := startFlow(t, s, "claim")
	set := func(key, value string) state {
		return decodeState(t, call(t, s.handleSetField, map[string]any{"session": id, "key": key, "value": value}))
	}

	// Scenario: next on an empty first step names the missing fields.
	result := call(t, s.handleNextStep, map[string]any{"session": id})
	require.True(t, result.IsError)
	assert.Contains(t, extractText(result), "providerName")
	assert.Contains(t, extractText(result), "serviceDate")

	set("providerName", "Central Clinic")
	st := set("serviceDate", "2026-02-14")
	assert.True(t, st.Valid)

	st = decodeState(t, call(t, s.handleNextStep, map[string]any{"session": id}))
	assert.Equal(t, 2, st.Step)
	assert.Equal(t, "charges", st.StepID)

	set("category", "Dental")
	set("amount", "80")
	st = decodeState(t, call(t, s.handleToggleOption, map[string]any{"session": id, "key": "attachments", "option": "Referral"}))
	assert.Equal(t, []any{"Referral"}, st.Draft["attachments"])

	st = decodeState(t, call(t, s.handlePreviousStep, map[string]any{"session": id}))
	assert.Equal(t, 1, st.Step)
	assert.Equal(t, "Central Clinic", st.Draft["providerName"], "back navigation keeps the draft")
	decodeState(t, call(t, s.handleNextStep, map[string]any{"session": id}))
	decodeState(t, call(t, s.handleNextStep, map[string]any{"session": id}))

	set("attestation", "I confirm this claim is accurate")
	result = call(t, s.handleSubmitFlow, map[string]any{"session": id})
	require.False(t, result.IsError, extractText(result))

	var out submitResult
	require.NoError(t, json.Unmarshal([]byte(extractText(result)), &out))
	assert.Regexp(t, `^CLM-[0-9A-F]{8}$`, out.Reference)
	require.NotNil(t, out.Ack)
	assert.Equal(t, out.Reference, out.Ack.Reference)

	// The session is finished.
	result = call(t, s.handleProgress, map[string]any{"session": id})
	assert.True(t, result.IsError)

	result = call(t, s.handleListSubmissions, map[string]any{"flow": "claim"})
	require.False(t, result.IsError)
	var records []submission.Record
	require.NoError(t, json.Unmarshal([]byte(extractText(result)), &records))
	require.Len(t, records, 1)
	assert.Equal(t, out.Reference, records[0].Reference)
	assert.Equal(t, "demo@user.com", records[0].Submitter)
}

func TestSubmitBeforeLastStep(t *testing.T) {
	s := setupTestServer(t)
	id := startFlow(t, s, "roi")

	result := call(t, s.handleSubmitFlow, map[string]any{"session": id})
	require.True(t, result.IsError)
	assert.Equal(t, wizard.ErrIncompleteFlow.Error(), extractText(result))

	result = call(t, s.handlePreviousStep, map[string]any{"session": id})
	require.True(t, result.IsError)
	assert.Equal(t, wizard.ErrAtFirstStep.Error(), extractText(result))
}

func TestCancelFlow(t *testing.T) {
	s := setupTestServer(t)
	id := startFlow(t, s, "roi")

	result := call(t, s.handleCancelFlow, map[string]any{"session": id})
	require.False(t, result.IsError)
	assert.Contains(t, extractText(result), "cancelled")

	result = call(t, s.handleSetField, map[string]any{"session": id, "key": "purpose", "value": "Legal"})
	assert.True(t, result.IsError)
	assert.Contains(t, extractText(result), "unknown session")
}

func TestArgumentErrors(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]any
		want    string
	}{
		{"start without flow", s.handleStartFlow, map[string]any{}, "missing 'flow'"},
		{"start unknown flow", s.handleStartFlow, map[string]any{"flow": "refund"}, "unknown flow"},
		{"blank session", s.handleNextStep, map[string]any{"session": " "}, "must not be empty"},
		{"non-string key", s.handleSetField, map[string]any{"session": "x", "key": 3, "value": "v"}, "'key' must be a string"},
		{"toggle without option", s.handleToggleOption, map[string]any{"session": "x", "key": "k"}, "missing 'option'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := call(t, tt.handler, tt.args)
			require.True(t, result.IsError)
			assert.Contains(t, extractText(result), tt.want)
		})
	}
}

type failingDesk struct{}

func (failingDesk) Acknowledge(context.Context, wizard.Receipt, string) (submission.Ack, error) {
	return submission.Ack{}, errors.New("stream unavailable")
}

func (failingDesk) List(context.Context, string) ([]submission.Record, error) {
	return nil, errors.New("stream unavailable")
}

// readyROI starts an ROI session and fills it up to a valid last step.
func readyROI(t *testing.T, s *Server) string {
	t.Helper()
	id := startFlow(t, s, "roi")
	for key, value := range map[string]string{
		"recipientName": "Eastside Health",
		"purpose":       "Insurance",
	} {
		decodeState(t, call(t, s.handleSetField, map[string]any{"session": id, "key": key, "value": value}))
	}
	decodeState(t, call(t, s.handleNextStep, map[string]any{"session": id}))
	decodeState(t, call(t, s.handleSetField, map[string]any{"session": id, "key": "recordsRequested", "value": "Imaging"}))
	decodeState(t, call(t, s.handleNextStep, map[string]any{"session": id}))
	decodeState(t, call(t, s.handleSetField, map[string]any{"session": id, "key": "expiresOn", "value": "2027-01-01"}))
	decodeState(t, call(t, s.handleSetField, map[string]any{"session": id, "key": "signature", "value": "Demo User"}))
	return id
}

func TestSubmitWithFailingDesk(t *testing.T) {
	reg, err := forms.Builtin()
	require.NoError(t, err)

	var acked []error
	s := New(reg, Options{
		Desk:  failingDesk{},
		OnAck: func(flow string, err error) { acked = append(acked, err) },
	})
	id := readyROI(t, s)

	result := call(t, s.handleSubmitFlow, map[string]any{"session": id})
	require.False(t, result.IsError, "the receipt is issued even when acknowledgement fails")

	var out submitResult
	require.NoError(t, json.Unmarshal([]byte(extractText(result)), &out))
	assert.Regexp(t, `^ROI-`, out.Reference)
	assert.Nil(t, out.Ack)
	assert.Equal(t, "stream unavailable", out.AckError)
	require.Len(t, acked, 1)
	assert.Error(t, acked[0])

	result = call(t, s.handleListSubmissions, nil)
	assert.True(t, result.IsError)
}

func TestServerStartStop(t *testing.T) {
	reg, err := forms.Builtin()
	require.NoError(t, err)
	s := New(reg, Options{})

	port, err := s.Start("")
	require.NoError(t, err)
	assert.Greater(t, port, 0)
	assert.Contains(t, s.URL(), "/mcp")

	_, err = s.Start("")
	assert.Error(t, err, "second Start should fail")

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}

// slowDesk blocks Acknowledge until release is closed.
type slowDesk struct {
	entered chan struct{}
	release chan struct{}
}

func (d slowDesk) Acknowledge(context.Context, wizard.Receipt, string) (submission.Ack, error) {
	close(d.entered)
	<-d.release
	return submission.Ack{Sequence: 1}, nil
}

func (slowDesk) List(context.Context, string) ([]submission.Record, error) {
	return nil, nil
}

func TestSlowDeskBlocksNeitherSessionsNorStop(t *testing.T) {
	reg, err := forms.Builtin()
	require.NoError(t, err)
	desk := slowDesk{entered: make(chan struct{}), release: make(chan struct{})}
	s := New(reg, Options{Desk: desk})
	_, err = s.Start("")
	require.NoError(t, err)

	submitting := readyROI(t, s)
	other := startFlow(t, s, "claim")

	done := make(chan *mcp.CallToolResult, 1)
	go func() {
		result, _ := s.handleSubmitFlow(context.Background(), mcp.CallToolRequest{
			Params: mcp.CallToolParams{Arguments: map[string]any{"session": submitting}},
		})
		done <- result
	}()
	<-desk.entered

	progressed := make(chan struct{})
	go func() {
		_, _ = s.handleProgress(context.Background(), mcp.CallToolRequest{
			Params: mcp.CallToolParams{Arguments: map[string]any{"session": other}},
		})
		close(progressed)
	}()
	select {
	case <-progressed:
	case <-time.After(5 * time.Second):
		t.Fatal("progress on another session waited for the desk")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop() }()
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return while a submission was being acknowledged")
	}

	close(desk.release)
	result := <-done
	require.NotNil(t, result)
	require.False(t, result.IsError, extractText(result))
	var out submitResult
	require.NoError(t, json.Unmarshal([]byte(extractText(result)), &out))
	require.NotNil(t, out.Ack)
	assert.Equal(t, uint64(1), out.Ack.Sequence)
}
