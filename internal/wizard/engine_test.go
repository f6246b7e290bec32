package wizard

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threeStepFlow mirrors the claim flow shape: identity, details, confirmation.
func threeStepFlow() []StepDefinition {
	return []StepDefinition{
		{
			ID:    "provider",
			Title: "Provider",
			Fields: []Field{
				{Key: "providerName", Label: "Provider name", Kind: KindText, Required: true},
				{Key: "serviceDate", Label: "Service date", Kind: KindText, Required: true},
			},
		},
		{
			ID:    "details",
			Title: "Details",
			Fields: []Field{
				{Key: "category", Kind: KindSingleSelect, Required: true, Options: []string{"Medical", "Dental"}},
				{Key: "records", Kind: KindMultiSelect, Options: []string{"Lab Results", "Imaging"}},
			},
		},
		{
			ID:    "confirm",
			Title: "Confirm",
			Fields: []Field{
				{Key: "attestation", Kind: KindSingleSelect, Required: true, Options: []string{"yes"}},
			},
		},
	}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New("claim", threeStepFlow(), opts...)
	require.NoError(t, err)
	return e
}

func fillStep1(e *Engine) {
	e.SetText("providerName", "Dr. X")
	e.SetText("serviceDate", "2024-01-01")
}

func advanceToTerminal(t *testing.T, e *Engine) {
	t.Helper()
	fillStep1(e)
	require.NoError(t, e.GoNext())
	e.Choose("category", "Medical")
	require.NoError(t, e.GoNext())
}

func TestNew_RejectsBadSchemas(t *testing.T) {
	tests := []struct {
		name  string
		steps []StepDefinition
	}{
		{name: "no steps", steps: nil},
		{name: "missing id", steps: []StepDefinition{{Title: "x"}}},
		{name: "duplicate id", steps: []StepDefinition{{ID: "a"}, {ID: "a"}}},
		{
			name: "duplicate key across steps",
			steps: []StepDefinition{
				{ID: "a", Fields: []Field{{Key: "k"}}},
				{ID: "b", Fields: []Field{{Key: "k"}}},
			},
		},
		{
			name:  "select without options",
			steps: []StepDefinition{{ID: "a", Fields: []Field{{Key: "k", Kind: KindSingleSelect}}}},
		},
		{
			name:  "unknown kind",
			steps: []StepDefinition{{ID: "a", Fields: []Field{{Key: "k", Kind: FieldKind(42)}}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("flow", tt.steps)
			require.Error(t, err)
		})
	}
}

func TestNew_AssignsOrdinals(t *testing.T) {
	e := newTestEngine(t)
	for i, s := range e.Steps() {
		assert.Equal(t, i+1, s.Ordinal())
	}
	cur, total := e.Progress()
	assert.Equal(t, 1, cur)
	assert.Equal(t, 3, total)
	assert.True(t, e.Draft().IsEmpty())
}

// Scenario A
func TestGoNext_MissingRequiredField(t *testing.T) {
	e := newTestEngine(t)
	e.SetText("serviceDate", "2024-01-01")

	err := e.GoNext()
	require.Error(t, err)

	ise, ok := IsInvalidStep(err)
	require.True(t, ok, "expected *InvalidStepError, got %T", err)
	assert.Equal(t, []string{"providerName"}, ise.Missing)
	assert.Equal(t, 1, ise.Step)
	assert.Equal(t, "provider", ise.StepID)
	assert.False(t, ise.Terminal)

	cur, _ := e.Progress()
	assert.Equal(t, 1, cur, "cursor must not move on failure")
}

// Scenario B
func TestGoNext_ValidStepAdvances(t *testing.T) {
	e := newTestEngine(t)
	fillStep1(e)

	require.NoError(t, e.GoNext())
	cur, _ := e.Progress()
	assert.Equal(t, 2, cur)
}

// Scenario C
func TestToggleMultiSelect_OnThenOff(t *testing.T) {
	e := newTestEngine(t)
	fillStep1(e)
	require.NoError(t, e.GoNext())
	e.Choose("category", "Dental")

	before := e.IsStepValid(2)
	e.ToggleMultiSelect("records", "Lab Results")
	assert.True(t, e.Draft().Selection("records").Has("Lab Results"))
	assert.Equal(t, before, e.IsStepValid(2))

	e.ToggleMultiSelect("records", "Lab Results")
	assert.Equal(t, 0, e.Draft().Selection("records").Len())
	assert.Equal(t, before, e.IsStepValid(2))
}

// Scenario D
func TestSubmit_FromTerminalStep(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e := newTestEngine(t, WithClock(func() time.Time { return fixed }))
	advanceToTerminal(t, e)
	e.Choose("attestation", "yes")

	receipt, err := e.Submit()
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.Reference)
	assert.Equal(t, "claim", receipt.Flow)
	assert.Equal(t, fixed, receipt.SubmittedAt)
	assert.Equal(t, "Dr. X", receipt.Fields.Text("providerName"))
	assert.Equal(t, "Medical", receipt.Fields.Choice("category"))

	cur, total := e.Progress()
	assert.Equal(t, 1, cur)
	assert.Equal(t, 3, total)
	assert.True(t, e.Draft().IsEmpty())
}

// Scenario E
func TestGoPrevious_AtFirstStep(t *testing.T) {
	e := newTestEngine(t)
	e.SetText("providerName", "Dr. X")
	before := e.Draft()

	err := e.GoPrevious()
	require.ErrorIs(t, err, ErrAtFirstStep)

	cur, _ := e.Progress()
	assert.Equal(t, 1, cur)
	assert.True(t, before.Equal(e.Draft()))
}

func TestGoNext_AtTerminalStepFails(t *testing.T) {
	e := newTestEngine(t)
	advanceToTerminal(t, e)
	e.Choose("attestation", "yes")

	err := e.GoNext()
	ise, ok := IsInvalidStep(err)
	require.True(t, ok)
	assert.True(t, ise.Terminal)
	assert.Empty(t, ise.Missing)
	assert.Contains(t, err.Error(), "use submit")

	cur, _ := e.Progress()
	assert.Equal(t, 3, cur)
}

func TestGoNext_InvalidNeverMovesCursor(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < 5; i++ {
		require.Error(t, e.GoNext())
		cur, _ := e.Progress()
		require.Equal(t, 1, cur)
	}
}

func TestGoPrevious_NeverMutatesDraft(t *testing.T) {
	e := newTestEngine(t)
	advanceToTerminal(t, e)
	e.ToggleMultiSelect("records", "Imaging")
	snapshot := e.Draft()

	for want := 2; want >= 1; want-- {
		require.NoError(t, e.GoPrevious())
		cur, _ := e.Progress()
		assert.Equal(t, want, cur)
		assert.True(t, snapshot.Equal(e.Draft()), "draft changed after going back to step %d", want)
	}
}

func TestGoPrevious_ThenForwardKeepsAnswers(t *testing.T) {
	e := newTestEngine(t)
	advanceToTerminal(t, e)
	require.NoError(t, e.GoPrevious())
	require.NoError(t, e.GoPrevious())

	require.NoError(t, e.GoNext(), "step 1 answers must survive backward navigation")
	require.NoError(t, e.GoNext())
}

func TestSubmit_BeforeTerminalStep(t *testing.T) {
	e := newTestEngine(t)
	fillStep1(e)

	_, err := e.Submit()
	require.ErrorIs(t, err, ErrIncompleteFlow)
	cur, _ := e.Progress()
	assert.Equal(t, 1, cur)
	assert.Equal(t, "Dr. X", e.Draft().Text("providerName"), "failed submit must not clear the draft")
}

func TestSubmit_InvalidTerminalStep(t *testing.T) {
	e := newTestEngine(t)
	advanceToTerminal(t, e)

	_, err := e.Submit()
	ise, ok := IsInvalidStep(err)
	require.True(t, ok)
	assert.Equal(t, []string{"attestation"}, ise.Missing)
	cur, _ := e.Progress()
	assert.Equal(t, 3, cur)
}

func TestSubmit_AfterSuccessOperatesOnFreshDraft(t *testing.T) {
	e := newTestEngine(t)
	advanceToTerminal(t, e)
	e.Choose("attestation", "yes")
	_, err := e.Submit()
	require.NoError(t, err)

	_, err = e.Submit()
	require.ErrorIs(t, err, ErrIncompleteFlow)
}

func TestSubmit_ReferencesAreUnique(t *testing.T) {
	e := newTestEngine(t, WithReferencePrefix("CLM"))
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		advanceToTerminal(t, e)
		e.Choose("attestation", "yes")
		r, err := e.Submit()
		require.NoError(t, err)
		assert.Regexp(t, `^CLM-[0-9A-F]{8}$`, r.Reference)
		assert.False(t, seen[r.Reference])
		seen[r.Reference] = true
	}
}

func TestCancel_ResetsFlow(t *testing.T) {
	e := newTestEngine(t)
	advanceToTerminal(t, e)

	e.Cancel()
	cur, _ := e.Progress()
	assert.Equal(t, 1, cur)
	assert.True(t, e.Draft().IsEmpty())
}

func TestSetField_LastWriteWins(t *testing.T) {
	type write struct {
		key   string
		value string
	}
	writes := []write{
		{"a", "1"}, {"b", "1"}, {"a", "2"}, {"c", "1"}, {"b", "2"}, {"a", "3"},
	}
	want := map[string]string{"a": "3", "b": "2", "c": "1"}

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 25; trial++ {
		// Shuffle while preserving per-key order: interleave the per-key streams.
		perKey := map[string][]string{}
		var order []string
		for _, w := range writes {
			if _, ok := perKey[w.key]; !ok {
				order = append(order, w.key)
			}
			perKey[w.key] = append(perKey[w.key], w.value)
		}
		e := newTestEngine(t)
		for len(order) > 0 {
			i := rng.Intn(len(order))
			k := order[i]
			e.SetText(k, perKey[k][0])
			perKey[k] = perKey[k][1:]
			if len(perKey[k]) == 0 {
				order = append(order[:i], order[i+1:]...)
			}
		}
		d := e.Draft()
		require.Equal(t, len(want), d.Len(), "trial %d", trial)
		for k, v := range want {
			require.Equal(t, v, d.Text(k), "trial %d key %s", trial, k)
		}
	}
}

func TestSetField_NeverAdvances(t *testing.T) {
	e := newTestEngine(t)
	fillStep1(e)
	e.Choose("category", "Medical")
	e.Choose("attestation", "yes")
	cur, _ := e.Progress()
	assert.Equal(t, 1, cur)
}

func TestSetField_IdempotentWrite(t *testing.T) {
	e := newTestEngine(t)
	e.SetText("providerName", "Dr. X")
	first := e.Draft()
	e.SetText("providerName", "Dr. X")
	assert.True(t, first.Equal(e.Draft()))
}

func TestToggleMultiSelect_Involution(t *testing.T) {
	e := newTestEngine(t)
	e.ToggleMultiSelect("records", "Imaging")
	for _, opt := range []string{"Imaging", "Lab Results", "Not Listed"} {
		before := e.Draft().Selection("records")
		e.ToggleMultiSelect("records", opt)
		e.ToggleMultiSelect("records", opt)
		assert.True(t, before.Equal(e.Draft().Selection("records")), "toggle twice of %q", opt)
	}
}

func TestToggleMultiSelect_ReplacesOtherKinds(t *testing.T) {
	e := newTestEngine(t)
	e.SetText("records", "oops")
	e.ToggleMultiSelect("records", "Imaging")
	sel := e.Draft().Selection("records")
	assert.Equal(t, []string{"Imaging"}, sel.Sorted())
}

func TestValidation_KindMismatchAndOptions(t *testing.T) {
	e := newTestEngine(t)
	fillStep1(e)
	require.NoError(t, e.GoNext())

	e.SetText("category", "Medical")
	v := e.ValidateStep(2)
	assert.Contains(t, v.Messages["category"], "expected single_select")

	e.Choose("category", "Chiropractic")
	v = e.ValidateStep(2)
	assert.Contains(t, v.Messages["category"], "not one of the allowed options")

	err := e.GoNext()
	ise, ok := IsInvalidStep(err)
	require.True(t, ok)
	assert.Equal(t, []string{"category"}, ise.Fields())
}

func TestValidation_FieldCheckAndCrossField(t *testing.T) {
	steps := []StepDefinition{{
		ID: "range",
		Fields: []Field{
			{Key: "from", Kind: KindText, Check: func(v Value) error {
				if len(v.String()) != 4 {
					return errors.New("must be a year")
				}
				return nil
			}},
			{Key: "to", Kind: KindText},
		},
		Validate: func(d Draft) Validation {
			var v Validation
			if d.Has("from") && d.Has("to") && d.Text("from") > d.Text("to") {
				v.Fail("to", "must not be before from")
			}
			return v
		},
	}}
	e, err := New("range", steps)
	require.NoError(t, err)
	assert.True(t, e.IsStepValid(1), "optional fields may be empty")

	e.SetText("from", "20")
	assert.Equal(t, "must be a year", e.ValidateStep(1).Messages["from"])

	e.SetText("from", "2024")
	e.SetText("to", "2020")
	assert.Equal(t, "must not be before from", e.ValidateStep(1).Messages["to"])

	e.SetText("to", "2025")
	assert.True(t, e.IsStepValid(1))
}

func TestIsStepValid_OutOfRange(t *testing.T) {
	e := newTestEngine(t)
	assert.False(t, e.IsStepValid(0))
	assert.False(t, e.IsStepValid(4))
}

func TestFraction(t *testing.T) {
	e := newTestEngine(t)
	assert.InDelta(t, 1.0/3.0, e.Fraction(), 1e-9)
	advanceToTerminal(t, e)
	assert.InDelta(t, 1.0, e.Fraction(), 1e-9)
}

func TestWhitespaceTextCountsAsMissing(t *testing.T) {
	e := newTestEngine(t)
	e.SetText("providerName", "   ")
	e.SetText("serviceDate", "2024-01-01")
	ise, ok := IsInvalidStep(e.GoNext())
	require.True(t, ok)
	assert.Equal(t, []string{"providerName"}, ise.Missing)
}

func TestObserver_ReceivesEvents(t *testing.T) {
	var events []Event
	e := newTestEngine(t, WithObserver(func(ev Event) { events = append(events, ev) }))

	require.Error(t, e.GoNext())
	fillStep1(e)
	require.NoError(t, e.GoNext())
	require.NoError(t, e.GoPrevious())

	var ops []string
	for _, ev := range events {
		assert.Equal(t, "claim", ev.Flow)
		ops = append(ops, fmt.Sprintf("%s:%d:%t", ev.Op, ev.Step, ev.Err == nil))
	}
	assert.Equal(t, []string{
		"next:1:false",
		"set_field:1:true",
		"set_field:1:true",
		"next:1:true",
		"previous:2:true",
	}, ops)
}

func TestDraftIsACopy(t *testing.T) {
	e := newTestEngine(t)
	e.ToggleMultiSelect("records", "Imaging")

	d := e.Draft()
	d.Set("records", NewSelection())
	d.Set("providerName", Text("tampered"))

	assert.True(t, e.Draft().Selection("records").Has("Imaging"))
	assert.Equal(t, "", e.Draft().Text("providerName"))
}
