package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/carepath/internal/wizard"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoStepEngine(t *testing.T, r *Recorder) *wizard.Engine {
	t.Helper()
	e, err := wizard.New("claim", []wizard.StepDefinition{
		{ID: "a", Fields: []wizard.Field{{Key: "x", Kind: wizard.KindText, Required: true}}},
		{ID: "b"},
	}, wizard.WithObserver(r.Observe))
	require.NoError(t, err)
	return e
}

func TestRecorder_Observe(t *testing.T) {
	r := New()
	e := twoStepEngine(t, r)

	require.Error(t, e.GoNext())
	require.ErrorIs(t, e.GoPrevious(), wizard.ErrAtFirstStep)
	_, err := e.Submit()
	require.ErrorIs(t, err, wizard.ErrIncompleteFlow)

	e.SetText("x", "filled")
	require.NoError(t, e.GoNext())
	assert.Equal(t, float64(2), testutil.ToFloat64(r.currentStep.WithLabelValues("claim")))

	// Next on a valid last step is not a rejection.
	require.Error(t, e.GoNext())
	assert.Equal(t, float64(2), testutil.ToFloat64(r.currentStep.WithLabelValues("claim")))

	_, err = e.Submit()
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.transitions.WithLabelValues("claim", "next", "invalid")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.transitions.WithLabelValues("claim", "next", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.transitions.WithLabelValues("claim", "next", "terminal")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.transitions.WithLabelValues("claim", "previous", "at_first_step")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.transitions.WithLabelValues("claim", "submit", "incomplete")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.transitions.WithLabelValues("claim", "set_field", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.invalidSteps.WithLabelValues("claim", "1")))
	assert.Equal(t, float64(0), testutil.ToFloat64(r.invalidSteps.WithLabelValues("claim", "2")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.submissions.WithLabelValues("claim")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.currentStep.WithLabelValues("claim")))
}

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "error", Result(errors.New("boom")))
	assert.Equal(t, "incomplete", Result(wizard.ErrIncompleteFlow))
	assert.Equal(t, "at_first_step", Result(wizard.ErrAtFirstStep))
	assert.Equal(t, "invalid", Result(&wizard.InvalidStepError{Step: 1, Missing: []string{"x"}}))
	assert.Equal(t, "terminal", Result(&wizard.InvalidStepError{Step: 2, Terminal: true}))
	assert.Equal(t, "invalid", Result(&wizard.InvalidStepError{Step: 2, Terminal: true, Missing: []string{"y"}}))
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.Acknowledged("roi", nil)
	r.Acknowledged("roi", errors.New("stream gone"))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `carepath_desk_acknowledgements_total{flow="roi",result="ok"} 1`), body)
	assert.True(t, strings.Contains(body, `carepath_desk_acknowledgements_total{flow="roi",result="error"} 1`), body)
}
