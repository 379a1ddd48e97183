package telemetry

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestRecordWorkflow_OK(t *testing.T) {
	before := counterValue(t, WorkflowRunsTotal.WithLabelValues("load", "ok"))
	RecordWorkflow("load", nil)
	after := counterValue(t, WorkflowRunsTotal.WithLabelValues("load", "ok"))
	if after != before+1 {
		t.Errorf("ok counter = %v, want %v", after, before+1)
	}
}

func TestRecordWorkflow_Error(t *testing.T) {
	beforeRuns := counterValue(t, WorkflowRunsTotal.WithLabelValues("join", "error"))
	beforeErrs := counterValue(t, WorkflowErrorsTotal.WithLabelValues("join"))
	RecordWorkflow("join", errors.New("boom"))
	if got := counterValue(t, WorkflowRunsTotal.WithLabelValues("join", "error")); got != beforeRuns+1 {
		t.Errorf("error-outcome counter = %v, want %v", got, beforeRuns+1)
	}
	if got := counterValue(t, WorkflowErrorsTotal.WithLabelValues("join")); got != beforeErrs+1 {
		t.Errorf("errors counter = %v, want %v", got, beforeErrs+1)
	}
}

func TestSetLogLevel_DoesNotPanic(t *testing.T) {
	SetupLogger("text", "info")
	SetLogLevel("debug")
	SetLogLevel("nonsense") // falls back to info
}
