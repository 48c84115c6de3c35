package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveUpdate(t *testing.T) {
	ok := botUpdates.WithLabelValues("server", "request_created")
	failed := botHandlerErrors.WithLabelValues("server")
	before, beforeErr := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	ObserveUpdate("server", "request_created", 5*time.Millisecond, false)
	ObserveUpdate("server", "request_created", 5*time.Millisecond, true)

	if got := testutil.ToFloat64(ok) - before; got != 2 {
		t.Fatalf("updates delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(failed) - beforeErr; got != 1 {
		t.Fatalf("errors delta = %v, want 1", got)
	}
}

func TestObserveUpdate_EmptyLabels(t *testing.T) {
	c := botUpdates.WithLabelValues("none", "none")
	before := testutil.ToFloat64(c)
	ObserveUpdate("", "", 0, false)
	if testutil.ToFloat64(c)-before != 1 {
		t.Fatalf("empty labels not normalized")
	}
}

func TestObserveSendRestartBinding(t *testing.T) {
	okC, errC := botSends.WithLabelValues("ok"), botSends.WithLabelValues("error")
	netC := botRestarts.WithLabelValues("network")
	b0, e0, n0, k0 := testutil.ToFloat64(okC), testutil.ToFloat64(errC), testutil.ToFloat64(netC), testutil.ToFloat64(botBindings)

	ObserveSend(nil)
	ObserveSend(errors.New("x"))
	ObserveRestart("network")
	ObserveBindingCreated()

	if testutil.ToFloat64(okC)-b0 != 1 || testutil.ToFloat64(errC)-e0 != 1 {
		t.Fatalf("send counters not incremented")
	}
	if testutil.ToFloat64(netC)-n0 != 1 {
		t.Fatalf("restart counter not incremented")
	}
	if testutil.ToFloat64(botBindings)-k0 != 1 {
		t.Fatalf("binding counter not incremented")
	}
}
