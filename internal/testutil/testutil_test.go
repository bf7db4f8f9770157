package testutil

import (
	"errors"
	"math"
	"net/http"
	"testing"
)

// recorder captures failures without failing the enclosing test.
type recorder struct {
	testing.TB
	failed bool
}

func (r *recorder) Helper()                       {}
func (r *recorder) Errorf(string, ...interface{}) { r.failed = true }
func (r *recorder) Fatalf(string, ...interface{}) { r.failed = true }
func (r *recorder) Fatal(...interface{})          { r.failed = true }

func TestAssertStatusCode(t *testing.T) {
	t.Parallel()

	r := &recorder{TB: t}
	AssertStatusCode(r, http.StatusOK, http.StatusOK)
	if r.failed {
		t.Error("matching status codes reported a failure")
	}
	AssertStatusCode(r, http.StatusOK, http.StatusBadRequest)
	if !r.failed {
		t.Error("mismatched status codes were not reported")
	}
}

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	r := &recorder{TB: t}
	AssertNoError(r, nil)
	if r.failed {
		t.Error("nil error reported a failure")
	}
	AssertNoError(r, errors.New("boom"))
	if !r.failed {
		t.Error("non-nil error was not reported")
	}
}

func TestAssertError(t *testing.T) {
	t.Parallel()

	r := &recorder{TB: t}
	AssertError(r, errors.New("test error"))
	if r.failed {
		t.Error("non-nil error reported a failure")
	}
	AssertError(r, nil)
	if !r.failed {
		t.Error("nil error was not reported")
	}
}

func TestAssertNear(t *testing.T) {
	t.Parallel()

	r := &recorder{TB: t}
	AssertNear(r, "v", 1.0000001, 1, 1e-6)
	if r.failed {
		t.Error("value inside tolerance reported a failure")
	}
	AssertNear(r, "v", math.NaN(), 1, 1e-6)
	if !r.failed {
		t.Error("NaN was not reported")
	}
}

func TestAssertAllNear(t *testing.T) {
	t.Parallel()

	r := &recorder{TB: t}
	AssertAllNear(r, "w", []float64{1, 2}, []float64{1, 2 + 1e-9}, 1e-6)
	if r.failed {
		t.Error("matching slices reported a failure")
	}
	AssertAllNear(r, "w", []float64{1}, []float64{1, 2}, 1e-6)
	if !r.failed {
		t.Error("length mismatch was not reported")
	}
}
