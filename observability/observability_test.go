package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx := context.Background()
	ctx2, span := tracer.StartSpan(ctx, "test")
	if ctx2 != ctx {
		t.Fatalf("nop tracer should return same context")
	}
	span.SetTag("key", "value")
	span.SetError(nil)
	span.Finish()
}

func TestFieldsCarryKeyAndValue(t *testing.T) {
	err := errors.New("boom")
	cases := []struct {
		f    Field
		key  string
		want interface{}
	}{
		{String("doc", "doc-1"), "doc", "doc-1"},
		{Int("placements", 3), "placements", 3},
		{Float64("scale", 1.5), "scale", 1.5},
		{Duration("elapsed", time.Second), "elapsed", time.Second},
		{Error("err", err), "err", err},
	}
	for _, tc := range cases {
		if tc.f.Key() != tc.key {
			t.Fatalf("key = %q, want %q", tc.f.Key(), tc.key)
		}
		if tc.f.Value() != tc.want {
			t.Fatalf("value = %v, want %v", tc.f.Value(), tc.want)
		}
	}
}

func TestNopLoggerWithReturnsNop(t *testing.T) {
	var l Logger = NopLogger{}
	l = l.With(String("k", "v"))
	l.Debug("ignored")
	l.Info("ignored")
	l.Warn("ignored")
	l.Error("ignored")
	if _, ok := l.(NopLogger); !ok {
		t.Fatalf("With should return NopLogger, got %T", l)
	}
}
