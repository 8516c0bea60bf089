package llm

import (
	"context"
	"errors"
	"testing"
)

type fakeGateway struct {
	name      string
	responses []string
	errs      []error
	calls     int
}

func (f *fakeGateway) Name() string { return f.name }

func (f *fakeGateway) Generate(ctx context.Context, system, user string, cfg GenerateConfig) (string, *Usage, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", nil, f.errs[i]
	}
	resp := ""
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	return resp, &Usage{InputTokens: 10, OutputTokens: 5, Model: f.name}, nil
}

func TestPhasePolicyPrimarySucceeds(t *testing.T) {
	primary := &fakeGateway{name: "gemini", responses: []string{`{"ok": true}`}}
	secondary := &fakeGateway{name: "claude"}

	policy := PhasePolicy{Primary: primary, Secondary: secondary}
	result, usage := policy.Run(context.Background(), PhaseRequest{Ticker: "AAPL", Phase: "phase1"})

	if result == nil {
		t.Fatal("expected result")
	}
	if usage.Model != "gemini" {
		t.Errorf("expected primary model in usage, got %q", usage.Model)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary should not be called, got %d calls", secondary.calls)
	}
}

func TestPhasePolicyFallsBackOnPrimaryError(t *testing.T) {
	primary := &fakeGateway{name: "gemini", errs: []error{errors.New("boom")}}
	secondary := &fakeGateway{name: "claude", responses: []string{`{"ok": true}`}}

	policy := PhasePolicy{Primary: primary, Secondary: secondary}
	result, usage := policy.Run(context.Background(), PhaseRequest{Ticker: "AAPL", Phase: "phase1"})

	if result == nil {
		t.Fatal("expected result from fallback")
	}
	if usage.Model != "claude" {
		t.Errorf("expected fallback model in usage, got %q", usage.Model)
	}
}

func TestPhasePolicyFallsBackOnUnparseableOutput(t *testing.T) {
	primary := &fakeGateway{name: "gemini", responses: []string{"not json at all"}}
	secondary := &fakeGateway{name: "claude", responses: []string{`{"ok": true}`}}

	policy := PhasePolicy{Primary: primary, Secondary: secondary}
	result, _ := policy.Run(context.Background(), PhaseRequest{Ticker: "AAPL", Phase: "phase2"})

	if result == nil {
		t.Fatal("expected result from fallback")
	}
	if primary.calls != 1 {
		t.Errorf("expected 1 primary call, got %d", primary.calls)
	}
}

func TestPhasePolicyExtraPrimaryAttempt(t *testing.T) {
	primary := &fakeGateway{
		name:      "claude",
		errs:      []error{errors.New("overloaded"), nil},
		responses: []string{"", `{"ok": true}`},
	}
	secondary := &fakeGateway{name: "gemini"}

	policy := PhasePolicy{Primary: primary, Secondary: secondary, PrimaryAttempts: 2}
	result, usage := policy.Run(context.Background(), PhaseRequest{Ticker: "AAPL", Phase: "phase3"})

	if result == nil {
		t.Fatal("expected result from second primary attempt")
	}
	if usage.Model != "claude" {
		t.Errorf("expected primary model, got %q", usage.Model)
	}
	if primary.calls != 2 {
		t.Errorf("expected 2 primary calls, got %d", primary.calls)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary should not be called, got %d calls", secondary.calls)
	}
}

func TestPhasePolicyContentRetryOnTruncation(t *testing.T) {
	primary := &fakeGateway{
		name:      "gemini",
		responses: []string{`{"sections": {"a":`, `{"sections": {}}`},
	}

	policy := PhasePolicy{Primary: primary, ContentRetries: 1}
	result, _ := policy.Run(context.Background(), PhaseRequest{Ticker: "AAPL", Phase: "known_info_filter"})

	if result == nil {
		t.Fatal("expected result from content-level retry")
	}
	if primary.calls != 2 {
		t.Errorf("expected 2 calls, got %d", primary.calls)
	}
}

func TestPhasePolicyBothFail(t *testing.T) {
	primary := &fakeGateway{name: "gemini", errs: []error{errors.New("boom")}}
	secondary := &fakeGateway{name: "claude", errs: []error{errors.New("boom too")}}

	policy := PhasePolicy{Primary: primary, Secondary: secondary}
	result, usage := policy.Run(context.Background(), PhaseRequest{Ticker: "AAPL", Phase: "phase1"})

	if result != nil || usage != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", result, usage)
	}
}

func TestPhasePolicyNoFallbackConfigured(t *testing.T) {
	primary := &fakeGateway{name: "gemini", responses: []string{"garbage"}}

	policy := PhasePolicy{Primary: primary}
	result, usage := policy.Run(context.Background(), PhaseRequest{Ticker: "AAPL", Phase: "known_info_filter"})

	if result != nil || usage != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", result, usage)
	}
}
