package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, CallTimeout: time.Second}
}

func TestPolicyRetriesTransientErrors(t *testing.T) {
	calls := 0
	out, err := fastPolicy().Do(context.Background(), "test", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", status.Error(codes.Unavailable, "backend busy")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if out != "ok" || calls != 3 {
		t.Fatalf("expected success on third call, got %q after %d calls", out, calls)
	}
}

func TestPolicyStopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := fastPolicy().Do(context.Background(), "test", func(ctx context.Context) (string, error) {
		calls++
		return "", ErrRefusal
	})
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, ErrRefusal) {
		t.Fatalf("expected unavailable wrapping refusal, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestPolicyGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	_, err := fastPolicy().Do(context.Background(), "test", func(ctx context.Context) (string, error) {
		calls++
		return "", &googleapi.Error{Code: http.StatusServiceUnavailable}
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestPolicyAppliesCallTimeout(t *testing.T) {
	p := fastPolicy()
	p.MaxAttempts = 1
	p.CallTimeout = 5 * time.Millisecond
	_, err := p.Do(context.Background(), "slow", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout to surface as unavailable, got %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.DeadlineExceeded, true},
		{context.Canceled, false},
		{&googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{&googleapi.Error{Code: http.StatusBadRequest}, false},
		{status.Error(codes.ResourceExhausted, "quota"), true},
		{status.Error(codes.InvalidArgument, "bad"), false},
		{fmt.Errorf("read: connection reset by peer"), true},
		{errors.New("schema mismatch"), false},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Score int `json:"score"`
	}
	if err := DecodeJSON("```json\n{\"score\": 4}\n```", &v); err != nil || v.Score != 4 {
		t.Fatalf("fenced JSON: score=%d err=%v", v.Score, err)
	}
	if err := DecodeJSON("Here you go: {\"score\": 2} hope it helps", &v); err != nil || v.Score != 2 {
		t.Fatalf("embedded JSON: score=%d err=%v", v.Score, err)
	}
	if err := DecodeJSON("   ", &v); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestIsRefusal(t *testing.T) {
	if !IsRefusal("As a large language model, I cannot do that") {
		t.Fatal("expected refusal")
	}
	if IsRefusal("Industrial production is rising.") {
		t.Fatal("unexpected refusal")
	}
}
