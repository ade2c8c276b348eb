package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bitop-dev/aistream/provider"
)

func TestErrorClassification(t *testing.T) {
	rate := mapProviderError(&provider.Error{Provider: "openai", Status: 429, Message: "slow down"})
	if !IsRateLimited(rate) || IsAuth(rate) {
		t.Fatalf("unexpected classification for %v", rate)
	}
	if rate.Error() != "openai: slow down" {
		t.Fatalf("unexpected message %q", rate.Error())
	}

	auth := fmt.Errorf("step 1: %w", &Error{Status: 401})
	if !IsAuth(auth) {
		t.Fatalf("expected auth error through wrapping")
	}

	if !IsTimeout(fmt.Errorf("%w: %w", ErrAborted, context.DeadlineExceeded)) {
		t.Fatalf("expected deadline to count as timeout")
	}
	if !IsCanceled(&Error{Code: "canceled"}) || !IsCanceled(context.Canceled) {
		t.Fatalf("expected canceled")
	}

	plain := errors.New("boom")
	if mapProviderError(plain) != plain {
		t.Fatalf("expected non-provider errors to pass through")
	}
}

func TestToolErrors(t *testing.T) {
	cause := errors.New("bad")
	err := fmt.Errorf("wrapped: %w", &ToolExecutionError{ToolName: "add", Cause: cause})
	if !IsToolExecution(err) || !errors.Is(err, cause) {
		t.Fatalf("expected tool execution error wrapping cause, got %v", err)
	}
	if IsNoSuchTool(err) {
		t.Fatalf("did not expect no-such-tool")
	}
	if !IsNoSuchTool(&NoSuchToolError{ToolName: "x"}) {
		t.Fatalf("expected no-such-tool")
	}
	in := &InvalidToolInputError{ToolName: "add", Cause: cause}
	if in.Error() != "invalid tool input for add: bad" {
		t.Fatalf("unexpected message %q", in.Error())
	}
}
