package waweb

import (
	"errors"
	"fmt"
	"testing"
)

func TestClientErrorMatchesOnCode(t *testing.T) {
	err := WrapError(ErrorTimeout, "connect deadline", errors.New("dial tcp: i/o timeout"))

	if !errors.Is(err, NewError(ErrorTimeout, "")) {
		t.Fatal("expected match on code")
	}
	if errors.Is(err, NewError(ErrorConnection, "")) {
		t.Fatal("unexpected match on different code")
	}
}

func TestClientErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := WrapError(ErrorConnection, "dial failed", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected unwrap to reach cause")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	var ce *ClientError
	if !errors.As(wrapped, &ce) || ce.Code != ErrorConnection {
		t.Fatal("expected errors.As to find ClientError")
	}
}

func TestIsConnectionError(t *testing.T) {
	if !IsConnectionError(NewError(ErrorHeartbeat, "silence")) {
		t.Fatal("heartbeat timeout is a connection error")
	}
	if IsConnectionError(NewError(ErrorInvalidConfig, "empty URL")) {
		t.Fatal("config errors are not connection errors")
	}
	if IsConnectionError(errors.New("plain")) {
		t.Fatal("plain errors are not connection errors")
	}
}
