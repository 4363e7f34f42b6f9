package errors

import (
	"fmt"
	"testing"
)

func TestRenderwatchError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodeWatchDirNotFound, "missing")
	if err.Code != ErrCodeWatchDirNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeWatchDirNotFound, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodeWatchRegistrationFailed, "registration failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	if !Is(wrapped, ErrCodeWatchRegistrationFailed) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeWatchDirNotFound) {
		t.Error("Is should return false for non-matching code")
	}

	// Codes survive fmt.Errorf wrapping
	outer := fmt.Errorf("start: %w", wrapped)
	if GetCode(outer) != ErrCodeWatchRegistrationFailed {
		t.Errorf("expected code through %%w, got %q", GetCode(outer))
	}

	if Is(cause, "") {
		t.Error("Is should never match the empty code")
	}

	detailed := err.WithDetail("dir", "/tmp/x").WithDetail("attempt", 2)
	if detailed.Details["dir"] != "/tmp/x" {
		t.Error("WithDetail should add details")
	}
}

func TestErrorConstructors(t *testing.T) {
	err := WatchDirNotFound("/nope")
	if err.Code != ErrCodeWatchDirNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeWatchDirNotFound, err.Code)
	}
	if err.Details["dir"] != "/nope" {
		t.Error("WatchDirNotFound should include dir detail")
	}

	err = AlreadyRunning(4242, "/run/renderwatch.pid")
	if err.Code != ErrCodeAlreadyRunning {
		t.Errorf("expected code %s, got %s", ErrCodeAlreadyRunning, err.Code)
	}
	if err.Details["pid"] != 4242 {
		t.Error("AlreadyRunning should include pid detail")
	}

	err = RenderFailed("start", "a.bsz", fmt.Errorf("boom"))
	if err.Details["op"] != "start" || err.Details["path"] != "a.bsz" {
		t.Error("RenderFailed should include op and path details")
	}
}
