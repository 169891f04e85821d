package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeRenderFailed, "blender exited")

	if err.Code != CodeRenderFailed {
		t.Errorf("expected code=%s, got %s", CodeRenderFailed, err.Code)
	}
	if err.Message != "blender exited" {
		t.Errorf("expected message='blender exited', got %s", err.Message)
	}
	if len(err.Stack) == 0 {
		t.Error("expected stack trace to be captured")
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CodeValidation, "frame %d out of range", 7)

	if err.Message != "frame 7 out of range" {
		t.Errorf("expected formatted message, got %s", err.Message)
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "simple error",
			err:      New(CodeValidation, "invalid"),
			contains: []string{"VALIDATION_ERROR", "invalid"},
		},
		{
			name: "error with op",
			err: &Error{
				Code:    CodeRenderFailed,
				Message: "render failed",
				Op:      "dispatch.render",
			},
			contains: []string{"dispatch.render", "RENDER_FAILED", "render failed"},
		},
		{
			name: "error with underlying",
			err: &Error{
				Code:    CodeInternal,
				Message: "wrapper",
				Err:     fmt.Errorf("exit status 1"),
			},
			contains: []string{"wrapper", "exit status 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			str := tt.err.Error()
			for _, c := range tt.contains {
				if !strings.Contains(str, c) {
					t.Errorf("expected error string to contain %q, got: %s", c, str)
				}
			}
		})
	}
}

func TestWrap(t *testing.T) {
	original := fmt.Errorf("mkdir failed")
	wrapped := Wrap(original, "dispatch.prepare", "cannot create output dir")

	if wrapped == nil {
		t.Fatal("expected wrapped error to be non-nil")
	}
	if wrapped.Code != CodeInternal {
		t.Errorf("expected code=%s, got %s", CodeInternal, wrapped.Code)
	}
	if wrapped.Op != "dispatch.prepare" {
		t.Errorf("expected op='dispatch.prepare', got %s", wrapped.Op)
	}
	if errors.Unwrap(wrapped) != original {
		t.Error("Unwrap should return original error")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "op", "message") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if WrapWithCode(nil, CodeRenderFailed, "op", "message") != nil {
		t.Error("WrapWithCode(nil) should return nil")
	}
}

func TestWrapPreservesCode(t *testing.T) {
	original := New(CodeRenderFailed, "exit status 3")
	wrapped := Wrap(original, "worker.run", "job failed")

	if wrapped.Code != CodeRenderFailed {
		t.Errorf("expected code to be preserved as %s, got %s", CodeRenderFailed, wrapped.Code)
	}
}

func TestWithField(t *testing.T) {
	err := New(CodeEncodeFailed, "missing").
		WithField("tool", "ffmpeg").
		WithField("path", "/usr/bin")

	if err.Fields["tool"] != "ffmpeg" {
		t.Errorf("expected tool='ffmpeg', got %v", err.Fields["tool"])
	}
	if len(err.WithFields(map[string]any{"a": 1, "b": 2}).Fields) != 4 {
		t.Errorf("expected 4 fields, got %d", len(err.Fields))
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		code Code
		exit int
	}{
		{CodeRenderFailed, ExitFailure},
		{CodeInternal, ExitFailure},
		{CodeEncodeFailed, ExitFailure},
		{CodeUnavailable, ExitFailure},
		{CodeValidation, ExitUsage},
		{CodeCanceled, ExitCanceled},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := New(tt.code, "test").ExitCode(); got != tt.exit {
				t.Errorf("expected exit=%d, got %d", tt.exit, got)
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	if GetExitCode(nil) != ExitOK {
		t.Error("expected nil error to map to exit 0")
	}
	if GetExitCode(fmt.Errorf("plain")) != ExitFailure {
		t.Error("expected plain error to map to exit 1")
	}
	wrapped := fmt.Errorf("cli: %w", Validation("bad flag"))
	if GetExitCode(wrapped) != ExitUsage {
		t.Errorf("expected wrapped validation error to map to exit 2, got %d", GetExitCode(wrapped))
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("ValidationField", func(t *testing.T) {
		err := ValidationField("frame_start", "required")
		if !IsValidation(err) {
			t.Errorf("expected validation code, got %s", err.Code)
		}
		if err.Fields["field"] != "frame_start" {
			t.Errorf("expected field='frame_start', got %v", err.Fields["field"])
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound("job", "job_123")
		if err.Code != CodeNotFound {
			t.Errorf("expected code=%s, got %s", CodeNotFound, err.Code)
		}
		if err.Fields["id"] != "job_123" {
			t.Errorf("expected id='job_123', got %v", err.Fields["id"])
		}
	})

	t.Run("Unavailable", func(t *testing.T) {
		err := Unavailable("redis")
		if err.Code != CodeUnavailable {
			t.Errorf("expected code=%s, got %s", CodeUnavailable, err.Code)
		}
	})
}

func TestGetCode(t *testing.T) {
	if GetCode(fmt.Errorf("standard")) != CodeInternal {
		t.Error("expected standard error to map to internal")
	}

	wrapped := Wrap(New(CodeRenderFailed, "x"), "worker", "wrapped")
	if !IsRenderFailed(wrapped) {
		t.Errorf("expected render failure code, got %s", GetCode(wrapped))
	}
}

func TestGetFields(t *testing.T) {
	err := New(CodeRenderFailed, "render tool failed").WithField("tool", "ffmpeg")
	if GetFields(fmt.Errorf("run: %w", err))["tool"] != "ffmpeg" {
		t.Errorf("expected tool='ffmpeg', got %v", GetFields(err)["tool"])
	}
	if GetFields(fmt.Errorf("standard")) != nil {
		t.Error("expected nil fields for standard error")
	}
}

func TestStackTrace(t *testing.T) {
	stack := New(CodeInternal, "test error").StackTrace()
	if !strings.Contains(stack, ".go:") {
		t.Errorf("expected stack trace to contain file references, got: %s", stack)
	}
}

func TestErrorIs(t *testing.T) {
	err1 := New(CodeRenderFailed, "error 1")
	err2 := New(CodeRenderFailed, "error 2")
	err3 := New(CodeValidation, "error 3")

	if !errors.Is(err1, err2) {
		t.Error("expected errors with same code to match with Is")
	}
	if errors.Is(err1, err3) {
		t.Error("expected errors with different codes to not match")
	}
}

func TestAsAndIs(t *testing.T) {
	original := New(CodeEncodeFailed, "missing")
	wrapped := fmt.Errorf("wrapped: %w", original)

	var target *Error
	if !As(wrapped, &target) {
		t.Fatal("expected As to find Error in chain")
	}
	if target.Code != CodeEncodeFailed {
		t.Errorf("expected code=%s, got %s", CodeEncodeFailed, target.Code)
	}
	if !Is(wrapped, original) {
		t.Error("expected Is to match original error")
	}
}

func TestJoin(t *testing.T) {
	if Join(nil, nil) != nil {
		t.Error("expected Join of nils to be nil")
	}

	a, b := New(CodeUnavailable, "redis down"), fmt.Errorf("db down")
	joined := Join(a, b)
	if !Is(joined, a) || !Is(joined, b) {
		t.Errorf("expected joined error to match both parts, got %v", joined)
	}
}
