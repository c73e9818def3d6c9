package providers

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestProviderError(t *testing.T) {
	t.Run("with status code", func(t *testing.T) {
		err := &ProviderError{Provider: KindAWSLambda, StatusCode: 500, Message: "internal error"}
		expected := `provider "aws_lambda" error (status 500): internal error`
		if err.Error() != expected {
			t.Errorf("expected %q, got %q", expected, err.Error())
		}
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := &ProviderError{Provider: KindGCPFunctions, Message: "request failed", Cause: cause}
		if !errors.Is(err, cause) {
			t.Error("expected error to wrap cause")
		}
	})
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Provider: KindAzureFunctions, Timeout: 3 * time.Second, Cause: context.DeadlineExceeded}
	if err.Error() != `provider "azure_functions" request timeout after 3s` {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected TimeoutError to unwrap to DeadlineExceeded")
	}
	if !IsTimeout(err) {
		t.Error("IsTimeout should detect TimeoutError")
	}
	if IsTimeout(errors.New("other")) {
		t.Error("IsTimeout should reject other errors")
	}
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Provider: KindAWSLambda, Field: "base_url", Message: "must be an absolute URL"}
	expected := `provider "aws_lambda" configuration error for field "base_url": must be an absolute URL`
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}
