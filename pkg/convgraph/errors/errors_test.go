package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCategoryString verifies category names.
func TestCategoryString(t *testing.T) {
	tests := []struct {
		category Category
		expected string
	}{
		{CategoryTransient, "transient"},
		{CategoryPermanent, "permanent"},
		{CategoryMalformed, "malformed"},
		{CategoryConflict, "conflict"},
		{Category(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.category.String())
		})
	}
}

// TestCategorize verifies classification of known error types.
func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Category
	}{
		{"nil error", nil, CategoryPermanent},
		{"HTTP 429", &HTTPError{StatusCode: 429}, CategoryTransient},
		{"HTTP 408", &HTTPError{StatusCode: 408}, CategoryTransient},
		{"HTTP 503", &HTTPError{StatusCode: 503}, CategoryTransient},
		{"HTTP 500", &HTTPError{StatusCode: 500}, CategoryTransient},
		{"HTTP 409", &HTTPError{StatusCode: 409}, CategoryConflict},
		{"HTTP 401", &HTTPError{StatusCode: 401}, CategoryPermanent},
		{"HTTP 400", &HTTPError{StatusCode: 400}, CategoryPermanent},
		{"JSON parse error", &JSONParseError{Message: "unexpected token"}, CategoryMalformed},
		{"validation error", &ValidationError{Field: "color", Message: "not in enum"}, CategoryMalformed},
		{"timeout error", &TimeoutError{Operation: "classify", Duration: "30s"}, CategoryTransient},
		{"deadline exceeded", fmt.Errorf("call: %w", context.DeadlineExceeded), CategoryTransient},
		{"canceled", context.Canceled, CategoryPermanent},
		{"categorized error", &CategorizedError{Category: CategoryConflict}, CategoryConflict},
		{"wrapped categorized", fmt.Errorf("save: %w", Transient(errors.New("x"), "db")), CategoryTransient},
		{"unknown error", errors.New("unknown"), CategoryPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Categorize(tt.err))
		})
	}
}

// TestCategorizedError verifies formatting and unwrapping.
func TestCategorizedError(t *testing.T) {
	t.Run("error message with context", func(t *testing.T) {
		err := NewCategorized(errors.New("failed"), CategoryTransient, "classify")
		assert.Equal(t, "classify: failed (category: transient, attempts: 0)", err.Error())
	})

	t.Run("error message without context", func(t *testing.T) {
		err := &CategorizedError{Err: errors.New("failed"), Category: CategoryConflict}
		assert.Equal(t, "failed (category: conflict, attempts: 0)", err.Error())
	})

	t.Run("unwrap", func(t *testing.T) {
		inner := errors.New("inner error")
		err := NewCategorized(inner, CategoryPermanent, "test")
		assert.ErrorIs(t, err, inner)
	})
}

// TestErrorConstructors verifies each constructor sets its category.
func TestErrorConstructors(t *testing.T) {
	inner := errors.New("test error")

	assert.Equal(t, CategoryTransient, Transient(inner, "c").Category)
	assert.Equal(t, CategoryPermanent, Permanent(inner, "c").Category)
	assert.Equal(t, CategoryMalformed, Malformed(inner, "c").Category)
	assert.Equal(t, CategoryConflict, Conflict(inner, "c").Category)
}

// TestErrorMessages verifies the typed errors render readable messages.
func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "HTTP 500 at chat completion: boom",
		(&HTTPError{StatusCode: 500, Message: "boom", Endpoint: "chat completion"}).Error())
	assert.Equal(t, "HTTP 404: not found", (&HTTPError{StatusCode: 404, Message: "not found"}).Error())
	assert.Equal(t, "validation error on size: not in enum",
		(&ValidationError{Field: "size", Message: "not in enum"}).Error())
	assert.Equal(t, "validation error: empty", (&ValidationError{Message: "empty"}).Error())
	assert.Equal(t, "timeout: embed", (&TimeoutError{Operation: "embed"}).Error())
	assert.Equal(t, "timeout after 5s: embed", (&TimeoutError{Operation: "embed", Duration: "5s"}).Error())
}

// TestHelperFunctions verifies the category predicates.
func TestHelperFunctions(t *testing.T) {
	transient := &HTTPError{StatusCode: 429}
	malformed := &JSONParseError{Message: "bad json"}
	conflict := Conflict(errors.New("stale turn"), "save")
	permanent := &HTTPError{StatusCode: 404}

	assert.True(t, IsRetryable(transient))
	assert.False(t, IsRetryable(permanent))
	assert.False(t, IsRetryable(malformed))

	assert.True(t, IsMalformed(malformed))
	assert.False(t, IsMalformed(permanent))

	assert.True(t, IsConflict(conflict))
	assert.False(t, IsConflict(transient))

	assert.True(t, RetryMalformed(malformed))
	assert.True(t, RetryMalformed(transient))
	assert.False(t, RetryMalformed(permanent))
}

// TestWithRetry verifies attempt counting and retryability decisions.
func TestWithRetry(t *testing.T) {
	t.Run("success on first try", func(t *testing.T) {
		calls := 0
		result := WithRetry(NewRetryConfig(WithMaxAttempts(3)), func() (string, error) {
			calls++
			return "success", nil
		})

		require.NoError(t, result.Err)
		assert.Equal(t, "success", result.Value)
		assert.Equal(t, 1, result.Attempts)
		assert.Equal(t, 1, calls)
	})

	t.Run("success on retry", func(t *testing.T) {
		calls := 0
		cfg := NewRetryConfig(WithMaxAttempts(3), WithInitialBackoff(time.Millisecond))
		result := WithRetry(cfg, func() (string, error) {
			calls++
			if calls < 2 {
				return "", &HTTPError{StatusCode: 503}
			}
			return "success", nil
		})

		require.NoError(t, result.Err)
		assert.Equal(t, 2, result.Attempts)
	})

	t.Run("max attempts exceeded", func(t *testing.T) {
		cfg := NewRetryConfig(WithMaxAttempts(3), WithInitialBackoff(time.Millisecond))
		result := WithRetry(cfg, func() (string, error) {
			return "", &HTTPError{StatusCode: 503}
		})

		require.Error(t, result.Err)
		assert.Equal(t, 3, result.Attempts)
		var httpErr *HTTPError
		assert.ErrorAs(t, result.Err, &httpErr)
	})

	t.Run("non-retryable error stops immediately", func(t *testing.T) {
		calls := 0
		result := WithRetry(NewRetryConfig(WithMaxAttempts(3)), func() (string, error) {
			calls++
			return "", &HTTPError{StatusCode: 404}
		})

		require.Error(t, result.Err)
		assert.Equal(t, 1, calls)
	})

	t.Run("malformed answers retried with RetryMalformed", func(t *testing.T) {
		calls := 0
		cfg := NewRetryConfig(
			WithMaxAttempts(2),
			WithInitialBackoff(time.Millisecond),
			WithRetryableFunc(RetryMalformed),
		)
		result := WithRetry(cfg, func() (int, error) {
			calls++
			if calls == 1 {
				return 0, &JSONParseError{Message: "truncated"}
			}
			return 7, nil
		})

		require.NoError(t, result.Err)
		assert.Equal(t, 7, result.Value)
		assert.Equal(t, 2, calls)
	})

	t.Run("on retry hook", func(t *testing.T) {
		var seen []int
		cfg := NewRetryConfig(
			WithMaxAttempts(3),
			WithInitialBackoff(time.Millisecond),
			WithOnRetry(func(attempt int, _ error) { seen = append(seen, attempt) }),
		)
		_ = WithRetry(cfg, func() (string, error) {
			return "", &TimeoutError{Operation: "x"}
		})

		assert.Equal(t, []int{1, 2}, seen)
	})
}

// TestRetryOnce verifies the persistence retry preset makes two attempts.
func TestRetryOnce(t *testing.T) {
	calls := 0
	cfg := RetryOnce
	cfg.InitialBackoff = time.Millisecond
	cfg.RetryableFunc = func(error) bool { return true }

	result := WithRetry(cfg, func() (string, error) {
		calls++
		return "", errors.New("db down")
	})

	require.Error(t, result.Err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, result.Attempts)
}

// TestWithRetryContext verifies cancellation is honoured.
func TestWithRetryContext(t *testing.T) {
	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result := WithRetryContext(ctx, NewRetryConfig(WithMaxAttempts(3)), func(_ context.Context) (string, error) {
			return "never reached", nil
		})

		require.Error(t, result.Err)
		assert.ErrorIs(t, result.Err, context.Canceled)
		assert.Equal(t, 0, result.Attempts)
	})

	t.Run("cancellation during backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0

		cfg := NewRetryConfig(WithMaxAttempts(5), WithInitialBackoff(100*time.Millisecond))

		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		result := WithRetryContext(ctx, cfg, func(_ context.Context) (string, error) {
			calls++
			return "", &HTTPError{StatusCode: 503}
		})

		require.Error(t, result.Err)
		assert.LessOrEqual(t, calls, 2)
	})
}

// TestNewRetryConfig verifies options override the defaults.
func TestNewRetryConfig(t *testing.T) {
	cfg := NewRetryConfig(
		WithMaxAttempts(5),
		WithInitialBackoff(2*time.Second),
		WithMaxBackoff(60*time.Second),
		WithBackoffFactor(3.0),
		WithJitter(0.2),
	)

	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.InitialBackoff)
	assert.Equal(t, 60*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 3.0, cfg.BackoffFactor)
	assert.Equal(t, 0.2, cfg.Jitter)
}
