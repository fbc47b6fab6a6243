package readiness

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func countingCheck(succeedOn int) (Check, *int) {
	calls := 0
	return func(context.Context) bool {
		calls++
		return succeedOn > 0 && calls >= succeedOn
	}, &calls
}

func TestAwait_SucceedsOnThirdAttempt(t *testing.T) {
	check, calls := countingCheck(3)

	ok := Await(context.Background(), check, time.Millisecond, 10)

	assert.True(t, ok)
	assert.Equal(t, 3, *calls)
}

func TestAwait_Exhausted(t *testing.T) {
	check, calls := countingCheck(0)

	ok := Await(context.Background(), check, time.Millisecond, 10)

	assert.False(t, ok)
	assert.Equal(t, 10, *calls)
}

func TestAwait_FirstAttemptIsImmediate(t *testing.T) {
	check, calls := countingCheck(1)

	startedAt := time.Now()
	ok := Await(context.Background(), check, time.Hour, 5)

	assert.True(t, ok)
	assert.Equal(t, 1, *calls)
	assert.Less(t, time.Since(startedAt), time.Second)
}

func TestAwait_WaitsBetweenAttempts(t *testing.T) {
	check, calls := countingCheck(0)
	const interval = 20 * time.Millisecond

	startedAt := time.Now()
	ok := Await(context.Background(), check, interval, 4)

	assert.False(t, ok)
	assert.Equal(t, 4, *calls)
	assert.GreaterOrEqual(t, time.Since(startedAt), 3*interval-5*time.Millisecond)
}

func TestAwait_ZeroAttempts(t *testing.T) {
	check, calls := countingCheck(1)

	assert.False(t, Await(context.Background(), check, time.Millisecond, 0))
	assert.Equal(t, 0, *calls)
}

func TestAwait_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	check, calls := countingCheck(1)

	assert.False(t, Await(ctx, check, time.Millisecond, 10))
	assert.Equal(t, 0, *calls)
}

func TestContainsMarker(t *testing.T) {
	const marker = "init process done. Ready for start up"

	logs := "2024-01-01 Initializing database\nMariaDB init process done. Ready for start up.\n"
	check := ContainsMarker(func(context.Context) (string, error) { return logs, nil }, marker, nil)
	assert.True(t, check(context.Background()))

	check = ContainsMarker(func(context.Context) (string, error) { return "Initializing database", nil }, marker, nil)
	assert.False(t, check(context.Background()))

	var reported error
	check = ContainsMarker(func(context.Context) (string, error) { return marker, errors.New("no such container") }, marker, func(err error) {
		reported = err
	})
	assert.False(t, check(context.Background()))
	assert.EqualError(t, reported, "no such container")

	check = ContainsMarker(func(context.Context) (string, error) { return "anything", nil }, "", nil)
	assert.False(t, check(context.Background()))
}
