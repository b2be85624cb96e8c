// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

package surge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gatewarden/internal/platform"
)

type stubClient struct {
	modLog []string
}

func (s *stubClient) ResolveMember(context.Context, string) (*platform.Member, error) {
	return nil, platform.ErrMemberNotFound
}
func (s *stubClient) AssignVerified(context.Context, string) error { return nil }

func (s *stubClient) AssignQuarantine(context.Context, string) error { return nil }

func (s *stubClient) RemoveQuarantine(context.Context, string) error { return nil }

func (s *stubClient) Ban(context.Context, string, string) error { return nil }
func (s *stubClient) ModLog(_ context.Context, text string) error {
	s.modLog = append(s.modLog, text)
	return nil
}

func newTestDetector() *Detector {
	return &Detector{
		window:    DefaultWindow,
		threshold: DefaultThreshold,
	}
}

func TestDetector_EntersSurgeAtThreshold(t *testing.T) {
	d := newTestDetector()
	ctx := context.Background()
	base := time.Now()

	d.recordJoinAt(ctx, base)
	d.recordJoinAt(ctx, base.Add(time.Second))
	assert.False(t, d.Surging(), "two joins are below the threshold")

	d.recordJoinAt(ctx, base.Add(2*time.Second))
	assert.True(t, d.Surging())
}

func TestDetector_SlowJoinsNeverTrip(t *testing.T) {
	d := newTestDetector()
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 10; i++ {
		d.recordJoinAt(ctx, base.Add(time.Duration(i)*time.Minute))
	}
	assert.False(t, d.Surging(), "joins spaced wider than the window stay independent")
}

func TestDetector_ClearsWhenWindowEmpties(t *testing.T) {
	d := newTestDetector()
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 3; i++ {
		d.recordJoinAt(ctx, base.Add(time.Duration(i)*time.Second))
	}
	assert.True(t, d.Surging())

	// Window still holds joins: surge persists.
	d.evaluate(ctx, base.Add(20*time.Second))
	assert.True(t, d.Surging())

	// All joins aged out: surge clears.
	d.evaluate(ctx, base.Add(time.Minute))
	assert.False(t, d.Surging())
}

func TestDetector_ReentersAfterClear(t *testing.T) {
	d := newTestDetector()
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 3; i++ {
		d.recordJoinAt(ctx, base.Add(time.Duration(i)*time.Second))
	}
	d.evaluate(ctx, base.Add(time.Minute))
	assert.False(t, d.Surging())

	next := base.Add(2 * time.Minute)
	for i := 0; i < 3; i++ {
		d.recordJoinAt(ctx, next.Add(time.Duration(i)*time.Second))
	}
	assert.True(t, d.Surging())
}

func TestDetector_AlertsOncePerTransition(t *testing.T) {
	client := &stubClient{}
	d := newTestDetector()
	d.notifier = platform.NewNotifier(client, platform.MailConfig{})
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 6; i++ {
		d.recordJoinAt(ctx, base.Add(time.Duration(i)*time.Second))
	}
	assert.Len(t, client.modLog, 1, "one alert when entering surge mode")
	assert.Contains(t, client.modLog[0], "joins within")

	d.evaluate(ctx, base.Add(2*time.Minute))
	d.evaluate(ctx, base.Add(3*time.Minute))
	assert.Len(t, client.modLog, 2, "one alert when leaving surge mode")
}

func TestDetector_SurgingDoesNotMutate(t *testing.T) {
	d := newTestDetector()
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 3; i++ {
		d.recordJoinAt(ctx, base.Add(time.Duration(i)*time.Second))
	}
	for i := 0; i < 5; i++ {
		assert.True(t, d.Surging())
	}
}
