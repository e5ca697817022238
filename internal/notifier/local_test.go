package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		eventType string
		pattern   string
		expected  bool
	}{
		{"workflow.phase.changed", "workflow.phase.changed", true},
		{"workflow.phase.changed", "*", true},
		{"workflow.phase.changed", "workflow.phase.*", true},
		{"workflow.phase.changed", "workflow.*", true},
		{"workflow.phase.changed", "service.health.*", false},
		{"workflow.phase.changed", "workflow.phase", false},
		{"service.health.changed", "workflow.*", false},
		{"service.health.changed", "*", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.eventType, func(t *testing.T) {
			if got := MatchPattern(tt.eventType, tt.pattern); got != tt.expected {
				t.Errorf("MatchPattern(%q, %q) = %v, want %v", tt.eventType, tt.pattern, got, tt.expected)
			}
		})
	}
}

func TestLocalNotifier_DeliversToMatchingSubscribers(t *testing.T) {
	n := NewLocalNotifier(zap.NewNop())

	var phaseEvents, allEvents, healthEvents []*Event
	n.Subscribe("workflow.phase.*", func(_ context.Context, evt *Event) error {
		phaseEvents = append(phaseEvents, evt)
		return nil
	})
	n.Subscribe("*", func(_ context.Context, evt *Event) error {
		allEvents = append(allEvents, evt)
		return nil
	})
	n.Subscribe(TypeServiceHealthChanged, func(_ context.Context, evt *Event) error {
		healthEvents = append(healthEvents, evt)
		return nil
	})

	n.Publish(context.Background(), NewWorkflowPhaseEvent("wf-1", "triage", "in_progress", nil))
	n.Publish(context.Background(), NewServiceHealthEvent("claims-processor", "unhealthy"))

	assert.Len(t, phaseEvents, 1)
	assert.Len(t, allEvents, 2)
	assert.Len(t, healthEvents, 1)
	assert.Equal(t, "wf-1", phaseEvents[0].CorrelationID)
}

func TestLocalNotifier_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	n := NewLocalNotifier(zap.NewNop())

	delivered := 0
	n.Subscribe("*", func(_ context.Context, _ *Event) error {
		return errors.New("boom")
	})
	n.Subscribe("*", func(_ context.Context, _ *Event) error {
		delivered++
		return nil
	})

	n.Publish(context.Background(), NewEvent("test.event", "test", nil))
	assert.Equal(t, 1, delivered)
}

func TestLocalNotifier_HandlerPanicIsRecovered(t *testing.T) {
	n := NewLocalNotifier(zap.NewNop())

	delivered := 0
	n.Subscribe("*", func(_ context.Context, _ *Event) error {
		panic("subscriber bug")
	})
	n.Subscribe("*", func(_ context.Context, _ *Event) error {
		delivered++
		return nil
	})

	require.NotPanics(t, func() {
		n.Publish(context.Background(), NewEvent("test.event", "test", nil))
	})
	assert.Equal(t, 1, delivered)
}

func TestLocalNotifier_PublishAfterCloseDrops(t *testing.T) {
	n := NewLocalNotifier(zap.NewNop())

	delivered := 0
	n.Subscribe("*", func(_ context.Context, _ *Event) error {
		delivered++
		return nil
	})

	require.NoError(t, n.Close())
	n.Publish(context.Background(), NewEvent("test.event", "test", nil))
	assert.Zero(t, delivered)
}

// The workflow engine's transition events must remain observable in-process
// even when no broker is configured or the broker is entirely absent.
func TestBrokerNotifier_LocalDeliveryWithoutBroker(t *testing.T) {
	local := NewLocalNotifier(zap.NewNop())
	n := NewBrokerNotifier(BrokerConfig{URL: "amqp://127.0.0.1:1"}, local, zap.NewNop())
	defer n.Close()

	var got []*Event
	n.Subscribe("workflow.*", func(_ context.Context, evt *Event) error {
		got = append(got, evt)
		return nil
	})

	n.Publish(context.Background(), NewWorkflowPhaseEvent("wf-1", "booking", "in_progress", nil))

	require.Len(t, got, 1)
	assert.Equal(t, TypeWorkflowPhaseChanged, got[0].Type)
	assert.Equal(t, "wf-1", got[0].Data["workflow_id"])
}

func TestBrokerRoutingKey(t *testing.T) {
	assert.Equal(t, "#", brokerRoutingKey("*"))
	assert.Equal(t, "workflow.phase.*", brokerRoutingKey("workflow.phase.*"))
	assert.Equal(t, "workflow.phase.changed", brokerRoutingKey("workflow.phase.changed"))
}
