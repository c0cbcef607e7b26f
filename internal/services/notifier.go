package services

import (
  "context"
  "github.com/google/uuid"
  "github.com/tempero-labs/dispenser-backend/internal/platform/logger"
  "github.com/tempero-labs/dispenser-backend/internal/sse"
  "github.com/tempero-labs/dispenser-backend/internal/sse/bus"
  "github.com/tempero-labs/dispenser-backend/internal/types"
)

// JobNotifier relays execution events to job observers. Delivery is
// best-effort: failures are logged and swallowed, never surfaced to the
// reporting device.
type JobNotifier interface {
  Start(ctx context.Context) error
  JobLogEntry(ctx context.Context, jobID uuid.UUID, entry types.ExecutionLogEntry)
  JobCompleted(ctx context.Context, jobID uuid.UUID, result any)
}

type jobNotifier struct {
  log *logger.Logger
  hub *sse.Hub
  bus bus.Bus
}

func NewJobNotifier(log *logger.Logger, hub *sse.Hub, eventBus bus.Bus) JobNotifier {
  return &jobNotifier{
    log: log.With("service", "JobNotifier"),
    hub: hub,
    bus: eventBus,
  }
}

// Start hooks the bus onto the hub. Completion events tear the job's channel
// down; everything else fans out to the channel's observers.
func (jn *jobNotifier) Start(ctx context.Context) error {
  return jn.bus.StartForwarder(ctx, func(m sse.Message) {
    if m.Event == sse.EventExecutionComplete {
      jn.hub.CompleteChannel(m.Channel, m)
      return
    }
    jn.hub.Broadcast(m)
  })
}

func (jn *jobNotifier) JobLogEntry(ctx context.Context, jobID uuid.UUID, entry types.ExecutionLogEntry) {
  jn.publish(ctx, sse.Message{
    Channel: sse.JobChannel(jobID),
    Event:   sse.EventExecutionLogEntry,
    Data:    entry,
  })
}

func (jn *jobNotifier) JobCompleted(ctx context.Context, jobID uuid.UUID, result any) {
  jn.publish(ctx, sse.Message{
    Channel: sse.JobChannel(jobID),
    Event:   sse.EventExecutionComplete,
    Data:    result,
  })
}

func (jn *jobNotifier) publish(ctx context.Context, msg sse.Message) {
  if err := jn.bus.Publish(ctx, msg); err != nil {
    jn.log.Warn("Event bus publish failed, delivering locally", "channel", msg.Channel, "error", err)
    if msg.Event == sse.EventExecutionComplete {
      jn.hub.CompleteChannel(msg.Channel, msg)
      return
    }
    jn.hub.Broadcast(msg)
  }
}
