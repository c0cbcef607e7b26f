package sse

import (
  "encoding/json"
  "fmt"
  "net/http"
  "strings"
  "sync"
  "time"
  "github.com/google/uuid"
  "github.com/tempero-labs/dispenser-backend/internal/platform/logger"
)

type Event string

const (
  EventExecutionLogEntry Event = "execution_log_entry"
  EventExecutionComplete Event = "execution_complete"
)

// JobChannel is the subscription key observers use to watch one job.
func JobChannel(jobID uuid.UUID) string {
  return "job:" + jobID.String()
}

type Message struct {
  Channel   string    `json:"channel"`
  Event     Event     `json:"type"`
  Data      any       `json:"data,omitempty"`
  Timestamp time.Time `json:"timestamp"`
}

type Client struct {
  ID       uuid.UUID
  UserID   uuid.UUID
  Channels map[string]bool
  Outbound chan Message
  done     chan struct{}
}

type Hub struct {
  mu            sync.RWMutex
  logger        *logger.Logger
  subscriptions map[string]map[*Client]bool
}

func NewHub(log *logger.Logger) *Hub {
  return &Hub{
    logger:        log.With("component", "SSEHub"),
    subscriptions: make(map[string]map[*Client]bool),
  }
}

// NewClient builds an unregistered observer. UserID is uuid.Nil for anonymous
// monitoring connections.
func (hub *Hub) NewClient(userID uuid.UUID) *Client {
  return &Client{
    ID:       uuid.New(),
    UserID:   userID,
    Channels: make(map[string]bool),
    Outbound: make(chan Message, 16),
    done:     make(chan struct{}),
  }
}

func (hub *Hub) AddChannel(client *Client, channel string) {
  hub.mu.Lock()
  defer hub.mu.Unlock()

  channel = strings.TrimSpace(channel)
  if channel == "" {
    return
  }
  client.Channels[channel] = true

  clients, exists := hub.subscriptions[channel]
  if !exists {
    clients = make(map[*Client]bool)
    hub.subscriptions[channel] = clients
  }
  clients[client] = true

  hub.logger.Debug("SSE client subscribed", "clientID", client.ID, "channel", channel)
}

func (hub *Hub) RemoveClient(client *Client) {
  hub.mu.Lock()
  defer hub.mu.Unlock()
  hub.removeClientLocked(client)
}

func (hub *Hub) removeClientLocked(client *Client) {
  for ch := range client.Channels {
    if subMap, ok := hub.subscriptions[ch]; ok {
      delete(subMap, client)
      if len(subMap) == 0 {
        delete(hub.subscriptions, ch)
      }
    }
  }
  client.Channels = make(map[string]bool)
}

// Broadcast delivers msg to every observer of msg.Channel. A full outbound
// buffer counts as observer failure: the message is dropped for that observer
// only and the observer is evicted so it cannot stall the rest.
func (hub *Hub) Broadcast(msg Message) {
  if msg.Channel == "" {
    return
  }
  if msg.Timestamp.IsZero() {
    msg.Timestamp = time.Now()
  }

  hub.mu.Lock()
  defer hub.mu.Unlock()

  clientsMap, ok := hub.subscriptions[msg.Channel]
  if !ok {
    return
  }
  var failed []*Client
  for c := range clientsMap {
    select {
    case c.Outbound <- msg:
    default:
      hub.logger.Warn("Dropping slow SSE observer; outbound buffer full", "clientID", c.ID, "channel", msg.Channel)
      failed = append(failed, c)
    }
  }
  for _, c := range failed {
    hub.removeClientLocked(c)
    close(c.done)
  }
}

// CompleteChannel delivers a final message to every observer of channel, then
// closes their streams and drops the channel entry. No broadcast can reach
// this channel afterwards.
func (hub *Hub) CompleteChannel(channel string, final Message) {
  if final.Timestamp.IsZero() {
    final.Timestamp = time.Now()
  }

  hub.mu.Lock()
  defer hub.mu.Unlock()

  clientsMap, ok := hub.subscriptions[channel]
  if !ok {
    return
  }
  for c := range clientsMap {
    select {
    case c.Outbound <- final:
    default:
      hub.logger.Warn("Final SSE message dropped; outbound buffer full", "clientID", c.ID, "channel", channel)
    }
    delete(c.Channels, channel)
    if len(c.Channels) == 0 {
      close(c.done)
    }
  }
  delete(hub.subscriptions, channel)
}

// HasChannel reports whether any observer is registered for channel.
func (hub *Hub) HasChannel(channel string) bool {
  hub.mu.RLock()
  defer hub.mu.RUnlock()
  _, ok := hub.subscriptions[channel]
  return ok
}

func (hub *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *Client) {
  w.Header().Set("Content-Type", "text/event-stream")
  w.Header().Set("Cache-Control", "no-cache")
  w.Header().Set("Connection", "keep-alive")
  w.Header().Set("X-Accel-Buffering", "no")

  flusher, ok := w.(http.Flusher)
  if !ok {
    http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
    return
  }
  ctx := r.Context()

  heartbeat := time.NewTicker(15 * time.Second)
  defer heartbeat.Stop()

  for {
    select {
    case <-ctx.Done():
      hub.logger.Debug("SSE client context done", "clientID", client.ID, "err", ctx.Err())
      return
    case <-client.done:
      // Drain anything queued before the channel was completed.
      for {
        select {
        case msg := <-client.Outbound:
          writeMessage(w, flusher, hub.logger, msg)
        default:
          return
        }
      }
    case <-heartbeat.C:
      fmt.Fprint(w, ": ping\n\n")
      flusher.Flush()
    case msg := <-client.Outbound:
      writeMessage(w, flusher, hub.logger, msg)
    }
  }
}

func writeMessage(w http.ResponseWriter, flusher http.Flusher, log *logger.Logger, msg Message) {
  jsonBytes, err := json.Marshal(msg)
  if err != nil {
    log.Warn("Failed to marshal SSE message", "error", err)
    return
  }
  _, _ = fmt.Fprintf(w, "event: %s\n", msg.Event)
  _, _ = fmt.Fprintf(w, "data: %s\n\n", string(jsonBytes))
  flusher.Flush()
}

// CloseClient tears down an observer-initiated disconnect.
func (hub *Hub) CloseClient(client *Client) {
  hub.mu.Lock()
  alreadyDone := false
  select {
  case <-client.done:
    alreadyDone = true
  default:
  }
  hub.removeClientLocked(client)
  if !alreadyDone {
    close(client.done)
  }
  hub.mu.Unlock()
}
