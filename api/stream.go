package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/WubeDegife/Microgrid-Optimization/core/dispatch"
	"github.com/WubeDegife/Microgrid-Optimization/core/events"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

// EventSource is the run lifecycle bus streamed on /api/v1/events.
type EventSource interface {
	Subscribe() <-chan events.RunEvent
	Unsubscribe(<-chan events.RunEvent)
}

// EventMessage is the JSON frame written for each run event.
type EventMessage struct {
	RunID   string    `json:"run_id"`
	Stage   string    `json:"stage"`
	Season  string    `json:"season"`
	Month   string    `json:"month"`
	Summary string    `json:"summary,omitempty"`
	Outcome string    `json:"outcome,omitempty"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

func newEventMessage(e events.RunEvent) EventMessage {
	m := EventMessage{
		RunID:   e.RunID,
		Stage:   string(e.Stage),
		Season:  e.Season.String(),
		Month:   model.MonthName(e.Month),
		Summary: e.Summary,
		Time:    e.Time,
	}
	if e.Done() {
		m.Outcome = dispatch.Outcome(e.Err)
	}
	if e.Err != nil {
		m.Error = e.Err.Error()
	}
	return m
}

const writeWait = 10 * time.Second

func (h *handler) upgrader() *websocket.Upgrader {
	origins := h.opts.AllowedOrigins
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
		},
	}
}

// streamEvents pushes every run event to the client until it disconnects or
// the bus closes.
func (h *handler) streamEvents(c *gin.Context) {
	sub := h.opts.Events.Subscribe()
	defer h.opts.Events.Unsubscribe(sub)

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnf("event stream upgrade: %v", err)
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case e, ok := <-sub:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(newEventMessage(e)); err != nil {
				h.log.Debugf("event stream write: %v", err)
				return
			}
		}
	}
}
