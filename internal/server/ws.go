package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"blueprint/internal/generation"
	"blueprint/internal/llm"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type wsInbound struct {
	Type        string                  `json:"type"`
	Input       generation.ProjectInput `json:"input"`
	Selection   llm.PartialSelection    `json:"selection"`
	TemplateID  string                  `json:"templateId,omitempty"`
	Description string                  `json:"description,omitempty"`
	ModelID     string                  `json:"modelId,omitempty"`
}

type wsOutbound struct {
	generation.Event
	Code string `json:"code,omitempty"`
}

// HandleGenerateWS serves /ws/generate. The client sends one "generate"
// (or "generate_template") message and receives stage_started,
// stage_finished and finally bundle events; "cancel" aborts the run and
// "ping" is answered with "pong".
func (h *Handlers) HandleGenerateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	if h.streams != nil {
		h.streams.IncActiveStreams("websocket")
		defer h.streams.DecActiveStreams("websocket")
	}

	// connCtx ends on connection errors; runCtx also ends on a client
	// "cancel", after which the partial bundle is still delivered.
	connCtx, connCancel := context.WithCancel(r.Context())
	defer connCancel()
	runCtx, runCancel := context.WithCancel(connCtx)
	defer runCancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writeCh := make(chan wsOutbound, 32)
	finished := make(chan struct{})
	writerDone := make(chan struct{})
	go h.wsWriter(connCtx, connCancel, conn, writeCh, finished, writerDone)

	push := func(out wsOutbound) error {
		select {
		case writeCh <- out:
			return nil
		case <-connCtx.Done():
			return connCtx.Err()
		}
	}
	finish := func() {
		close(finished)
		<-writerDone
	}

	var in wsInbound
	if err := conn.ReadJSON(&in); err != nil {
		connCancel()
		finish()
		return
	}

	go wsReadLoop(connCancel, runCancel, conn, push)

	var generate func(context.Context) (generation.Bundle, error)
	switch strings.ToLower(strings.TrimSpace(in.Type)) {
	case "generate":
		generate = func(ctx context.Context) (generation.Bundle, error) {
			return h.gen.GenerateProject(ctx, in.Input, in.Selection)
		}
	case "generate_template":
		generate = func(ctx context.Context) (generation.Bundle, error) {
			return h.gen.GenerateFromTemplate(ctx, in.TemplateID, in.Description, in.ModelID)
		}
	default:
		_ = push(wsError("invalid_argument", errors.New("first message must be generate or generate_template")))
		finish()
		return
	}

	err = h.runStreaming(runCtx, generate, func(ev generation.Event) error {
		return push(wsOutbound{Event: ev})
	})
	if err != nil && connCtx.Err() == nil {
		h.log.Info("ws generate failed", zap.Error(err))
		_ = push(wsError(errorCode(err), err))
	}
	finish()
}

// wsWriter owns all writes on conn. After finished is closed it flushes
// queued messages and sends a close frame.
func (h *Handlers) wsWriter(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, writeCh <-chan wsOutbound, finished <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()

	write := func(out wsOutbound) bool {
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
			return false
		}
		if err := conn.WriteJSON(out); err != nil {
			cancel()
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case out := <-writeCh:
			if !write(out) {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cancel()
				return
			}
		case <-finished:
			for {
				select {
				case out := <-writeCh:
					if !write(out) {
						return
					}
				default:
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
						time.Now().Add(wsWriteWait))
					return
				}
			}
		}
	}
}

// wsReadLoop handles client messages during a run. A read error ends the
// connection; "cancel" only ends the run.
func wsReadLoop(connCancel, runCancel context.CancelFunc, conn *websocket.Conn, push func(wsOutbound) error) {
	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			connCancel()
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "cancel":
			runCancel()
		case "ping":
			if push(wsOutbound{Event: generation.Event{Type: "pong"}}) != nil {
				return
			}
		default:
			if push(wsError("invalid_argument", errors.New("a run is already in progress"))) != nil {
				return
			}
		}
	}
}

func wsError(code string, err error) wsOutbound {
	return wsOutbound{
		Event: generation.Event{Type: generation.EventError, Message: err.Error()},
		Code:  code,
	}
}
