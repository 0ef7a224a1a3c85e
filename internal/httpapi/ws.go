package httpapi

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// streamEvents upgrades the request to a websocket and relays the session's
// event stream until either side disconnects. The subscriber receives every
// event fired after the subscription, not a replay.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	session, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// The stream is write-only; CloseRead drains incoming frames and cancels
	// the context when the client goes away.
	ctx := conn.CloseRead(r.Context())

	events, cancel := h.hub.subscribe(session.ID)
	defer cancel()

	h.log.WithField("session", session.ID).Debug("event stream opened")
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev := <-events:
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				return
			}
		}
	}
}
