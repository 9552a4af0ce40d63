package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The live channel is a local-loopback convenience surface (spec §6);
	// it carries no peer-auth distinction, so origin checks are skipped
	// the way a local dev server would.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades to the full-duplex channel at /ws: text frames are
// JSON Bus emissions; the client may send the literal "ping" and receive
// "pong" (spec §6 "Live channel").
func (a *API) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.srv.Logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sess := a.srv.Bus.Subscribe()
	defer a.srv.Bus.Unsubscribe(sess)

	go a.wsReadLoop(conn)

	for ev := range sess.Ch {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// wsReadLoop drains client frames, answering literal "ping" with "pong"
// and exiting (closing the connection from the writer side) once the
// client disconnects.
func (a *API) wsReadLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			return
		}
		if string(msg) == "ping" {
			if err := conn.WriteMessage(websocket.TextMessage, []byte("pong")); err != nil {
				return
			}
		}
	}
}
