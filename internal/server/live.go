package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// liveRequest is one inbound websocket frame.
type liveRequest struct {
	Text string `json:"text"`
}

// liveFrame is one outbound websocket frame. Type is "reply" or "error".
type liveFrame struct {
	Type   string    `json:"type"`
	Turn   *turnView `json:"turn,omitempty"`
	Status int       `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// handleLive runs turns over a websocket: every text frame from the client
// is one turn for the user named in the query string. Failed turns are
// reported as error frames and the connection stays open.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user := r.URL.Query().Get("user")
	if user == "" {
		writeError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.obs.Log().Warn().Err(err).Str("conversation", id).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)

	tlog := s.obs.Log().With().Str("conversation", id).Str("user", user).Logger()
	tlog.Info().Msg("live session opened")

	for {
		var in liveRequest
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				tlog.Warn().Err(err).Msg("live session read failed")
			}
			return
		}

		var out liveFrame
		rep, err := s.reg.RunTurn(r.Context(), id, user, in.Text)
		if err != nil {
			out = liveFrame{Type: "error", Status: statusFor(err), Error: err.Error()}
		} else {
			view := newTurnView(id, rep)
			out = liveFrame{Type: "reply", Turn: &view}
		}
		if err := conn.WriteJSON(out); err != nil {
			tlog.Warn().Err(err).Msg("live session write failed")
			return
		}
		if r.Context().Err() != nil {
			return
		}
	}
}
