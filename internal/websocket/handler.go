package websocket

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hadikhanhk786/live-class/internal/classroom"
	"github.com/hadikhanhk786/live-class/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Development default; production deployments should restrict
		// origins.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Client-to-server actions carried in ClientMessage.Action.
const (
	ActionChat                = "chat"
	ActionStartClass          = "start_class"
	ActionEndClass            = "end_class"
	ActionRemoveUser          = "remove_user"
	ActionLeave               = "leave"
	ActionFileUploaded        = "file_uploaded"
	ActionFileDownloaded      = "file_downloaded"
	ActionAssignmentSubmitted = "assignment_submitted"
)

// ClientMessage is the single inbound frame format.
type ClientMessage struct {
	Action string          `json:"action"`
	Text   string          `json:"text,omitempty"`
	Target string          `json:"target,omitempty"`
	File   *types.FileInfo `json:"file,omitempty"`
}

// Options tunes per-connection transport behavior.
type Options struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	SendBuffer   int
}

// DefaultOptions returns transport settings suited to classroom scale.
func DefaultOptions() Options {
	return Options{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		SendBuffer:   100,
	}
}

// Handler upgrades HTTP requests to websocket connections, joins them to
// a classroom through the coordinator and pumps inbound actions.
type Handler struct {
	coordinator *classroom.Coordinator
	opts        Options
}

// NewHandler creates a websocket handler.
func NewHandler(coordinator *classroom.Coordinator, opts Options) *Handler {
	return &Handler{coordinator: coordinator, opts: opts}
}

// HandleWebSocket validates the join parameters, upgrades the connection
// and binds it to the requested classroom. Parameter problems are plain
// HTTP errors; classroom-level refusals (not found, not started) arrive
// as an error envelope over the socket before it closes, so browser
// clients can show them.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	role := r.URL.Query().Get("role")
	className := r.URL.Query().Get("classroom")

	if username == "" || role == "" || className == "" {
		http.Error(w, "Missing required query parameters: username, role, classroom", http.StatusBadRequest)
		return
	}
	if !types.IsValidUsername(username) {
		http.Error(w, "Invalid username format", http.StatusBadRequest)
		return
	}
	if !types.IsValidRole(role) {
		http.Error(w, "Invalid role: must be 'teacher' or 'student'", http.StatusBadRequest)
		return
	}
	if !types.IsValidClassName(className) {
		http.Error(w, "Invalid classroom name", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	conn := NewConnection(ws, h.opts.SendBuffer)

	result, err := h.coordinator.Join(r.Context(), conn, username, role, className)
	if err != nil {
		h.sendError(conn, joinErrorMessage(err))
		_ = conn.Close()
		return
	}

	if err := conn.SendJSON(&types.ServerMessage{
		Type:      types.ServerTypeJoined,
		Presence:  result.Presence,
		History:   result.History,
		Lifecycle: result.Lifecycle,
	}); err != nil {
		log.Printf("Failed to send join acknowledgement to %s: %v", username, err)
	}

	go h.readPump(conn, ws, username)
}

// readPump reads inbound frames until the connection dies, dispatching
// each action to the coordinator. The deferred disconnect is what turns
// a transport drop into a user_disconnect event; after an explicit leave
// or removal the binding is already gone and the disconnect is a no-op.
func (h *Handler) readPump(conn *Connection, ws *websocket.Conn, username string) {
	defer func() {
		h.coordinator.Disconnect(conn.ID())
		_ = conn.Close()
	}()

	if err := ws.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	})

	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for %s: %v", username, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(conn, "Invalid message format")
			continue
		}

		if done := h.dispatch(conn, &msg); done {
			return
		}
	}
}

// dispatch routes one client action. Returns true when the pump should
// stop (explicit leave).
func (h *Handler) dispatch(conn *Connection, msg *ClientMessage) bool {
	var err error

	switch msg.Action {
	case ActionChat:
		err = h.coordinator.ChatMessage(conn.ID(), msg.Text)
	case ActionStartClass:
		err = h.coordinator.StartClass(conn.ID())
	case ActionEndClass:
		err = h.coordinator.EndClass(conn.ID())
	case ActionRemoveUser:
		err = h.coordinator.RemoveUser(conn.ID(), msg.Target)
	case ActionLeave:
		h.coordinator.Leave(conn.ID())
		_ = conn.Close()
		return true
	case ActionFileUploaded:
		err = h.fileAction(conn, msg, h.coordinator.FileUploaded)
	case ActionFileDownloaded:
		err = h.fileAction(conn, msg, h.coordinator.FileDownloaded)
	case ActionAssignmentSubmitted:
		err = h.fileAction(conn, msg, h.coordinator.AssignmentSubmitted)
	default:
		err = errors.New("unknown action")
	}

	if err != nil {
		h.sendError(conn, err.Error())
	}
	return false
}

func (h *Handler) fileAction(conn *Connection, msg *ClientMessage, op func(string, types.FileInfo) error) error {
	if msg.File == nil {
		return errors.New("file info is required")
	}
	return op(conn.ID(), *msg.File)
}

func (h *Handler) sendError(conn *Connection, message string) {
	if err := conn.SendJSON(&types.ServerMessage{Type: types.ServerTypeError, Error: message}); err != nil {
		log.Printf("Failed to send error message: %v", err)
	}
}

// joinErrorMessage maps coordinator refusals to client-facing
// messages.
func joinErrorMessage(err error) string {
	switch {
	case errors.Is(err, classroom.ErrClassroomNotFound):
		return "Classroom not found"
	case errors.Is(err, classroom.ErrClassNotStarted):
		return "Class has not started yet"
	case errors.Is(err, classroom.ErrRoleConflict):
		return "Already joined with a different role"
	default:
		return "Server error"
	}
}
