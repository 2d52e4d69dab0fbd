package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is the minimal client message shape.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTick  Event = "tick"
	EventError Event = "error"
	EventPong  Event = "pong"
)

// TickResponse is pushed once per clock tick and on every phase change.
type TickResponse struct {
	Event           Event  `json:"event"`
	Phase           string `json:"phase"`
	TimeLeftSeconds int    `json:"time_left_seconds"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
