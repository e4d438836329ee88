package transport

// Message is one request on the persistent connection: a type tag plus the
// named fields the grid protocol defines for that type.
type Message struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Response mirrors the server's {type, data} reply shape. A reply whose data
// carries an "error" field is surfaced as *RemoteError, never as a Response.
type Response struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}
