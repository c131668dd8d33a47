package chat

import "encoding/json"

// Wire event names. Presence and message delivery use distinct names so
// clients can multiplex on one connection.
const (
	EventOnlineUsers = "getOnlineUsers"
	EventNewMessage  = "newMessage"
)

// Event is the JSON envelope pushed over websocket sessions.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func marshalEvent(name string, data interface{}) ([]byte, error) {
	return json.Marshal(Event{Event: name, Data: data})
}
