package stream

import (
	"encoding/json"
)

// Frame is the JSON envelope of every message on the realtime socket,
// Phoenix-channel style.
type Frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Ref     string          `json:"ref,omitempty"`
}

const (
	eventJoin          = "phx_join"
	eventReply         = "phx_reply"
	eventError         = "phx_error"
	eventClose         = "phx_close"
	eventLeave         = "phx_leave"
	eventHeartbeat     = "heartbeat"
	eventChanges       = "postgres_changes"
	eventPresence      = "presence"
	eventPresenceState = "presence_state"
	eventPresenceDiff  = "presence_diff"

	heartbeatTopic = "phoenix"
	statusOK       = "ok"

	changeInsert = "INSERT"
)

type joinPayload struct {
	Config joinConfig `json:"config"`
}

type joinConfig struct {
	PostgresChanges []changeBinding `json:"postgres_changes"`
}

type changeBinding struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response,omitempty"`
}

type trackPayload struct {
	Type    string            `json:"type"`
	Event   string            `json:"event"`
	Payload map[string]string `json:"payload"`
}

type changePayload struct {
	Data changeData `json:"data"`
}

type changeData struct {
	Schema string          `json:"schema"`
	Table  string          `json:"table"`
	Type   string          `json:"type"`
	Record json.RawMessage `json:"record"`
}

func newFrame(topic, event, ref string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}

	return Frame{
		Topic:   topic,
		Event:   event,
		Payload: raw,
		Ref:     ref,
	}, nil
}

// newJoinFrame subscribes the channel to inserts on the message feed and
// any change to the presence table.
func newJoinFrame(topic, ref string) (Frame, error) {
	return newFrame(topic, eventJoin, ref, joinPayload{
		Config: joinConfig{
			PostgresChanges: []changeBinding{
				{Event: changeInsert, Schema: "public", Table: "messages"},
				{Event: "*", Schema: "public", Table: "users"},
			},
		},
	})
}

func newHeartbeatFrame(ref string) (Frame, error) {
	return newFrame(heartbeatTopic, eventHeartbeat, ref, struct{}{})
}

func newTrackFrame(topic, ref, key string) (Frame, error) {
	return newFrame(topic, eventPresence, ref, trackPayload{
		Type:    eventPresence,
		Event:   "track",
		Payload: map[string]string{"key": key},
	})
}

func newLeaveFrame(topic, ref string) (Frame, error) {
	return newFrame(topic, eventLeave, ref, struct{}{})
}
