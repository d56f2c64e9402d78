package web

import "encoding/json"

// ActionStartCapture is the only control action viewers may send.
const ActionStartCapture = "start_capture"

// ControlMessage is a viewer -> server message.
// ControlMessage 是观察端发往服务端的控制消息。
type ControlMessage struct {
	Action   string `json:"action"`
	Duration *int   `json:"duration,omitempty"`
}

// decodeControl returns the requested capture duration for a start_capture
// message. Malformed, unknown or non-positive requests report false.
// decodeControl 解析 start_capture 消息，无效消息返回 false。
func decodeControl(data []byte, defaultDuration int) (int, bool) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return 0, false
	}
	if msg.Action != ActionStartCapture {
		return 0, false
	}
	if msg.Duration == nil {
		return defaultDuration, true
	}
	if *msg.Duration <= 0 {
		return 0, false
	}
	return *msg.Duration, true
}
