package capture

import "fmt"

// Event kinds, used as metric labels.
const (
	KindStatus = "status"
	KindPacket = "packet"
)

// Event is anything a session emits towards viewers.
type Event interface {
	Kind() string
}

// StatusEvent is a human readable progress message.
// StatusEvent 是可读的进度消息。
type StatusEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (StatusEvent) Kind() string { return KindStatus }

// NewStatus builds a StatusEvent.
func NewStatus(format string, args ...any) StatusEvent {
	return StatusEvent{Type: KindStatus, Message: fmt.Sprintf(format, args...)}
}

// PacketEvent carries one parsed record plus the aggregates after counting it.
// PacketEvent 携带一条记录以及计数后的汇总。
type PacketEvent struct {
	Packet         Record            `json:"packet"`
	IPCounts       map[string]uint64 `json:"ip_counts"`
	ProtocolCounts map[string]uint64 `json:"protocol_counts"`
}

func (PacketEvent) Kind() string { return KindPacket }

// Status messages.
const (
	msgStarting       = "Starting packet capture for %d seconds..."
	msgCapturing      = "Capturing packets... (%d seconds remaining)"
	msgCompleted      = "Packet capture completed. Ready for next capture."
	msgError          = "Error: %s"
	MsgAlreadyRunning = "A packet capture is already running. Please wait for it to finish."
)
