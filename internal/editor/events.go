// internal/editor/events.go
package editor

import (
	"strconv"
	"strings"
)

// EventKind tags an inbound editor message.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventLayerCount
	EventExportFile
	EventPayload
)

func (k EventKind) String() string {
	switch k {
	case EventLayerCount:
		return "layer_count"
	case EventExportFile:
		return "export_file"
	case EventPayload:
		return "payload"
	default:
		return "unknown"
	}
}

const (
	prefixLayerCount = "layer_count:"
	prefixExportFile = "export_file:"
)

// Event is an inbound message decoded once at the transport boundary.
// Payload events carry no namespace; they belong to the instance that produced them.
type Event struct {
	Kind      EventKind
	Namespace string
	Count     int
	Format    string
	Data      []byte
	Raw       string
}

// DecodeText parses "layer_count:<ns>:<int>" and "export_file:<ns>:<format>".
// The namespace may itself contain ':' so the last separator splits off the value.
func DecodeText(msg string) Event {
	ev := Event{Kind: EventUnknown, Raw: msg}

	var rest string
	switch {
	case strings.HasPrefix(msg, prefixLayerCount):
		rest = msg[len(prefixLayerCount):]
		ev.Kind = EventLayerCount
	case strings.HasPrefix(msg, prefixExportFile):
		rest = msg[len(prefixExportFile):]
		ev.Kind = EventExportFile
	default:
		return ev
	}

	i := strings.LastIndex(rest, ":")
	if i <= 0 || i == len(rest)-1 {
		return Event{Kind: EventUnknown, Raw: msg}
	}
	ev.Namespace, rest = rest[:i], strings.TrimSpace(rest[i+1:])

	if ev.Kind == EventLayerCount {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			return Event{Kind: EventUnknown, Raw: msg}
		}
		ev.Count = n
		return ev
	}
	ev.Format = strings.ToLower(rest)
	return ev
}

func DecodeBinary(data []byte) Event {
	return Event{Kind: EventPayload, Data: data}
}

// Outbound is one message to the editor: a script as text or a raw file as binary.
type Outbound struct {
	Binary bool
	Data   []byte
}

func TextMessage(script string) Outbound {
	return Outbound{Data: []byte(script)}
}

func BinaryMessage(data []byte) Outbound {
	return Outbound{Binary: true, Data: data}
}
