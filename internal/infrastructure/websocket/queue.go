package websocket

import "encoding/json"

const (
	methodSubscribe   = "SUBSCRIBE"
	methodUnsubscribe = "UNSUBSCRIBE"
	methodPing        = "ping"
)

// controlMessage is an outbound frame: {"method":"SUBSCRIBE","params":[...],"id":1}
type controlMessage struct {
	Method string   `json:"method"`
	Params []string `json:"params,omitempty"`
	ID     int64    `json:"id,omitempty"`
}

func (c controlMessage) encode() []byte {
	b, _ := json.Marshal(c)
	return b
}

// outboundQueue holds control messages produced while the socket is not open.
// It is drained front to back on open and only shrinks by a successful send.
type outboundQueue struct {
	items []controlMessage
}

func (q *outboundQueue) push(m controlMessage) { q.items = append(q.items, m) }

func (q *outboundQueue) peek() (controlMessage, bool) {
	if len(q.items) == 0 {
		return controlMessage{}, false
	}
	return q.items[0], true
}

func (q *outboundQueue) pop() {
	if len(q.items) == 0 {
		return
	}
	q.items[0] = controlMessage{}
	q.items = q.items[1:]
}

func (q *outboundQueue) len() int { return len(q.items) }

func (q *outboundQueue) reset() { q.items = nil }
