package relay

// Inbound event names sent by clients
const (
	EventAddUser          = "add-user"
	EventSendMessage      = "send-msg"
	EventTyping           = "typing"
	EventCallRequest      = "call-request"
	EventCallAccepted     = "call-accepted"
	EventCallRejected     = "call-rejected"
	EventCallEnd          = "call-end"
	EventCallIceCandidate = "call-ice-candidate"
	EventCallOffer        = "call-offer"
	EventCallAnswer       = "call-answer-sdp"
)

// Outbound event names delivered to recipients. Some differ from their
// inbound counterpart; the names are kept exactly as existing clients expect.
const (
	EventMessageReceive = "msg-receive"
	EventTypingReceive  = "typing-receive"
	EventIncomingCall   = "incoming-call"
	EventCallEnded      = "call-ended"
)

// shaper builds the forwarded payload from the inbound data. from is the
// identified sender and replaces whatever the client put in data.from.
type shaper func(from string, data map[string]interface{}) interface{}

type route struct {
	outbound string
	shape    shaper
}

var routes = map[string]route{
	EventSendMessage: {EventMessageReceive, messageBody},
	EventTyping:      {EventTypingReceive, fullData},
	EventCallRequest: {EventIncomingCall, func(from string, data map[string]interface{}) interface{} {
		return map[string]interface{}{
			"from":         map[string]interface{}{"_id": from, "type": data["type"]},
			"type":         data["type"],
			"participants": data["participants"],
		}
	}},
	EventCallAccepted: {EventCallAccepted, func(from string, data map[string]interface{}) interface{} {
		return map[string]interface{}{"from": from, "type": data["type"]}
	}},
	EventCallRejected:     {EventCallRejected, fromOnly},
	EventCallEnd:          {EventCallEnded, fromOnly},
	EventCallIceCandidate: {EventCallIceCandidate, fullData},
	EventCallOffer:        {EventCallOffer, fullData},
	EventCallAnswer:       {EventCallAnswer, fullData},
}

// OutboundName returns the event name a recipient sees for an inbound event
func OutboundName(inbound string) (string, bool) {
	r, ok := routes[inbound]
	return r.outbound, ok
}

// messageBody forwards data.msg, falling back to data.message when msg is empty.
func messageBody(_ string, data map[string]interface{}) interface{} {
	if msg, ok := data["msg"]; ok && !isEmpty(msg) {
		return msg
	}
	return data["message"]
}

func fullData(from string, data map[string]interface{}) interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	out["from"] = from
	return out
}

func fromOnly(from string, _ map[string]interface{}) interface{} {
	return map[string]interface{}{"from": from}
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	}
	return false
}
