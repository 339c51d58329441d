package server

import (
	"bytes"
	"encoding/json"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/pkg/errors"
)

var errUnknownEvent = errors.New("unknown event")

type inboundData struct {
	Username string `json:"username"`
	Room     string `json:"room"`
	ToUser   string `json:"to_user"`
	Message  string `json:"message"`
}

type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// decodeInbound parses a client frame into a chat event. Missing fields are
// left empty for the router to reject.
func decodeInbound(raw []byte) (chat.Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return chat.Inbound{}, errors.Wrap(err, "invalid frame")
	}

	kind, ok := chat.ParseEventKind(env.Event)
	if !ok {
		return chat.Inbound{}, errors.Wrapf(errUnknownEvent, "%q", env.Event)
	}

	var data inboundData
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return chat.Inbound{}, errors.Wrapf(err, "invalid %s payload", env.Event)
		}
	}

	return chat.Inbound{
		Kind:     kind,
		Username: data.Username,
		Room:     data.Room,
		ToUser:   data.ToUser,
		Message:  data.Message,
	}, nil
}

// encodeOutbound renders an outbound event as a text frame.
func encodeOutbound(ev chat.Outbound) ([]byte, error) {
	payload, err := json.Marshal(outboundFrame{Event: ev.Event, Data: ev.Data})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s", ev.Event)
	}
	return payload, nil
}
