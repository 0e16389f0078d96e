package signaling

import (
	"encoding/json"
	"fmt"
	"math"
)

// Encode serializes an outbound message into a single JSON object.
func Encode(msg Outbound) ([]byte, error) {
	if c, ok := msg.(*Control); ok {
		return encodeControl(c)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Verb(), err)
	}
	return data, nil
}

func encodeControl(c *Control) ([]byte, error) {
	fields := make(map[string]any, len(c.Extra)+2)
	for k, v := range c.Extra {
		fields[k] = v
	}
	// command and streamId always win over extras
	fields["command"] = c.Command
	if c.StreamID != "" {
		fields["streamId"] = c.StreamID
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.Command, err)
	}
	return data, nil
}

// Decode parses inbound text into a typed command. It returns an error
// wrapping ErrMalformedMessage when the text is not a JSON object, has no
// command string, or lacks a field the command requires.
func Decode(data []byte) (Inbound, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedMessage)
	}

	var command string
	raw, ok := fields["command"]
	if !ok {
		return nil, fmt.Errorf("%w: missing command", ErrMalformedMessage)
	}
	if err := json.Unmarshal(raw, &command); err != nil || command == "" {
		return nil, fmt.Errorf("%w: command is not a string", ErrMalformedMessage)
	}

	streamID, err := optionalString(fields, "streamId")
	if err != nil {
		return nil, err
	}

	switch command {
	case CommandTrackList:
		var tracks []string
		if err := requiredField(fields, "trackList", &tracks); err != nil {
			return nil, err
		}
		return &TrackList{StreamID: streamID, Tracks: tracks}, nil

	case CommandStart:
		if streamID == "" {
			return nil, missing(command, "streamId")
		}
		return &Start{StreamID: streamID}, nil

	case CommandStop:
		if streamID == "" {
			return nil, missing(command, "streamId")
		}
		return &Stop{StreamID: streamID}, nil

	case CommandTakeConfiguration:
		if streamID == "" {
			return nil, missing(command, "streamId")
		}
		var typ, sdp string
		if err := requiredField(fields, "type", &typ); err != nil {
			return nil, err
		}
		if err := requiredField(fields, "sdp", &sdp); err != nil {
			return nil, err
		}
		if typ != "offer" && typ != "answer" {
			return nil, fmt.Errorf("%w: %s has unsupported type %q", ErrMalformedMessage, command, typ)
		}
		return &TakeConfiguration{StreamID: streamID, Type: typ, SDP: sdp}, nil

	case CommandTakeCandidate:
		if streamID == "" {
			return nil, missing(command, "streamId")
		}
		c := &TakeCandidate{StreamID: streamID}
		if err := requiredField(fields, "candidate", &c.Candidate); err != nil {
			return nil, err
		}
		if err := requiredField(fields, "label", &c.Label); err != nil {
			return nil, err
		}
		if c.Label < 0 || c.Label > math.MaxUint16 {
			return nil, fmt.Errorf("%w: %s label %d out of range", ErrMalformedMessage, command, c.Label)
		}
		if err := requiredField(fields, "id", &c.ID); err != nil {
			return nil, err
		}
		return c, nil

	case CommandStreamInformation:
		info := &StreamInformation{StreamID: streamID}
		if raw, ok := fields["streamInfo"]; ok {
			if err := json.Unmarshal(raw, &info.Info); err != nil {
				return nil, fmt.Errorf("%w: streamInfo: %v", ErrMalformedMessage, err)
			}
		}
		return info, nil

	case CommandNotification:
		return decodeNotification(data, fields, streamID)

	case CommandRoomInformation:
		room := &RoomInformation{}
		if err := requiredField(fields, "streams", &room.Streams); err != nil {
			return nil, err
		}
		if room.Room, err = optionalString(fields, "room"); err != nil {
			return nil, err
		}
		return room, nil

	case CommandPong:
		return &Pong{}, nil

	case CommandError:
		definition, err := optionalString(fields, "definition")
		if err != nil {
			return nil, err
		}
		return &ErrorMessage{StreamID: streamID, Definition: definition}, nil

	default:
		var all map[string]any
		_ = json.Unmarshal(data, &all)
		return &Unknown{Command: command, StreamID: streamID, Raw: all}, nil
	}
}

func decodeNotification(data []byte, fields map[string]json.RawMessage, streamID string) (Inbound, error) {
	n := &Notification{StreamID: streamID}
	if err := requiredField(fields, "definition", &n.Definition); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &n.Raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	var err error
	if n.Room, err = optionalString(fields, "room"); err != nil {
		return nil, err
	}

	switch n.Definition {
	case DefinitionJoinedRoom:
		if streamID == "" {
			return nil, missing(n.Definition, "streamId")
		}
		if raw, ok := fields["streams"]; ok {
			if err := json.Unmarshal(raw, &n.Streams); err != nil {
				return nil, fmt.Errorf("%w: streams: %v", ErrMalformedMessage, err)
			}
		}
	case DefinitionBroadcastObject:
		broadcast, err := optionalString(fields, "broadcast")
		if err != nil {
			return nil, err
		}
		if broadcast != "" {
			// an unparsable broadcast is delivered as an empty object
			_ = json.Unmarshal([]byte(broadcast), &n.Broadcast)
		}
		if n.Broadcast == nil {
			n.Broadcast = map[string]any{}
		}
	case DefinitionPlayStarted, DefinitionPlayFinished, DefinitionPublishStarted, DefinitionPublishFinished:
		if streamID == "" {
			return nil, missing(n.Definition, "streamId")
		}
	}
	return n, nil
}

func requiredField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return fmt.Errorf("%w: missing %s", ErrMalformedMessage, name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedMessage, name, err)
	}
	return nil
}

func optionalString(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s is not a string", ErrMalformedMessage, name)
	}
	return s, nil
}

func missing(command, field string) error {
	return fmt.Errorf("%w: %s without %s", ErrMalformedMessage, command, field)
}
