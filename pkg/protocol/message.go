// Package protocol defines the newline-delimited JSON wire format spoken
// with the harness and the codec for it.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope is the outer wrapper for every message exchanged with the
// harness: one JSON object per line on stdin/stdout.
type Envelope struct {
	Src  string          `json:"src,omitempty"`
	Dest string          `json:"dest,omitempty"`
	Body json.RawMessage `json:"body,omitempty"`
}

// Body carries the fields common to every message body. Workload-specific
// fields ride alongside these in the raw JSON and are decoded by handlers.
// MsgID and InReplyTo use omitempty so an unset field is absent on the wire,
// never null or zero; valid ids therefore start at 1.
type Body struct {
	Type      string `json:"type,omitempty"`
	MsgID     int64  `json:"msg_id,omitempty"`
	InReplyTo int64  `json:"in_reply_to,omitempty"`
}

// InitBody is the harness handshake payload assigning the node its id and
// the full cluster membership.
type InitBody struct {
	Type    string   `json:"type,omitempty"`
	MsgID   int64    `json:"msg_id,omitempty"`
	NodeID  string   `json:"node_id,omitempty"`
	NodeIDs []string `json:"node_ids,omitempty"`
}

// ErrorBody is the standard error reply. Codes 0-999 are reserved by the
// harness; 1000 and up are application-defined.
type ErrorBody struct {
	Type      string `json:"type"`
	InReplyTo int64  `json:"in_reply_to,omitempty"`
	Code      int    `json:"code"`
	Text      string `json:"text,omitempty"`
}

// Harness-reserved error codes.
const (
	ErrCodeTimeout          = 0
	ErrCodeNotSupported     = 10
	ErrCodeMalformedRequest = 12
	ErrCodeCrash            = 13
)

// DecodeError reports a line that could not be parsed into a well-formed
// envelope. Decode failures are recoverable: the runtime logs and skips.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses one input line into an envelope and its common body
// fields. A line is rejected if it is not valid JSON or its body carries
// no type tag.
func Decode(line []byte) (Envelope, Body, error) {
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Envelope{}, Body{}, &DecodeError{Line: string(line), Err: err}
	}
	var body Body
	if err := json.Unmarshal(env.Body, &body); err != nil {
		return Envelope{}, Body{}, &DecodeError{Line: string(line), Err: err}
	}
	if body.Type == "" {
		return Envelope{}, Body{}, &DecodeError{Line: string(line), Err: fmt.Errorf("body has no type")}
	}
	return env, body, nil
}

// Encode serializes an envelope as one newline-terminated JSON line.
func Encode(env Envelope) ([]byte, error) {
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return append(out, '\n'), nil
}

// UnmarshalBody decodes a raw body into a workload-specific type.
func UnmarshalBody(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal body: %w", err)
	}
	return nil
}

// MarshalBody serializes an arbitrary body value, stamping msg_id and
// in_reply_to when they are non-zero, and reports the body's type tag so
// callers need not re-parse their own output. The value may be a struct or
// a map; any type tag and workload fields it carries are preserved.
func MarshalBody(body any, msgID, inReplyTo int64) (json.RawMessage, string, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("marshal body: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, "", fmt.Errorf("body is not a JSON object: %w", err)
	}
	typ, _ := fields["type"].(string)
	if msgID == 0 && inReplyTo == 0 {
		return raw, typ, nil
	}
	if msgID != 0 {
		fields["msg_id"] = msgID
	}
	if inReplyTo != 0 {
		fields["in_reply_to"] = inReplyTo
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, "", fmt.Errorf("marshal body: %w", err)
	}
	return out, typ, nil
}
