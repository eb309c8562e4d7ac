package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValid(t *testing.T) {
	line := []byte(`{"src":"c1","dest":"n1","body":{"type":"echo","msg_id":7,"echo":"hi"}}`)

	env, body, err := Decode(line)
	require.NoError(t, err)
	assert.Equal(t, "c1", env.Src)
	assert.Equal(t, "n1", env.Dest)
	assert.Equal(t, "echo", body.Type)
	assert.Equal(t, int64(7), body.MsgID)
	assert.Zero(t, body.InReplyTo)
}

func TestDecodeMalformed(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"not json", `{"src":`},
		{"body not object", `{"src":"c1","dest":"n1","body":42}`},
		{"missing type", `{"src":"c1","dest":"n1","body":{"msg_id":1}}`},
		{"empty line", ``},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Decode([]byte(tc.line))
			require.Error(t, err)
			var de *DecodeError
			require.ErrorAs(t, err, &de)
		})
	}
}

func TestEncodeOmitsUnsetFields(t *testing.T) {
	raw, typ, err := MarshalBody(Body{Type: "broadcast_ok"}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "broadcast_ok", typ)

	line, err := Encode(Envelope{Src: "n1", Dest: "c1", Body: raw})
	require.NoError(t, err)

	s := string(line)
	assert.True(t, strings.HasSuffix(s, "\n"))
	assert.NotContains(t, s, "msg_id")
	assert.NotContains(t, s, "in_reply_to")
	assert.NotContains(t, s, "null")
}

func TestMarshalBodyStampsIDs(t *testing.T) {
	raw, typ, err := MarshalBody(Body{Type: "gossip"}, 3, 9)
	require.NoError(t, err)
	assert.Equal(t, "gossip", typ)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "gossip", got["type"])
	assert.Equal(t, float64(3), got["msg_id"])
	assert.Equal(t, float64(9), got["in_reply_to"])
}

func TestMarshalBodyPreservesWorkloadFields(t *testing.T) {
	body := map[string]any{"type": "read_ok", "messages": []int{1, 2, 3}}

	raw, typ, err := MarshalBody(body, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, "read_ok", typ)

	var got struct {
		Type     string `json:"type"`
		MsgID    int64  `json:"msg_id"`
		Messages []int  `json:"messages"`
	}
	require.NoError(t, UnmarshalBody(raw, &got))
	assert.Equal(t, "read_ok", got.Type)
	assert.Equal(t, int64(5), got.MsgID)
	assert.Equal(t, []int{1, 2, 3}, got.Messages)
}

func TestDecodeRoundTrip(t *testing.T) {
	raw, _, err := MarshalBody(InitBody{Type: "init", NodeID: "n1", NodeIDs: []string{"n1", "n2"}}, 1, 0)
	require.NoError(t, err)
	line, err := Encode(Envelope{Src: "c0", Dest: "n1", Body: raw})
	require.NoError(t, err)

	_, body, err := Decode(line[:len(line)-1])
	require.NoError(t, err)
	assert.Equal(t, "init", body.Type)
	assert.Equal(t, int64(1), body.MsgID)
}
