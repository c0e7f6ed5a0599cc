package protocol_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
	"github.com/versewall/versewall/internal/protocol"
)

func TestSplitter(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{
			name: "single complete record",
			test: func(t *testing.T) {
				var s protocol.Splitter

				records := s.Feed([]byte("{\"type\":\"PING\"}\n"))
				require.Len(t, records, 1)
				assert.Equal(t, `{"type":"PING"}`, string(records[0]))
				assert.Equal(t, 0, s.Pending())
			},
		},
		{
			name: "multiple records in one read",
			test: func(t *testing.T) {
				var s protocol.Splitter

				records := s.Feed([]byte("{\"a\":1}\n{\"b\":2}\n{\"c\":3}\n"))
				require.Len(t, records, 3)
				assert.Equal(t, `{"a":1}`, string(records[0]))
				assert.Equal(t, `{"c":3}`, string(records[2]))
			},
		},
		{
			name: "incomplete fragment is retained",
			test: func(t *testing.T) {
				var s protocol.Splitter

				records := s.Feed([]byte(`{"type":"PI`))
				assert.Empty(t, records)
				assert.Equal(t, 11, s.Pending())

				records = s.Feed([]byte("NG\"}\n"))
				require.Len(t, records, 1)
				assert.Equal(t, `{"type":"PING"}`, string(records[0]))
			},
		},
		{
			name: "empty lines yield no records",
			test: func(t *testing.T) {
				var s protocol.Splitter

				records := s.Feed([]byte("\n\n{\"a\":1}\n\n"))
				require.Len(t, records, 1)
			},
		},
		{
			name: "chunking never changes the record sequence",
			test: func(t *testing.T) {
				wire := []byte("{\"seq\":1}\n{\"seq\":2}\n{\"seq\":3}\n{\"seq\":4}\n")

				var whole protocol.Splitter
				expected := whole.Feed(wire)

				for _, chunkSize := range []int{1, 2, 3, 7, 13, len(wire)} {
					var s protocol.Splitter
					var got [][]byte
					for start := 0; start < len(wire); start += chunkSize {
						end := start + chunkSize
						if end > len(wire) {
							end = len(wire)
						}
						got = append(got, s.Feed(wire[start:end])...)
					}

					require.Len(t, got, len(expected), "chunk size %d", chunkSize)
					for i := range expected {
						assert.True(t, bytes.Equal(expected[i], got[i]),
							"chunk size %d record %d", chunkSize, i)
					}
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func TestDecode(t *testing.T) {
	t.Run("valid message", func(t *testing.T) {
		msg, err := protocol.Decode([]byte(`{"type":"COMMAND","command":{"type":"NEXT_SLIDE","commandId":"c1"}}`))
		require.NoError(t, err)
		assert.Equal(t, v1alpha1.ProtocolMessageCommand, msg.Type)
		require.NotNil(t, msg.Command)
		assert.Equal(t, v1alpha1.CommandNextSlide, msg.Command.Type)
		assert.Equal(t, "c1", msg.Command.CommandID)
	})

	t.Run("invalid json is an error", func(t *testing.T) {
		_, err := protocol.Decode([]byte(`{"type":`))
		assert.Error(t, err)
	})

	t.Run("missing type is an error", func(t *testing.T) {
		_, err := protocol.Decode([]byte(`{"timestamp":"2026-01-01T00:00:00Z"}`))
		assert.Error(t, err)
	})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := &v1alpha1.ProtocolMessage{
		Type: v1alpha1.ProtocolMessageStateSync,
		State: &v1alpha1.HostState{
			DisplayID:         "display-42",
			CurrentSlideIndex: 3,
			IsLogo:            true,
			Transition:        v1alpha1.TransitionFade,
			LastUpdated:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	data, err := protocol.Encode(msg)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])

	var s protocol.Splitter
	records := s.Feed(data)
	require.Len(t, records, 1)

	decoded, err := protocol.Decode(records[0])
	require.NoError(t, err)
	assert.Equal(t, msg.Type, decoded.Type)
	require.NotNil(t, decoded.State)
	assert.Equal(t, "display-42", decoded.State.DisplayID)
	assert.Equal(t, 3, decoded.State.CurrentSlideIndex)
	assert.True(t, decoded.State.IsLogo)
}
