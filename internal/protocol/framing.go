// Package protocol implements the wire format of the local transport:
// UTF-8 JSON records separated by newlines, plus the bearer-token claim
// handling used during the handshake.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
)

// recordSeparator terminates every record on the wire
const recordSeparator = '\n'

// Splitter accumulates raw bytes from a stream and yields complete
// records regardless of how the stream was chunked. The trailing
// incomplete fragment is retained for the next feed.
type Splitter struct {
	buf bytes.Buffer
}

// Feed appends data to the receive buffer and returns all complete
// records, without their separators. Records are returned in stream
// order. An empty line yields no record.
func (s *Splitter) Feed(data []byte) [][]byte {
	s.buf.Write(data)

	var records [][]byte
	for {
		raw := s.buf.Bytes()
		idx := bytes.IndexByte(raw, recordSeparator)
		if idx < 0 {
			return records
		}
		line := make([]byte, idx)
		copy(line, raw[:idx])
		s.buf.Next(idx + 1)

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		records = append(records, line)
	}
}

// Pending returns the size of the retained incomplete fragment
func (s *Splitter) Pending() int {
	return s.buf.Len()
}

// Decode parses one record into a ProtocolMessage. A failure here is a
// frame parse error: the caller logs and discards the record, the
// connection continues.
func Decode(record []byte) (*v1alpha1.ProtocolMessage, error) {
	var msg v1alpha1.ProtocolMessage
	if err := json.Unmarshal(record, &msg); err != nil {
		return nil, fmt.Errorf("error parsing record: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("record missing type")
	}
	return &msg, nil
}

// Encode serializes a message as one wire record, separator included
func Encode(msg *v1alpha1.ProtocolMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("error encoding message: %w", err)
	}
	return append(data, recordSeparator), nil
}
