package persistent

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"

	"github.com/qrilka/kontiki/raft"
)

func encodeEntry(entry raft.LogEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEntry(raw []byte) (raft.LogEntry, error) {
	var entry raft.LogEntry
	err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&entry)
	return entry, err
}

func bytesToUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func uint64ToBytes(u uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, u)
	return buf
}
