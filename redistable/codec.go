package redistable

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/avrellin/sesstore"
)

const recordFormatVersionCurrent = 1

// encodeRecord renders a record as a compact versioned binary blob:
// version byte, length-prefixed id, created and expires as big-endian
// UnixNano, length-prefixed payload. The format is append-only: future
// versions add fields, never reinterpret old ones.
func encodeRecord(rec *sesstore.Record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordFormatVersionCurrent)

	if len(rec.ID) > 255 {
		return nil, errors.New("record id too long")
	}
	buf.WriteByte(byte(len(rec.ID)))
	buf.WriteString(rec.ID)

	if err := binary.Write(&buf, binary.BigEndian, rec.Created.UnixNano()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.Expires.UnixNano()); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.BigEndian, uint32(len(rec.Data))); err != nil {
		return nil, err
	}
	buf.Write(rec.Data)

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*sesstore.Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordFormatVersionCurrent {
		return nil, errors.New("invalid record version")
	}

	rec := &sesstore.Record{}

	idLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	id := make([]byte, idLen)
	if _, err := io.ReadFull(reader, id); err != nil {
		return nil, err
	}
	rec.ID = string(id)

	var createdNano, expiresNano int64
	if err := binary.Read(reader, binary.BigEndian, &createdNano); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresNano); err != nil {
		return nil, err
	}
	rec.Created = time.Unix(0, createdNano).UTC()
	rec.Expires = time.Unix(0, expiresNano).UTC()

	var dataLen uint32
	if err := binary.Read(reader, binary.BigEndian, &dataLen); err != nil {
		return nil, err
	}
	if int(dataLen) != reader.Len() {
		return nil, errors.New("record payload length mismatch")
	}
	rec.Data = make([]byte, dataLen)
	if _, err := io.ReadFull(reader, rec.Data); err != nil {
		return nil, err
	}

	return rec, nil
}
