package vm

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"fmt"
)

// header is Magic + Version + a SHA-256 checksum of the gob payload,
// gating execution per the Open Question in spec.md §9: plugin
// signature verification is future work, but a checksum at least
// catches truncated or corrupted .fzb files before any bytecode runs.
const headerSize = 4 + 4 + sha256.Size

func encodeGob(b *Bytecode) ([]byte, error) {
	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(gobBytecode(*b)); err != nil {
		return nil, fmt.Errorf("vm: encode bytecode: %w", err)
	}
	sum := sha256.Sum256(body.Bytes())

	out := make([]byte, 0, headerSize+body.Len())
	out = append(out, Magic[:]...)
	var verBuf [4]byte
	binary.LittleEndian.PutUint32(verBuf[:], Version)
	out = append(out, verBuf[:]...)
	out = append(out, sum[:]...)
	out = append(out, body.Bytes()...)
	return out, nil
}

func decodeGob(data []byte) (*Bytecode, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("truncated header (%d bytes)", len(data))
	}
	if !bytes.Equal(data[0:4], Magic[:]) {
		return nil, fmt.Errorf("bad magic %x", data[0:4])
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != Version {
		return nil, fmt.Errorf("unsupported version %d", version)
	}
	wantSum := data[8:headerSize]
	body := data[headerSize:]

	gotSum := sha256.Sum256(body)
	if !bytes.Equal(gotSum[:], wantSum) {
		return nil, fmt.Errorf("checksum mismatch: module corrupt or truncated")
	}

	var gb gobBytecode
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&gb); err != nil {
		return nil, fmt.Errorf("decode bytecode: %w", err)
	}
	b := Bytecode(gb)
	return &b, nil
}

// gobBytecode is a named-type alias so gob doesn't need exported
// methods added to Bytecode itself just to round-trip.
type gobBytecode Bytecode
