package conn

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v3"
)

// compressPayload and decompressPayload implement optional LZ4 framing:
// a config-gated transport detail applied to the payload bytes *before*
// they reach internal/wire, so the ARMB frame shape itself and its
// round-trip testable property are unaffected. Only the meaning of the
// payload bytes changes, and only when both ends have compression
// enabled via config.
//
// Grounded on aistore's own lz4.NewWriter/lz4.NewReader streaming usage
// in cmn/archive/write.go.

func compressPayload(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressPayload(compressed []byte) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(compressed))
	return io.ReadAll(zr)
}
