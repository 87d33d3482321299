package sqlite

import (
	"bytes"
	"errors"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/memoryd/engine/internal/errs"
)

var errUnknownBlobFlag = errors.New("unrecognized blob compression flag")

// compressionThreshold is the size above which a blob column is stored
// LZ4-compressed. Below it the framing byte alone would cost more than
// it saves.
const compressionThreshold = 1024

const (
	blobPlain      byte = 0
	blobCompressed byte = 1
)

// encodeBlob frames raw with a one-byte compression flag, compressing
// with LZ4 when raw is larger than compressionThreshold.
func encodeBlob(raw []byte) ([]byte, error) {
	if len(raw) <= compressionThreshold {
		out := make([]byte, 0, len(raw)+1)
		out = append(out, blobPlain)
		out = append(out, raw...)
		return out, nil
	}

	var buf bytes.Buffer
	buf.WriteByte(blobCompressed)
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, errs.Storage("lz4 compress blob", err)
	}
	if err := w.Close(); err != nil {
		return nil, errs.Storage("lz4 close writer", err)
	}
	return buf.Bytes(), nil
}

// decodeBlob reverses encodeBlob.
func decodeBlob(framed []byte) ([]byte, error) {
	if len(framed) == 0 {
		return nil, nil
	}
	flag, body := framed[0], framed[1:]
	switch flag {
	case blobPlain:
		return append([]byte(nil), body...), nil
	case blobCompressed:
		r := lz4.NewReader(bytes.NewReader(body))
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, errs.Storage("lz4 decompress blob", err)
		}
		return raw, nil
	default:
		return nil, errs.Storage("decode blob", errUnknownBlobFlag)
	}
}
