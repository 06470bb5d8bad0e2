// Package compression implements the DEFLATE helpers the session edge
// uses to shrink handshake payloads before handing them to the packet
// encoder.
package compression

import (
	"bytes"
	"compress/flate"
	"io"
)

// DeflateData compresses data with DEFLATE at the default compression
// level.
func DeflateData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// InflateData reverses DeflateData.
func InflateData(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}
