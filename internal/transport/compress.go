package transport

import (
	"bytes"
	"compress/gzip"
	"strings"

	"github.com/andybalholm/brotli"
)

// negotiateEncoding picks a content coding from an Accept-Encoding header
// value. Brotli wins over gzip when both are listed; identity is "".
// Quality values are ignored: a listed coding counts even with q=0.
func negotiateEncoding(acceptEncoding string) string {
	hasBr := false
	hasGzip := false
	for _, part := range strings.Split(acceptEncoding, ",") {
		name := strings.TrimSpace(part)
		if i := strings.IndexByte(name, ';'); i >= 0 {
			name = strings.TrimSpace(name[:i])
		}
		switch name {
		case "br":
			hasBr = true
		case "gzip":
			hasGzip = true
		}
	}
	if hasBr {
		return "br"
	}
	if hasGzip {
		return "gzip"
	}
	return ""
}

// compressBody encodes body with the chosen coding. Bodies below minSize,
// or that grow when encoded, are returned unchanged with coding "".
func compressBody(body []byte, acceptEncoding string, minSize int) ([]byte, string) {
	if len(body) < minSize {
		return body, ""
	}
	encoding := negotiateEncoding(acceptEncoding)
	if encoding == "" {
		return body, ""
	}

	var buf bytes.Buffer
	switch encoding {
	case "br":
		w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
		if _, err := w.Write(body); err != nil {
			return body, ""
		}
		if err := w.Close(); err != nil {
			return body, ""
		}
	case "gzip":
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(body); err != nil {
			return body, ""
		}
		if err := w.Close(); err != nil {
			return body, ""
		}
	}
	if buf.Len() >= len(body) {
		return body, ""
	}
	return buf.Bytes(), encoding
}
