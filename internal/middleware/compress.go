package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// DefaultCompressMinLength keeps participant polls, which are a few hundred
// bytes, uncompressed.
const DefaultCompressMinLength = 1024

type brotliWriter struct {
	gin.ResponseWriter
	encoder   *brotli.Writer
	buf       []byte
	minLength int
	quality   int
}

func (bw *brotliWriter) Write(data []byte) (int, error) {
	if bw.encoder != nil {
		return bw.encoder.Write(data)
	}

	bw.buf = append(bw.buf, data...)
	if len(bw.buf) < bw.minLength {
		return len(data), nil
	}

	h := bw.ResponseWriter.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
	bw.encoder = brotli.NewWriterLevel(bw.ResponseWriter, bw.quality)

	pending := bw.buf
	bw.buf = nil
	if _, err := bw.encoder.Write(pending); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (bw *brotliWriter) WriteString(s string) (int, error) {
	return bw.Write([]byte(s))
}

// finish writes whatever stayed below the threshold as is, or closes the encoder.
func (bw *brotliWriter) finish() error {
	if bw.encoder != nil {
		return bw.encoder.Close()
	}
	if len(bw.buf) == 0 {
		return nil
	}
	_, err := bw.ResponseWriter.Write(bw.buf)
	bw.buf = nil
	return err
}

// Compress brotli-encodes response bodies of at least minLength bytes for
// clients that send Accept-Encoding: br.
func Compress(minLength int) gin.HandlerFunc {
	if minLength <= 0 {
		minLength = DefaultCompressMinLength
	}

	return func(c *gin.Context) {
		if !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")

		bw := &brotliWriter{
			ResponseWriter: c.Writer,
			minLength:      minLength,
			quality:        brotli.DefaultCompression,
		}
		c.Writer = bw
		defer func() {
			if err := bw.finish(); err != nil {
				_ = c.Error(err)
			}
			c.Writer = bw.ResponseWriter
		}()

		c.Next()
	}
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		// Ignore q-values; "br;q=0" is not sent by real clients.
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
