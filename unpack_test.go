// SPDX-License-Identifier: MIT

package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

// readOnly hides io.Seeker from a bytes.Reader so tests can exercise the
// non-seekable streaming path through UnpackStream.
type readOnly struct {
	r *bytes.Reader
}

func (s *readOnly) Read(p []byte) (int, error) { return s.r.Read(p) }

func TestPackUnpackBufferRoundTrip(t *testing.T) {
	t.Parallel()

	body := []byte("the body of the sample, byte for byte")
	headerMeta := json.RawMessage(`{"hello":"world"}`)

	artifact, _, err := PackBuffer(context.Background(), body, PackOptions{HeaderMeta: headerMeta})
	if err != nil {
		t.Fatalf("PackBuffer: %v", err)
	}

	gotBody, res, err := UnpackBuffer(context.Background(), artifact, UnpackOptions{})
	if err != nil {
		t.Fatalf("UnpackBuffer: %v", err)
	}

	if !bytes.Equal(gotBody, body) {
		t.Fatalf("unpacked body=%q, want %q", gotBody, body)
	}

	if res.BodyWritten != int64(len(body)) {
		t.Fatalf("BodyWritten=%d, want %d", res.BodyWritten, len(body))
	}

	var gotHeaderMeta, wantHeaderMeta map[string]any
	if err := json.Unmarshal(res.HeaderMeta, &gotHeaderMeta); err != nil {
		t.Fatalf("unmarshal got header meta: %v", err)
	}
	if err := json.Unmarshal(headerMeta, &wantHeaderMeta); err != nil {
		t.Fatalf("unmarshal want header meta: %v", err)
	}

	if gotHeaderMeta["hello"] != wantHeaderMeta["hello"] {
		t.Fatalf("header meta mismatch: got %v, want %v", gotHeaderMeta, wantHeaderMeta)
	}
}

func TestPackStreamUnpackStreamRoundTrip(t *testing.T) {
	t.Parallel()

	body := bytes.Repeat([]byte("stream chunk "), 5000)

	var artifact bytes.Buffer
	if _, err := PackStream(context.Background(), bytes.NewReader(body), &artifact, PackOptions{}); err != nil {
		t.Fatalf("PackStream: %v", err)
	}

	// Wrap the artifact in a reader that hides io.Seeker, forcing the
	// streaming footer-location path (spec §4.2).
	var out bytes.Buffer

	res, err := UnpackStream(context.Background(), &readOnly{r: bytes.NewReader(artifact.Bytes())}, &out, UnpackOptions{})
	if err != nil {
		t.Fatalf("UnpackStream: %v", err)
	}

	if !bytes.Equal(out.Bytes(), body) {
		t.Fatal("streamed unpack body mismatch")
	}

	if res.BodyWritten != int64(len(body)) {
		t.Fatalf("BodyWritten=%d, want %d", res.BodyWritten, len(body))
	}
}

func TestUnpackRejectsBadMagic(t *testing.T) {
	t.Parallel()

	_, _, err := UnpackBuffer(context.Background(), []byte("not a cart artifact at all, just junk bytes padded out"), UnpackOptions{})
	if !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("error=%v, want ErrInvalidMagic", err)
	}
}

func TestUnpackRejectsTruncatedArtifact(t *testing.T) {
	t.Parallel()

	artifact, _, err := PackBuffer(context.Background(), []byte("full body"), PackOptions{})
	if err != nil {
		t.Fatalf("PackBuffer: %v", err)
	}

	truncated := artifact[:len(artifact)-5]

	_, _, err = UnpackBuffer(context.Background(), truncated, UnpackOptions{})
	if err == nil {
		t.Fatal("expected an error unpacking a truncated artifact")
	}

	if Kind(err) != KindProcessing {
		t.Fatalf("Kind(err)=%d, want KindProcessing", Kind(err))
	}
}

func TestUnpackWithPrivateKey(t *testing.T) {
	t.Parallel()

	key := []byte("0123456789abcdef")
	body := []byte("secret body")

	artifact, _, err := PackBuffer(context.Background(), body, PackOptions{Key: key})
	if err != nil {
		t.Fatalf("PackBuffer: %v", err)
	}

	h, err := decodeHeader(artifact[:headerSize])
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}

	if !isZeroKey(h.activeKey) {
		t.Fatal("active key field must be zero-filled when a private key is used")
	}

	if _, _, err := UnpackBuffer(context.Background(), artifact, UnpackOptions{}); !errors.Is(err, ErrMissingPrivateKey) {
		t.Fatalf("unpack without key error=%v, want ErrMissingPrivateKey", err)
	}

	gotBody, _, err := UnpackBuffer(context.Background(), artifact, UnpackOptions{Key: key})
	if err != nil {
		t.Fatalf("UnpackBuffer with key: %v", err)
	}

	if !bytes.Equal(gotBody, body) {
		t.Fatalf("unpacked body=%q, want %q", gotBody, body)
	}
}

func TestUnpackOnProgressCallback(t *testing.T) {
	t.Parallel()

	body := bytes.Repeat([]byte("x"), 5*DefaultChunkSize)

	artifact, _, err := PackBuffer(context.Background(), body, PackOptions{})
	if err != nil {
		t.Fatalf("PackBuffer: %v", err)
	}

	var lastReported int64

	_, _, err = UnpackBuffer(context.Background(), artifact, UnpackOptions{
		OnProgress: func(n int64) { lastReported = n },
	})
	if err != nil {
		t.Fatalf("UnpackBuffer: %v", err)
	}

	if lastReported != int64(len(body)) {
		t.Fatalf("lastReported=%d, want %d", lastReported, len(body))
	}
}
