// SPDX-License-Identifier: MIT

package cart

import (
	"bytes"
	"io"
	"testing"
)

func TestCompressorDecompressorRoundTrip(t *testing.T) {
	t.Parallel()

	plaintext := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 2000)

	var compressed bytes.Buffer

	zw := newCompressor(&compressed)
	for off := 0; off < len(plaintext); off += 4096 {
		end := off + 4096
		if end > len(plaintext) {
			end = len(plaintext)
		}

		if _, err := zw.Write(plaintext[off:end]); err != nil {
			t.Fatalf("compressor.Write: %v", err)
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("compressor.Close: %v", err)
	}

	if compressed.Len() >= len(plaintext) {
		t.Fatal("highly repetitive input did not compress smaller")
	}

	zr, err := newDecompressor(bytes.NewReader(compressed.Bytes()))
	if err != nil {
		t.Fatalf("newDecompressor: %v", err)
	}
	defer func() { _ = zr.Close() }()

	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read decompressed: %v", err)
	}

	if !bytes.Equal(got, plaintext) {
		t.Fatal("decompressed output does not match original plaintext")
	}
}

func TestCompressorEmptyInput(t *testing.T) {
	t.Parallel()

	var compressed bytes.Buffer

	zw := newCompressor(&compressed)
	if err := zw.Close(); err != nil {
		t.Fatalf("compressor.Close on empty input: %v", err)
	}

	zr, err := newDecompressor(bytes.NewReader(compressed.Bytes()))
	if err != nil {
		t.Fatalf("newDecompressor: %v", err)
	}
	defer func() { _ = zr.Close() }()

	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read decompressed: %v", err)
	}

	if len(got) != 0 {
		t.Fatalf("decompressed empty input produced %d bytes", len(got))
	}
}

func TestNewDecompressorRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := newDecompressor(bytes.NewReader([]byte("not a zlib stream")))
	if err == nil {
		t.Fatal("expected an error decoding garbage as zlib")
	}

	if Kind(err) != KindProcessing {
		t.Fatalf("Kind(err)=%d, want KindProcessing", Kind(err))
	}
}
