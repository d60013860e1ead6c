// SPDX-License-Identifier: MIT

package cart

import (
	"crypto/rc4"
	"fmt"
	"io"
)

// newBlockCipher seeds a fresh RC4 keystream from key. Each of the three
// encrypted blocks (header-meta, payload, footer-meta) gets its own
// independently-seeded cipher — keystream state is never shared across
// blocks (spec §4.5, §4.4 step 5).
func newBlockCipher(key []byte) (*rc4.Cipher, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, classify(fmt.Errorf("rc4 key setup: %w", err), KindProcessing)
	}

	return c, nil
}

// cipherReader wraps an io.Reader and XOR-decrypts each chunk read through
// it in place, grounded on the rc4Reader idiom (decrypt-on-read wrapper).
//
// It also implements io.ByteReader, reporting how many bytes have passed
// through it via consumed. This matters for compress/zlib: a reader that
// does not already satisfy io.ByteReader gets silently wrapped in zlib's
// own 4 KiB bufio.Reader, which over-reads past the end of the DEFLATE
// stream and swallows whatever follows (here, the footer region) into a
// buffer the caller can never get back. Exposing ReadByte keeps zlib
// reading directly from us, one byte at a time, so it only ever consumes
// exactly the compressed bytes it needs.
type cipherReader struct {
	cipher   *rc4.Cipher
	src      io.Reader
	consumed int64
}

func newCipherReader(src io.Reader, cipher *rc4.Cipher) *cipherReader {
	return &cipherReader{cipher: cipher, src: src}
}

func (r *cipherReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if n > 0 {
		r.cipher.XORKeyStream(p[:n], p[:n])
		r.consumed += int64(n)
	}

	return n, err
}

func (r *cipherReader) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r.src, buf[:]); err != nil {
		return 0, err
	}

	r.cipher.XORKeyStream(buf[:], buf[:])
	r.consumed++

	return buf[0], nil
}

// cipherWriter wraps an io.Writer and XOR-encrypts each chunk written
// through it before forwarding, grounded on the rc4Writer idiom.
type cipherWriter struct {
	cipher *rc4.Cipher
	dst    io.Writer
	buf    []byte
}

func newCipherWriter(dst io.Writer, cipher *rc4.Cipher) *cipherWriter {
	return &cipherWriter{cipher: cipher, dst: dst}
}

func (w *cipherWriter) Write(p []byte) (int, error) {
	if cap(w.buf) < len(p) {
		w.buf = make([]byte, len(p))
	}
	buf := w.buf[:len(p)]

	w.cipher.XORKeyStream(buf, p)

	n, err := w.dst.Write(buf)
	if n > len(p) {
		n = len(p)
	}

	return n, err
}

// encryptBlock encrypts plaintext with a freshly-seeded cipher and writes
// the result to dst. Used for the header-meta and footer-meta blocks,
// which are small enough to handle as a single buffer.
func encryptBlock(dst io.Writer, key []byte, plaintext []byte) error {
	c, err := newBlockCipher(key)
	if err != nil {
		return err
	}

	out := make([]byte, len(plaintext))
	c.XORKeyStream(out, plaintext)

	if _, err := dst.Write(out); err != nil {
		return classify(fmt.Errorf("write encrypted block: %w", err), KindProcessing)
	}

	return nil
}

// decryptBlock reads exactly len(buf) encrypted bytes from src, decrypts
// them in place with a freshly-seeded cipher, and returns them.
func decryptBlock(src io.Reader, key []byte, size int) ([]byte, error) {
	buf := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(src, buf); err != nil {
			return nil, classify(fmt.Errorf("read encrypted block: %w", err), KindProcessing)
		}
	}

	c, err := newBlockCipher(key)
	if err != nil {
		return nil, err
	}

	c.XORKeyStream(buf, buf)

	return buf, nil
}
