// SPDX-License-Identifier: MIT

package cart

import (
	"compress/zlib"
	"fmt"
	"io"
)

// newCompressor wraps dst in a zlib writer at default level with the
// default window — the zlib-wrapped DEFLATE stream spec §4.6/§9 requires
// for bit-exact interoperability. Writes push incremental chunks through;
// Close performs the final flush. Because zlib.Writer forwards compressed
// bytes to dst as soon as it produces them, chaining
// cipherWriter -> compressor -> digest-tee implements the pack pipeline's
// "feed chunk, drain compressed bytes, encrypt, write" step (spec §4.3
// step 2) as ordinary layered io.Writer composition.
func newCompressor(dst io.Writer) *zlib.Writer {
	return zlib.NewWriter(dst)
}

// newDecompressor wraps src in a zlib reader. The returned ReadCloser's
// Close releases the zlib reader's internal state; it does not close src.
func newDecompressor(src io.Reader) (io.ReadCloser, error) {
	zr, err := zlib.NewReader(src)
	if err != nil {
		return nil, classify(fmt.Errorf("%w: %w", ErrDecompression, err), KindProcessing)
	}

	return zr, nil
}
