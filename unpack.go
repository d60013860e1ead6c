// SPDX-License-Identifier: MIT

package cart

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"
)

// UnpackPath reads a CaRT artifact from inputPath and writes the decoded
// body to outputPath, implementing the path-mode unpack operation.
func UnpackPath(ctx context.Context, inputPath, outputPath string, opts UnpackOptions) (UnpackResult, error) {
	src, size, err := openPathSource(inputPath)
	if err != nil {
		return UnpackResult{}, err
	}
	defer func() { _ = src.Close() }()

	dst, err := openPathSink(outputPath, opts.SinkFileMode)
	if err != nil {
		return UnpackResult{}, err
	}
	defer func() { _ = dst.Close() }()

	return unpackCore(ctx, src, size, dst, opts)
}

// UnpackStream reads a CaRT artifact from src and writes the decoded body
// to dst, implementing the stream-mode unpack operation. Neither src nor
// dst is closed by UnpackStream. The whole payload is always read through
// before the footer region, even if src happens to implement io.Seeker.
func UnpackStream(ctx context.Context, src Source, dst Sink, opts UnpackOptions) (UnpackResult, error) {
	if src == nil {
		return UnpackResult{}, ErrNilSource
	}

	if dst == nil {
		return UnpackResult{}, ErrNilSink
	}

	return unpackCore(ctx, src, -1, dst, opts)
}

// UnpackBuffer unpacks artifact entirely in memory, implementing
// unpack_data.
func UnpackBuffer(ctx context.Context, artifact []byte, opts UnpackOptions) ([]byte, UnpackResult, error) {
	sink := newBufferSink()

	result, err := unpackCore(ctx, newBufferSource(artifact), int64(len(artifact)), sink, opts)
	if err != nil {
		return nil, UnpackResult{}, err
	}

	return sink.Bytes(), result, nil
}

// unpackCore implements the unpack pipeline (spec §4.4): it parses the fixed
// header and decrypts header-meta, then decodes the payload through
// cipher-then-decompressor into dst and decrypts footer-meta. When size is
// known and src supports seeking, footer-meta is located and decrypted
// first by seeking to the fixed footer, and src is then rewound to the
// payload; otherwise the payload is decoded in a single forward pass and
// the remainder after the exhausted decompressor is read as the footer
// region (spec §4.2 "Footer location").
func unpackCore(ctx context.Context, src Source, size int64, dst io.Writer, opts UnpackOptions) (UnpackResult, error) {
	start := time.Now()
	opts.applyDefaults()

	var headerBuf [headerSize]byte
	if _, err := io.ReadFull(src, headerBuf[:]); err != nil {
		return UnpackResult{}, classify(fmt.Errorf("%w: %w", ErrTruncatedArtifact, err), KindProcessing)
	}

	h, err := decodeHeader(headerBuf[:])
	if err != nil {
		return UnpackResult{}, err
	}

	effKey, err := effectiveKey(h.activeKey, opts.Key)
	if err != nil {
		return UnpackResult{}, err
	}

	var headerMeta []byte
	if h.optionalHeaderLength > 0 {
		headerMeta, err = decryptBlock(src, effKey, int(h.optionalHeaderLength))
		if err != nil {
			return UnpackResult{}, err
		}
	}

	seekable, isSeekable := asSeekable(src)
	if isSeekable && size >= 0 {
		bodyWritten, footerMeta, err := unpackSeekable(ctx, seekable, size, h, headerMeta, effKey, dst, opts)
		if err != nil {
			return UnpackResult{}, err
		}

		return UnpackResult{
			HeaderMeta:  headerMeta,
			FooterMeta:  footerMeta,
			BodyWritten: bodyWritten,
			Duration:    time.Since(start),
		}, nil
	}

	bodyWritten, footerMeta, err := unpackStreaming(ctx, src, int64(headerSize)+int64(h.optionalHeaderLength), effKey, dst, opts)
	if err != nil {
		return UnpackResult{}, err
	}

	return UnpackResult{
		HeaderMeta:  headerMeta,
		FooterMeta:  footerMeta,
		BodyWritten: bodyWritten,
		Duration:    time.Since(start),
	}, nil
}

// unpackSeekable handles path and buffer modes: the footer is located by
// seeking directly, grounded on spec §4.2's "seeks to len - 32" rule.
func unpackSeekable(
	ctx context.Context,
	src seekableSource,
	size int64,
	h header,
	headerMeta []byte,
	effKey []byte,
	dst io.Writer,
	opts UnpackOptions,
) (int64, []byte, error) {
	if size < footerSize {
		return 0, nil, ErrTruncatedArtifact
	}

	if _, err := src.Seek(size-footerSize, io.SeekStart); err != nil {
		return 0, nil, classify(fmt.Errorf("seek to footer: %w", err), KindProcessing)
	}

	var footerBuf [footerSize]byte
	if _, err := io.ReadFull(src, footerBuf[:]); err != nil {
		return 0, nil, classify(fmt.Errorf("%w: %w", ErrTruncatedArtifact, err), KindProcessing)
	}

	f, err := decodeFooter(footerBuf[:])
	if err != nil {
		return 0, nil, err
	}

	if err := validateFooterBounds(f, size); err != nil {
		return 0, nil, err
	}

	if _, err := src.Seek(int64(f.optionalFooterOffset), io.SeekStart); err != nil {
		return 0, nil, classify(fmt.Errorf("seek to footer-meta: %w", err), KindProcessing)
	}

	footerMeta, err := decryptBlock(src, effKey, int(f.optionalFooterLength))
	if err != nil {
		return 0, nil, err
	}

	payloadStart := int64(headerSize) + int64(h.optionalHeaderLength)
	if _, err := src.Seek(payloadStart, io.SeekStart); err != nil {
		return 0, nil, classify(fmt.Errorf("seek to payload: %w", err), KindProcessing)
	}

	payloadLen := int64(f.optionalFooterOffset) - payloadStart
	if payloadLen < 0 {
		return 0, nil, ErrFooterBounds
	}

	written, _, err := decodePayload(ctx, io.LimitReader(src, payloadLen), effKey, dst, opts)
	if err != nil {
		return 0, nil, err
	}

	return written, footerMeta, nil
}

// unpackStreaming handles stream-mode sources that cannot seek. The payload
// is decoded from a single bufio.Reader owned here, so any bytes it
// prefetches past the end of the DEFLATE stream stay recoverable: once the
// decompressor is drained, whatever is left buffered plus whatever remains
// unread on src is read in full and split into footer-meta and the fixed
// 32-byte footer, grounded on spec §4.4 step 4's "exhausting the
// decompressor, then reading what remains minus 32 bytes".
func unpackStreaming(
	ctx context.Context,
	src Source,
	payloadStart int64,
	effKey []byte,
	dst io.Writer,
	opts UnpackOptions,
) (int64, []byte, error) {
	bufSrc := bufio.NewReader(src)

	written, payloadCipherLen, err := decodePayload(ctx, bufSrc, effKey, dst, opts)
	if err != nil {
		return 0, nil, err
	}

	remainder, err := io.ReadAll(bufSrc)
	if err != nil {
		return 0, nil, classify(fmt.Errorf("read footer region: %w", err), KindProcessing)
	}

	if len(remainder) < footerSize {
		return 0, nil, ErrTruncatedArtifact
	}

	footerMetaLen := len(remainder) - footerSize
	footerMetaCipher := remainder[:footerMetaLen]
	footerFixed := remainder[footerMetaLen:]

	f, err := decodeFooter(footerFixed)
	if err != nil {
		return 0, nil, err
	}

	artifactLength := payloadStart + payloadCipherLen + int64(footerMetaLen) + footerSize
	if err := validateFooterBounds(f, artifactLength); err != nil {
		return 0, nil, err
	}

	footerMeta, err := decryptBlock(bytes.NewReader(footerMetaCipher), effKey, footerMetaLen)
	if err != nil {
		return 0, nil, err
	}

	return written, footerMeta, nil
}

// decodePayload re-seeds a fresh cipher over the payload region, pipes the
// plaintext ciphertext through the zlib decompressor, and copies decoded
// chunks to dst in bounded-size steps, checking ctx between chunks. It
// returns the decoded byte count alongside the number of ciphertext bytes
// the decompressor actually consumed from cipherText.
func decodePayload(ctx context.Context, cipherText io.Reader, effKey []byte, dst io.Writer, opts UnpackOptions) (int64, int64, error) {
	c, err := newBlockCipher(effKey)
	if err != nil {
		return 0, 0, err
	}

	plain := newCipherReader(cipherText, c)

	zr, err := newDecompressor(plain)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = zr.Close() }()

	buf := getChunkBuffer(opts.ChunkSize)
	defer putChunkBuffer(buf)

	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, plain.consumed, classify(fmt.Errorf("unpack canceled: %w", err), KindProcessing)
		}

		n, readErr := zr.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, plain.consumed, classify(fmt.Errorf("write body: %w", err), KindProcessing)
			}

			written += int64(n)
			if opts.OnProgress != nil {
				opts.OnProgress(written)
			}
		}

		if readErr == io.EOF {
			break
		}

		if readErr != nil {
			return written, plain.consumed, classify(fmt.Errorf("%w: %w", ErrDecompression, readErr), KindProcessing)
		}
	}

	return written, plain.consumed, nil
}
