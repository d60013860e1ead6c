// SPDX-License-Identifier: MIT

package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/imdario/mergo"
)

// countingWriter forwards writes unchanged while tallying bytes written,
// used to recover the payload ciphertext length needed for the footer's
// optional-footer-offset field without buffering the payload.
type countingWriter struct {
	dst io.Writer
	n   int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.n += int64(n)

	return n, err
}

// PackPath reads body from inputPath and writes a complete CaRT artifact to
// outputPath, implementing the path-mode pack_default / pack_data
// operations (spec §4.1).
func PackPath(ctx context.Context, inputPath, outputPath string, opts PackOptions) (PackResult, error) {
	// Reject bad metadata before the output file is created.
	if err := validateMetadataJSON(opts.HeaderMeta); err != nil {
		return PackResult{}, err
	}

	if err := validateMetadataJSON(opts.FooterMeta); err != nil {
		return PackResult{}, err
	}

	src, _, err := openPathSource(inputPath)
	if err != nil {
		return PackResult{}, err
	}
	defer func() { _ = src.Close() }()

	dst, err := openPathSink(outputPath, opts.SinkFileMode)
	if err != nil {
		return PackResult{}, err
	}
	defer func() { _ = dst.Close() }()

	return packCore(ctx, src, dst, opts)
}

// PackStream reads body from src and writes a complete CaRT artifact to
// dst, implementing the stream-mode pack operations. Neither src nor dst is
// closed by PackStream.
func PackStream(ctx context.Context, src Source, dst Sink, opts PackOptions) (PackResult, error) {
	if src == nil {
		return PackResult{}, ErrNilSource
	}

	if dst == nil {
		return PackResult{}, ErrNilSink
	}

	return packCore(ctx, src, dst, opts)
}

// PackBuffer packs body entirely in memory, implementing pack_data.
func PackBuffer(ctx context.Context, body []byte, opts PackOptions) ([]byte, PackResult, error) {
	sink := newBufferSink()

	result, err := packCore(ctx, newBufferSource(body), sink, opts)
	if err != nil {
		return nil, PackResult{}, err
	}

	return sink.Bytes(), result, nil
}

// packCore implements the pack pipeline (spec §4.3): a single forward pass
// over the plaintext body, grounded on the teacher's rewriteArchive
// (deterministic single pass). Nothing is patched afterwards: the fixed
// footer is written once, at the end, after the payload and footer-meta
// lengths that its offset/length fields need are known.
func packCore(ctx context.Context, src io.Reader, dst io.Writer, opts PackOptions) (PackResult, error) {
	start := time.Now()

	if err := validateMetadataJSON(opts.HeaderMeta); err != nil {
		return PackResult{}, err
	}

	if err := validateMetadataJSON(opts.FooterMeta); err != nil {
		return PackResult{}, err
	}

	opts.applyDefaults()

	headerMeta, err := compactJSON(opts.HeaderMeta)
	if err != nil {
		return PackResult{}, err
	}

	active := activeKeyFor(opts.Key)

	effKey, err := effectiveKey(active, opts.Key)
	if err != nil {
		return PackResult{}, err
	}

	h := header{version: formatVersion, activeKey: active, optionalHeaderLength: uint64(len(headerMeta))}
	if _, err := dst.Write(h.encode()); err != nil {
		return PackResult{}, classify(fmt.Errorf("write header: %w", err), KindProcessing)
	}

	if len(headerMeta) > 0 {
		if err := encryptBlock(dst, effKey, headerMeta); err != nil {
			return PackResult{}, err
		}
	}

	payloadCounter := &countingWriter{dst: dst}

	payloadCipher, err := newBlockCipher(effKey)
	if err != nil {
		return PackResult{}, err
	}

	cw := newCipherWriter(payloadCounter, payloadCipher)
	zw := newCompressor(cw)
	digesters := NewDigesterSet(opts.Digesters)

	buf := getChunkBuffer(opts.ChunkSize)
	defer putChunkBuffer(buf)

	var processed int64

	for {
		if err := ctx.Err(); err != nil {
			return PackResult{}, classify(fmt.Errorf("pack canceled: %w", err), KindProcessing)
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			_, _ = digesters.Write(chunk)

			if _, err := zw.Write(chunk); err != nil {
				return PackResult{}, classify(fmt.Errorf("compress chunk: %w", err), KindProcessing)
			}

			processed += int64(n)
			if opts.OnProgress != nil {
				opts.OnProgress(processed)
			}
		}

		if readErr == io.EOF {
			break
		}

		if readErr != nil {
			return PackResult{}, classify(fmt.Errorf("read body: %w", readErr), KindProcessing)
		}
	}

	if err := zw.Close(); err != nil {
		return PackResult{}, classify(fmt.Errorf("flush compressor: %w", err), KindProcessing)
	}

	footerMeta, err := buildFooterMeta(digesters, opts.FooterMeta)
	if err != nil {
		return PackResult{}, err
	}

	footerKey, err := newBlockCipher(effKey)
	if err != nil {
		return PackResult{}, err
	}

	footerOffset := uint64(headerSize) + uint64(len(headerMeta)) + uint64(payloadCounter.n)

	footerCipherText := make([]byte, len(footerMeta))
	footerKey.XORKeyStream(footerCipherText, footerMeta)

	if _, err := dst.Write(footerCipherText); err != nil {
		return PackResult{}, classify(fmt.Errorf("write footer-meta: %w", err), KindProcessing)
	}

	f := footer{optionalFooterOffset: footerOffset, optionalFooterLength: uint64(len(footerMeta))}
	if _, err := dst.Write(f.encode()); err != nil {
		return PackResult{}, classify(fmt.Errorf("write footer: %w", err), KindProcessing)
	}

	total := int64(footerOffset) + int64(len(footerMeta)) + footerSize

	return PackResult{BytesWritten: total, Duration: time.Since(start)}, nil
}

// buildFooterMeta collects digester output and merges caller-supplied
// footer metadata on top, caller keys overriding computed ones on
// collision (spec §4.3 step 4, resolved per DESIGN.md's open-question
// decision), then serializes the result compactly. encoding/json sorts map
// keys alphabetically, so repeated packs of the same body produce
// byte-identical footer-meta bytes.
func buildFooterMeta(digesters *DigesterSet, callerFooterMeta json.RawMessage) ([]byte, error) {
	computed := digesters.Finalize()

	if len(callerFooterMeta) > 0 {
		var caller map[string]any
		if err := json.Unmarshal(callerFooterMeta, &caller); err != nil {
			return nil, classify(err, KindBadJSON)
		}

		if err := mergo.Merge(&computed, caller, mergo.WithOverride); err != nil {
			return nil, classify(fmt.Errorf("merge footer metadata: %w", err), KindProcessing)
		}
	}

	out, err := json.Marshal(computed)
	if err != nil {
		return nil, classify(err, KindBadJSON)
	}

	return out, nil
}
