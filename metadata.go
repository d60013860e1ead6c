// SPDX-License-Identifier: MIT

package cart

import (
	"context"
	"fmt"
	"io"
)

// GetMetadataOnlyPath reads header- and footer-metadata from the CaRT
// artifact at path without materializing the payload, implementing
// get_metadata_only in path mode.
func GetMetadataOnlyPath(path string, opts UnpackOptions) (MetadataResult, error) {
	src, size, err := openPathSource(path)
	if err != nil {
		return MetadataResult{}, err
	}
	defer func() { _ = src.Close() }()

	return getMetadataOnlyCore(context.Background(), src, size, opts)
}

// GetMetadataOnlyBuffer reads header- and footer-metadata from an
// in-memory CaRT artifact without materializing the payload.
func GetMetadataOnlyBuffer(artifact []byte, opts UnpackOptions) (MetadataResult, error) {
	return getMetadataOnlyCore(context.Background(), newBufferSource(artifact), int64(len(artifact)), opts)
}

// GetMetadataOnlyStream reads header- and footer-metadata from src. The
// entire payload is read, decompressed and discarded to reach the footer
// region, whether or not src supports seeking.
func GetMetadataOnlyStream(src Source, opts UnpackOptions) (MetadataResult, error) {
	if src == nil {
		return MetadataResult{}, ErrNilSource
	}

	return getMetadataOnlyCore(context.Background(), src, -1, opts)
}

// getMetadataOnlyCore parses the fixed header, decrypts header-meta, then
// locates footer-meta either by a direct seek (path/buffer) or by
// discarding the decompressed payload (stream), grounded on the teacher's
// fast metadata-only helpers (ReadHeaders / ReadHeadersFromReaderAt), which
// likewise read only the index region and skip entry payloads entirely.
func getMetadataOnlyCore(ctx context.Context, src Source, size int64, opts UnpackOptions) (MetadataResult, error) {
	opts.applyDefaults()

	var headerBuf [headerSize]byte
	if _, err := io.ReadFull(src, headerBuf[:]); err != nil {
		return MetadataResult{}, classify(fmt.Errorf("%w: %w", ErrTruncatedArtifact, err), KindProcessing)
	}

	h, err := decodeHeader(headerBuf[:])
	if err != nil {
		return MetadataResult{}, err
	}

	effKey, err := effectiveKey(h.activeKey, opts.Key)
	if err != nil {
		return MetadataResult{}, err
	}

	var headerMeta []byte
	if h.optionalHeaderLength > 0 {
		headerMeta, err = decryptBlock(src, effKey, int(h.optionalHeaderLength))
		if err != nil {
			return MetadataResult{}, err
		}
	}

	seekable, isSeekable := asSeekable(src)
	if isSeekable && size >= 0 {
		footerMeta, err := footerMetaBySeek(seekable, size, effKey)
		if err != nil {
			return MetadataResult{}, err
		}

		return MetadataResult{HeaderMeta: headerMeta, FooterMeta: footerMeta}, nil
	}

	_, footerMeta, err := unpackStreaming(ctx, src, int64(headerSize)+int64(h.optionalHeaderLength), effKey, io.Discard, opts)
	if err != nil {
		return MetadataResult{}, err
	}

	return MetadataResult{HeaderMeta: headerMeta, FooterMeta: footerMeta}, nil
}

// footerMetaBySeek jumps straight to the footer region without touching the
// payload at all (spec §4.2: "seeks to len - 32 ... reads the optional
// footer block at optional_footer_offset").
func footerMetaBySeek(src seekableSource, size int64, effKey []byte) ([]byte, error) {
	if size < footerSize {
		return nil, ErrTruncatedArtifact
	}

	if _, err := src.Seek(size-footerSize, io.SeekStart); err != nil {
		return nil, classify(fmt.Errorf("seek to footer: %w", err), KindProcessing)
	}

	var footerBuf [footerSize]byte
	if _, err := io.ReadFull(src, footerBuf[:]); err != nil {
		return nil, classify(fmt.Errorf("%w: %w", ErrTruncatedArtifact, err), KindProcessing)
	}

	f, err := decodeFooter(footerBuf[:])
	if err != nil {
		return nil, err
	}

	if err := validateFooterBounds(f, size); err != nil {
		return nil, err
	}

	if _, err := src.Seek(int64(f.optionalFooterOffset), io.SeekStart); err != nil {
		return nil, classify(fmt.Errorf("seek to footer-meta: %w", err), KindProcessing)
	}

	return decryptBlock(src, effKey, int(f.optionalFooterLength))
}
