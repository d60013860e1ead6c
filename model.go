// SPDX-License-Identifier: MIT

package cart

import (
	"encoding/json"
	"sync"
	"time"
)

// DefaultChunkSize is the per-chunk ceiling the forward pass uses when
// streaming a body through the digester/compressor/cipher chain (spec §5:
// "bounded by a fixed per-chunk ceiling, e.g. 64 KiB").
const DefaultChunkSize = 64 * 1024

// chunkBufferPool reuses default-sized copy buffers across pack/unpack
// calls, grounded on the teacher's defaultPackCopyBufferPool. Only buffers
// at DefaultChunkSize are pooled; a caller-configured ChunkSize falls back
// to a plain allocation, same as the teacher's fixed-size array pool.
var chunkBufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, DefaultChunkSize)
		return &buf
	},
}

// getChunkBuffer returns a buffer of exactly size bytes, reused from the
// pool when size is DefaultChunkSize.
func getChunkBuffer(size int) []byte {
	if size != DefaultChunkSize {
		return make([]byte, size)
	}

	buf := chunkBufferPool.Get().(*[]byte) //nolint:forcetypeassert // pool contains only *[]byte

	return *buf
}

// putChunkBuffer returns buf to the pool if it was pool-sized.
func putChunkBuffer(buf []byte) {
	if cap(buf) != DefaultChunkSize {
		return
	}

	buf = buf[:DefaultChunkSize]
	chunkBufferPool.Put(&buf)
}

// OnProgress reports cumulative plaintext bytes processed so far during a
// single-pass pack or unpack. It is called synchronously from the forward
// pass and must not block; a supplement adapted from the teacher's
// PackEntryProgress/OnEntryDone shape, generalized from a per-entry
// callback to a per-chunk byte counter because a CaRT artifact has one
// body, not an entry table.
type OnProgress func(bytesProcessed int64)

// PackOptions configures a pack operation.
type PackOptions struct {
	// HeaderMeta is the caller-supplied header-metadata JSON object,
	// serialized compactly and encrypted immediately after the fixed
	// header. Nil or empty means no header metadata.
	HeaderMeta json.RawMessage
	// FooterMeta is caller-supplied footer metadata, merged with the
	// auto-computed digests: caller keys override computed ones on
	// collision.
	FooterMeta json.RawMessage
	// Key is the caller's private key. Leave empty to pack under the
	// default public key.
	Key []byte
	// Digesters selects the hash algorithms recorded in footer metadata.
	// Empty means DefaultDigesters.
	Digesters []string
	// ChunkSize overrides DefaultChunkSize for the forward pass.
	ChunkSize int
	// OnProgress, if set, is invoked after each chunk is processed.
	OnProgress OnProgress
	// SinkFileMode controls how PackPath opens its destination file.
	SinkFileMode SinkFileMode
}

// applyDefaults fills zero-valued pack options with spec-correct defaults.
func (opts *PackOptions) applyDefaults() {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}

	if len(opts.Digesters) == 0 {
		opts.Digesters = DefaultDigesters
	}
}

// UnpackOptions configures an unpack operation.
type UnpackOptions struct {
	// Key is the caller's private key, required only when the artifact's
	// active key field is zero-filled.
	Key []byte
	// ChunkSize overrides DefaultChunkSize for the forward pass.
	ChunkSize int
	// OnProgress, if set, is invoked after each chunk is processed.
	OnProgress OnProgress
	// SinkFileMode controls how UnpackPath opens its destination file.
	SinkFileMode SinkFileMode
}

// applyDefaults fills zero-valued unpack options with spec-correct
// defaults.
func (opts *UnpackOptions) applyDefaults() {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
}

// PackResult reports the outcome of a successful pack operation.
type PackResult struct {
	// BytesWritten is the total size of the produced artifact.
	BytesWritten int64
	// Duration is end-to-end pack pipeline duration.
	Duration time.Duration
}

// UnpackResult reports the outcome of a successful unpack operation,
// including the two metadata buffers owned by the caller.
type UnpackResult struct {
	// HeaderMeta is the decrypted, compactly-serialized header-metadata
	// JSON object. Empty when the artifact carried none.
	HeaderMeta []byte
	// FooterMeta is the decrypted, compactly-serialized footer-metadata
	// JSON object.
	FooterMeta []byte
	// BodyWritten is the total plaintext body bytes written to the sink.
	BodyWritten int64
	// Duration is end-to-end unpack pipeline duration.
	Duration time.Duration
}

// MetadataResult is the outcome of a get_metadata_only operation: both
// metadata buffers, with the payload never materialized.
type MetadataResult struct {
	HeaderMeta []byte
	FooterMeta []byte
}

// validateMetadataJSON enforces that header/footer metadata, when supplied,
// is a top-level JSON object — arrays and scalars are rejected as a
// bad-JSON argument error.
func validateMetadataJSON(raw []byte) error {
	if len(raw) == 0 {
		return nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return classify(err, KindBadJSON)
	}

	if _, ok := v.(map[string]any); !ok {
		return ErrBadMetadataJSON
	}

	return nil
}

// compactJSON re-serializes raw compactly (no inter-token whitespace), as
// the fixed header/footer framing requires for both metadata blocks. raw
// must already be valid JSON; compactJSON is used only after
// validateMetadataJSON has run, or on data this package produced itself via
// json.Marshal.
func compactJSON(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, classify(err, KindBadJSON)
	}

	out, err := json.Marshal(v)
	if err != nil {
		return nil, classify(err, KindBadJSON)
	}

	return out, nil
}
