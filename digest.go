// SPDX-License-Identifier: MIT

package cart

import (
	"crypto/md5"  //nolint:gosec // Digest set is advisory metadata, not an integrity control.
	"crypto/sha1" //nolint:gosec // Digest set is advisory metadata, not an integrity control.
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// Digest algorithm names, matching the conventional footer-metadata keys.
const (
	DigestMD5    = "md5"
	DigestSHA1   = "sha1"
	DigestSHA256 = "sha256"
	digestLength = "length"
)

// DefaultDigesters is the default algorithm set: sha256 is always
// available (spec §4.7), md5 and sha1 are enabled by default behind the
// feature gates spec §4.7 describes as compile-time but which this
// package simply exposes as an opt-out set.
var DefaultDigesters = []string{DigestMD5, DigestSHA1, DigestSHA256}

// DigesterSet incrementally hashes a plaintext body under a configurable
// set of algorithms plus a running byte counter, and emits lowercase hex
// digests on Finalize. It implements io.Writer so it tees transparently
// into the pack pipeline (spec §4.3 step 2), generalizing the multi-hash
// composition idiom the teacher used for its fixed hash1/hash2/hash3 set.
type DigesterSet struct {
	hashes map[string]hash.Hash
	order  []string
	length int64
}

// NewDigesterSet builds a digester set for the named algorithms. Unknown
// names are ignored. sha256 is always included regardless of algos.
func NewDigesterSet(algos []string) *DigesterSet {
	ds := &DigesterSet{hashes: make(map[string]hash.Hash, len(algos)+1)}

	seen := make(map[string]bool, len(algos)+1)
	add := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true

		switch name {
		case DigestMD5:
			ds.hashes[name] = md5.New() //nolint:gosec // advisory only, see package doc
		case DigestSHA1:
			ds.hashes[name] = sha1.New() //nolint:gosec // advisory only, see package doc
		case DigestSHA256:
			ds.hashes[name] = sha256.New()
		default:
			return
		}

		ds.order = append(ds.order, name)
	}

	for _, name := range algos {
		add(name)
	}
	add(DigestSHA256)

	return ds
}

// Write feeds p to every configured hash and to the running byte counter.
// DigesterSet never returns an error; hash.Hash.Write never fails.
func (ds *DigesterSet) Write(p []byte) (int, error) {
	for _, name := range ds.order {
		_, _ = ds.hashes[name].Write(p)
	}

	ds.length += int64(len(p))

	return len(p), nil
}

// Finalize returns the lowercase hex digest for every configured algorithm
// plus the decimal byte length under the conventional keys (spec §4.3
// step 4: md5, sha1, sha256, length).
func (ds *DigesterSet) Finalize() map[string]any {
	out := make(map[string]any, len(ds.order)+1)
	for _, name := range ds.order {
		out[name] = hex.EncodeToString(ds.hashes[name].Sum(nil))
	}

	out[digestLength] = ds.length

	return out
}
