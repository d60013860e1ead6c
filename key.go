// SPDX-License-Identifier: MIT

package cart

// keySize is the fixed width of both the active and the effective RC4 key.
const keySize = 16

// DefaultPublicKey is the fixed key written into the header's active-key
// field whenever the caller supplies no key of their own.
var DefaultPublicKey = [keySize]byte{
	3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8, 9, 7, 9, 2,
}

// isZeroKey reports whether key is all-zero.
func isZeroKey(key [keySize]byte) bool {
	return key == [keySize]byte{}
}

// activeKeyFor returns the 16-byte value written verbatim into the fixed
// header: the default public key when the caller supplies none, or 16
// zero bytes when the caller supplies a private key.
func activeKeyFor(callerKey []byte) [keySize]byte {
	if len(callerKey) == 0 {
		return DefaultPublicKey
	}

	return [keySize]byte{}
}

// effectiveKey resolves the key actually fed to the cipher: the active key
// if it is nonzero, otherwise the caller-supplied private key. A zero
// active key with no caller key is a processing error (spec §4.2).
func effectiveKey(active [keySize]byte, callerKey []byte) ([]byte, error) {
	if !isZeroKey(active) {
		out := make([]byte, keySize)
		copy(out, active[:])
		return out, nil
	}

	if len(callerKey) == 0 {
		return nil, ErrMissingPrivateKey
	}

	return callerKey, nil
}
