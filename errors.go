// SPDX-License-Identifier: MIT

package cart

import "errors"

// ErrorKind classifies an error into the stable taxonomy a caller (including
// a C-ABI shim built on top of this package) needs in order to map errors
// onto integer error codes.
type ErrorKind uint32

// Error kinds, stable for the life of the package.
const (
	// KindNone means no error.
	KindNone ErrorKind = 0
	// KindBadArgument means an unparseable or otherwise invalid string
	// argument.
	KindBadArgument ErrorKind = 1
	// KindInputOpenFailed means the input source could not be opened.
	KindInputOpenFailed ErrorKind = 2
	// KindOutputOpenFailed means the output sink could not be opened.
	KindOutputOpenFailed ErrorKind = 3
	// KindBadJSON means the supplied JSON argument is not a JSON object.
	KindBadJSON ErrorKind = 5
	// KindProcessing means a mid-stream I/O failure, truncation, bad
	// magic, unsupported version, decompression failure, or bad cipher
	// configuration.
	KindProcessing ErrorKind = 6
	// KindNullArgument means a required argument was nil.
	KindNullArgument ErrorKind = 7
)

// codecError pairs a sentinel error with its stable classification.
type codecError struct {
	err  error
	kind ErrorKind
}

func (e *codecError) Error() string { return e.err.Error() }
func (e *codecError) Unwrap() error { return e.err }

// Kind reports the stable error kind for err, or KindNone if err is nil.
// Errors produced outside this package classify as KindProcessing.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var ce *codecError
	if errors.As(err, &ce) {
		return ce.kind
	}

	return KindProcessing
}

// classify wraps a sentinel error with its stable kind.
func classify(err error, kind ErrorKind) error {
	return &codecError{err: err, kind: kind}
}

// Sentinel errors for CaRT operations. Use errors.Is in callers.
var (
	// ErrNilSource means the source is nil.
	ErrNilSource = classify(errors.New("source is nil"), KindNullArgument)
	// ErrNilSink means the sink is nil.
	ErrNilSink = classify(errors.New("sink is nil"), KindNullArgument)
	// ErrInputOpenFailed means the input path or handle could not be opened.
	ErrInputOpenFailed = classify(errors.New("input open failed"), KindInputOpenFailed)
	// ErrOutputOpenFailed means the output path or handle could not be opened.
	ErrOutputOpenFailed = classify(errors.New("output open failed"), KindOutputOpenFailed)
	// ErrBadStringArgument means a string argument is not valid UTF-8.
	ErrBadStringArgument = classify(errors.New("bad string argument"), KindBadArgument)
	// ErrBadMetadataJSON means the supplied metadata JSON is not a top-level object.
	ErrBadMetadataJSON = classify(errors.New("metadata JSON must be a top-level object"), KindBadJSON)
	// ErrInvalidMagic means the CART or TRAC magic did not match.
	ErrInvalidMagic = classify(errors.New("invalid CaRT magic"), KindProcessing)
	// ErrUnsupportedVersion means the format version is not 1.
	ErrUnsupportedVersion = classify(errors.New("unsupported CaRT format version"), KindProcessing)
	// ErrTruncatedArtifact means the artifact ended before a fixed-size
	// region could be fully read.
	ErrTruncatedArtifact = classify(errors.New("truncated CaRT artifact"), KindProcessing)
	// ErrMissingPrivateKey means the active key is zero-filled and the
	// caller did not supply a private key out of band.
	ErrMissingPrivateKey = classify(errors.New("active key is private; caller key required"), KindProcessing)
	// ErrDecompression means the DEFLATE/zlib stream could not be decoded.
	ErrDecompression = classify(errors.New("decompression failed"), KindProcessing)
	// ErrFooterBounds means the footer offset/length fields are inconsistent
	// with the artifact size.
	ErrFooterBounds = classify(errors.New("footer offset/length inconsistent with artifact size"), KindProcessing)
	// ErrSourceNotSeekable means an operation that requires seeking (path
	// or buffer mode footer location) was attempted on a non-seekable source.
	ErrSourceNotSeekable = classify(errors.New("source does not support seeking"), KindProcessing)
	// ErrUnknownSinkFileMode means an invalid SinkFileMode was supplied.
	ErrUnknownSinkFileMode = classify(errors.New("unknown sink file mode"), KindBadArgument)
)
