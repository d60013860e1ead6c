// SPDX-License-Identifier: MIT

/*
Package cart implements the CaRT container codec: compresses a body with
DEFLATE, encrypts both body and metadata with RC4 under an optionally-public
key, and records advisory digests in a trailing footer. It is designed for
streaming workflows: pack and unpack operate in a single forward pass and
never hold the whole body in memory in stream mode.

# Packing

Pack a file under the default public key, with caller header metadata:

	res, err := cart.PackPath(ctx, "sample.bin", "sample.bin.cart", cart.PackOptions{
	    HeaderMeta: json.RawMessage(`{"hello":"world"}`),
	})
	if err != nil {
	    return err
	}
	_ = res.BytesWritten

Pack from an arbitrary stream, tracking progress:

	res, err := cart.PackStream(ctx, r, w, cart.PackOptions{
	    OnProgress: func(n int64) {
	        // report n bytes processed
	    },
	})

Pack an in-memory buffer:

	artifact, res, err := cart.PackBuffer(ctx, body, cart.PackOptions{})
	_ = res

# Unpacking

	res, err := cart.UnpackPath(ctx, "sample.bin.cart", "sample.bin.out", cart.UnpackOptions{})
	if err != nil {
	    return err
	}
	_ = res.HeaderMeta
	_ = res.FooterMeta

	body, res, err := cart.UnpackBuffer(ctx, artifact, cart.UnpackOptions{})

UnpackStream never seeks, so a source that does not implement io.Seeker
works: the payload is decompressed into the sink in one forward pass, and the
footer region is read from whatever follows it.

# Probing and metadata

	ok, err := cart.IsCart(bytes.NewReader(artifact))

	meta, err := cart.GetMetadataOnlyPath("sample.bin.cart", cart.UnpackOptions{})
	_ = meta.HeaderMeta
	_ = meta.FooterMeta

GetMetadataOnly* never materializes the payload in path and buffer mode; in
stream mode it must still read through the payload to locate the footer.

# Private keys

When the caller supplies Key on PackOptions, the artifact's active-key field
is written as sixteen zero bytes and the caller's key becomes the effective
cipher key; the same Key must be supplied to UnpackOptions/UnpackPath to
decode it. Artifacts packed without a Key use cart.DefaultPublicKey and
require none on unpack.
*/
package cart
