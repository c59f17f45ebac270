package engine

// obfuscationKey is the fixed byte added to every content byte before it
// is persisted, and subtracted on read. This is not security — spec.md
// §4.3 is explicit that it exists only so implementations can remain
// bit-compatible with a reference image — grounded on the commented-out
// shift_encrypt/shift_decrypt calls in
// _examples/original_source/source/core/fs_core.cpp, which apply the same
// idea to on-disk records; this module scopes it to file content only, as
// the base spec requires.
const obfuscationKey = 0x5A

func obfuscate(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = c + obfuscationKey
	}
	return out
}

func deobfuscate(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = c - obfuscationKey
	}
	return out
}
