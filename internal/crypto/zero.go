package crypto

// Zero overwrites a byte slice in memory with zeros. Key material must be
// zeroized as soon as its operation completes.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
