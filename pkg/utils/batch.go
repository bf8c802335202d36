package utils

// ChunkStrings splits in into consecutive chunks of at most size elements.
// A size <= 0 yields a single chunk.
func ChunkStrings(in []string, size int) [][]string {
	if len(in) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]string{in}
	}
	out := make([][]string, 0, (len(in)+size-1)/size)
	for size < len(in) {
		in, out = in[size:], append(out, in[:size:size])
	}
	return append(out, in)
}
