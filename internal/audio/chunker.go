package audio

// Chunks splits pcm into consecutive slices of at most size bytes. The
// slices alias pcm; callers must not modify them. An empty input yields no
// chunks.
func Chunks(pcm []byte, size int) [][]byte {
	if size <= 0 || len(pcm) == 0 {
		return nil
	}

	chunks := make([][]byte, 0, ChunkCount(len(pcm), size))
	for start := 0; start < len(pcm); start += size {
		end := start + size
		if end > len(pcm) {
			end = len(pcm)
		}
		// cap the slice so an append by a caller cannot spill into the next chunk
		chunks = append(chunks, pcm[start:end:end])
	}
	return chunks
}

// ChunkCount returns ceil(n / size)
func ChunkCount(n, size int) int {
	if size <= 0 || n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
