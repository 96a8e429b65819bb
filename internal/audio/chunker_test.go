package audio

import (
	"bytes"
	"testing"
)

func TestChunks(t *testing.T) {
	pcm := make([]byte, 3000)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	chunks := Chunks(pcm, 1280)
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 1280 || len(chunks[1]) != 1280 || len(chunks[2]) != 440 {
		t.Errorf("Unexpected chunk sizes: %d %d %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
	if !bytes.Equal(bytes.Join(chunks, nil), pcm) {
		t.Error("Expected chunks to reassemble into the input")
	}
}

func TestChunks_ExactMultiple(t *testing.T) {
	chunks := Chunks(make([]byte, 2560), 1280)
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) != 1280 {
			t.Errorf("Expected chunk %d to be 1280 bytes, got %d", i, len(c))
		}
	}
}

func TestChunks_Empty(t *testing.T) {
	if chunks := Chunks(nil, 1280); len(chunks) != 0 {
		t.Errorf("Expected no chunks for empty input, got %d", len(chunks))
	}
	if chunks := Chunks([]byte{1, 2}, 0); len(chunks) != 0 {
		t.Errorf("Expected no chunks for zero size, got %d", len(chunks))
	}
}

func TestChunks_AppendDoesNotClobberNext(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	chunks := Chunks(pcm, 2)

	_ = append(chunks[0], 9)
	if pcm[2] != 3 {
		t.Errorf("Expected append to a chunk to leave the source untouched, got %v", pcm)
	}
}

func TestChunkCount(t *testing.T) {
	tests := []struct {
		n, size, expected int
	}{
		{0, 1280, 0},
		{1, 1280, 1},
		{1280, 1280, 1},
		{1281, 1280, 2},
		{12800, 1280, 10},
		{10, 0, 0},
	}
	for _, tt := range tests {
		if got := ChunkCount(tt.n, tt.size); got != tt.expected {
			t.Errorf("ChunkCount(%d, %d): expected %d, got %d", tt.n, tt.size, tt.expected, got)
		}
	}
}
