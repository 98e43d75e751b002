package parser

// ChunkText splits text into consecutive, non-overlapping pieces of size
// characters. The last piece holds the remainder and may be shorter. Pieces
// are cut purely by position, so words and sentences can be split.
//
// Size counts Unicode code points, not bytes; a multi-byte character is never
// cut in half. Empty text, or a non-positive size, yields no chunks.
func ChunkText(text string, size int) []string {
	if size <= 0 || text == "" {
		return nil
	}

	chunks := make([]string, 0, len(text)/size+1)
	start, count := 0, 0
	for i := range text {
		if count == size {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}
