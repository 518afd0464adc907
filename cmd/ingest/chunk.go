package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// chunkWords splits text into windows of size words, each sharing overlap words with the
// previous window. The final window may be shorter.
func chunkWords(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

func chunkID(kind, guid string, i int) string {
	sum := sha256.Sum256([]byte(guid))
	return fmt.Sprintf("%s-%s-chunk-%d", kind, hex.EncodeToString(sum[:6]), i)
}
