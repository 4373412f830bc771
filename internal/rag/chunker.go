// Package rag implements the retrieval-augmented generation pipeline:
// extracting text from uploaded files, splitting it into overlapping
// chunks, embedding those chunks, and retrieving the most relevant ones
// for a query.
//
// This file holds the chunker. Chunks are fixed-size character windows
// with a fixed overlap so context survives chunk boundaries; the split is
// deliberately byte-offset based to keep CharacterStart/End stable and
// cheap to compute.
package rag

// Chunk is one window of a document's extracted text.
type Chunk struct {
	Index          int
	Content        string
	CharacterStart int
	CharacterEnd   int
}

// Chunker splits text into fixed-size overlapping windows.
type Chunker struct {
	Size    int // characters per chunk
	Overlap int // characters shared between consecutive chunks
}

// Split divides text into chunks. Empty text yields no chunks. The last
// chunk may be shorter than Size; every other boundary advances by
// Size-Overlap so consecutive chunks share exactly Overlap characters.
func (c Chunker) Split(text string) []Chunk {
	if text == "" || c.Size <= 0 {
		return nil
	}
	step := c.Size - c.Overlap
	if step <= 0 {
		step = c.Size
	}

	var chunks []Chunk
	for start, idx := 0, 0; start < len(text); start, idx = start+step, idx+1 {
		end := start + c.Size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, Chunk{
			Index:          idx,
			Content:        text[start:end],
			CharacterStart: start,
			CharacterEnd:   end,
		})
	}
	return chunks
}

// EstimateTokens approximates the token count of a text. One token is
// roughly four characters for the models in use; the exact count only
// matters for rough accounting, not billing.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
