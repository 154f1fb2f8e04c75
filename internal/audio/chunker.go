package audio

// Policy maps a VAD sensitivity level (1-5) to a chunk size. Higher
// sensitivity yields smaller chunks and therefore lower latency; the mapping
// is monotonically non-increasing in the level.
type Policy struct {
	BlockSamples   int     // Samples per capture block
	BaseBlocks     int     // Chunk size baseline in blocks
	BlocksPerLevel int     // Blocks removed per sensitivity level
	OverlapRatio   float64 // Fraction of an emitted chunk carried into the next buffer
}

// DefaultPolicy returns the default chunk sizing policy
func DefaultPolicy() Policy {
	return Policy{
		BlockSamples:   1024,
		BaseBlocks:     30,
		BlocksPerLevel: 2,
		OverlapRatio:   0.25,
	}
}

// ChunkSamples returns the chunk size in samples for a VAD level.
// Levels outside 1-5 are clamped.
func (p Policy) ChunkSamples(level int) int {
	if level < 1 {
		level = 1
	}
	if level > 5 {
		level = 5
	}
	blocks := p.BaseBlocks - p.BlocksPerLevel*level
	if blocks < 1 {
		blocks = 1
	}
	return blocks * p.BlockSamples
}

// OverlapSamples returns the number of trailing samples retained after an
// emission, for a given chunk size.
func (p Policy) OverlapSamples(chunkSize int) int {
	overlap := int(float64(chunkSize) * p.OverlapRatio)
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	if overlap < 0 {
		overlap = 0
	}
	return overlap
}

// Chunker accumulates audio samples and emits fixed-size chunks with overlap
// retention: after each emission the trailing overlap of the emitted chunk
// stays at the front of the buffer, so chunk N+1 begins with the last overlap
// samples of chunk N and no word is fully lost at a boundary.
//
// A Chunker is owned by exactly one session goroutine and is not safe for
// concurrent use.
type Chunker struct {
	chunkSize int
	overlap   int
	buf       []float32
}

// NewChunker creates a chunker emitting chunks of chunkSize samples,
// retaining overlap samples between consecutive chunks.
func NewChunker(chunkSize, overlap int) *Chunker {
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Chunker{
		chunkSize: chunkSize,
		overlap:   overlap,
		buf:       make([]float32, 0, chunkSize),
	}
}

// NewChunkerForLevel creates a chunker sized by the policy for a VAD level
func NewChunkerForLevel(p Policy, level int) *Chunker {
	size := p.ChunkSamples(level)
	return NewChunker(size, p.OverlapSamples(size))
}

// Ingest appends samples to the buffer and returns every complete chunk that
// became available, in order. Each returned chunk is an independent copy.
// A partial buffer is never emitted.
func (c *Chunker) Ingest(samples []float32) [][]float32 {
	c.buf = append(c.buf, samples...)

	var chunks [][]float32
	for len(c.buf) >= c.chunkSize {
		chunk := make([]float32, c.chunkSize)
		copy(chunk, c.buf[:c.chunkSize])
		chunks = append(chunks, chunk)

		// Keep the trailing overlap of the emitted chunk plus everything
		// not yet emitted.
		rest := make([]float32, 0, c.overlap+len(c.buf)-c.chunkSize)
		rest = append(rest, c.buf[c.chunkSize-c.overlap:c.chunkSize]...)
		rest = append(rest, c.buf[c.chunkSize:]...)
		c.buf = rest
	}

	return chunks
}

// Buffered returns the number of samples currently held
func (c *Chunker) Buffered() int {
	return len(c.buf)
}

// ChunkSize returns the configured chunk size in samples
func (c *Chunker) ChunkSize() int {
	return c.chunkSize
}

// Overlap returns the configured overlap in samples
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Reset discards any buffered samples. Used on session teardown; a partial
// buffer is discarded, not dispatched.
func (c *Chunker) Reset() {
	c.buf = c.buf[:0]
}
