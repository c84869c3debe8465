package llm

// Batch is a fixed-capacity arena of pending token-decode requests. It is
// allocated once per load at the plan's batch size and reset at the start of
// every scheduling unit; the generation hot path never reallocates it.
// Entries are kept as parallel slices so backends can hand them to native
// batch structures without per-entry conversion.
type Batch struct {
	tokens []Token
	pos    []int32
	logits []bool
	n      int
}

// NewBatch allocates an arena for up to capacity entries.
func NewBatch(capacity int) *Batch {
	if capacity < 1 {
		capacity = 1
	}
	return &Batch{
		tokens: make([]Token, capacity),
		pos:    make([]int32, capacity),
		logits: make([]bool, capacity),
	}
}

// Reset empties the batch without releasing storage.
func (b *Batch) Reset() { b.n = 0 }

// Add appends one entry. Exceeding the capacity is a caller bug: chunking is
// sized to the batch, so this panics rather than growing.
func (b *Batch) Add(t Token, pos int32, wantLogits bool) {
	if b.n == len(b.tokens) {
		panic("llm: batch capacity exceeded")
	}
	b.tokens[b.n] = t
	b.pos[b.n] = pos
	b.logits[b.n] = wantLogits
	b.n++
}

// Len is the number of pending entries.
func (b *Batch) Len() int { return b.n }

// Cap is the fixed capacity.
func (b *Batch) Cap() int { return len(b.tokens) }

// Tokens returns the pending token ids. The slice aliases the arena and is
// valid until the next Reset.
func (b *Batch) Tokens() []Token { return b.tokens[:b.n] }

// Positions returns the pending positions, parallel to Tokens.
func (b *Batch) Positions() []int32 { return b.pos[:b.n] }

// Logits returns the per-entry logits flags, parallel to Tokens.
func (b *Batch) Logits() []bool { return b.logits[:b.n] }
