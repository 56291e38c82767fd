package cfg

// BlockSet is a compact set of block IDs backed by a bitmap.
type BlockSet struct {
	bits []uint64
}

// NewBlockSet creates a set sized for IDs up to maxID (inclusive).
func NewBlockSet(maxID int) *BlockSet {
	words := (maxID + 64) / 64
	return &BlockSet{bits: make([]uint64, words)}
}

// Add inserts id.
func (s *BlockSet) Add(id int) {
	word := id / 64
	if word >= len(s.bits) {
		s.grow(word + 1)
	}
	s.bits[word] |= 1 << (uint(id) % 64)
}

// Remove deletes id.
func (s *BlockSet) Remove(id int) {
	word := id / 64
	if word < len(s.bits) {
		s.bits[word] &^= 1 << (uint(id) % 64)
	}
}

// Has reports whether id is in the set.
func (s *BlockSet) Has(id int) bool {
	if s == nil || id < 0 {
		return false
	}
	word := id / 64
	if word >= len(s.bits) {
		return false
	}
	return s.bits[word]&(1<<(uint(id)%64)) != 0
}

// Contains reports whether b is in the set.
func (s *BlockSet) Contains(b *Block) bool { return b != nil && s.Has(b.ID) }

// Union adds all elements of other.
func (s *BlockSet) Union(other *BlockSet) {
	if len(other.bits) > len(s.bits) {
		s.grow(len(other.bits))
	}
	for i := range other.bits {
		s.bits[i] |= other.bits[i]
	}
}

// IDs returns the members in ascending order.
func (s *BlockSet) IDs() []int {
	var out []int
	for i, word := range s.bits {
		if word == 0 {
			continue
		}
		base := i * 64
		for bit := 0; bit < 64; bit++ {
			if word&(1<<bit) != 0 {
				out = append(out, base+bit)
			}
		}
	}
	return out
}

// Len returns the number of members.
func (s *BlockSet) Len() int {
	n := 0
	for _, word := range s.bits {
		n += popcount(word)
	}
	return n
}

func (s *BlockSet) grow(n int) {
	bits := make([]uint64, n)
	copy(bits, s.bits)
	s.bits = bits
}

func popcount(x uint64) int {
	n := 0
	for x != 0 {
		x &= x - 1
		n++
	}
	return n
}
