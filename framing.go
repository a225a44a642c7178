package uart

import "math/bits"

// framer converts characters between memory order and wire order. The
// physical layer always shifts the least significant bit first.
type framer struct {
	msbFirst bool
	shift    uint
	mask     byte
}

func newFramer(cfg Config) framer {
	return framer{
		msbFirst: cfg.BitOrder == MSBFirst,
		shift:    uint(8 - cfg.DataBits),
		mask:     byte(1<<cfg.DataBits - 1),
	}
}

func (f framer) identity() bool { return !f.msbFirst && f.mask == 0xff }

func (f framer) char(c byte) byte {
	c &= f.mask
	if f.msbFirst {
		c = bits.Reverse8(c) >> f.shift
	}
	return c
}

// encode writes the wire form of src into dst, which must be as long.
func (f framer) encode(dst, src []byte) {
	for i, c := range src {
		dst[i] = f.char(c)
	}
}

// decode converts p in place. Reversal within DataBits is its own inverse.
func (f framer) decode(p []byte) {
	if f.identity() {
		return
	}
	for i, c := range p {
		p[i] = f.char(c)
	}
}
