package cj

// Kind identifies which resource table a handle belongs to.
type Kind uint8

const (
	KindTexture Kind = iota
	KindBuffer
	KindSampler
	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindTexture:
		return "texture"
	case KindBuffer:
		return "buffer"
	case KindSampler:
		return "sampler"
	default:
		return "invalid"
	}
}

// Handle is a generation-counted reference to a resource slot. A handle is
// valid only while the slot at Index is in use and stores the same
// Generation; once the slot is released and reallocated the generation has
// advanced, so old handles can never alias the new occupant.
//
// The zero value is the nil handle: index 0 is reserved and never issued.
type Handle struct {
	Index      uint32
	Generation uint32
	Kind       Kind
}

// IsNil reports whether h is the nil handle.
func (h Handle) IsNil() bool {
	return h.Index == 0
}
