package audio

// Buffer is a decoded PCM buffer: one []float64 plane per channel plus the
// source sample rate. Buffers are immutable once decoded; voices only read
// from them.
type Buffer struct {
	Data [][]float64
	Rate float64
}

func NewBuffer(channels, frames int, rate float64) *Buffer {
	data := make([][]float64, channels)
	for ch := range data {
		data[ch] = make([]float64, frames)
	}
	return &Buffer{Data: data, Rate: rate}
}

func (b *Buffer) Channels() int { return len(b.Data) }

func (b *Buffer) Frames() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration is the buffer length in seconds at its own sample rate.
func (b *Buffer) Duration() float64 {
	if b.Rate == 0 {
		return 0
	}
	return float64(b.Frames()) / b.Rate
}

// Sample reads channel ch at a fractional position with linear interpolation.
// Out-of-range positions are clamped to the buffer edges.
func (b *Buffer) Sample(ch int, pos float64) float64 {
	plane := b.Data[ch]
	n := len(plane)
	if n == 0 {
		return 0
	}
	if pos <= 0 {
		return plane[0]
	}
	if pos >= float64(n-1) {
		return plane[n-1]
	}
	i := int(pos)
	frac := pos - float64(i)
	return plane[i]*(1-frac) + plane[i+1]*frac
}

// stereoSample reads left and right at a fractional position. Mono buffers
// feed both channels.
func (b *Buffer) stereoSample(pos float64) (float64, float64) {
	l := b.Sample(0, pos)
	if len(b.Data) > 1 {
		return l, b.Sample(1, pos)
	}
	return l, l
}
