// Package audio converts the little-endian 16-bit PCM that clients stream
// into the format the speech recognizer expects.
package audio

import (
	"fmt"
	"log/slog"
	"sync"
)

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// IsZero reports whether f is unset.
func (f Format) IsZero() bool { return f == Format{} }

// frameSize is the byte length of one sample across all channels.
func (f Format) frameSize() int { return 2 * max(f.Channels, 1) }

func (f Format) String() string {
	switch {
	case f.Channels <= 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case f.Channels == 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	default:
		return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
	}
}

// Converter turns chunks of From into chunks of To. Only mono targets and
// mono or multi-channel sources are supported; channels are mixed down
// before resampling.
//
// Chunks need not be frame aligned: a trailing partial frame is kept and
// prepended to the next chunk. A Converter is meant for one stream and is
// not safe for concurrent use.
type Converter struct {
	From, To Format

	rest   []byte
	logged sync.Once
	log    *slog.Logger
}

// NewConverter returns a Converter. log may be nil.
func NewConverter(from, to Format, log *slog.Logger) *Converter {
	if log == nil {
		log = slog.Default()
	}
	return &Converter{From: from, To: to, log: log}
}

// Passthrough reports whether chunks are forwarded unchanged.
func (c *Converter) Passthrough() bool {
	return c.From.IsZero() || c.To.IsZero() || c.From == c.To
}

// Convert converts chunk. It returns nil when chunk does not complete a
// single frame.
func (c *Converter) Convert(chunk []byte) []byte {
	if c.Passthrough() {
		return chunk
	}
	c.logged.Do(func() {
		c.log.Debug("converting client audio", "from", c.From.String(), "to", c.To.String())
	})

	pcm := chunk
	if len(c.rest) > 0 {
		pcm = append(c.rest, chunk...)
		c.rest = nil
	}
	fs := c.From.frameSize()
	if n := len(pcm) % fs; n > 0 {
		c.rest = append([]byte(nil), pcm[len(pcm)-n:]...)
		pcm = pcm[:len(pcm)-n]
	}
	if len(pcm) == 0 {
		return nil
	}

	if c.From.Channels > 1 {
		pcm = Downmix(pcm, c.From.Channels)
	}
	return Resample(pcm, c.From.SampleRate, c.To.SampleRate)
}

// Downmix averages interleaved channels into mono. Incomplete trailing
// frames are dropped.
func Downmix(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frames := len(pcm) / (2 * channels)
	out := make([]byte, frames*2)
	for i := range frames {
		var sum int32
		for ch := range channels {
			sum += int32(sample(pcm, i*channels+ch))
		}
		put(out, i, int16(sum/int32(channels)))
	}
	return out
}

// Resample converts mono PCM from srcRate to dstRate with linear
// interpolation. Equal or invalid rates return pcm unchanged.
func Resample(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	src := len(pcm) / 2
	dst := int(int64(src) * int64(dstRate) / int64(srcRate))
	if dst == 0 {
		return nil
	}

	out := make([]byte, dst*2)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dst {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		s0 := sample(pcm, idx)
		s1 := s0
		if idx+1 < src {
			s1 = sample(pcm, idx+1)
		}
		put(out, i, int16(float64(s0)*(1-frac)+float64(s1)*frac))
	}
	return out
}

func sample(pcm []byte, i int) int16 {
	return int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
}

func put(pcm []byte, i int, v int16) {
	pcm[2*i] = byte(v)
	pcm[2*i+1] = byte(v >> 8)
}
