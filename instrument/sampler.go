package instrument

// Sampler plays a preloaded mono sample one-shot, pitched against RootKey.
type Sampler struct {
	Sample   []float32
	RootKey  uint8
	MaxVoice int

	channels int
	voices   []samplerVoice
	next     int
}

type samplerVoice struct {
	active bool
	key    uint8
	pos    float64
	rate   float64
	gain   float32
}

// NewSampler wraps pcm, a mono buffer recorded at the output sample rate.
func NewSampler(pcm []float32, rootKey uint8) *Sampler {
	return &Sampler{Sample: pcm, RootKey: rootKey, MaxVoice: 8}
}

func (s *Sampler) SetOutputFormat(sampleRate int, stereo bool) bool {
	if len(s.Sample) == 0 {
		return false
	}
	if s.MaxVoice <= 0 {
		s.MaxVoice = 8
	}
	s.channels = 1
	if stereo {
		s.channels = 2
	}
	s.voices = make([]samplerVoice, s.MaxVoice)
	return true
}

func (s *Sampler) HandleMIDIEvent(status, data1, data2 uint8) {
	switch status & 0xF0 {
	case cmdNoteOn:
		if data2 == 0 {
			s.stop(data1)
			return
		}
		rate := KeyToFreq(float64(data1)) / KeyToFreq(float64(s.RootKey))
		s.voices[s.next] = samplerVoice{active: true, key: data1, rate: rate, gain: float32(data2) / 127}
		s.next = (s.next + 1) % len(s.voices)
	case cmdNoteOff:
		s.stop(data1)
	case cmdControl:
		if data1 == ccAllSoundOff || data1 == ccAllNotesOff {
			s.Reset()
		}
	}
}

func (s *Sampler) stop(key uint8) {
	for i := range s.voices {
		if s.voices[i].key == key {
			s.voices[i].active = false
		}
	}
}

func (s *Sampler) RenderAudio(buf []float32, numFrames int) {
	out := buf[:numFrames*s.channels]
	clear(out)

	last := float64(len(s.Sample) - 1)
	for v := range s.voices {
		vc := &s.voices[v]
		for f := 0; f < numFrames && vc.active; f++ {
			if vc.pos >= last {
				vc.active = false
				break
			}
			i := int(vc.pos)
			frac := float32(vc.pos - float64(i))
			sample := (s.Sample[i]*(1-frac) + s.Sample[i+1]*frac) * vc.gain
			for c := 0; c < s.channels; c++ {
				out[f*s.channels+c] += sample
			}
			vc.pos += vc.rate
		}
	}
}

func (s *Sampler) Reset() {
	for i := range s.voices {
		s.voices[i] = samplerVoice{}
	}
	s.next = 0
}
