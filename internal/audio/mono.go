package audio

// ToMono reduces interleaved samples to a single channel, writing into dst
// when it has room. Stereo pairs are averaged and mono input is copied, so
// the result always has len(samples)/channels values.
func ToMono(dst []float64, samples []int16, channels int) []float64 {
	if channels < 1 {
		channels = 1
	}
	frames := len(samples) / channels
	if cap(dst) < frames {
		dst = make([]float64, frames)
	}
	dst = dst[:frames]

	switch channels {
	case 1:
		for i, s := range samples[:frames] {
			dst[i] = float64(s)
		}
	case 2:
		for f := range frames {
			idx := f << 1
			dst[f] = (float64(samples[idx]) + float64(samples[idx+1])) * 0.5
		}
	default:
		inv := 1 / float64(channels)
		for f := range frames {
			var sum float64
			base := f * channels
			for c := range channels {
				sum += float64(samples[base+c])
			}
			dst[f] = sum * inv
		}
	}

	return dst
}
