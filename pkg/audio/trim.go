package audio

import (
	"encoding/binary"
	"math"
)

const (
	// DefaultSilenceThreshold is the fraction of peak RMS below which a
	// frame is considered silent.
	DefaultSilenceThreshold = 0.05

	boundaryFrameSamples = 512
	midFrameSamples      = 256
	boundaryPaddingMs     = 2
	midSilenceLimitMs     = 300
	midSilenceShrinkMs    = 50
	shortCircuitBytes     = 8000
)

// TrimSilence removes leading/trailing silence and shrinks excessive
// mid-stream silent runs from 16 kHz/16-bit/mono PCM. It never returns an
// error: any internal failure, or input shorter than the short-circuit
// threshold, yields the input unchanged.
func TrimSilence(pcm []byte, silenceThreshold float64) (out []byte) {
	out = pcm
	defer func() {
		if recover() != nil {
			out = pcm
		}
	}()

	if len(pcm) < shortCircuitBytes {
		return pcm
	}
	if silenceThreshold <= 0 {
		silenceThreshold = DefaultSilenceThreshold
	}

	samples := bytesToSamples(pcm)
	if len(samples) == 0 {
		return pcm
	}
	floats := toFloat(samples)

	boundaryRMS := frameRMS(floats, boundaryFrameSamples)
	if len(boundaryRMS) == 0 {
		return pcm
	}

	peak := 0.0
	for _, r := range boundaryRMS {
		if r > peak {
			peak = r
		}
	}
	if peak == 0 {
		return pcm
	}
	threshold := peak * silenceThreshold

	firstFrame, lastFrame := -1, -1
	for i, r := range boundaryRMS {
		if r > threshold {
			if firstFrame == -1 {
				firstFrame = i
			}
			lastFrame = i
		}
	}
	if firstFrame == -1 {
		return pcm
	}

	fineThreshold := 0.3 * threshold
	start := refineBoundary(floats, firstFrame*boundaryFrameSamples, boundaryFrameSamples, fineThreshold, false)
	end := refineBoundary(floats, (lastFrame+1)*boundaryFrameSamples, boundaryFrameSamples, fineThreshold, true)

	padding := msToSamples(boundaryPaddingMs)
	start -= padding
	if start < 0 {
		start = 0
	}
	end += padding
	if end > len(samples) {
		end = len(samples)
	}
	if start >= end {
		return pcm
	}

	trimmed := samples[start:end]
	shrunk := shrinkMidSilence(trimmed, threshold, midFrameSamples)

	return samplesToBytes(shrunk)
}

func bytesToSamples(pcm []byte) []int16 {
	n := len(pcm) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}
	return samples
}

func samplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out
}

func toFloat(samples []int16) []float64 {
	floats := make([]float64, len(samples))
	for i, s := range samples {
		floats[i] = float64(s) / 32768.0
	}
	return floats
}

func msToSamples(ms int) int {
	return ms * SampleRate / 1000
}

// frameRMS computes RMS energy over non-overlapping frames of frameSize
// samples; the trailing partial frame, if any, is included.
func frameRMS(floats []float64, frameSize int) []float64 {
	if len(floats) == 0 {
		return nil
	}
	n := (len(floats) + frameSize - 1) / frameSize
	rms := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * frameSize
		end := start + frameSize
		if end > len(floats) {
			end = len(floats)
		}
		rms[i] = rmsOf(floats[start:end])
	}
	return rms
}

func rmsOf(frame []float64) float64 {
	if len(frame) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range frame {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// refineBoundary performs a sample-level scan within one frame width on
// either side of approxSample, looking for the earliest (fromEnd=false)
// or latest (fromEnd=true) sample whose amplitude exceeds threshold.
// Falls back to approxSample if nothing crosses the threshold.
func refineBoundary(floats []float64, approxSample, frameSize int, threshold float64, fromEnd bool) int {
	lo := approxSample - frameSize
	hi := approxSample + frameSize
	if lo < 0 {
		lo = 0
	}
	if hi > len(floats) {
		hi = len(floats)
	}

	if !fromEnd {
		for i := lo; i < hi; i++ {
			if math.Abs(floats[i]) > threshold {
				return i
			}
		}
		return approxSample
	}

	for i := hi - 1; i >= lo; i-- {
		if math.Abs(floats[i]) > threshold {
			return i + 1
		}
	}
	return approxSample
}

// shrinkMidSilence scans frameSize-sample frames for consecutive silent
// runs (rms <= threshold) longer than midSilenceLimitMs and replaces each
// such run with midSilenceShrinkMs of zero samples; shorter runs and
// voiced frames pass through untouched.
func shrinkMidSilence(samples []int16, threshold float64, frameSize int) []int16 {
	floats := toFloat(samples)
	rms := frameRMS(floats, frameSize)

	limitFrames := msToSamples(midSilenceLimitMs) / frameSize
	shrinkSamples := msToSamples(midSilenceShrinkMs)

	out := make([]int16, 0, len(samples))
	i := 0
	for i < len(rms) {
		if rms[i] > threshold {
			start := i * frameSize
			end := start + frameSize
			if end > len(samples) {
				end = len(samples)
			}
			out = append(out, samples[start:end]...)
			i++
			continue
		}

		runStart := i
		for i < len(rms) && rms[i] <= threshold {
			i++
		}
		runStartSample := runStart * frameSize
		runEndSample := i * frameSize
		if runEndSample > len(samples) {
			runEndSample = len(samples)
		}
		runLenFrames := i - runStart

		if runLenFrames > limitFrames {
			out = append(out, make([]int16, shrinkSamples)...)
		} else {
			out = append(out, samples[runStartSample:runEndSample]...)
		}
	}
	return out
}
