// Package audio implements the fixed-format 16 kHz/16-bit/mono PCM
// silence trimmer and WAV packaging routines used ahead of TTS caching
// and the audio-trim auxiliary endpoint.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	SampleRate    = 16000
	BitsPerSample = 16
	Channels      = 1
	bytesPerSamp  = BitsPerSample / 8
)

var ErrNotWAV = errors.New("audio: not a RIFF/WAVE stream")

// WrapPCM packages raw 16 kHz/16-bit/mono PCM into a minimal RIFF/WAVE
// container. The output is byte-exact: a 44-byte header followed by the
// PCM payload verbatim.
func WrapPCM(pcm []byte) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(Channels))
	binary.Write(buf, binary.LittleEndian, uint32(SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(SampleRate*Channels*bytesPerSamp))
	binary.Write(buf, binary.LittleEndian, uint16(Channels*bytesPerSamp))
	binary.Write(buf, binary.LittleEndian, uint16(BitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// ParsePCM extracts the raw PCM payload from a RIFF/WAVE stream by
// walking its chunk list until it finds "data". It does not validate
// the format chunk's sample rate/bit depth beyond confirming this is a
// RIFF/WAVE container; callers that receive raw PCM (no header) should
// not call this function.
func ParsePCM(wav []byte) ([]byte, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	pos := 12
	for pos+8 <= len(wav) {
		id := string(wav[pos : pos+4])
		size := binary.LittleEndian.Uint32(wav[pos+4 : pos+8])
		start := pos + 8
		end := start + int(size)
		if end > len(wav) {
			end = len(wav)
		}
		if id == "data" {
			return wav[start:end], nil
		}
		pos = end
		if size%2 == 1 {
			pos++ // chunks are padded to even length
		}
	}
	return nil, ErrNotWAV
}

// IsWAV reports whether b begins with a RIFF/WAVE header.
func IsWAV(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE"
}
