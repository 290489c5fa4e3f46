package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// WAVHeaderSize is the size of the canonical 44-byte RIFF/WAVE PCM header.
const WAVHeaderSize = 44

const (
	DefaultSampleRate = 24000
	DefaultChannels   = 1
	DefaultBitDepth   = 16
)

// PCMFormat describes raw PCM samples.
type PCMFormat struct {
	Channels   int
	SampleRate int
	BitDepth   int
}

// DefaultPCMFormat is what the speech model emits: 24kHz mono 16-bit.
func DefaultPCMFormat() PCMFormat {
	return PCMFormat{Channels: DefaultChannels, SampleRate: DefaultSampleRate, BitDepth: DefaultBitDepth}
}

func (f PCMFormat) validate() error {
	if f.Channels <= 0 || f.Channels > 0xFFFF {
		return fmt.Errorf("invalid channel count %d", f.Channels)
	}
	if f.SampleRate <= 0 || uint64(f.SampleRate) > math.MaxUint32 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.BitDepth <= 0 || f.BitDepth > 0xFFFF || f.BitDepth%8 != 0 {
		return fmt.Errorf("invalid bit depth %d", f.BitDepth)
	}
	// blockAlign and byteRate are derived and must fit their header fields too.
	blockAlign := uint64(f.Channels) * uint64(f.BitDepth) / 8
	if blockAlign > 0xFFFF {
		return fmt.Errorf("block align %d overflows the wav header", blockAlign)
	}
	if byteRate := uint64(f.SampleRate) * blockAlign; byteRate > math.MaxUint32 {
		return fmt.Errorf("byte rate %d overflows the wav header", byteRate)
	}
	return nil
}

// EncodeWAV frames raw little-endian PCM into a WAV container. The payload is
// copied unchanged after the header.
func EncodeWAV(pcm []byte, f PCMFormat) ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if uint64(len(pcm)) > uint64(^uint32(0))-36 {
		return nil, errors.New("pcm payload too large for a wav container")
	}

	blockAlign := f.Channels * f.BitDepth / 8
	byteRate := f.SampleRate * blockAlign

	var buf bytes.Buffer
	buf.Grow(WAVHeaderSize + len(pcm))

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16)) // PCM fmt chunk size
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))  // audio format: PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.BitDepth))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// WAVInfo is the decoded header of a canonical PCM WAV file.
type WAVInfo struct {
	PCMFormat
	DataLength int
}

// ParseWAVHeader reads back the header written by EncodeWAV.
func ParseWAVHeader(b []byte) (WAVInfo, error) {
	if len(b) < WAVHeaderSize {
		return WAVInfo{}, errors.New("wav: short header")
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" || string(b[12:16]) != "fmt " || string(b[36:40]) != "data" {
		return WAVInfo{}, errors.New("wav: not a canonical pcm wav header")
	}
	le := binary.LittleEndian
	return WAVInfo{
		PCMFormat: PCMFormat{
			Channels:   int(le.Uint16(b[22:24])),
			SampleRate: int(le.Uint32(b[24:28])),
			BitDepth:   int(le.Uint16(b[34:36])),
		},
		DataLength: int(le.Uint32(b[40:44])),
	}, nil
}

// ParsePCMMimeType reads rate/bit depth from mime types such as
// "audio/L16;codec=pcm;rate=24000". Unknown parts keep the defaults.
func ParsePCMMimeType(mimeType string) PCMFormat {
	f := DefaultPCMFormat()
	parts := strings.Split(mimeType, ";")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if i == 0 {
			if _, bits, ok := strings.Cut(strings.ToLower(part), "audio/l"); ok {
				if n, err := strconv.Atoi(bits); err == nil && n > 0 {
					f.BitDepth = n
				}
			}
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "rate":
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n > 0 {
				f.SampleRate = n
			}
		case "channels":
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n > 0 {
				f.Channels = n
			}
		}
	}
	return f
}
