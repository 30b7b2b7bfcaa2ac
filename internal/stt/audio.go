//go:build whispercpp

package stt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/pion/opus"
	"github.com/pion/opus/pkg/oggreader"
	. "github.com/roelfdiedericks/minutes/internal/logging"
	"github.com/zeozeozeo/gomplerate"
)

const (
	targetSampleRate = 16000 // whisper.cpp requires 16kHz
	maxFrameSize     = 5760  // max Opus frame size (120ms at 48kHz)
)

// ConvertToFloat32 converts encoded audio to 16kHz mono float32 samples.
// ffmpeg is preferred when installed; OGG/Opus and PCM WAV have pure Go fallbacks.
func ConvertToFloat32(audio []byte, enc Encoding) ([]float32, error) {
	if ffmpegAvailable() {
		L_debug("stt: using ffmpeg", "encoding", enc, "bytes", len(audio))
		return convertWithFFmpeg(audio, enc)
	}

	switch enc {
	case EncodingOggOpus:
		samples, err := decodeOggOpusSafe(audio)
		if err != nil {
			return nil, fmt.Errorf("OGG decoding failed (%v) - install ffmpeg for reliable audio conversion", err)
		}
		return samples, nil
	case EncodingLinear16:
		return decodeWAV(audio)
	}

	return nil, fmt.Errorf("unsupported audio encoding %q (install ffmpeg)", enc)
}

// decodeOggOpusSafe recovers from decoder panics on malformed streams.
func decodeOggOpusSafe(audio []byte) (samples []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			L_warn("stt: pure Go decoder panicked, recovered", "panic", r)
			err = fmt.Errorf("decoder panic: %v", r)
			samples = nil
		}
	}()
	return decodeOggOpus(audio)
}

func decodeOggOpus(audio []byte) ([]float32, error) {
	ogg, header, err := oggreader.NewWith(bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("parse OGG container: %w", err)
	}

	sampleRate := int(header.SampleRate)
	channels := int(header.Channels)
	L_debug("stt: OGG header", "sampleRate", sampleRate, "channels", channels)

	decoder := opus.NewDecoder()
	outBuf := make([]byte, maxFrameSize*channels*2)

	var all []int16
	for {
		segments, _, err := ogg.ParseNextPage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse OGG page: %w", err)
		}

		for _, segment := range segments {
			if len(segment) == 0 {
				continue
			}
			_, isStereo, err := decoder.Decode(segment, outBuf)
			if err != nil {
				L_trace("stt: skipping packet", "error", err, "len", len(segment))
				continue
			}
			if isStereo && channels == 1 {
				channels = 2
			}
			all = append(all, bytesToInt16(outBuf)...)
		}
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("no audio samples decoded")
	}

	return finishPCM(all, sampleRate, channels), nil
}

// decodeWAV reads a canonical 16-bit PCM RIFF/WAVE stream.
func decodeWAV(audio []byte) ([]float32, error) {
	if len(audio) < 12 || string(audio[0:4]) != "RIFF" || string(audio[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a WAV stream")
	}

	var (
		channels, bits int
		sampleRate     int
		data           []byte
	)
	for off := 12; off+8 <= len(audio); {
		id := string(audio[off : off+4])
		size := int(binary.LittleEndian.Uint32(audio[off+4 : off+8]))
		body := off + 8
		end := body + size
		if end > len(audio) {
			end = len(audio)
		}
		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, fmt.Errorf("short fmt chunk")
			}
			channels = int(binary.LittleEndian.Uint16(audio[body+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(audio[body+4:]))
			bits = int(binary.LittleEndian.Uint16(audio[body+14:]))
		case "data":
			data = audio[body:end]
		}
		off = body + size + size%2
	}

	if bits != 16 || channels == 0 || sampleRate == 0 {
		return nil, fmt.Errorf("unsupported WAV format: %d-bit, %d channels, %d Hz", bits, channels, sampleRate)
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:])) // #nosec G115 - PCM sample reinterpretation
	}
	return finishPCM(samples, sampleRate, channels), nil
}

// finishPCM downmixes, resamples and normalizes interleaved samples.
func finishPCM(samples []int16, sampleRate, channels int) []float32 {
	if channels > 1 {
		samples = toMono(samples, channels)
	}
	if sampleRate != targetSampleRate {
		L_debug("stt: resampling", "from", sampleRate, "to", targetSampleRate)
		samples = resampleInt16(samples, sampleRate, targetSampleRate)
	}
	return int16ToFloat32(samples)
}

// bytesToInt16 converts a decoder buffer to int16 samples, dropping trailing silence padding.
func bytesToInt16(buf []byte) []int16 {
	samples := make([]int16, 0, len(buf)/2)

	for i := 0; i < len(buf)-1; i += 2 {
		sample := int16(binary.LittleEndian.Uint16(buf[i : i+2])) // #nosec G115 - PCM sample reinterpretation
		if sample == 0 && i > 0 {
			allZero := true
			for j := i; j < len(buf)-1; j += 2 {
				if binary.LittleEndian.Uint16(buf[j:j+2]) != 0 {
					allZero = false
					break
				}
			}
			if allZero {
				break
			}
		}
		samples = append(samples, sample)
	}
	return samples
}

func toMono(samples []int16, channels int) []int16 {
	mono := make([]int16, len(samples)/channels)
	for i := range mono {
		var sum int32
		for ch := 0; ch < channels; ch++ {
			sum += int32(samples[i*channels+ch])
		}
		mono[i] = int16(sum / int32(channels)) // #nosec G115 - channels is small
	}
	return mono
}

func resampleInt16(samples []int16, fromRate, toRate int) []int16 {
	resampler, err := gomplerate.NewResampler(1, fromRate, toRate)
	if err != nil {
		L_warn("stt: resampler creation failed, skipping resample", "error", err)
		return samples
	}
	return resampler.ResampleInt16(samples)
}

func int16ToFloat32(samples []int16) []float32 {
	result := make([]float32, len(samples))
	for i, s := range samples {
		result[i] = float32(s) / 32768.0
	}
	return result
}

func ffmpegAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// convertWithFFmpeg pipes the audio through ffmpeg to raw 16kHz mono PCM.
func convertWithFFmpeg(audio []byte, enc Encoding) ([]float32, error) {
	in, err := os.CreateTemp("", "minutes-stt-*"+encodingExts[enc])
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	inPath := in.Name()
	defer os.Remove(inPath)

	if _, err := in.Write(audio); err != nil {
		in.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := in.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	// #nosec G204 - inputs are our own temp file and constants
	cmd := exec.Command("ffmpeg",
		"-i", inPath,
		"-ar", fmt.Sprintf("%d", targetSampleRate),
		"-ac", "1",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	raw, err := cmd.Output()
	if err != nil {
		L_debug("stt: ffmpeg output", "output", stderr.String())
		return nil, fmt.Errorf("ffmpeg conversion failed: %w", err)
	}

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(raw[i*2]) | int16(raw[i*2+1])<<8
	}
	return int16ToFloat32(samples), nil
}
