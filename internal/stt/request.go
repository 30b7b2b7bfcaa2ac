package stt

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Encoding is an audio encoding hint, named after the Google RecognitionConfig values.
type Encoding string

const (
	EncodingUnspecified Encoding = ""
	EncodingOggOpus     Encoding = "OGG_OPUS"
	EncodingLinear16    Encoding = "LINEAR16"
	EncodingMP3         Encoding = "MP3"
	EncodingFLAC        Encoding = "FLAC"
	EncodingWebmOpus    Encoding = "WEBM_OPUS"
	EncodingAMR         Encoding = "AMR"
)

// Request is one transcription request.
type Request struct {
	Audio        []byte
	Encoding     Encoding // EncodingUnspecified = detect from content
	SampleRate   int      // 0 = detect or provider default
	LanguageCode string   // BCP-47, e.g. "pt-BR"
}

// mimeEncodings maps detected MIME types to encodings
var mimeEncodings = map[string]Encoding{
	"audio/ogg":       EncodingOggOpus,
	"application/ogg": EncodingOggOpus,
	"audio/wav":       EncodingLinear16,
	"audio/x-wav":     EncodingLinear16,
	"audio/mpeg":      EncodingMP3,
	"audio/flac":      EncodingFLAC,
	"audio/webm":      EncodingWebmOpus,
	"video/webm":      EncodingWebmOpus,
	"audio/amr":       EncodingAMR,
}

// encodingExts is the file extension used when a provider needs a filename
var encodingExts = map[Encoding]string{
	EncodingOggOpus:  ".ogg",
	EncodingLinear16: ".wav",
	EncodingMP3:      ".mp3",
	EncodingFLAC:     ".flac",
	EncodingWebmOpus: ".webm",
	EncodingAMR:      ".amr",
}

// DetectMIME returns the MIME type from magic bytes (not file extension).
func DetectMIME(audio []byte) string {
	return mimetype.Detect(audio).String()
}

// DetectEncoding sniffs the audio container and returns the matching encoding,
// or EncodingUnspecified when the format is not recognized.
func DetectEncoding(audio []byte) Encoding {
	for m := mimetype.Detect(audio); m != nil; m = m.Parent() {
		if enc, ok := mimeEncodings[m.String()]; ok {
			return enc
		}
	}
	return EncodingUnspecified
}

// IsAudio reports whether the bytes look like a supported audio container.
func IsAudio(audio []byte) bool {
	return DetectEncoding(audio) != EncodingUnspecified
}

// Filename returns a synthetic filename carrying the right extension for enc.
func (e Encoding) Filename() string {
	if ext, ok := encodingExts[e]; ok {
		return "audio" + ext
	}
	return "audio.bin"
}

// resolve fills in the encoding and language code.
func (r Request) resolve(defaultLang string) Request {
	if r.Encoding == EncodingUnspecified {
		r.Encoding = DetectEncoding(r.Audio)
	}
	if r.LanguageCode == "" {
		r.LanguageCode = defaultLang
	}
	if r.LanguageCode == "" {
		r.LanguageCode = DefaultLanguageCode
	}
	return r
}

// baseLanguage returns the ISO-639-1 part of a BCP-47 code ("pt-BR" -> "pt").
func baseLanguage(code string) string {
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	return strings.ToLower(code)
}
