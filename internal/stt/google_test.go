package stt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// testWAV builds a tiny 16-bit mono PCM WAV stream.
func testWAV(sampleRate int, samples int) []byte {
	data := make([]byte, samples*2)
	buf := make([]byte, 0, 44+len(data))
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+len(data)))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // PCM
	buf = binary.LittleEndian.AppendUint16(buf, 1) // mono
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(sampleRate*2))
	buf = binary.LittleEndian.AppendUint16(buf, 2)
	buf = binary.LittleEndian.AppendUint16(buf, 16)
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

type recognizeCapture struct {
	key  string
	body struct {
		Config map[string]interface{} `json:"config"`
		Audio  struct {
			Content string `json:"content"`
		} `json:"audio"`
	}
}

func newGoogleTestServer(t *testing.T, status int, response string, capture *recognizeCapture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if capture != nil {
			capture.key = r.URL.Query().Get("key")
			if err := json.NewDecoder(r.Body).Decode(&capture.body); err != nil {
				t.Errorf("decode request body: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleTranscribeJoinsResults(t *testing.T) {
	var capture recognizeCapture
	srv := newGoogleTestServer(t, http.StatusOK, `{"results":[
		{"alternatives":[{"transcript":"bom dia a todos","confidence":0.9},{"transcript":"bom dia atodos"}]},
		{"alternatives":[{"transcript":" vamos começar "}]}
	]}`, &capture)

	g, err := NewGoogleProvider(GoogleConfig{APIKey: "test-key", Endpoint: srv.URL, SampleRateHertz: 16000}, "", 5*time.Second)
	if err != nil {
		t.Fatalf("NewGoogleProvider failed: %v", err)
	}

	got, err := g.Transcribe(context.Background(), Request{Audio: testWAV(16000, 160)})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if got != "bom dia a todos vamos começar" {
		t.Errorf("transcript = %q", got)
	}

	if capture.key != "test-key" {
		t.Errorf("key = %q, want test-key", capture.key)
	}
	if capture.body.Config["languageCode"] != "pt-BR" {
		t.Errorf("languageCode = %v, want pt-BR", capture.body.Config["languageCode"])
	}
	if capture.body.Config["encoding"] != "LINEAR16" {
		t.Errorf("encoding = %v, want LINEAR16", capture.body.Config["encoding"])
	}
	if rate, _ := capture.body.Config["sampleRateHertz"].(float64); rate != 16000 {
		t.Errorf("sampleRateHertz = %v, want 16000", capture.body.Config["sampleRateHertz"])
	}
	if capture.body.Audio.Content == "" {
		t.Error("audio content not sent")
	}
}

func TestGoogleTranscribeNoSpeech(t *testing.T) {
	srv := newGoogleTestServer(t, http.StatusOK, `{}`, nil)

	g, err := NewGoogleProvider(GoogleConfig{APIKey: "k", Endpoint: srv.URL}, "pt-BR", 5*time.Second)
	if err != nil {
		t.Fatalf("NewGoogleProvider failed: %v", err)
	}

	got, err := g.Transcribe(context.Background(), Request{Audio: testWAV(8000, 10), SampleRate: 8000})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if got != "" {
		t.Errorf("transcript = %q, want empty", got)
	}
}

func TestGoogleTranscribeAPIError(t *testing.T) {
	srv := newGoogleTestServer(t, http.StatusBadRequest, `{"error":{"code":400,"message":"Invalid recognition config"}}`, nil)

	g, err := NewGoogleProvider(GoogleConfig{APIKey: "k", Endpoint: srv.URL}, "", 5*time.Second)
	if err != nil {
		t.Fatalf("NewGoogleProvider failed: %v", err)
	}

	_, err = g.Transcribe(context.Background(), Request{Audio: testWAV(16000, 10)})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Invalid recognition config") {
		t.Errorf("error = %v, want provider message", err)
	}
}

func TestGoogleTranscribeEmptyAudio(t *testing.T) {
	g, err := NewGoogleProvider(GoogleConfig{APIKey: "k", Endpoint: "http://127.0.0.1:1"}, "", time.Second)
	if err != nil {
		t.Fatalf("NewGoogleProvider failed: %v", err)
	}
	if _, err := g.Transcribe(context.Background(), Request{}); err != ErrEmptyAudio {
		t.Errorf("err = %v, want ErrEmptyAudio", err)
	}
}

func TestGoogleCredentialsRequired(t *testing.T) {
	t.Setenv(googleCredsEnv, "")

	if _, err := NewGoogleProvider(GoogleConfig{}, "", time.Second); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewGoogleProvider(GoogleConfig{CredentialsJSON: "{not json"}, "", time.Second); err == nil {
		t.Error("expected error for malformed inline credentials")
	}
	if _, err := NewGoogleProvider(GoogleConfig{CredentialsFile: "/nonexistent/creds.json"}, "", time.Second); err == nil {
		t.Error("expected error for missing credentials file")
	}
}

func TestGoogleCredentialOrder(t *testing.T) {
	// The env file does not exist, so reaching it would fail
	t.Setenv(googleCredsEnv, "/nonexistent/env-creds.json")

	g, err := NewGoogleProvider(GoogleConfig{APIKey: "k"}, "", time.Second)
	if err != nil {
		t.Fatalf("api key with env set: %v", err)
	}
	if g.auth != "apiKey" {
		t.Errorf("auth = %q, want apiKey", g.auth)
	}

	if _, err := NewGoogleProvider(GoogleConfig{}, "", time.Second); err == nil {
		t.Error("expected env credentials to be read without an api key")
	}
	if _, err := NewGoogleProvider(GoogleConfig{APIKey: "k", CredentialsFile: "/nonexistent/creds.json"}, "", time.Second); err == nil {
		t.Error("credentials file should win over api key")
	}
}

func TestGoogleSampleRateFallback(t *testing.T) {
	g := &GoogleProvider{config: GoogleConfig{SampleRateHertz: 16000}}

	tests := []struct {
		name string
		req  Request
		want int
	}{
		{"linear16 uses config", Request{Encoding: EncodingLinear16}, 16000},
		{"request rate wins over config", Request{Encoding: EncodingLinear16, SampleRate: 8000}, 8000},
		{"unreadable ogg header uses declared", Request{Encoding: EncodingOggOpus, Audio: []byte("OggS garbage")}, 16000},
		{"mp3 left to detection", Request{Encoding: EncodingMP3}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.sampleRateFor(tt.req); got != tt.want {
				t.Errorf("sampleRateFor = %d, want %d", got, tt.want)
			}
		})
	}

	bare := &GoogleProvider{}
	if got := bare.sampleRateFor(Request{Encoding: EncodingOggOpus, Audio: []byte("x")}); got != defaultOggRate {
		t.Errorf("ogg default = %d, want %d", got, defaultOggRate)
	}
}
