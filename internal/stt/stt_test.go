package stt

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func testOgg() []byte {
	b := make([]byte, 64)
	copy(b, "OggS")
	copy(b[28:], "OpusHead")
	return b
}

func TestDetectEncoding(t *testing.T) {
	tests := []struct {
		name  string
		audio []byte
		want  Encoding
	}{
		{"wav", testWAV(16000, 4), EncodingLinear16},
		{"ogg opus", testOgg(), EncodingOggOpus},
		{"plain text", []byte("isto não é áudio"), EncodingUnspecified},
		{"empty", nil, EncodingUnspecified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectEncoding(tt.audio); got != tt.want {
				t.Errorf("DetectEncoding = %q, want %q", got, tt.want)
			}
		})
	}

	if IsAudio([]byte("hello")) {
		t.Error("text reported as audio")
	}
}

func TestEncodingFilename(t *testing.T) {
	if got := EncodingOggOpus.Filename(); got != "audio.ogg" {
		t.Errorf("ogg filename = %q", got)
	}
	if got := EncodingUnspecified.Filename(); got != "audio.bin" {
		t.Errorf("unspecified filename = %q", got)
	}
}

func TestRequestResolve(t *testing.T) {
	r := Request{Audio: testWAV(16000, 4)}.resolve("")
	if r.Encoding != EncodingLinear16 {
		t.Errorf("encoding = %q", r.Encoding)
	}
	if r.LanguageCode != DefaultLanguageCode {
		t.Errorf("language = %q", r.LanguageCode)
	}

	r = Request{Encoding: EncodingMP3, LanguageCode: "en-US"}.resolve("pt-BR")
	if r.Encoding != EncodingMP3 || r.LanguageCode != "en-US" {
		t.Errorf("explicit values overwritten: %+v", r)
	}

	r = Request{}.resolve("es-ES")
	if r.LanguageCode != "es-ES" {
		t.Errorf("default language = %q", r.LanguageCode)
	}
}

func TestBaseLanguage(t *testing.T) {
	for in, want := range map[string]string{"pt-BR": "pt", "en_US": "en", "DE": "de", "": ""} {
		if got := baseLanguage(in); got != want {
			t.Errorf("baseLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestJoinTranscripts(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{nil, ""},
		{[]string{"  "}, ""},
		{[]string{"olá", "mundo"}, "olá mundo"},
		{[]string{" primeira parte ", "", "segunda"}, "primeira parte segunda"},
	}
	for _, tt := range tests {
		if got := JoinTranscripts(tt.parts); got != tt.want {
			t.Errorf("JoinTranscripts(%q) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}

func TestMockProvider(t *testing.T) {
	m := NewMockProvider(MockConfig{})
	got, err := m.Transcribe(context.Background(), Request{Audio: testWAV(16000, 4)})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if !strings.Contains(got, "LINEAR16") {
		t.Errorf("transcript = %q, want encoding mentioned", got)
	}

	fixed := NewMockProvider(MockConfig{Text: "texto fixo"})
	if got, _ := fixed.Transcribe(context.Background(), Request{Audio: []byte{1}}); got != "texto fixo" {
		t.Errorf("fixed transcript = %q", got)
	}

	if _, err := m.Transcribe(context.Background(), Request{}); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("empty audio err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Transcribe(ctx, Request{Audio: []byte{1}}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled err = %v", err)
	}
}

func TestNewProviderSelection(t *testing.T) {
	p, err := New(Config{})
	if err != nil || p != nil {
		t.Errorf("empty provider = %v, %v; want nil, nil", p, err)
	}

	p, err = New(Config{Provider: "mock"})
	if err != nil {
		t.Fatalf("mock: %v", err)
	}
	if p.Name() != "mock" {
		t.Errorf("name = %q", p.Name())
	}

	if _, err := New(Config{Provider: "carrier-pigeon"}); err == nil {
		t.Error("unknown provider should fail")
	}
}

func TestManager(t *testing.T) {
	m := NewManager()
	if m.Name() != "none" {
		t.Errorf("name = %q, want none", m.Name())
	}
	if _, err := m.Transcribe(context.Background(), Request{Audio: []byte{1}}); !errors.Is(err, ErrNoProvider) {
		t.Errorf("err = %v, want ErrNoProvider", err)
	}

	if err := m.ApplyConfig(Config{Provider: "mock", Mock: MockConfig{Text: "ata"}}); err != nil {
		t.Fatalf("ApplyConfig: %v", err)
	}
	got, err := m.Transcribe(context.Background(), Request{Audio: []byte{1}})
	if err != nil || got != "ata" {
		t.Errorf("Transcribe = %q, %v", got, err)
	}

	err = m.ApplyConfig(Config{Provider: "openai"})
	if err == nil {
		t.Fatal("openai without key should fail")
	}
	_, err = m.Transcribe(context.Background(), Request{Audio: []byte{1}})
	if !errors.Is(err, ErrNoProvider) || !strings.Contains(err.Error(), "API key") {
		t.Errorf("err = %v, want ErrNoProvider with cause", err)
	}

	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestConfigTimeout(t *testing.T) {
	if got := (Config{}).Timeout(); got != DefaultTimeout {
		t.Errorf("zero timeout = %v, want %v", got, DefaultTimeout)
	}
	if got := (Config{TimeoutSeconds: -5}).Timeout(); got != DefaultTimeout {
		t.Errorf("negative timeout = %v, want %v", got, DefaultTimeout)
	}
	if got := (Config{TimeoutSeconds: 15}).Timeout(); got != 15*time.Second {
		t.Errorf("timeout = %v, want 15s", got)
	}
}

// blockingProvider holds Transcribe until release is closed.
type blockingProvider struct {
	started chan struct{}
	release chan struct{}
	closed  chan struct{}
}

func newBlockingProvider() *blockingProvider {
	return &blockingProvider{
		started: make(chan struct{}),
		release: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

func (b *blockingProvider) Transcribe(ctx context.Context, req Request) (string, error) {
	close(b.started)
	<-b.release
	select {
	case <-b.closed:
		return "", errors.New("used after close")
	default:
	}
	return "done", nil
}

func (b *blockingProvider) Name() string { return "blocking" }

func (b *blockingProvider) Close() error {
	close(b.closed)
	return nil
}

func TestManagerSwapWaitsForInflight(t *testing.T) {
	m := NewManager()
	old := newBlockingProvider()
	m.swap(old, nil)

	result := make(chan error, 1)
	go func() {
		_, err := m.Transcribe(context.Background(), Request{Audio: []byte{1}})
		result <- err
	}()
	<-old.started

	swapped := make(chan struct{})
	go func() {
		m.swap(NewMockProvider(MockConfig{Text: "novo"}), nil)
		close(swapped)
	}()

	select {
	case <-old.closed:
		t.Fatal("provider closed while a call was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(old.release)
	if err := <-result; err != nil {
		t.Fatalf("in-flight Transcribe: %v", err)
	}

	select {
	case <-swapped:
	case <-time.After(2 * time.Second):
		t.Fatal("swap did not finish after the call returned")
	}
	select {
	case <-old.closed:
	default:
		t.Fatal("old provider not closed")
	}

	if got, err := m.Transcribe(context.Background(), Request{Audio: []byte{1}}); err != nil || got != "novo" {
		t.Errorf("Transcribe after swap = %q, %v", got, err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
