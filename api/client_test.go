package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, log.New(io.Discard))
}

func TestRecognize(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathRecognize {
			t.Errorf("path = %q", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		if r.PostForm.Get("audio_data") != "data:audio/ogg;base64,AAAA" {
			t.Errorf("audio_data = %q", r.PostForm.Get("audio_data"))
		}
		if r.PostForm.Get("source_lang") != "ko" {
			t.Errorf("source_lang = %q", r.PostForm.Get("source_lang"))
		}
		io.WriteString(w, `{"recognizedText":"안녕하세요","cleanedAudio":"abc","originalFileUrl":"/files/o1.wav","denoisedFileUrl":"/files/d1.wav"}`)
	})

	got, err := c.Recognize(context.Background(), "data:audio/ogg;base64,AAAA", "ko")
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if got.RecognizedText != "안녕하세요" || got.CleanedAudio != "abc" {
		t.Errorf("unexpected recognition: %+v", got)
	}
	if got.OriginalFileURL != c.BaseURL+"/files/o1.wav" {
		t.Errorf("OriginalFileURL = %q", got.OriginalFileURL)
	}
	if got.DenoisedFileURL != c.BaseURL+"/files/d1.wav" {
		t.Errorf("DenoisedFileURL = %q", got.DenoisedFileURL)
	}
}

func TestTranslate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("text") != "안녕하세요" || r.PostForm.Get("target_lang") != "en" {
			t.Errorf("form = %v", r.PostForm)
		}
		io.WriteString(w, `{"translatedText":"Hello"}`)
	})

	got, err := c.Translate(context.Background(), "안녕하세요", "ko", "en")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != "Hello" {
		t.Errorf("Translate() = %q", got)
	}
}

func TestErrorPolicy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		service bool
		network bool
		message string
	}{
		{"error field with 200", 200, `{"error":"x"}`, true, false, "x"},
		{"error object", 200, `{"error":{"code":1}}`, true, false, `{"code":1}`},
		{"null error", 200, `{"error":null,"translatedText":"ok"}`, false, false, ""},
		{"server error", 500, `{"detail":"boom"}`, false, true, ""},
		{"error field with 500", 500, `{"error":"boom"}`, true, false, "boom"},
		{"not found", 404, ``, false, true, ""},
		{"malformed", 200, `<html>`, false, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := c.Translate(context.Background(), "a", "ko", "en")
			if errors.Is(err, ErrService) != tt.service {
				t.Errorf("errors.Is(ErrService) = %v, err = %v", !tt.service, err)
			}
			if errors.Is(err, ErrNetwork) != tt.network {
				t.Errorf("errors.Is(ErrNetwork) = %v, err = %v", !tt.network, err)
			}
			if !tt.service && !tt.network && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			var se *ServiceError
			if tt.service {
				if !errors.As(err, &se) {
					t.Fatalf("expected *ServiceError, got %T", err)
				}
				if se.Message != tt.message || se.Endpoint != PathTranslate {
					t.Errorf("ServiceError = %+v", se)
				}
			}
		})
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := New(srv.URL, log.New(io.Discard))
	srv.Close()

	_, err := c.Recognize(context.Background(), "data:,", "en")
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
}

func TestContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Translate(ctx, "a", "ko", "en")
	if !errors.Is(err, context.Canceled) || !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v", err)
	}
}

func TestDenoise(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathDenoise {
			t.Errorf("path = %q", r.URL.Path)
		}
		file, header, err := r.FormFile("noisy_file")
		if err != nil {
			t.Errorf("FormFile failed: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "noisy.wav" || string(data) != "RIFF" {
			t.Errorf("upload = %q %q", header.Filename, data)
		}
		io.WriteString(w, `{"originalFile":"/static/noisy.wav","denoisedFile":"https://cdn.example/d.wav"}`)
	})

	got, err := c.Denoise(context.Background(), "noisy.wav", strings.NewReader("RIFF"))
	if err != nil {
		t.Fatalf("Denoise() error = %v", err)
	}
	if got.OriginalFileURL != c.BaseURL+"/static/noisy.wav" {
		t.Errorf("OriginalFileURL = %q", got.OriginalFileURL)
	}
	if got.DenoisedFileURL != "https://cdn.example/d.wav" {
		t.Errorf("DenoisedFileURL = %q", got.DenoisedFileURL)
	}
}

func TestSynthesize(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("text") != "hi" || r.PostForm.Get("target_lang") != "en" {
			t.Errorf("form = %v", r.PostForm)
		}
		io.WriteString(w, `{"audioData":"data:audio/wav;base64,UklGRg=="}`)
	})

	got, err := c.Synthesize(context.Background(), "hi", "en")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if got != "data:audio/wav;base64,UklGRg==" {
		t.Errorf("Synthesize() = %q", got)
	}
}

func TestResolve(t *testing.T) {
	c := New("http://localhost:8000/", nil)

	tests := map[string]string{
		"":                    "",
		"/files/o1.wav":       "http://localhost:8000/files/o1.wav",
		"files/o1.wav":        "http://localhost:8000/files/o1.wav",
		"http://x.test/a.wav": "http://x.test/a.wav",
	}
	for in, want := range tests {
		if got := c.Resolve(in); got != want {
			t.Errorf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}
}
