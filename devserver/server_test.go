package devserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"node.town/mindy/api"
	"node.town/mindy/audio"
	"node.town/mindy/pipeline"
	"node.town/mindy/recorder"
	"node.town/mindy/source"
)

func newTestServer(t *testing.T, mutate func(*Options)) (*httptest.Server, *api.Client) {
	t.Helper()
	opts := DefaultOptions()
	opts.Logger = log.New(io.Discard)
	if mutate != nil {
		mutate(&opts)
	}
	srv := httptest.NewServer(New(opts).Handler())
	t.Cleanup(srv.Close)
	return srv, api.New(srv.URL, log.New(io.Discard))
}

func wavPayload(t *testing.T) source.Payload {
	t.Helper()
	clip, err := audio.EncodeWAV(audio.Tone(220, 16000, 1600), 16000)
	if err != nil {
		t.Fatal(err)
	}
	p, err := source.FromBytes("hello.wav", clip, audio.WAVMIMEType, "ko")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestEndToEnd(t *testing.T) {
	srv, client := newTestServer(t, nil)
	o := pipeline.New(client, nil, log.New(io.Discard))

	res, err := o.Run(context.Background(), wavPayload(t), "ko", "en")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.RecognizedText != "안녕하세요" || res.TranslatedText != "Hello" {
		t.Errorf("Run() = %+v", res)
	}
	for _, u := range []string{res.OriginalAudioURL, res.DenoisedAudioURL} {
		if !strings.HasPrefix(u, srv.URL+"/static/") {
			t.Errorf("URL %q is not resolved against %s", u, srv.URL)
			continue
		}
		resp, err := http.Get(u)
		if err != nil {
			t.Fatalf("GET %s: %v", u, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != audio.WAVMIMEType {
			t.Errorf("GET %s = %d %q", u, resp.StatusCode, resp.Header.Get("Content-Type"))
		}
	}
	if !strings.HasPrefix(res.CleanedAudio, "data:audio/wav;base64,") {
		t.Errorf("CleanedAudio = %.40q", res.CleanedAudio)
	}
	if o.Snapshot().State.Stage != pipeline.Ready {
		t.Errorf("stage = %v", o.Snapshot().State.Stage)
	}
}

func TestEndToEndRecording(t *testing.T) {
	_, client := newTestServer(t, nil)
	o := pipeline.New(client, nil, log.New(io.Discard))

	blob := recorder.Blob{Data: []byte("OggS fake"), MIMEType: audio.OggMIMEType}
	res, err := o.Run(context.Background(), source.FromRecording(blob, "ko"), "ko", "ja")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.TranslatedText != "こんにちは" {
		t.Errorf("TranslatedText = %q", res.TranslatedText)
	}
	if !strings.HasSuffix(res.OriginalAudioURL, ".ogg") {
		t.Errorf("OriginalAudioURL = %q", res.OriginalAudioURL)
	}
}

func TestInjectedTranslateError(t *testing.T) {
	_, client := newTestServer(t, func(o *Options) {
		o.Fail = map[string]string{api.PathTranslate: "x"}
	})
	o := pipeline.New(client, nil, log.New(io.Discard))

	_, err := o.Run(context.Background(), wavPayload(t), "ko", "en")

	var se *api.ServiceError
	if !errors.As(err, &se) || se.Message != "x" {
		t.Fatalf("Run() error = %v, want service error x", err)
	}
	snap := o.Snapshot()
	if snap.State.Stage != pipeline.Failed {
		t.Errorf("stage = %v", snap.State.Stage)
	}
	if snap.Result.RecognizedText != "안녕하세요" || snap.Result.TranslatedText != "" {
		t.Errorf("result = %+v", snap.Result)
	}
}

func TestInjectedStatus(t *testing.T) {
	_, client := newTestServer(t, func(o *Options) {
		o.FailStatus = map[string]int{api.PathRecognize: http.StatusBadGateway}
	})

	_, err := client.Recognize(context.Background(), "data:audio/wav;base64,UklGRg==", "ko")
	if !errors.Is(err, api.ErrNetwork) {
		t.Errorf("Recognize() error = %v, want ErrNetwork", err)
	}
}

func TestMissingFields(t *testing.T) {
	_, client := newTestServer(t, nil)

	_, err := client.Recognize(context.Background(), "", "ko")
	if !errors.Is(err, api.ErrService) {
		t.Errorf("Recognize(empty) error = %v, want ErrService", err)
	}
	_, err = client.Synthesize(context.Background(), " ", "en")
	if !errors.Is(err, api.ErrService) {
		t.Errorf("Synthesize(blank) error = %v, want ErrService", err)
	}
}

func TestDenoiseUpload(t *testing.T) {
	srv, client := newTestServer(t, nil)

	clip, err := audio.EncodeWAV([]int16{10, 20000, -10}, 16000)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "noisy.wav")
	if err := os.WriteFile(path, clip, 0o644); err != nil {
		t.Fatal(err)
	}

	o := pipeline.New(client, nil, log.New(io.Discard))
	res, err := o.Denoise(context.Background(), path)
	if err != nil {
		t.Fatalf("Denoise() error = %v", err)
	}
	if !strings.HasPrefix(res.DenoisedAudioURL, srv.URL+"/static/denoised_") {
		t.Errorf("DenoisedAudioURL = %q", res.DenoisedAudioURL)
	}

	resp, err := http.Get(res.DenoisedAudioURL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if len(data) != len(clip) {
		t.Errorf("denoised clip has %d bytes, want %d", len(data), len(clip))
	}

	_, err = client.Denoise(context.Background(), "junk.wav", strings.NewReader("junk"))
	if !errors.Is(err, api.ErrService) {
		t.Errorf("Denoise(junk) error = %v, want ErrService", err)
	}
}

func TestSynthesize(t *testing.T) {
	_, client := newTestServer(t, nil)

	got, err := client.Synthesize(context.Background(), "hi", "en")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if !strings.HasPrefix(got, "data:audio/wav;base64,") {
		t.Errorf("audioData = %.40q", got)
	}
}

func TestStaticNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/static/nope.wav")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
