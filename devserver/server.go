package devserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/vincent-petithory/dataurl"
	"node.town/mindy/api"
	"node.town/mindy/audio"
	"node.town/mindy/etc"
)

const maxUpload = 32 << 20

type Options struct {
	// Transcript is what every recognition returns.
	Transcript string
	// Translations maps "src:tgt:text" to a canned translation. Anything
	// else is echoed with a language tag.
	Translations map[string]string
	// Fail maps an endpoint path to an error message returned in the body
	// with status 200, the way the real backend reports failures.
	Fail map[string]string
	// FailStatus maps an endpoint path to an HTTP status to answer with.
	FailStatus map[string]int
	// Latency delays every API response.
	Latency time.Duration
	// RateLimit is requests per minute per client; zero disables it.
	RateLimit  int
	NoiseFloor float64
	Logger     *log.Logger
}

func DefaultOptions() Options {
	return Options{
		Transcript: "안녕하세요",
		Translations: map[string]string{
			"ko:en:안녕하세요": "Hello",
			"ko:ja:안녕하세요": "こんにちは",
			"ko:zh:안녕하세요": "你好",
			"ko:es:안녕하세요": "Hola",
		},
		RateLimit:  120,
		NoiseFloor: 0.02,
	}
}

// Server is an in-memory stand-in for the speech backend.
type Server struct {
	opts   Options
	log    *log.Logger
	router chi.Router

	mu    sync.RWMutex
	files map[string]file
}

type file struct {
	data     []byte
	mimeType string
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	s := &Server{
		opts:  opts,
		log:   opts.Logger,
		files: make(map[string]file),
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		if s.opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.opts.RateLimit, time.Minute))
		}
		r.Use(s.injectFailures)

		r.Post("/stt", s.handleRecognize)
		r.Post("/clean-noise", s.handleCleanNoise)
		r.Post("/translate-text", s.handleTranslate)
		r.Post("/tts", s.handleSynthesize)
		r.Post("/denoise-upload", s.handleDenoiseUpload)
	})

	r.Get("/static/{name}", s.handleStatic)
	return r
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(start),
		)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Latency > 0 {
			select {
			case <-time.After(s.opts.Latency):
			case <-r.Context().Done():
				return
			}
		}
		if status, ok := s.opts.FailStatus[r.URL.Path]; ok {
			http.Error(w, http.StatusText(status), status)
			return
		}
		if msg, ok := s.opts.Fail[r.URL.Path]; ok {
			writeError(w, msg)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	audioData := r.PostFormValue("audio_data")
	if audioData == "" || r.PostFormValue("source_lang") == "" {
		writeError(w, "audio_data and source_lang are required")
		return
	}

	clip, err := dataurl.DecodeString(audioData)
	if err != nil {
		writeError(w, fmt.Sprintf("audio_data is not a data URL: %v", err))
		return
	}

	mimeType := clip.MediaType.ContentType()
	name := etc.NewFreshID() + extension(mimeType)
	cleaned := s.denoise(clip.Data, mimeType)
	original := s.store(name, clip.Data, mimeType)
	denoised := s.store("denoised_"+name, cleaned, mimeType)

	writeJSON(w, map[string]string{
		"recognizedText":  s.opts.Transcript,
		"cleanedAudio":    dataurl.New(cleaned, mimeType).String(),
		"originalFileUrl": original,
		"denoisedFileUrl": denoised,
	})
}

func (s *Server) handleCleanNoise(w http.ResponseWriter, r *http.Request) {
	clip, err := dataurl.DecodeString(r.PostFormValue("audio_data"))
	if err != nil {
		writeError(w, fmt.Sprintf("audio_data is not a data URL: %v", err))
		return
	}
	mimeType := clip.MediaType.ContentType()
	writeJSON(w, map[string]string{
		"cleanedAudio": dataurl.New(s.denoise(clip.Data, mimeType), mimeType).String(),
	})
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	text := r.PostFormValue("text")
	src := r.PostFormValue("source_lang")
	tgt := r.PostFormValue("target_lang")
	if src == "" || tgt == "" {
		writeError(w, "source_lang and target_lang are required")
		return
	}

	translated, ok := s.opts.Translations[src+":"+tgt+":"+text]
	if !ok {
		translated = fmt.Sprintf("[%s] %s", tgt, text)
	}
	writeJSON(w, map[string]string{"translatedText": translated})
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.PostFormValue("text"))
	if text == "" {
		writeError(w, "text is required")
		return
	}

	const rate = 16000
	n := min(len([]rune(text))*rate/10, 3*rate)
	clip, err := audio.EncodeWAV(audio.Tone(440, rate, n), rate)
	if err != nil {
		writeError(w, err.Error())
		return
	}
	writeJSON(w, map[string]string{
		"audioData": dataurl.New(clip, audio.WAVMIMEType).String(),
	})
}

func (s *Server) handleDenoiseUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, fmt.Sprintf("parse upload: %v", err))
		return
	}
	f, header, err := r.FormFile("noisy_file")
	if err != nil {
		writeError(w, "noisy_file is required")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, fmt.Sprintf("read upload: %v", err))
		return
	}

	name := path.Base(header.Filename)
	cleaned, err := audio.Gate(data, s.opts.NoiseFloor)
	if err != nil {
		writeError(w, err.Error())
		return
	}

	writeJSON(w, map[string]string{
		"originalFile": s.store(name, data, audio.WAVMIMEType),
		"denoisedFile": s.store("denoised_"+name, cleaned, audio.WAVMIMEType),
	})
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	f, ok := s.files[chi.URLParam(r, "name")]
	s.mu.RUnlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", f.mimeType)
	w.Write(f.data)
}

// denoise gates WAV audio and passes anything else through.
func (s *Server) denoise(data []byte, mimeType string) []byte {
	if !strings.Contains(mimeType, "wav") {
		return data
	}
	cleaned, err := audio.Gate(data, s.opts.NoiseFloor)
	if err != nil {
		s.log.Warn("denoise", "error", err)
		return data
	}
	return cleaned
}

func (s *Server) store(name string, data []byte, mimeType string) string {
	s.mu.Lock()
	s.files[name] = file{data: data, mimeType: mimeType}
	s.mu.Unlock()
	return "/static/" + name
}

func extension(mimeType string) string {
	switch mimeType {
	case audio.OggMIMEType:
		return ".ogg"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, msg string) {
	writeJSON(w, map[string]string{"error": msg})
}

// Paths lists the endpoints the server answers, for failure injection
// flags.
var Paths = []string{
	api.PathRecognize,
	api.PathTranslate,
	api.PathDenoise,
	api.PathSynthesize,
}
