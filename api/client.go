package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
)

const (
	PathRecognize  = "/api/stt"
	PathTranslate  = "/api/translate-text"
	PathDenoise    = "/api/denoise-upload"
	PathSynthesize = "/api/tts"
)

var (
	// ErrNetwork covers transport failures and non-success statuses.
	ErrNetwork = errors.New("network failure")
	// ErrService means the endpoint answered but reported an error.
	ErrService = errors.New("service error")
)

type ServiceError struct {
	Endpoint string
	Message  string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
}

func (e *ServiceError) Unwrap() error { return ErrService }

type Recognition struct {
	RecognizedText  string
	CleanedAudio    string
	OriginalFileURL string
	DenoisedFileURL string
}

type Denoised struct {
	OriginalFileURL string
	DenoisedFileURL string
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// New returns a client for the service at baseURL. The HTTP client has no
// timeout; callers bound requests through their context.
func New(baseURL string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
		Logger:     logger,
	}
}

// Resolve turns a server-relative path into an absolute URL. Absolute URLs
// and empty strings are returned unchanged.
func (c *Client) Resolve(path string) string {
	if path == "" {
		return ""
	}
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.BaseURL + path
}

func (c *Client) Recognize(
	ctx context.Context,
	audioData string,
	sourceLang string,
) (Recognition, error) {
	var resp struct {
		envelope
		RecognizedText  string `json:"recognizedText"`
		CleanedAudio    string `json:"cleanedAudio"`
		OriginalFileURL string `json:"originalFileUrl"`
		DenoisedFileURL string `json:"denoisedFileUrl"`
	}

	form := url.Values{}
	form.Set("audio_data", audioData)
	form.Set("source_lang", sourceLang)

	if err := c.postForm(ctx, PathRecognize, form, &resp); err != nil {
		return Recognition{}, err
	}
	if err := resp.check(PathRecognize); err != nil {
		return Recognition{}, err
	}

	return Recognition{
		RecognizedText:  resp.RecognizedText,
		CleanedAudio:    resp.CleanedAudio,
		OriginalFileURL: c.Resolve(resp.OriginalFileURL),
		DenoisedFileURL: c.Resolve(resp.DenoisedFileURL),
	}, nil
}

func (c *Client) Translate(
	ctx context.Context,
	text, sourceLang, targetLang string,
) (string, error) {
	var resp struct {
		envelope
		TranslatedText string `json:"translatedText"`
	}

	form := url.Values{}
	form.Set("text", text)
	form.Set("source_lang", sourceLang)
	form.Set("target_lang", targetLang)

	if err := c.postForm(ctx, PathTranslate, form, &resp); err != nil {
		return "", err
	}
	if err := resp.check(PathTranslate); err != nil {
		return "", err
	}
	return resp.TranslatedText, nil
}

// Synthesize asks the service to speak text and returns the audio as a data
// URL.
func (c *Client) Synthesize(
	ctx context.Context,
	text, targetLang string,
) (string, error) {
	var resp struct {
		envelope
		AudioData string `json:"audioData"`
	}

	form := url.Values{}
	form.Set("text", text)
	form.Set("target_lang", targetLang)

	if err := c.postForm(ctx, PathSynthesize, form, &resp); err != nil {
		return "", err
	}
	if err := resp.check(PathSynthesize); err != nil {
		return "", err
	}
	return resp.AudioData, nil
}

// Denoise uploads a noisy recording as the multipart field noisy_file.
func (c *Client) Denoise(
	ctx context.Context,
	filename string,
	audio io.Reader,
) (Denoised, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("noisy_file", filename)
	if err != nil {
		return Denoised{}, err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return Denoised{}, fmt.Errorf("read upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Denoised{}, err
	}

	var resp struct {
		envelope
		OriginalFile string `json:"originalFile"`
		DenoisedFile string `json:"denoisedFile"`
	}
	if err := c.post(ctx, PathDenoise, writer.FormDataContentType(), body, &resp); err != nil {
		return Denoised{}, err
	}
	if err := resp.check(PathDenoise); err != nil {
		return Denoised{}, err
	}

	return Denoised{
		OriginalFileURL: c.Resolve(resp.OriginalFile),
		DenoisedFileURL: c.Resolve(resp.DenoisedFile),
	}, nil
}

func (c *Client) postForm(
	ctx context.Context,
	path string,
	form url.Values,
	out any,
) error {
	return c.post(
		ctx,
		path,
		"application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()),
		out,
	)
}

func (c *Client) post(
	ctx context.Context,
	path string,
	contentType string,
	body io.Reader,
	out any,
) error {
	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNetwork, path, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	c.Logger.Debug("request", "path", path)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNetwork, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: read body: %w", ErrNetwork, path, err)
	}

	c.Logger.Debug("response", "path", path, "status", resp.StatusCode, "bytes", len(data))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env envelope
		if json.Unmarshal(data, &env) == nil {
			if err := env.check(path); err != nil {
				return err
			}
		}
		return fmt.Errorf(
			"%w: %s: unexpected status code: %d, response body: %s",
			ErrNetwork,
			path,
			resp.StatusCode,
			truncate(string(data), 200),
		)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: malformed response: %w", ErrNetwork, path, err)
	}
	return nil
}

// envelope is embedded in every response. A present, non-null error field
// fails the call whatever the HTTP status was.
type envelope struct {
	Error json.RawMessage `json:"error"`
}

func (e envelope) check(endpoint string) error {
	raw := bytes.TrimSpace(e.Error)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		msg = string(raw)
	}
	if msg == "" {
		msg = "unknown error"
	}
	return &ServiceError{Endpoint: endpoint, Message: msg}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
