package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultImaggaURL is the tags endpoint.
const DefaultImaggaURL = "https://api.imagga.com/v2/tags"

// ErrNoKeywords is returned for activity types without a keyword list.
var ErrNoKeywords = errors.New("verify: no keywords for activity type")

// Imagga verifies images through the Imagga tagging API.
type Imagga struct {
	url     string
	key     string
	secret  string
	timeout time.Duration
	client  *http.Client
	log     *zap.Logger
}

// NewImagga constructs a client. timeout bounds each call.
func NewImagga(url, key, secret string, timeout time.Duration, log *zap.Logger) *Imagga {
	if url == "" {
		url = DefaultImaggaURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Imagga{url: url, key: key, secret: secret, timeout: timeout, client: &http.Client{}, log: log}
}

type tagsResponse struct {
	Result struct {
		Tags []struct {
			Confidence float64 `json:"confidence"`
			Tag        struct {
				En string `json:"en"`
			} `json:"tag"`
		} `json:"tags"`
	} `json:"result"`
	Status struct {
		Text string `json:"text"`
		Type string `json:"type"`
	} `json:"status"`
}

// Verify uploads the image and matches its tags against the activity keywords.
// Any transport or API failure yields Unverifiable with the error.
func (v *Imagga) Verify(ctx context.Context, activityType string, image []byte, mime string) (Verdict, error) {
	preset, ok := Presets[activityType]
	if !ok {
		return Unverifiable, ErrNoKeywords
	}
	tags, err := v.tags(ctx, image, mime)
	if err != nil {
		return Unverifiable, err
	}
	if Match(tags, preset.Keywords) {
		return Accepted, nil
	}
	v.log.Info("image tags do not match activity",
		zap.String("activity_type", activityType), zap.Int("tags", len(tags)))
	return Rejected, nil
}

func (v *Imagga) tags(ctx context.Context, image []byte, mime string) ([]string, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "upload"+extFor(mime))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(image); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth(v.key, v.secret)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagga request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("imagga status %d", resp.StatusCode)
	}
	var tr tagsResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, fmt.Errorf("imagga decode: %w", err)
	}
	if tr.Status.Type == "error" {
		return nil, fmt.Errorf("imagga: %s", tr.Status.Text)
	}
	out := make([]string, 0, len(tr.Result.Tags))
	for _, t := range tr.Result.Tags {
		out = append(out, t.Tag.En)
	}
	return out, nil
}

func extFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
