package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// DeepgramSTT calls Deepgram's /v1/listen endpoint with raw linear PCM
// (no WAV container needed; sample rate travels in the Content-Type
// header, the query string carries model and smart_format).
type DeepgramSTT struct {
	apiKey string
	url    string
	model  string
}

func NewDeepgramSTT(apiKey string) *DeepgramSTT {
	return &DeepgramSTT{
		apiKey: apiKey,
		url:    "https://api.deepgram.com/v1/listen",
		model:  "nova-2",
	}
}

func (s *DeepgramSTT) Name() string { return "deepgram/" + s.model }

func (s *DeepgramSTT) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, float64, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", 0, err
	}
	params := u.Query()
	params.Set("model", s.model)
	params.Set("smart_format", "true")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), bytes.NewReader(pcm))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Authorization", "Token "+s.apiKey)
	req.Header.Set("Content-Type", fmt.Sprintf("audio/l16; rate=%d; channels=1", sampleRate))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", 0, networkErr(s.Name(), err, ctx.Err() != nil)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", 0, classifyStatus(s.Name(), resp, string(respBody))
	}

	var result struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string  `json:"transcript"`
					Confidence float64 `json:"confidence"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", 0, err
	}

	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return "", 0, nil
	}
	alt := result.Results.Channels[0].Alternatives[0]
	return alt.Transcript, alt.Confidence, nil
}
