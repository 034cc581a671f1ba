// Package app generates personality avatars through the OpenAI image API and
// stores them in S3.
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var httpc = &http.Client{Timeout: 30 * time.Second}

const imagesEndpoint = "https://api.openai.com/v1/images/generations"

type imageClient struct {
	apiKey string
}

func newImageClient(apiKey string) *imageClient {
	return &imageClient{apiKey: apiKey}
}

func (ic *imageClient) enabled() bool { return ic.apiKey != "" }

type imageRequest struct {
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

type httpError struct {
	Status int
	Body   string
}

func (e httpError) Error() string { return fmt.Sprintf("http %d: %s", e.Status, e.Body) }

// Generate asks the image API for a single 512x512 image and returns its
// temporary URL. Retries briefly on 429/5xx, same policy as other upstream
// calls.
func (ic *imageClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(imageRequest{
		Prompt:         prompt,
		N:              1,
		Size:           "512x512",
		ResponseFormat: "url",
	})
	if err != nil {
		return "", err
	}

	var last httpError
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, imagesEndpoint, bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+ic.apiKey)

		res, err := httpc.Do(req)
		if err != nil {
			return "", err
		}

		if res.StatusCode == http.StatusOK {
			var out imageResponse
			err := json.NewDecoder(res.Body).Decode(&out)
			res.Body.Close()
			if err != nil {
				return "", err
			}
			if len(out.Data) == 0 || out.Data[0].URL == "" {
				return "", fmt.Errorf("image API returned no image")
			}
			return out.Data[0].URL, nil
		}

		var msg struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&msg)
		res.Body.Close()
		last = httpError{Status: res.StatusCode, Body: msg.Error.Message}

		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
			time.Sleep(time.Duration(250*(attempt+1)) * time.Millisecond)
			continue
		}
		break
	}
	return "", last
}

// download fetches the generated image bytes from the provider's temporary
// URL before it expires.
func (ic *imageClient) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, httpError{Status: res.StatusCode}
	}
	// 4MB is far beyond any 512x512 PNG the API produces.
	return io.ReadAll(io.LimitReader(res.Body, 4<<20))
}

// uploadAvatar stores the image under avatars/<user>/<ts>.png and returns the
// public object URL.
func (s *Server) uploadAvatar(ctx context.Context, userID string, image []byte) (string, error) {
	key := fmt.Sprintf("avatars/%s/%d.png", userID, time.Now().UnixMilli())
	bucket := s.cfg.Avatar.S3Bucket

	_, err := s.storage.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(image),
		ContentType:  aws.String("image/png"),
		CacheControl: aws.String("max-age=3600"),
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", bucket, key), nil
}
