package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// 客户端级错误。
var (
	// ErrNoEndpoint 平台未配置发布端点。
	ErrNoEndpoint = errors.New("social: no endpoint configured for platform")
)

// PostRequest 平台发布请求体。
type PostRequest struct {
	Content   string   `json:"content"`
	MediaURLs []string `json:"media_urls,omitempty"`
}

// PostResponse 平台发布响应体。
type PostResponse struct {
	PostID string `json:"post_id"`
	URL    string `json:"url"`
}

// Poster 平台投递接口，便于测试替换。
type Poster interface {
	Post(ctx context.Context, platform, content string, mediaURLs []string) (*PostResponse, error)
}

// Client 通过 HTTP JSON 接口向各平台网关投递帖子。
//
// 每个平台对应一个端点，请求体与响应体均为 JSON。
type Client struct {
	endpoints  map[string]string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient 创建平台投递客户端。endpoints 为 平台名 -> 端点 URL。
func NewClient(endpoints map[string]string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Post 向指定平台投递一条内容。
func (c *Client) Post(ctx context.Context, platform, content string, mediaURLs []string) (*PostResponse, error) {
	endpoint, ok := c.endpoints[platform]
	if !ok || endpoint == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoint, platform)
	}

	payload, err := json.Marshal(PostRequest{Content: content, MediaURLs: mediaURLs})
	if err != nil {
		return nil, fmt.Errorf("marshal post request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post to %s: %w", platform, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", platform, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("platform rejected post",
			zap.String("platform", platform),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("post to %s: unexpected status %d", platform, resp.StatusCode)
	}

	var out PostResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", platform, err)
	}
	return &out, nil
}
