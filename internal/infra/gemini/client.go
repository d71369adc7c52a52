package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jinford/docchat/internal/core/llm"
)

const (
	// DefaultModel はデフォルトで使用する Gemini モデル
	DefaultModel = "gemini-1.5-flash"
)

var (
	// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
	ErrAPIKeyNotSet = errors.New("Gemini API key not set: please set GOOGLE_API_KEY environment variable")

	// ErrEmptyResponse はモデルがテキストを返さなかった場合のエラー
	ErrEmptyResponse = errors.New("gemini returned no text content")
)

// Client は Gemini API を使用したテキスト生成クライアント
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration // 0 はタイムアウトなし
}

// NewClient はAPIキーとモデルを指定して Client を作成する
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		client: client,
		model:  model,
	}, nil
}

// SetTimeout はAPIコールのタイムアウトを設定する（0 で無効）
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// ModelName はモデル名を返す
func (c *Client) ModelName() string {
	return c.model
}

// Generate は Gemini API を使用してテキストを生成する。リトライは行わない。
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.ResponseFormat == llm.FormatJSON {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return llm.Response{}, fmt.Errorf("Gemini API call failed: %w", err)
	}

	content := responseText(resp)
	if content == "" {
		return llm.Response{}, ErrEmptyResponse
	}

	var tokensUsed int
	if resp.UsageMetadata != nil {
		tokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}

	return llm.Response{
		Content:    content,
		TokensUsed: tokensUsed,
		Model:      c.model,
	}, nil
}

// Close はクライアントを閉じる
func (c *Client) Close() error {
	return c.client.Close()
}

// responseText は最初の候補に含まれるテキストパートを連結する
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var parts []string
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				parts = append(parts, string(text))
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "")
		}
	}
	return ""
}

// インターフェース実装の確認
var _ llm.TextGenerator = (*Client)(nil)
