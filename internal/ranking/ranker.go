// Package ranking asks a chat-completion service to order open tasks
// against a priorities text.
package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"taskrank/internal/task"

	openai "github.com/sashabaranov/go-openai"
)

// ErrMissingCredential 未配置 API key
// ErrMissingCredential reports that no API credential is configured
var ErrMissingCredential = errors.New("ranking: missing API credential")

// DefaultSystemPrompt 默认排序指令
// DefaultSystemPrompt is the instruction sent when none is configured
const DefaultSystemPrompt = `You are a planning assistant. You receive a priorities text and a list of open tasks, each with an id.
Pick at most max_count tasks that best advance the priorities and order them from most to least important.
Reply with a single JSON object and nothing else: {"ranked_task_ids": ["<id>", ...]}.
Use only ids from the task list.`

// Config 排序服务配置
// Config configures the ranking service
type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	TimeoutMS    int
	// MaxPromptTokens 用户消息的 token 上限；0 表示不限制
	// MaxPromptTokens caps the user payload; 0 disables the budget
	MaxPromptTokens int
}

// Ranker 基于 go-openai 的排序适配器
// Ranker is the ranking adapter backed by go-openai
type Ranker struct {
	client  *openai.Client
	cfg     Config
	counter Counter
	logger  *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Ranker {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		clientCfg.BaseURL = base
	}
	httpClient := &http.Client{}
	if cfg.TimeoutMS > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	clientCfg.HTTPClient = httpClient
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: logger,
	}
}

// SetCounter 替换 token 计数器
// SetCounter replaces the token counter used for the prompt budget
func (r *Ranker) SetCounter(c Counter) {
	r.counter = c
}

type payloadTask struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Context string `json:"context,omitempty"`
	Created string `json:"created,omitempty"`
	Path    string `json:"path,omitempty"`
}

type payload struct {
	Priorities string        `json:"priorities"`
	Tasks      []payloadTask `json:"tasks"`
	MaxCount   int           `json:"max_count"`
}

// Rank 返回按优先级排序的任务 id（最多 maxCount 个）；不校验 id 是否存在
// Rank returns task ids ordered by relevance, at most maxCount of them.
// Ids are not checked against items.
func (r *Ranker) Rank(ctx context.Context, priorities string, items []task.Item, maxCount int) ([]string, error) {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return nil, ErrMissingCredential
	}

	body, err := r.buildPayload(priorities, items, maxCount)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: r.cfg.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: body},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, requestError(err)
	}
	if len(resp.Choices) == 0 {
		r.logger.Warn("ranking response has no choices")
		return nil, nil
	}

	ids, ok := ParseRanking(resp.Choices[0].Message.Content)
	if !ok {
		r.logger.Warn("ranking response is not valid JSON", "content", truncate(resp.Choices[0].Message.Content, 200))
	}
	if maxCount > 0 && len(ids) > maxCount {
		ids = ids[:maxCount]
	}
	return ids, nil
}

func (r *Ranker) buildPayload(priorities string, items []task.Item, maxCount int) (string, error) {
	p := payload{Priorities: priorities, MaxCount: maxCount, Tasks: make([]payloadTask, 0, len(items))}
	for _, it := range items {
		p.Tasks = append(p.Tasks, payloadTask{
			ID:      it.ID,
			Text:    it.Text,
			Context: it.Context,
			Created: it.Created,
			Path:    it.Location.Path,
		})
	}

	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal ranking payload: %w", err)
	}
	if r.cfg.MaxPromptTokens <= 0 {
		return string(data), nil
	}

	if r.counter == nil {
		tok := NewTokenizerForModel(r.cfg.Model)
		r.logger.Debug("prompt token counter", "encoding", tok.EncodingName(), "precise", tok.IsPrecise())
		r.counter = tok
	}
	budget := r.cfg.MaxPromptTokens - r.counter.CountText(r.cfg.SystemPrompt)
	total := len(p.Tasks)
	for len(p.Tasks) > 0 && r.counter.CountText(string(data)) > budget {
		p.Tasks = p.Tasks[:len(p.Tasks)-1]
		if data, err = json.Marshal(p); err != nil {
			return "", fmt.Errorf("marshal ranking payload: %w", err)
		}
	}
	if dropped := total - len(p.Tasks); dropped > 0 {
		r.logger.Warn("ranking payload trimmed to token budget", "dropped", dropped, "kept", len(p.Tasks), "budget", r.cfg.MaxPromptTokens)
	}
	return string(data), nil
}

func requestError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if msg := strings.TrimSpace(apiErr.Message); msg != "" {
			return fmt.Errorf("ranking request failed: %s", msg)
		}
		return fmt.Errorf("ranking request failed: status=%d", apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("ranking request failed: status=%d", reqErr.HTTPStatusCode)
	}
	return fmt.Errorf("ranking request failed: %w", err)
}

var codeFence = regexp.MustCompile("(?s)^\\s*```[A-Za-z]*\\s*(.*?)\\s*```\\s*$")

type rankedResponse struct {
	RankedTaskIDs []any `json:"ranked_task_ids"`
}

// ParseRanking 解析模型返回内容；失败时去掉代码围栏重试
// ParseRanking decodes the model content, retrying once with a surrounding
// code fence removed. ok is false when both attempts fail.
func ParseRanking(content string) (ids []string, ok bool) {
	var out rankedResponse
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		m := codeFence.FindStringSubmatch(content)
		if m == nil {
			return nil, false
		}
		if err := json.Unmarshal([]byte(m[1]), &out); err != nil {
			return nil, false
		}
	}
	ids = make([]string, 0, len(out.RankedTaskIDs))
	for _, v := range out.RankedTaskIDs {
		switch id := v.(type) {
		case nil:
			continue
		case string:
			ids = append(ids, id)
		case float64:
			ids = append(ids, strconv.FormatFloat(id, 'f', -1, 64))
		default:
			ids = append(ids, fmt.Sprint(id))
		}
	}
	return ids, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
