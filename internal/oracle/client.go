package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"fintrack-reconciliation-service/pkg/errors"
	"fintrack-reconciliation-service/pkg/logger"

	gocache "github.com/patrickmn/go-cache"
)

// Client calls an Azure-OpenAI-style chat-completions deployment and maps
// its answer to a binary duplicate verdict. Requests are pinned to
// temperature 0 and 10 output tokens so repeated calls on the same pair are
// deterministic and cheap. Calls are never retried here; a timeout or error
// surfaces to the matcher, which falls back to deterministic rules.
type Client struct {
	config     *Config
	httpClient *http.Client
	verdicts   *gocache.Cache
	logger     logger.Logger
}

// NewClient creates an oracle client. A nil config gets defaults.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	var verdicts *gocache.Cache
	if config.CacheTTL > 0 {
		verdicts = gocache.New(config.CacheTTL, 2*config.CacheTTL)
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		verdicts:   verdicts,
		logger:     logger.GetGlobalLogger().WithComponent("oracle"),
	}
}

const systemPrompt = "You compare two financial records and answer whether " +
	"they describe the same real-world item. Answer with exactly one word: " +
	"yes or no."

type chatRequest struct {
	Messages            []chatMessage `json:"messages"`
	Temperature         float64       `json:"temperature"`
	MaxCompletionTokens int           `json:"max_completion_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// IsDuplicate asks the backend whether the two descriptions are the same
// item. The call is bounded by the configured timeout regardless of the
// caller's context.
func (c *Client) IsDuplicate(ctx context.Context, descriptionA, descriptionB string) (bool, error) {
	if !c.config.Configured() {
		return false, errors.OracleUnavailableError(fmt.Errorf("oracle credentials not configured"))
	}

	cacheKey := descriptionA + "\x1f" + descriptionB
	if c.verdicts != nil {
		if cached, ok := c.verdicts.Get(cacheKey); ok {
			return cached.(bool), nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	answer, err := c.ask(ctx, descriptionA, descriptionB)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return false, errors.OracleTimeoutError(err)
		}
		return false, errors.OracleUnavailableError(err)
	}

	verdict, err := parseVerdict(answer)
	if err != nil {
		return false, err
	}

	if c.verdicts != nil {
		c.verdicts.SetDefault(cacheKey, verdict)
	}
	return verdict, nil
}

func (c *Client) ask(ctx context.Context, descriptionA, descriptionB string) (string, error) {
	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(c.config.Endpoint, "/"), c.config.Deployment, c.config.APIVersion)

	prompt := fmt.Sprintf("Record A: %s\nRecord B: %s\nAre these the same item? Answer yes or no.",
		descriptionA, descriptionB)

	body, err := json.Marshal(chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:         0,
		MaxCompletionTokens: 10,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("oracle returned HTTP %d: %s", resp.StatusCode, string(payload))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("oracle response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func parseVerdict(answer string) (bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(answer))
	normalized = strings.Trim(normalized, ".!\"'")
	switch normalized {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	return false, errors.New(errors.CategoryOracle, errors.CodeOracleBadAnswer,
		fmt.Sprintf("oracle gave a non-binary answer: %q", answer))
}
