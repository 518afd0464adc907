package chain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ashishroygit/medical-chatbot-enterprise/meta"
	"github.com/ashishroygit/medical-chatbot-enterprise/search"
)

const (
	DefaultChatModel = openai.GPT4oMini
)

type Stage string

const (
	StageRetrieval  Stage = "retrieval"
	StageCompletion Stage = "completion"
)

// Error reports which step of the chain failed. The message is the underlying error's.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Input struct {
	Input string
}

type Result struct {
	Input   string
	Answer  string
	Context []search.Document
}

type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]search.Document, error)
}

type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Chain is retrieval followed by a single "stuff documents" completion. It holds no
// per-request state and is safe for concurrent use.
type Chain struct {
	retriever Retriever
	client    ChatCompleter
	model     string
	logger    *slog.Logger
}

func New(retriever Retriever, client ChatCompleter, model string, logger *slog.Logger) *Chain {
	if model == "" {
		model = DefaultChatModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		retriever: retriever,
		client:    client,
		model:     model,
		logger:    logger,
	}
}

func (c *Chain) Invoke(ctx context.Context, in Input) (Result, error) {
	result := Result{Input: in.Input, Context: []search.Document{}}

	docs, err := c.retriever.Retrieve(ctx, in.Input)
	if err != nil {
		return result, &Error{Stage: StageRetrieval, Err: err}
	}
	if docs != nil {
		result.Context = docs
	}
	c.logger.DebugContext(ctx, "retrieved context", slog.Int("documents", len(docs)))

	messages, err := meta.CreateConversation(docs, in.Input)
	if err != nil {
		return result, &Error{Stage: StageCompletion, Err: fmt.Errorf("failed to build prompt: %w", err)}
	}

	chatResponse, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return result, &Error{Stage: StageCompletion, Err: err}
	}

	if len(chatResponse.Choices) > 0 {
		result.Answer = strings.TrimSpace(chatResponse.Choices[0].Message.Content)
	}
	return result, nil
}
