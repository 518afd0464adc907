package meta

import (
	"strings"
	"text/template"

	"github.com/sashabaranov/go-openai"

	"github.com/ashishroygit/medical-chatbot-enterprise/search"
)

const (
	defaultSystemPrompt = "You are a medical assistant for question-answering tasks. " +
		"Use the following pieces of retrieved context to answer the question. " +
		"If you don't know the answer, say that you don't know. " +
		"Use three sentences maximum and keep the answer concise.\n\n" +
		"{{.Context}}"

	documentSeparator = "\n\n"
)

var systemTemplate = template.Must(template.New("system").Parse(defaultSystemPrompt))

// CreateConversation stuffs every retrieved document into the system prompt and follows it
// with the user's question, producing the messages for a single chat completion.
func CreateConversation(embeddingContext []search.Document, userQuery string) ([]openai.ChatCompletionMessage, error) {
	contents := make([]string, 0, len(embeddingContext))
	for _, snippet := range embeddingContext {
		contents = append(contents, snippet.Content)
	}

	var system strings.Builder
	err := systemTemplate.Execute(&system, struct{ Context string }{
		Context: strings.Join(contents, documentSeparator),
	})
	if err != nil {
		return nil, err
	}

	return []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: system.String(),
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: userQuery,
		},
	}, nil
}
