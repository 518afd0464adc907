package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/ashishroygit/medical-chatbot-enterprise/chain"
	"github.com/ashishroygit/medical-chatbot-enterprise/config"
	"github.com/ashishroygit/medical-chatbot-enterprise/search"
	"github.com/ashishroygit/medical-chatbot-enterprise/service/query"
)

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the answer and its sources as JSON",
		},
	}
}

func Query(ctx *cli.Context) error {
	userQuery := strings.TrimSpace(strings.Join(ctx.Args().Slice(), " "))
	if userQuery == "" {
		return errors.New("a question is required, e.g. medchat query \"What is a migraine?\"")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ragChain, err := chain.Assemble(ctx.Context, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to assemble chain: %w", err)
	}

	result, err := ragChain.Invoke(ctx.Context, chain.Input{Input: userQuery})
	if err != nil {
		return fmt.Errorf("failed to answer query: %w", err)
	}

	response := toResponse(result)
	if ctx.Bool("json") {
		responseBytes, err := json.MarshalIndent(response, "", " ")
		if err != nil {
			return fmt.Errorf("failed to serialize response: %w", err)
		}
		fmt.Fprintln(ctx.App.Writer, string(responseBytes))
		return nil
	}

	fmt.Fprintln(ctx.App.Writer, "Answer: "+response.Answer)
	for _, source := range response.Sources {
		fmt.Fprintln(ctx.App.Writer, "  - "+source)
	}
	return nil
}

func toResponse(result chain.Result) *query.ResponseBody {
	sources := make([]string, len(result.Context))
	for i, doc := range result.Context {
		sources[i] = describe(doc)
	}
	return &query.ResponseBody{
		UserQuery: result.Input,
		Answer:    result.Answer,
		Sources:   sources,
	}
}

func describe(doc search.Document) string {
	title := doc.Title
	if title == "" {
		title = doc.ID
	}
	if doc.Link != "" {
		return fmt.Sprintf("%s - %s", title, doc.Link)
	}
	return title
}
