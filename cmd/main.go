package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ashishroygit/medical-chatbot-enterprise/cmd/ingest"
	"github.com/ashishroygit/medical-chatbot-enterprise/cmd/query"
	"github.com/ashishroygit/medical-chatbot-enterprise/cmd/serve"
)

func main() {
	app := &cli.App{
		Name:  "medchat",
		Usage: "Retrieval augmented medical chatbot",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log at debug level",
				EnvVars: []string{"VERBOSE"},
			},
		},
		Before: func(ctx *cli.Context) error {
			level := slog.LevelInfo
			if ctx.Bool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
		Action: serve.Serve,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"s"},
				Usage:   "Run the chat web service",
				Flags:   serve.Flags(),
				Action:  serve.Serve,
			},
			{
				Name:        "ingest",
				Aliases:     []string{"i"},
				Usage:       "Chunk, embed and index source material into the vector store",
				Subcommands: ingest.Commands(),
			},
			{
				Name:      "query",
				Aliases:   []string{"q"},
				Usage:     "Ask a single question through the retrieval chain",
				ArgsUsage: "<question>",
				Flags:     query.Flags(),
				Action:    query.Query,
			},
		},
	}
	app.Flags = append(app.Flags, serve.Flags()...)

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
