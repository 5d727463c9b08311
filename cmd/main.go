package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/embedding"
	"rag-chatbot/internal/helper"
	"rag-chatbot/internal/llmservice"
	"rag-chatbot/internal/models"
	"rag-chatbot/internal/session"
	"rag-chatbot/internal/web"
)

const (
	ProgramName = "rag-chatbot"
	Version     = "v0.1.0"
)

type serveCmd struct{}

type askCmd struct {
	File     string `arg:"--file,-f,required" help:"PDF to index"`
	Question string `arg:"--question,-q" help:"question to answer from the document"`
}

type args struct {
	Config string    `arg:"--config,-c,env:RAG_CONFIG" default:"./configs/config.yaml" help:"path to the YAML config"`
	Serve  *serveCmd `arg:"subcommand:serve" help:"start the web UI"`
	Ask    *askCmd   `arg:"subcommand:ask" help:"index one PDF, answer one question and print the result as JSON"`
}

func (args) Version() string {
	return fmt.Sprintf("%s %s", ProgramName, Version)
}

func main() {
	var args args

	p, err := arg.NewParser(arg.Config{Program: ProgramName}, &args)
	if err != nil {
		log.Fatal().Err(err).Msg("Error defining command line")
	}
	p.MustParse(os.Args[1:])

	if p.Subcommand() == nil {
		p.WriteUsage(os.Stdout)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(args.Config)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	setupLogging(&cfg.Log)
	log.Debug().Str("path", args.Config).Msg("Loaded config")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd := p.Subcommand().(type) {
	case *serveCmd:
		err = serve(ctx, cfg)
	case *askCmd:
		err = ask(ctx, cfg, cmd)
	default:
		p.FailSubcommand("unrecognized command", p.SubcommandNames()...)
	}
	if err != nil {
		log.Fatal().Err(err).Str("kind", models.ErrorKind(err)).Msg("Command failed")
	}
}

func setupLogging(cfg *config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// stdout is reserved for command output
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	store, backend, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()
	defer store.Close()

	go store.Run(ctx)

	server, err := web.NewServer(cfg, store)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}

func ask(ctx context.Context, cfg *config.Config, cmd *askCmd) error {
	store, backend, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()
	defer store.Close()

	sess, err := store.Get("")
	if err != nil {
		return err
	}
	result, err := sess.Ingest(ctx, cmd.File)
	if err != nil {
		return err
	}
	log.Info().Interface("document", result).Msg("Document indexed")

	answer, err := sess.Ask(ctx, cmd.Question)
	if err != nil {
		return err
	}
	helper.PrettyPrint(os.Stdout, answer)
	return nil
}

func newStore(ctx context.Context, cfg *config.Config) (*session.Store, *session.Backend, error) {
	embedder, err := embedding.NewEmbedder(&cfg.Embedding, cfg.Timeout)
	if err != nil {
		return nil, nil, err
	}
	llm, err := llmservice.NewLLM(&cfg.LLM)
	if err != nil {
		return nil, nil, err
	}
	backend, err := session.OpenBackend(ctx, &cfg.Index)
	if err != nil {
		return nil, nil, err
	}
	log.Info().
		Str("embedding", cfg.Embedding.Provider+"/"+cfg.Embedding.Model).
		Str("llm", cfg.LLM.Provider+"/"+cfg.LLM.Model).
		Str("index", backend.Name()).
		Msg("Pipeline ready")
	return session.NewStore(cfg, embedder, llm, backend.NewIndex), backend, nil
}
