// Package main is the kotae CLI entry point.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kotae/internal/app"
	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// conversationTurns bounds the history kept by ask --interactive.
const conversationTurns = 20

// errAnswerFailed marks an ask whose generation step failed after the answer was printed.
var errAnswerFailed = errors.New("answer generation failed")

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if present, and built-in defaults are used if neither exists.
// The .env next to the loaded file is read; with defaults, the one in the current directory.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		fallback := "config.yaml"
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback = filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			if err := config.LoadEnv(fallback); err != nil {
				return nil, "", err
			}
			cfg := config.Default()
			if err := cfg.Validate(); err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	if err := config.LoadEnv(path); err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	configPath string
	debug      bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", defaultConfigPath, "config file path")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging")
}

// setup loads the config and creates the logger for a subcommand.
func (c *commonFlags) setup() (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(c.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || c.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if resolved == "" {
		resolved = "(defaults)"
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, logger, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		if !errors.Is(err, errAnswerFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(command string, args []string, stdin io.Reader, stdout io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "build":
		return runBuild(ctx, args, stdout)
	case "ask":
		return runAsk(ctx, args, stdin, stdout)
	case "search":
		return runSearch(ctx, args, stdout)
	case "status":
		return runStatus(ctx, args, stdout)
	case "server":
		return runServer(ctx, args)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "kotae version %s\n", version)
		return nil
	case "help", "--help", "-h":
		printUsage(stdout)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func runBuild(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	corpus := fs.String("corpus", "", "directory of exported pages (default: corpus.directory from config)")
	output := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	format, err := cli.ParseFormat(*output)
	if err != nil {
		return err
	}
	cfg, logger, err := common.setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	dir := cfg.Corpus.Directory
	if *corpus != "" {
		dir = *corpus
	}

	// Nothing is created on disk until the corpus is known to hold files.
	if _, err := indexer.FindCorpus(dir, cfg.Ingest.Extensions); err != nil {
		return err
	}

	c, err := app.Init(ctx, cfg, logger, app.ModeBuild)
	if err != nil {
		return err
	}
	summary, runErr := c.Indexer.Run(ctx, dir)
	if err := app.Shutdown(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to persist collection: %w", err)
	}
	if summary != nil {
		summary.Collection = cfg.Storage.CollectionDir()
		if err := cli.WriteBuildSummary(stdout, summary, format); err != nil {
			return err
		}
	}
	return runErr
}

func runAsk(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	topK := fs.Int("top-k", 0, "chunks to retrieve (default: retrieval.top_k from config)")
	output := fs.String("output", "text", "output format: text or json")
	interactive := fs.Bool("interactive", false, "keep asking questions with conversation history")
	showContext := fs.Bool("context", false, "print the retrieved context")
	serverURL := fs.String("server", "", "ask a running kotae server instead of opening the collection")
	if err := fs.Parse(flagsFirst(fs, args)); err != nil {
		return err
	}
	format, err := cli.ParseFormat(*output)
	if err != nil {
		return err
	}
	question := joinArgs(fs.Args())
	if question == "" && !*interactive {
		return errors.New("usage: kotae ask [flags] <question>")
	}

	var ask askFunc
	if *serverURL != "" {
		ask = remoteAsk(*serverURL, *topK)
	} else {
		cfg, logger, err := common.setup()
		if err != nil {
			return err
		}
		defer logger.Sync()
		c, err := app.Init(ctx, cfg, logger, app.ModeQuery)
		if err != nil {
			return err
		}
		defer func() { _ = app.Shutdown() }()
		ask = func(ctx context.Context, q string, conv *models.Conversation) (*models.Answer, error) {
			return c.Assistant.Ask(ctx, q, conv, rag.WithTopK(*topK))
		}
	}

	if !*interactive {
		a, err := ask(ctx, question, nil)
		if err != nil {
			return err
		}
		if err := cli.WriteAnswer(stdout, a, format, *showContext); err != nil {
			return err
		}
		if a.Failed {
			return errAnswerFailed
		}
		return nil
	}
	return askLoop(ctx, ask, question, stdin, stdout, format, *showContext)
}

type askFunc func(ctx context.Context, query string, conv *models.Conversation) (*models.Answer, error)

// askLoop reads one question per line until EOF or "exit". A question given on the
// command line is answered first.
func askLoop(ctx context.Context, ask askFunc, first string, stdin io.Reader, stdout io.Writer, format cli.OutputFormat, showContext bool) error {
	conv := models.NewConversation(conversationTurns)
	scanner := bufio.NewScanner(stdin)
	q := first
	for {
		if q != "" {
			a, err := ask(ctx, q, conv)
			if err != nil {
				fmt.Fprintf(stdout, "Error: %v\n", err)
			} else if err := cli.WriteAnswer(stdout, a, format, showContext); err != nil {
				return err
			}
			fmt.Fprintln(stdout)
		}
		if ctx.Err() != nil {
			return nil
		}
		if format == cli.OutputText {
			fmt.Fprint(stdout, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		q = strings.TrimSpace(scanner.Text())
		switch strings.ToLower(q) {
		case "exit", "quit":
			return nil
		case "reset":
			conv = models.NewConversation(conversationTurns)
			q = ""
		}
	}
}

func runSearch(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	limit := fs.Int("limit", 10, "maximum number of chunks")
	output := fs.String("output", "text", "output format: text or json")
	serverURL := fs.String("server", "", "search a running kotae server instead of opening the collection")
	if err := fs.Parse(flagsFirst(fs, args)); err != nil {
		return err
	}
	format, err := cli.ParseFormat(*output)
	if err != nil {
		return err
	}
	req := &models.SearchRequest{Query: joinArgs(fs.Args()), Limit: *limit}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("usage: kotae search [flags] <terms>: %w", err)
	}

	var resp models.SearchResponse
	if *serverURL != "" {
		if err := postJSON(ctx, *serverURL+"/api/v1/search", req, &resp); err != nil {
			return err
		}
		return cli.WriteSearchResults(stdout, &resp, format)
	}

	cfg, logger, err := common.setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	c, err := app.Init(ctx, cfg, logger, app.ModeInspect)
	if err != nil {
		return err
	}
	defer func() { _ = app.Shutdown() }()

	found, err := c.Retriever.Search(ctx, req.Query, req.Limit)
	if err != nil {
		return err
	}
	return cli.WriteSearchResults(stdout, found, format)
}

func runStatus(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	output := fs.String("output", "text", "output format: text or json")
	serverURL := fs.String("server", "", "query a running kotae server instead of opening the collection")
	if err := fs.Parse(args); err != nil {
		return err
	}
	format, err := cli.ParseFormat(*output)
	if err != nil {
		return err
	}

	if *serverURL != "" {
		var resp struct {
			Collection *models.CollectionStats `json:"collection"`
		}
		if err := getJSON(ctx, *serverURL+"/api/v1/status", &resp); err != nil {
			return err
		}
		if resp.Collection == nil {
			return errors.New("server returned no collection stats")
		}
		return cli.WriteStatus(stdout, resp.Collection, format)
	}

	cfg, logger, err := common.setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	c, err := app.Init(ctx, cfg, logger, app.ModeInspect)
	if err != nil {
		return err
	}
	defer func() { _ = app.Shutdown() }()

	stats, err := c.Collection.Stats(ctx)
	if err != nil {
		return err
	}
	return cli.WriteStatus(stdout, stats, format)
}

func runServer(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, logger, err := common.setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	c, err := app.Init(ctx, cfg, logger, app.ModeQuery)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Shutdown(); err != nil {
			logger.Warn("shutdown failed", zap.Error(err))
		}
	}()

	srv := server.NewServer(c.Assistant, c.Retriever, c.Collection, cfg, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(stopCtx)
}

// joinArgs joins positional arguments into one query. Multi-word queries work with or without quotes.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// flagsFirst moves flags and their values in front of the positional words so
// that flag.Parse sees them wherever they were typed. Words keep their order.
func flagsFirst(fs *flag.FlagSet, args []string) []string {
	var flags, words []string
	terminated := false
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			words = append(words, args[i+1:]...)
			terminated = true
			break
		}
		if len(a) < 2 || a[0] != '-' {
			words = append(words, a)
			continue
		}
		flags = append(flags, a)
		name := strings.TrimLeft(a, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if f := fs.Lookup(name); f != nil && !isBoolFlag(f) && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	if len(flags) == 0 && !terminated {
		return args
	}
	if terminated {
		flags = append(flags, "--")
	}
	return append(flags, words...)
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

func remoteAsk(serverURL string, topK int) askFunc {
	return func(ctx context.Context, q string, conv *models.Conversation) (*models.Answer, error) {
		req := &models.AskRequest{Query: q, TopK: topK}
		if conv != nil {
			req.History = append([]models.Message(nil), conv.Messages...)
		}
		var a models.Answer
		if err := postJSON(ctx, serverURL+"/api/v1/ask", req, &a); err != nil {
			return nil, err
		}
		if conv != nil {
			conv.Append(models.RoleUser, q)
			conv.Append(models.RoleAssistant, a.Text)
		}
		return &a, nil
	}
}

func postJSON(ctx context.Context, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(req, out)
}

func getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return doJSON(req, out)
}

func doJSON(req *http.Request, out any) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `kotae - Ask questions about exported Confluence pages

Usage:
  kotae build [flags]              Build the collection from the corpus directory
  kotae ask [flags] <question>     Answer a question from the collection
  kotae search [flags] <terms>     Keyword lookup over indexed chunks
  kotae status [flags]             Show collection statistics
  kotae server [flags]             Start the HTTP server
  kotae version                    Show version
  kotae help                       Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml, or ./config.yaml if present)
  --debug            Enable debug logging

Build Flags:
  --corpus string    Directory of exported pages (default: corpus.directory)
  --output string    Output format: text or json (default: text)

Ask Flags:
  --top-k int        Chunks to retrieve (default: retrieval.top_k)
  --output string    Output format: text or json (default: text)
  --interactive      Read follow-up questions from stdin, keeping conversation history
  --context          Also print the retrieved context
  --server string    Ask a running server (e.g. http://localhost:8080)

Search Flags:
  --limit int        Maximum number of chunks (default: 10)
  --output string    Output format: text or json (default: text)
  --server string    Search a running server

Status Flags:
  --output string    Output format: text or json (default: text)
  --server string    Query a running server

Examples:
  kotae build --corpus ./confluence_export
  kotae ask "How do I request VPN access?"
  kotae ask --top-k 5 --context "What does a release need?"
  kotae ask --interactive
  kotae search vpn helpdesk
  kotae status --output json`)
}
