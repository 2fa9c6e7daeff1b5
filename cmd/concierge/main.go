package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"

	"github.com/polyana-labs/concierge/pkg/category"
	"github.com/polyana-labs/concierge/pkg/config"
	"github.com/polyana-labs/concierge/pkg/knowledge"
	"github.com/polyana-labs/concierge/pkg/llm"
	"github.com/polyana-labs/concierge/pkg/pricing"
	"github.com/polyana-labs/concierge/pkg/processor"
	"github.com/polyana-labs/concierge/pkg/retriever"
	"github.com/polyana-labs/concierge/pkg/store"
	"github.com/polyana-labs/concierge/server"
)

type options struct {
	configPath   string
	serve        bool
	knowledgeDir string
	baseURL      string
	dbURL        string
	topK         int
}

func main() {
	godotenv.Load()

	if len(os.Args) > 1 && os.Args[1] == "price" {
		if err := runPrice(os.Args[2:]); err != nil {
			log.Fatal(err)
		}
		return
	}

	opts := parseFlags()
	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to config file")
	flag.BoolVar(&opts.serve, "serve", false, "Run the HTTP/WebSocket server instead of the interactive prompt")
	flag.StringVar(&opts.knowledgeDir, "knowledge-dir", "", "Filesystem knowledge base root")
	flag.StringVar(&opts.baseURL, "embedding-url", os.Getenv("EMBEDDING_BASE_URL"), "Embedding provider base URL")
	flag.StringVar(&opts.dbURL, "db-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	flag.IntVar(&opts.topK, "top-k", 0, "Number of chunks per answer")
	flag.Parse()
	return opts
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}

	// Command line flags win over the config file.
	if opts.knowledgeDir != "" {
		cfg.Knowledge.Dir = opts.knowledgeDir
	}
	if opts.baseURL != "" {
		cfg.Embedding.BaseURL = opts.baseURL
	}
	if opts.dbURL != "" {
		cfg.Store.URL = opts.dbURL
	}
	if opts.topK > 0 {
		cfg.Retrieval.TopK = opts.topK
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return nil, fmt.Errorf("invalid configuration")
	}
	return cfg, nil
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func buildEngine(ctx context.Context, cfg *config.Config) (*retriever.Engine, func(), error) {
	splitter, err := processor.NewSplitter(processor.SplitterConfig{
		ChunkSize:    cfg.Processor.ChunkSize,
		ChunkOverlap: cfg.Processor.ChunkOverlap,
		Separators:   cfg.Processor.Separators,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize splitter: %v", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Backend:   cfg.Embedding.Backend,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		BatchSize: cfg.Embedding.BatchSize,
		RateLimit: cfg.Embedding.RateLimit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedder: %v", err)
	}

	cleanup := func() {}
	engineConfig := retriever.EngineConfig{Oversample: cfg.Retrieval.Oversample}
	if cfg.Store.URL != "" {
		vectorStore, err := store.NewWithConfig(ctx, store.StoreConfig{
			ConnString: cfg.Store.URL,
			TableName:  cfg.Store.TableName,
			VectorDim:  cfg.Store.VectorDim,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize vector store: %v", err)
		}
		engineConfig.Persist = vectorStore
		cleanup = vectorStore.Close
	}

	switch {
	case cfg.Knowledge.DatabaseURL != "":
		pg, err := knowledge.NewPostgresSource(ctx, cfg.Knowledge.DatabaseURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to open knowledge database: %v", err)
		}
		prev := cleanup
		cleanup = func() { pg.Close(); prev() }
		return retriever.NewEngine(pg, splitter, embedder, engineConfig), cleanup, nil
	case cfg.Knowledge.ManifestURL != "":
		src := knowledge.NewHTTPSource(knowledge.HTTPSourceConfig{BaseURL: cfg.Knowledge.ManifestURL})
		return retriever.NewEngine(src, splitter, embedder, engineConfig), cleanup, nil
	default:
		src := knowledge.NewFSSource(cfg.Knowledge.Dir)
		return retriever.NewEngine(src, splitter, embedder, engineConfig), cleanup, nil
	}
}

func buildResolver(cfg *config.Config) (*pricing.Resolver, error) {
	if cfg.Pricing.RulesPath != "" {
		return pricing.LoadResolver(cfg.Pricing.RulesPath)
	}
	return pricing.NewDefaultResolver()
}

func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, cleanup, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	resolver, err := buildResolver(cfg)
	if err != nil {
		return fmt.Errorf("failed to load tariffs: %v", err)
	}

	indexSpinner := getSpinner(" Building knowledge index...")
	err = engine.Initialize(ctx)
	indexSpinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return fmt.Errorf("failed to build knowledge index: %v", err)
	}

	stats := engine.Stats()
	color.Green("✓ Indexed %d documents into %d chunks (%d characters)\n",
		stats.Documents, stats.Chunks, stats.Characters)

	if opts.serve {
		srv := server.New(engine, resolver, server.Config{
			Port: cfg.Server.Port,
			TopK: cfg.Retrieval.TopK,
		})
		return srv.Run(ctx)
	}

	return interactive(ctx, cfg, engine, resolver)
}

func interactive(ctx context.Context, cfg *config.Config, engine *retriever.Engine, resolver *pricing.Resolver) error {
	color.Cyan("\nAsk about the resorts (type 'exit' to quit, 'rebuild' to re-index)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	answerPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(query) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "rebuild":
			rebuildSpinner := getSpinner(" Rebuilding knowledge index...")
			err := engine.Rebuild(ctx)
			rebuildSpinner.Finish()
			fmt.Print("\r")
			if err != nil {
				color.Red("Rebuild failed: %v\n", err)
				continue
			}
			stats := engine.Stats()
			color.Green("✓ Re-indexed %d documents into %d chunks\n", stats.Documents, stats.Chunks)
			continue
		}

		if rest, ok := strings.CutPrefix(query, "price "); ok {
			printQuote(resolver, rest)
			continue
		}

		cat, detected := category.Detect(query)
		if detected {
			color.Blue("Category: %s", cat)
		}

		searchSpinner := getSpinner(" Searching knowledge base...")
		chunks, err := engine.Search(ctx, query, cfg.Retrieval.TopK, cat)
		searchSpinner.Finish()
		fmt.Print("\r")
		if err != nil {
			color.Red("Search failed: %v\n", err)
			continue
		}

		answerPrompt("\n%s\n", retriever.AssembleContext(chunks))
	}

	return nil
}

// printQuote answers "price <resort> <item> [date] [age] [days]" typed at the
// interactive prompt.
func printQuote(resolver *pricing.Resolver, input string) {
	fields := strings.Fields(input)
	if len(fields) < 2 {
		color.Yellow("Usage: price <resort> <item> [date] [age] [days]")
		return
	}

	request := pricing.Request{Resort: fields[0], Item: fields[1], Age: pricing.AgeAdult, Days: 1}
	for _, field := range fields[2:] {
		switch {
		case strings.Count(field, "-") == 2:
			date, err := pricing.ParseDate(field)
			if err != nil {
				color.Red("%v", err)
				return
			}
			request.Date = date
		case field == "adult" || field == "youth" || field == "child":
			request.Age = pricing.AgeCategory(field)
		default:
			if _, err := fmt.Sscanf(field, "%d", &request.Days); err != nil {
				color.Red("Unrecognized argument %q", field)
				return
			}
		}
	}

	quote, ok := resolver.Resolve(request)
	if !ok {
		color.Yellow("No tariff matches: the date may be out of season or the category not offered.")
		return
	}
	color.Green("%d %s for %d day(s)", quote.Amount, quote.Currency, quote.Days)
	if quote.PerDay > 0 && quote.Days > 1 {
		fmt.Printf("  (%d %s per day)\n", quote.PerDay, quote.Currency)
	}
}

func runPrice(args []string) error {
	fs := flag.NewFlagSet("price", flag.ExitOnError)
	var (
		configPath = fs.String("config", "", "Path to config file")
		resort     = fs.String("resort", "", "Resort id (gazprom, rosa-khutor, krasnaya-polyana)")
		item       = fs.String("item", "", "Pass type or lesson id")
		dateStr    = fs.String("date", "", "Skiing date, YYYY-MM-DD")
		age        = fs.String("age", "adult", "Age category (adult, youth, child)")
		days       = fs.Int("days", 1, "Number of skiing days")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *resort == "" || *item == "" {
		return fmt.Errorf("-resort and -item are required")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	resolver, err := buildResolver(cfg)
	if err != nil {
		return fmt.Errorf("failed to load tariffs: %v", err)
	}

	request := pricing.Request{
		Resort: *resort,
		Item:   *item,
		Age:    pricing.AgeCategory(*age),
		Days:   *days,
	}
	if *dateStr != "" {
		date, err := pricing.ParseDate(*dateStr)
		if err != nil {
			return err
		}
		request.Date = date
	}

	quote, ok := resolver.Resolve(request)
	if !ok {
		color.Yellow("No tariff matches: the date may be out of season or the category not offered.")
		return nil
	}

	color.Green("%d %s for %d day(s)", quote.Amount, quote.Currency, quote.Days)
	if quote.PerDay > 0 && quote.Days > 1 {
		fmt.Printf("  (%d %s per day)\n", quote.PerDay, quote.Currency)
	}
	if quote.Rule.Season != "" {
		fmt.Printf("  season: %s\n", quote.Rule.Season)
	}
	return nil
}
