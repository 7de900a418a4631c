package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rahul/digibiz/internal/agent"
	"github.com/rahul/digibiz/internal/auth"
	"github.com/rahul/digibiz/internal/gateway"
	"github.com/rahul/digibiz/internal/governance"
	"github.com/rahul/digibiz/internal/mission"
	"github.com/rahul/digibiz/internal/notify"
	"github.com/rahul/digibiz/internal/observability"
	"github.com/rahul/digibiz/internal/store"
	"github.com/rahul/digibiz/internal/tools"
	"github.com/rahul/digibiz/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

func main() {
	configPath := os.Getenv("DIGIBIZ_CONFIG")
	if configPath == "" {
		configPath = "config.json"
	}
	cfg := config.LoadConfig(configPath)

	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	termOut := observability.NewTermWriter()
	log.SetOutput(termOut)
	gin.DefaultWriter = termOut
	gin.DefaultErrorWriter = termOut
	if cfg.App.Dashboard {
		observability.InitializeTerminal()
	} else {
		observability.PrintBanner()
	}

	logger := observability.NewLoggerTo(termOut, cfg.App.LogDir)

	docs, err := openDocuments(cfg.Memory)
	if err != nil {
		log.Fatal(err)
	}
	defer docs.Close()
	processes := store.NewProcessStore(docs)

	tokens := auth.NewIAMTokenSource(cfg.Agents.IAMURL, cfg.Agents.IAMAPIKey)
	timeout := time.Duration(cfg.Agents.TimeoutSeconds) * time.Second

	registry, err := agent.NewRegistry(cfg.Agents)
	if err != nil {
		log.Printf("\033[93m[ WARN ] %v; agents will be simulated\033[0m", err)
	}

	var invoker agent.Invoker
	switch {
	case err != nil:
	case registry.Transport == "llm":
		model, err := newModel(cfg)
		if err != nil {
			log.Printf("\033[93m[ WARN ] llm transport: %v; agents will be simulated\033[0m", err)
			break
		}
		invoker = agent.NewLLMClient(model, agent.NewPromptManager(cfg.App.PromptDir), logger, timeout)
	default:
		invoker = agent.NewOrchestrateClient(registry, tokens, timeout)
	}
	agents := agent.NewGateway(registry, invoker, logger)

	policy, err := governance.NewPolicyEngine(cfg.Policy.DenyPatterns, cfg.Policy.MaxTextLen)
	if err != nil {
		log.Fatal(err)
	}

	opts := []mission.Option{mission.WithPageFetcher(tools.NewScraperTool())}
	if n := newNotifier(cfg.Notify); n != nil {
		opts = append(opts, mission.WithNotifier(n))
	}
	missions := mission.NewService(processes, agents, logger, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: gateway.New(cfg.Server, missions, tokens, policy),
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("\033[91m[ FAIL ] HTTP SERVER: %v\033[0m", err)
			stop()
		}
	}()
	log.Printf("digibiz listening on %s", cfg.Server.Addr)

	if tgCfg, ok := cfg.GetTelegramConfig(); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, missions, policy)
		if err != nil {
			log.Fatal(err)
		}
		defer tg.Stop()
		go func() {
			if err := tg.Start(); err != nil {
				log.Printf("\033[91m[ FAIL ] TELEGRAM GATEWAY: %v\033[0m", err)
			}
		}()
	}

	if cfg.App.Dashboard {
		go func() {
			ticker := time.NewTicker(1 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					observability.PrintLiveStatus()
				}
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.Heartbeat()
				logger.LogHeartbeat()
			}
		}
	}()

	<-ctx.Done()

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutCtx)

	if cfg.App.Dashboard {
		observability.CleanupTerminal()
	}
	log.Println("\033[95m[ EXIT ] DIGIBIZ SHUT DOWN. GOODBYE.\033[0m")
}

func openDocuments(cfg config.MemoryConfig) (store.Documents, error) {
	switch cfg.Type {
	case "mysql":
		return store.NewGormDocuments(cfg.DSN)
	default:
		return store.NewSQLiteDocuments(cfg.Path)
	}
}

// newModel builds the language model behind the llm transport from the
// first enabled provider.
func newModel(cfg *config.Config) (llms.Model, error) {
	pName, pCfg := cfg.GetDefaultProvider()
	switch pName {
	case "":
		return nil, errors.New("no enabled provider found in config")
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, errors.New("provider " + pName + " not supported")
	}
}

func newNotifier(cfg config.NotifyConfig) notify.Notifier {
	var multi notify.Multi
	if cfg.WebhookURL != "" {
		multi = append(multi, notify.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.RedisURL != "" {
		rdb, err := notify.Dial(cfg.RedisURL)
		if err != nil {
			log.Printf("\033[93m[ WARN ] %v; redis notifications disabled\033[0m", err)
		} else {
			multi = append(multi, notify.NewRedisNotifier(rdb, cfg.RedisStream))
		}
	}
	if len(multi) == 0 {
		return nil
	}
	return multi
}
