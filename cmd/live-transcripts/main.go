// Command live-transcripts captures microphone audio, batches it into
// utterances, transcribes them through a primary/fallback model chain,
// and serves the running transcript plus AI-derived insights and
// answers over a WebSocket subscriber protocol — spec.md's complete
// pipeline wired end to end. Provider selection and signal handling
// follow the teacher's cmd/agent/main.go.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lokutor-ai/live-transcripts/pkg/audio"
	"github.com/lokutor-ai/live-transcripts/pkg/audiosource"
	"github.com/lokutor-ai/live-transcripts/pkg/batcher"
	"github.com/lokutor-ai/live-transcripts/pkg/config"
	"github.com/lokutor-ai/live-transcripts/pkg/contextmgr"
	"github.com/lokutor-ai/live-transcripts/pkg/dispatcher"
	"github.com/lokutor-ai/live-transcripts/pkg/hub"
	"github.com/lokutor-ai/live-transcripts/pkg/llm"
	"github.com/lokutor-ai/live-transcripts/pkg/logging"
	"github.com/lokutor-ai/live-transcripts/pkg/providers/stt"
	"github.com/lokutor-ai/live-transcripts/pkg/transcript"
)

func main() {
	cfg, keys, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewZapLogger()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	sttName := cfg.TranscriptionModel
	if v := os.Getenv("STT_PROVIDER"); v != "" {
		sttName = v
	}
	llmName := os.Getenv("LLM_PROVIDER")
	if llmName == "" {
		llmName = "anthropic"
	}

	primary, err := buildSTT(sttName, keys)
	if err != nil {
		log.Fatal(err)
	}
	models := []dispatcher.Transcriber{primary}
	for _, name := range cfg.ModelFallback {
		m, err := buildSTT(name, keys)
		if err != nil {
			logger.Warn("skipping unavailable fallback model", "model", name, "error", err)
			continue
		}
		models = append(models, m)
	}

	gen, err := buildLLM(llmName, keys)
	if err != nil {
		log.Fatal(err)
	}

	tr := transcript.New()

	reg := prometheus.NewRegistry()
	stats := dispatcher.NewStats(reg)

	var sess *hub.Session

	dispCfg := dispatcher.Config{
		APITimeout:  time.Duration(cfg.APITimeout * float64(time.Second)),
		RetryDelay:  time.Duration(cfg.RetryDelay * float64(time.Second)),
		MaxRetries:  cfg.MaxRetries,
		Parallelism: 1,
		OnAppend: func(t transcript.Transcription) {
			if sess != nil {
				sess.BroadcastTranscription(t)
			}
		},
	}
	disp := dispatcher.New(models, tr, stats, dispCfg, logger)

	ringCapacity := int(cfg.BufferDuration * float64(cfg.SampleRate))
	ring := audio.NewRing(ringCapacity)

	batchCfg := batcher.Config{
		SampleRate:       cfg.SampleRate,
		FrameDuration:    20 * time.Millisecond,
		MinBatch:         time.Duration(cfg.MinBatchDuration * float64(time.Second)),
		MaxBatch:         time.Duration(cfg.MaxBatchDuration * float64(time.Second)),
		SilenceThreshold: time.Duration(cfg.SilenceDurationThreshold * float64(time.Second)),
		Overlap:          time.Duration(cfg.BatchOverlap * float64(time.Second)),
		EnqueueTimeout:   2 * time.Second,
		QueueSize:        16,
	}
	b := batcher.New(ring, batchCfg, logger)

	ctxMgrCfg := contextmgr.DefaultConfig()
	ctxMgrCfg.QuestionCount = cfg.NumDynamicQuestions
	ctxMgr := contextmgr.New(gen, tr, ctxMgrCfg)

	sess = hub.New("default", hub.Config{
		Batcher:          b,
		Dispatcher:       disp,
		ContextManager:   ctxMgr,
		Transcript:       tr,
		InsightInterval:  time.Duration(cfg.InsightInterval * float64(time.Second)),
		QuestionInterval: time.Duration(cfg.QuestionUpdateInterval * float64(time.Second)),
		Logger:           logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, err := audiosource.NewMalgoSource(cfg.SampleRate)
	if err != nil {
		log.Fatalf("init audio capture: %v", err)
	}
	defer src.Close()

	go func() {
		for {
			chunk, err := src.Read(ctx)
			if err != nil {
				return
			}
			ring.Write(chunk.Samples)
		}
	}()

	go func() {
		if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("session stopped", "error", err)
		}
	}()

	srv := hub.NewServer(sess, reg)
	addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}

	go func() {
		logger.Info("live-transcripts listening", "addr", addr, "stt", sttName, "llm", llmName)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	sess.Stop() // terminal STOPPED broadcast, per spec.md §4.7, before tearing tasks down
	time.Sleep(100 * time.Millisecond) // let subscriber queues drain the broadcast
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

func buildSTT(name string, keys config.APIKeys) (dispatcher.Transcriber, error) {
	switch name {
	case "openai":
		if keys.OpenAI == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY must be set for openai STT")
		}
		return stt.NewOpenAISTT(keys.OpenAI, "whisper-1"), nil
	case "deepgram":
		if keys.Deepgram == "" {
			return nil, fmt.Errorf("DEEPGRAM_API_KEY must be set for deepgram STT")
		}
		return stt.NewDeepgramSTT(keys.Deepgram), nil
	case "assemblyai":
		if keys.AssemblyAI == "" {
			return nil, fmt.Errorf("ASSEMBLYAI_API_KEY must be set for assemblyai STT")
		}
		return stt.NewAssemblyAISTT(keys.AssemblyAI), nil
	case "groq", "":
		if keys.Groq == "" {
			return nil, fmt.Errorf("GROQ_API_KEY must be set for groq STT")
		}
		return stt.NewGroqSTT(keys.Groq, "whisper-large-v3-turbo"), nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", name)
	}
}

func buildLLM(name string, keys config.APIKeys) (llm.Generator, error) {
	switch name {
	case "openai":
		if keys.OpenAI == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY must be set for openai LLM")
		}
		return llm.NewOpenAILLM(keys.OpenAI, "gpt-4o"), nil
	case "google":
		if keys.Google == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY must be set for google LLM")
		}
		return llm.NewGoogleLLM(keys.Google, "gemini-1.5-flash"), nil
	case "groq":
		if keys.Groq == "" {
			return nil, fmt.Errorf("GROQ_API_KEY must be set for groq LLM")
		}
		return llm.NewGroqLLM(keys.Groq, "llama-3.3-70b-versatile"), nil
	case "anthropic", "":
		if keys.Anthropic == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY must be set for anthropic LLM")
		}
		return llm.NewAnthropicLLM(keys.Anthropic, "claude-3-5-sonnet-20241022"), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", name)
	}
}
