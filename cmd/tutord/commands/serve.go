package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	orchestration "github.com/koscakluka/tutor-core/core"
	openaiexplain "github.com/koscakluka/tutor-core/core/explanations/openai"
	"github.com/koscakluka/tutor-core/core/history"
	"github.com/koscakluka/tutor-core/core/speech"
	"github.com/koscakluka/tutor-core/core/speech/deepgram"
	"github.com/koscakluka/tutor-core/core/speech/elevenlabs"
	"github.com/koscakluka/tutor-core/core/visuals/templates"
	"github.com/koscakluka/tutor-core/transport"
)

var addrFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the teaching session server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		config, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if addrFlag != "" {
			config.Addr = addrFlag
		}
		return serve(cmd.Context(), config)
	},
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, config Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	explainer, err := openaiexplain.New(openaiexplain.WithModel(config.Model.Name))
	if err != nil {
		return fmt.Errorf("explanation producer: %w", err)
	}

	sessionOpts := []orchestration.SessionOption{
		orchestration.WithExplanationProducer(explainer),
		orchestration.WithVisualProducer(templates.New()),
		orchestration.WithPacing(orchestration.PacingOptions{
			WordsPerMinute: config.Pacing.WordsPerMinute,
			SentencePause:  config.Pacing.SentencePause,
			ClausePause:    config.Pacing.ClausePause,
		}),
	}

	if chain := buildSpeechChain(config); chain != nil {
		sessionOpts = append(sessionOpts, orchestration.WithSpeechChain(chain))
	}

	if config.HistoryDir != "" {
		store, err := history.New(history.Options{Dir: config.HistoryDir})
		if err != nil {
			return fmt.Errorf("history store: %w", err)
		}
		defer store.Close()
		sessionOpts = append(sessionOpts, orchestration.WithRecordSink(store))
	}

	registry := orchestration.NewRegistry(
		orchestration.WithSessionDefaults(sessionOpts...),
		orchestration.WithIdleTimeout(config.Session.IdleTimeout),
	)
	defer registry.Close()

	mux := http.NewServeMux()
	mux.Handle("/ws", transport.NewWebSocketHandler(registry,
		transport.WithRealTimePacing(config.Pacing.RealTime)))
	mux.Handle("/events", transport.NewSSEHandler(registry))
	mux.Handle("/media/", http.StripPrefix("/media/", http.FileServer(http.Dir(config.MediaDir))))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:    config.Addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("tutord listening on %s", config.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildSpeechChain assembles the narration provider chain from whatever API
// keys are present in the environment. No keys means no narration, which the
// orchestrator treats as the silent fallback.
func buildSpeechChain(config Config) *speech.Chain {
	var providers []speech.Provider

	if client, err := elevenlabs.New(config.MediaDir, elevenlabs.WithVoiceID(config.Speech.ElevenLabsVoice)); err == nil {
		providers = append(providers, client)
	} else {
		log.Printf("elevenlabs narration disabled: %v", err)
	}
	if client, err := deepgram.New(config.MediaDir, deepgram.WithVoice(config.Speech.DeepgramVoice)); err == nil {
		providers = append(providers, client)
	} else {
		log.Printf("deepgram narration disabled: %v", err)
	}

	if len(providers) == 0 {
		return nil
	}
	return speech.NewChain(providers)
}
