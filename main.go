package main

import (
	"bufio"
	"caltalk/src-server/handler"
	"caltalk/src-server/llm"
	"caltalk/src-server/metric"
	"caltalk/src-server/provider"
	"caltalk/src-server/route"
	"caltalk/src-server/scheduler"
	"caltalk/src-server/session"
	"caltalk/src-server/utils"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func init() {
	if err := godotenv.Load(); err != nil {
		slog.Info(err.Error())
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.RFC1123Z,
		}),
	))
}

func main() {
	app := &cli.App{
		Name:  "caltalk",
		Usage: "Talk to your calendar in plain language.",
		Commands: []*cli.Command{
			serveCommand(),
			chatCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

// bootstrap builds everything both commands share: config, LLM client,
// calendar provider, session registry and the pipeline handler.
func bootstrap(c *cli.Context) (*utils.AppState, *handler.Handler, error) {
	as := utils.NewAppState()

	completer, err := llm.NewClient(as.Config.GetGroqApiKey(), as.Config.GetGroqModel())
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: %w", err)
	}

	calendarProvider, err := provider.NewGoogle(c.Context,
		as.Config.GetGoogleCredentialsFile(),
		as.Config.GetGoogleTokenFile(),
		as.Config.GetGoogleCalendarID())
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: %w", err)
	}

	registry := session.NewRegistry(as, calendarProvider)
	return as, handler.New(as, registry, completer, calendarProvider), nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API.",
		Action: func(c *cli.Context) error {
			as, h, err := bootstrap(c)
			if err != nil {
				return err
			}

			go metric.Init(as)
			if _, err := scheduler.Init(as, h); err != nil {
				return err
			}

			var tts *llm.TTS
			if apiKey := as.Config.GetElevenLabsApiKey(); apiKey != "" {
				if tts, err = llm.NewTTS(apiKey, as.Config.GetElevenLabsVoiceID(), as.Config.GetElevenLabsModel()); err != nil {
					return err
				}
			}

			go func() {
				muxer := http.NewServeMux()
				muxer.Handle("GET /metrics", promhttp.Handler())
				route.Query(muxer, as, h)
				route.Events(muxer, as, h)
				route.Timezone(muxer, as, h)
				route.TTS(muxer, as, tts)
				if err := http.ListenAndServe(":"+as.Config.GetPort(), muxer); err != nil {
					slog.Error("cannot start HTTP server", "error", err)
					as.AppCloseSignalChan <- syscall.SIGTERM
				}
			}()

			slog.Info("app is now running, press Ctrl+C to exit", "port", as.Config.GetPort())

			signal.Notify(as.AppCloseSignalChan, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
			<-as.AppCloseSignalChan
			as.GracefulShutdown()

			slog.Info("Gracefully shutting down...")
			return nil
		},
	}
}

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Talk to the assistant on the terminal.",
		Action: func(c *cli.Context) error {
			as, h, err := bootstrap(c)
			if err != nil {
				return err
			}
			go metric.Init(as)

			bundle, err := h.Registry().GetOrCreate(c.Context, "")
			if err != nil {
				return err
			}
			defer h.Registry().Evict(bundle.ID)

			if err := h.Resync(c.Context, bundle); err != nil {
				slog.Warn("initial cache sync failed", "error", err)
			}

			fmt.Println("Hi! Ask me about your calendar, or say 'bye' to leave.")
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				utterance := strings.TrimSpace(scanner.Text())
				if utterance == "" {
					continue
				}

				outcome := h.Handle(c.Context, bundle, utterance)
				fmt.Println(outcome.Response)
				if outcome.Intent == llm.IntentQuit {
					break
				}
			}

			as.GracefulShutdown()
			return scanner.Err()
		},
	}
}
