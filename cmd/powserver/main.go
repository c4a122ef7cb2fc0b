// Command powserver is a small demonstration host for the actorfiber
// messaging substrate: it spawns a worker thread that answers "pow"
// commands, opens a pipeline against a worker that never replies to show
// the query-timeout path, and serves a read-only diagnostics endpoint over
// HTTP.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/ezex-io/actorfiber/channel"
	"github.com/ezex-io/actorfiber/env"
	"github.com/ezex-io/actorfiber/envelope"
	"github.com/ezex-io/actorfiber/logger"
	"github.com/ezex-io/actorfiber/middleware"
	"github.com/ezex-io/actorfiber/pipeline"
	"github.com/ezex-io/actorfiber/procsignal"
	"github.com/ezex-io/actorfiber/registry"
	"github.com/ezex-io/actorfiber/retry"
	"github.com/ezex-io/actorfiber/spawn"
	"github.com/ezex-io/actorfiber/timer"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	flagListenHTTP string
	flagEnvFile    string
	flagPowTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "powserver",
	Short: "Demo host for the actorfiber messaging substrate",
	RunE:  run,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagListenHTTP, "listen-http", ":8080", "diagnostics HTTP listen address")
	flags.StringVar(&flagEnvFile, "env-file", "", "optional .env file to load before startup")
	flags.DurationVar(&flagPowTimeout, "pow-timeout", 200*time.Millisecond, "timeout for the demo pow query")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(_ *cobra.Command, _ []string) error {
	logger.InitGlobalLogger()

	if flagEnvFile != "" {
		if err := env.LoadEnvsFromFile(flagEnvFile); err != nil {
			logger.Warn("env file not loaded", "file", flagEnvFile, "error", err)
		}
	}

	listenAddr := env.GetEnv[string]("POWSERVER_LISTEN_HTTP", env.WithDefault(flagListenHTTP))

	ctx, cancel := context.WithCancel(context.Background())

	procsignal.TrapSignal(cancel)

	powInbox := spawn.Thread(ctx, powEntry, spawn.WithName("pow-worker"))

	if err := registry.Register("pow-worker", powInbox); err != nil {
		return err
	}
	defer func() { _ = registry.Unregister("pow-worker") }()

	pipelines := pipeline.Default()

	runPowRoundTrip(ctx, powInbox)
	runPipelineTimeoutDemo(ctx, pipelines)

	timer.Every(ctx, 30*time.Second).Do(func(_ context.Context) {
		logger.Info("diagnostics heartbeat", "threads", registry.Len(), "names", registry.Names())
	})

	handler := middleware.Chain(
		middleware.Recover(),
		middleware.Logging(),
		middleware.CORS(middleware.DefaultCORSConfig()),
	)(diagnosticsHandler(pipelines))

	mux := http.NewServeMux()
	mux.Handle("/diagnostics", handler)

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("diagnostics server listening", "addr", listenAddr)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	group.Go(func() error {
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()

		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// runPowRoundTrip demonstrates the core's request/response path end to end:
// a client channel sends a Command and blocks on Receive for the matching
// Response.
func runPowRoundTrip(ctx context.Context, powInbox *channel.Channel) {
	client := channel.New(1, channel.WithName("pow-demo-client"))

	cmd := envelope.NewCommand(client, 0, "pow", "2")
	if err := powInbox.Send(ctx, cmd); err != nil {
		logger.Error("pow demo send failed", "error", err)

		return
	}

	rctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	resp, err := client.Receive(rctx)
	if err != nil {
		logger.Error("pow demo receive failed", "error", err)

		return
	}

	logger.Info("pow demo result", "status", resp.Response.Status.String(), "data", resp.Response.Data)
}

// runPipelineTimeoutDemo opens a pipeline against a worker that never
// replies and issues a Query with a short timeout, exercising the S6
// scenario: the pipeline outlives the timed-out query.
func runPipelineTimeoutDemo(ctx context.Context, pipelines *pipeline.Registry) {
	silentInbox := spawn.Thread(ctx, func(ctx context.Context, self *channel.Channel) {
		for {
			if _, err := self.Receive(ctx); err != nil {
				return
			}
		}
	}, spawn.WithName("silent-worker"))

	p := pipeline.New(silentInbox)

	openErr := retry.ExecuteSync(ctx, func() error {
		return p.Open(ctx)
	}, retry.WithMaxAttempts(3), retry.WithBackoffStrategy(retry.FixedBackoff(10*time.Millisecond)))
	if openErr != nil {
		logger.Error("pipeline demo open failed", "error", openErr)

		return
	}

	if err := pipelines.Register(p); err != nil {
		logger.Warn("pipeline demo register failed", "error", err)
	}

	id := pipeline.NextID()
	resp := p.Query(ctx, envelope.Command{Sender: p, ID: id, Method: "pow", Args: "3"}, flagPowTimeout)

	logger.Info("pipeline timeout demo result", "status", resp.Status.String())
}
