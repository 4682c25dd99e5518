package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentwire/a2a-runtime/pkg/catalog"
	"github.com/agentwire/a2a-runtime/pkg/push"
	"github.com/agentwire/a2a-runtime/pkg/runtime"
	"github.com/agentwire/a2a-runtime/pkg/service"
)

var (
	portFlag        int
	hostFlag        string
	agentNameFlag   string
	agentDescFlag   string
	signingKeyFlag  string
	authSecretFlag  string
	externalURLFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve an A2A agent",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := runtime.ConfigFromViper(viper.GetViper())

			rt := runtime.New(runtime.WithConfig(cfg))

			if cfg.Debug {
				rt.Logger.SetLevel(log.DebugLevel)
			}

			url := externalURLFlag

			if url == "" {
				url = fmt.Sprintf("http://%s:%d", hostFlag, portFlag)
			}

			registry := catalog.NewRegistry()

			if err := registry.Register(catalog.Capability{
				Name:        "echo",
				Description: "Echoes the user's message back as an artifact",
				Tags:        []string{"demo"},
			}); err != nil {
				return err
			}

			cardOpts := []catalog.CardOption{
				catalog.WithTTL(cfg.CacheTTL),
				catalog.WithClock(rt.Clock.Now),
			}

			if signingKeyFlag != "" {
				cardOpts = append(cardOpts, catalog.WithSigner(
					catalog.NewHMACSigner([]byte(signingKeyFlag)),
				))
			}

			cards := catalog.NewCardServer(registry, catalog.Info{
				Name:               agentNameFlag,
				Description:        agentDescFlag,
				Version:            "0.1.0",
				URL:                url,
				ProtocolVersion:    cfg.ProtocolVersion,
				PreferredTransport: cfg.DefaultTransport,
				Streaming:          cfg.StreamingEnabled,
				PushNotifications:  cfg.PushNotificationsEnabled,
				DefaultInputModes:  cfg.DefaultInputModes,
				DefaultOutputModes: cfg.DefaultOutputModes,
			}, cardOpts...)

			tasks := service.NewTaskManager(rt)
			pushManager := push.NewManager(rt)
			handler := service.NewRequestHandler(
				rt, tasks, pushManager, cards, service.NewEchoExecutor(rt.RandomID),
			)

			var serverOpts []service.ServerOption

			if authSecretFlag != "" {
				serverOpts = append(serverOpts, service.WithAuthenticator(
					service.NewJWTAuthenticator([]byte(authSecretFlag)),
				))
			}

			srv := service.NewServer(rt, handler, cards, registry, serverOpts...)

			ctx, stop := signal.NotifyContext(
				context.Background(), syscall.SIGINT, syscall.SIGTERM,
			)
			defer stop()

			go pushManager.Run(ctx)

			errs := make(chan error, 1)

			go func() {
				errs <- srv.Start(fmt.Sprintf("%s:%d", hostFlag, portFlag))
			}()

			select {
			case err := <-errs:
				return err
			case <-ctx.Done():
				rt.Logger.Info("shutting down")
				return srv.Shutdown()
			}
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 3210, "Port to serve on")
	serveCmd.Flags().StringVarP(&hostFlag, "host", "H", "0.0.0.0", "Host address to bind to")
	serveCmd.Flags().StringVarP(&agentNameFlag, "name", "n", "A2A Runtime Agent", "Name for the agent")
	serveCmd.Flags().StringVar(&agentDescFlag, "description", "A reference A2A agent", "Description for the agent")
	serveCmd.Flags().StringVar(&signingKeyFlag, "signing-key", "", "HMAC key for agent card signing (empty disables the JWS endpoint)")
	serveCmd.Flags().StringVar(&authSecretFlag, "auth-secret", "", "HMAC secret for bearer token auth (empty disables auth)")
	serveCmd.Flags().StringVar(&externalURLFlag, "url", "", "Externally reachable URL to advertise on the agent card")
}

var longServe = `
Serve an A2A agent over JSON-RPC with SSE streaming and webhook push
notifications.

Examples:
  # Serve the echo agent on port 8080
  a2a-runtime serve --port 8080

  # Serve with a signed agent card and bearer token auth
  a2a-runtime serve --signing-key s3cret --auth-secret t0ken
`
