package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/Digital-Creators-Team/faucet-module/config"
	"github.com/Digital-Creators-Team/faucet-module/events/kafka"
	"github.com/Digital-Creators-Team/faucet-module/logging"
	"github.com/Digital-Creators-Team/faucet-module/metrics"
	faucetwire "github.com/Digital-Creators-Team/faucet-module/wire"
	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
)

var version = getVersion()

// getVersion returns the module version from build info
func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

func main() {
	var configFile, envFile string

	rootCmd := &cobra.Command{
		Use:   "faucetd",
		Short: "Multi-currency NANO-family faucet",
		Long: `faucetd pays small NANO, XDG and BAN amounts to addresses on a cooldown,
with a referral bonus paid from each claim.

Example:
  faucetd serve --config config/config.yaml
  faucetd rates
  faucetd events --topic faucet.claims --from-beginning`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (defaults and FAUCET_* env vars only when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the faucet HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configFile)
		},
	}

	ratesCmd := &cobra.Command{
		Use:   "rates",
		Short: "Fetch exchange rates once and print them as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRates(cmd, configFile)
		},
	}

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Print payout events from Kafka until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(cmd, configFile)
		},
	}
	eventsCmd.Flags().String("topic", "", "topic to read (default: the configured claims topic)")
	eventsCmd.Flags().String("group", "faucetd-events", "consumer group")
	eventsCmd.Flags().Bool("from-beginning", false, "start a new group at the oldest offset")

	rootCmd.AddCommand(serveCmd, ratesCmd, eventsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	app, cleanup, err := initializeApp(cfg)
	if err != nil {
		return err
	}
	app.OnShutdown(cleanup)
	return app.Run()
}

func runRates(cmd *cobra.Command, configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging)

	svc, stop, err := faucetwire.ProvideOracle(cfg, logger, metrics.New())
	if err != nil {
		return err
	}
	defer stop()

	snap := svc.Snapshot()
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return err
	}
	if !snap.Available {
		return fmt.Errorf("price source %s returned no usable rates", cfg.Oracle.SourceURL)
	}
	return nil
}

func runEvents(cmd *cobra.Command, configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is empty")
	}
	logger := logging.New(cfg.Logging)

	topic, _ := cmd.Flags().GetString("topic")
	if topic == "" {
		topic = cfg.Kafka.Topics["claims"]
	}
	group, _ := cmd.Flags().GetString("group")
	fromBeginning, _ := cmd.Flags().GetBool("from-beginning")

	out := cmd.OutOrStdout()
	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         topic,
		ConsumerGroup: group,
		FromBeginning: fromBeginning,
		Logger:        logger,
	}, func(_ context.Context, msg kafkago.Message) error {
		_, err := fmt.Fprintln(out, string(msg.Value))
		return err
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer.Start(ctx)
	<-ctx.Done()
	return consumer.Stop()
}
