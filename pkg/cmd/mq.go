package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/sharevault/pkg/configs"
	mq "github.com/yeisme/sharevault/pkg/internal/storage/mq"
	"github.com/yeisme/sharevault/pkg/queue"
)

var (
	mqCmd = &cobra.Command{
		Use:     "mq",
		Short:   "Message queue and domain event commands",
		Aliases: []string{"messagequeue"},
	}

	mqListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list all registered mq types",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered mq types:")
			for _, t := range mq.GetRegisteredTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+string(t))
			}
		},
	}

	mqTopicsCmd = &cobra.Command{
		Use:   "topics",
		Short: "list the domain event topics published by the service",
		Run: func(cmd *cobra.Command, args []string) {
			for _, t := range queue.AllTopics {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
		},
	}

	mqTailCmd = &cobra.Command{
		Use:     "tail [topic...]",
		Short:   "print domain events as they arrive, all topics by default",
		PreRunE: loadConfig,
		RunE:    runMQTail,
	}
)

func runMQTail(cmd *cobra.Command, args []string) error {
	topics := args
	if len(topics) == 0 {
		topics = queue.AllTopics
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := mq.New(ctx, &configs.GetConfig().MQ)
	if err != nil {
		return err
	}
	defer client.Close()

	out := cmd.OutOrStdout()
	g, gctx := errgroup.WithContext(ctx)

	for _, topic := range topics {
		ch, err := client.Subscribe(gctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}

		g.Go(func() error {
			for m := range ch {
				env, err := queue.ParseWatermillMessage[map[string]any](m)
				if err != nil {
					fmt.Fprintf(os.Stderr, "%s: undecodable message %s: %v\n", topic, m.UUID, err)
					m.Ack()

					continue
				}

				payload, _ := sonic.MarshalString(env.Payload)
				fmt.Fprintf(out, "%s\t%s\t%s\n", env.Header.OccurredAt.Format(time.RFC3339), env.Header.Topic, payload)
				m.Ack()
			}

			return nil
		})
	}

	return g.Wait()
}

// registerMQCommands 注册 MQ 相关命令.
func registerMQCommands() {
	rootCmd.AddCommand(mqCmd)
	mqCmd.AddCommand(mqListCmd, mqTopicsCmd, mqTailCmd)
}
