package main

import (
	"fmt"
	"os"

	"entrypass/internal/config"
	"entrypass/internal/kafka"
	"entrypass/internal/logger"

	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print tickets as they are issued (needs Kafka)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if !cfg.Kafka.Enabled {
				return fmt.Errorf("KAFKA_ENABLED is false, nothing to watch")
			}
			if group == "" {
				group = cfg.Kafka.GroupID
			}

			log, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Name: "entrypass", Terminal: os.Stderr, Color: true})
			if err != nil {
				return err
			}
			defer log.Close()

			consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, group, log)
			defer consumer.Close()

			log.LogKafka("WATCH", cfg.Kafka.Topic, "waiting for issued tickets")
			return consumer.Run(cmd.Context(), func(e kafka.TicketIssuedEvent) error {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s  %-10s  %s (%s)\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.TicketID, e.UserID, e.TeamName, e.CreatedBy)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "Consumer group (default: KAFKA_GROUP_ID)")

	return cmd
}
