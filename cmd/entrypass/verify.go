package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"entrypass/internal/models"
	tickets "entrypass/internal/tickets/service"

	"github.com/spf13/cobra"
)

func newVerifyCommand() *cobra.Command {
	var image string

	cmd := &cobra.Command{
		Use:   "verify [payload]",
		Short: "Check a scanned QR payload or image against the ticket store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (image == "") {
				return errors.New("give either a payload argument or --image")
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var ticket *models.Ticket
			if image != "" {
				data, readErr := os.ReadFile(image)
				if readErr != nil {
					return fmt.Errorf("failed to read image: %w", readErr)
				}
				ticket, err = a.service.VerifyImage(cmd.Context(), data)
			} else {
				ticket, err = a.service.VerifyPayload(cmd.Context(), strings.TrimSpace(args[0]))
			}

			switch {
			case errors.Is(err, tickets.ErrMalformedPayload):
				fmt.Fprintln(cmd.OutOrStdout(), "malformed payload")
				return err
			case errors.Is(err, tickets.ErrUnknownTicket):
				fmt.Fprintln(cmd.OutOrStdout(), "unknown ticket")
				return err
			case err != nil:
				return err
			}

			printTicket(cmd, ticket)
			return nil
		},
	}

	cmd.Flags().StringVar(&image, "image", "", "PNG file containing the QR code")

	return cmd
}

func printTicket(cmd *cobra.Command, t *models.Ticket) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Ticket:    %s\n", t.TicketID)
	fmt.Fprintf(w, "Team code: %s\n", t.UserID)
	fmt.Fprintf(w, "Team:      %s\n", t.TeamName)
	fmt.Fprintf(w, "College:   %s\n", t.CollegeName)
	fmt.Fprintf(w, "Size:      %d\n", t.TeamSize)
	for _, m := range t.TeamMembers {
		fmt.Fprintf(w, "  %d. %s (%s)\n", m.MemberID, m.Name, m.Position)
	}
	fmt.Fprintf(w, "Event:     %s, %s\n", t.EventName, t.Slot)
}
