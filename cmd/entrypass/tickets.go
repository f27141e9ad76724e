package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"entrypass/internal/models"
	tickets "entrypass/internal/tickets/service"
	"entrypass/internal/utils"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issued tickets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			all, err := a.service.ListTickets(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(all)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TICKET\tTEAM CODE\tTEAM\tSIZE\tCREATED BY\tCREATED AT")
			for _, t := range all {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", t.TicketID, t.UserID, t.TeamName, t.TeamSize, t.CreatedBy, t.CreatedAt.Format("2006-01-02 15:04"))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d tickets\n", len(all))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print tickets as JSON")

	return cmd
}

func newIssueCommand() *cobra.Command {
	var (
		req tickets.IssueRequest
		out string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a ticket for a single team",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ticket, err := a.service.IssueTicket(cmd.Context(), req)
			if err != nil {
				return err
			}

			if a.producer != nil {
				if err := a.producer.PublishTicketIssued(cmd.Context(), *ticket); err != nil {
					a.log.Warn("KAFKA", err.Error())
				}
			}

			printTicket(cmd, ticket)
			if out == "" {
				out = a.cfg.Import.OutputDir
			}
			return writePass(cmd, a, *ticket, out)
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.TeamCode, "code", "", "Team code (required)")
	f.StringVar(&req.TeamName, "name", "", "Team name (required)")
	f.StringVar(&req.CollegeName, "college", "", "Institution name")
	f.StringVar(&req.TeamLeaderEmail, "email", "", "Team leader email")
	f.IntVar(&req.TeamSize, "size", 0, "Team size (default: DEFAULT_TEAM_SIZE)")
	f.StringVar(&req.LeaderName, "leader", "", "Team leader name")
	f.StringSliceVar(&req.MemberNames, "member", nil, "Member name, leader first (repeatable)")
	f.StringVar(&req.ProjectDomain, "domain", "", "Project domain")
	f.StringVar(&req.ProjectTitle, "title", "", "Project title")
	f.StringVar(&req.TShirtSizes, "tshirt", "", "T-shirt sizes")
	f.StringVar(&req.FoodPreference, "food", "", "Food preference")
	f.StringVarP(&out, "out", "o", "", "Directory for the PDF pass (default: PDF_OUTPUT_DIR)")
	_ = cmd.MarkFlagRequired("code")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newPassCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "pass <ticket-id>",
		Short: "Render the PDF pass of an issued ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ticket, err := a.service.GetTicket(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = a.cfg.Import.OutputDir
			}
			return writePass(cmd, a, *ticket, out)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output directory (default: PDF_OUTPUT_DIR)")

	return cmd
}

// writePass renders ticket's pass into dir under the same name the importer
// would use.
func writePass(cmd *cobra.Command, a *app, ticket models.Ticket, dir string) error {
	doc, err := a.service.RenderPass(cmd.Context(), ticket.TicketID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	path := a.pipeline(dir).PassPath(ticket)
	if err := utils.WriteFileAtomic(path, doc, 0644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pass written to %s\n", filepath.Clean(path))
	return nil
}
