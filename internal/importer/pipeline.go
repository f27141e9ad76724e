package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"entrypass/internal/logger"
	"entrypass/internal/models"
	"entrypass/internal/tickets/db"
	"entrypass/internal/tickets/qr"
	"entrypass/internal/tickets/template"
	"entrypass/internal/utils"
)

// maxIDAttempts bounds retries when a generated ticket id collides.
const maxIDAttempts = 3

// Publisher is notified of every ticket the pipeline creates.
type Publisher interface {
	PublishTicketIssued(ctx context.Context, ticket models.Ticket) error
}

type Config struct {
	OutputDir             string
	TempDir               string
	EventName             string
	Slot                  string
	DefaultTeamSize       int
	MaxMembers            int
	DisambiguateFilenames bool
	RepairMissingPasses   bool
}

type Pipeline struct {
	Store     db.Store
	QR        *qr.QRGenerator
	PDF       *template.TicketPDFGenerator
	Mapper    *Mapper
	Publisher Publisher
	Logger    *logger.Logger
	Config    Config

	Now   func() time.Time
	NewID func() string
}

func NewPipeline(store db.Store, qrGen *qr.QRGenerator, pdf *template.TicketPDFGenerator, cfg Config, log *logger.Logger) *Pipeline {
	if cfg.DefaultTeamSize <= 0 {
		cfg.DefaultTeamSize = 3
	}
	if cfg.MaxMembers <= 0 {
		cfg.MaxMembers = 4
	}
	return &Pipeline{
		Store:  store,
		QR:     qrGen,
		PDF:    pdf,
		Mapper: NewMapper(DefaultColumns(cfg.MaxMembers)),
		Logger: log,
		Config: cfg,
		Now:    time.Now,
		NewID:  utils.GenerateTicketID,
	}
}

type RowFailure struct {
	Row      int
	TeamCode string
	TeamName string
	Err      error
}

func (f RowFailure) Error() string {
	return fmt.Sprintf("row %d (%s / %s): %v", f.Row, f.TeamCode, f.TeamName, f.Err)
}

type Report struct {
	Created          int
	Skipped          int
	SkippedMissing   int
	SkippedDuplicate int
	Repaired         int
	Failed           []RowFailure
	OutputDir        string
	Files            []string
}

func (r *Report) Summary() string {
	return fmt.Sprintf("Created: %d, Skipped: %d (missing fields %d, duplicates %d), Repaired: %d, Failed: %d",
		r.Created, r.Skipped, r.SkippedMissing, r.SkippedDuplicate, r.Repaired, len(r.Failed))
}

// Run imports every row of table in source order. Row-level problems are
// recorded in the report and never stop the run; only a store that cannot be
// read, an unusable output directory or ctx cancellation return an error. Work
// persisted before the error stays in place, so a rerun picks up where this
// one stopped.
func (p *Pipeline) Run(ctx context.Context, table *Table) (*Report, error) {
	report := &Report{OutputDir: p.Config.OutputDir}

	if err := os.MkdirAll(p.Config.OutputDir, 0755); err != nil {
		return report, fmt.Errorf("failed to create output dir %s: %w", p.Config.OutputDir, err)
	}

	seen, err := db.UserIDs(ctx, p.Store)
	if err != nil {
		return report, fmt.Errorf("failed to load existing tickets: %w", err)
	}
	p.Logger.Info("IMPORT", fmt.Sprintf("%d tickets already issued, %d rows to process", len(seen), len(table.Rows)))

	for _, row := range table.Records() {
		if err := ctx.Err(); err != nil {
			p.Logger.Warn("IMPORT", fmt.Sprintf("stopped before row %d: %v", row.Index, err))
			return report, err
		}
		p.processRow(ctx, p.Mapper.Map(row), seen, report)
	}

	p.Logger.Info("IMPORT", report.Summary())
	return report, nil
}

func (p *Pipeline) processRow(ctx context.Context, rec Record, seen map[string]struct{}, report *Report) {
	teamCode := rec.Get(FieldTeamCode)
	teamName := rec.Get(FieldTeamName)

	if teamCode == "" || teamName == "" {
		report.Skipped++
		report.SkippedMissing++
		p.Logger.LogImport(rec.Index, "skipped: missing team code or team name")
		return
	}

	if _, ok := seen[teamCode]; ok {
		report.Skipped++
		report.SkippedDuplicate++
		p.Logger.LogImport(rec.Index, fmt.Sprintf("skipped: %s already has a ticket", teamCode))
		if p.Config.RepairMissingPasses {
			p.repairPass(ctx, rec, report)
		}
		return
	}

	ticket := p.buildTicket(rec)
	if err := p.persist(ctx, &ticket); err != nil {
		if errors.Is(err, db.ErrDuplicateUserID) {
			// Issued by another writer after we loaded the existing codes.
			seen[teamCode] = struct{}{}
			report.Skipped++
			report.SkippedDuplicate++
			p.Logger.LogImport(rec.Index, fmt.Sprintf("skipped: %s already has a ticket", teamCode))
			return
		}
		p.fail(report, rec, err)
		return
	}
	seen[ticket.UserID] = struct{}{}

	if p.Publisher != nil {
		if err := p.Publisher.PublishTicketIssued(ctx, ticket); err != nil {
			p.Logger.Warn("IMPORT", fmt.Sprintf("row %d: failed to publish ticket %s: %v", rec.Index, ticket.TicketID, err))
		}
	}

	path, err := p.writePass(ticket)
	if err != nil {
		p.fail(report, rec, fmt.Errorf("ticket %s stored but pass not written: %w", ticket.TicketID, err))
		return
	}

	report.Created++
	report.Files = append(report.Files, path)
	p.Logger.LogTicket("CREATED", ticket.TicketID, fmt.Sprintf("%s (%s) -> %s", ticket.UserID, ticket.TeamName, filepath.Base(path)))
}

func (p *Pipeline) buildTicket(rec Record) models.Ticket {
	names := make([]string, 0, p.Config.MaxMembers)
	for n := 1; n <= p.Config.MaxMembers; n++ {
		names = append(names, rec.Get(MemberField(n)))
	}

	return models.Ticket{
		UserID:          rec.Get(FieldTeamCode),
		TeamName:        rec.Get(FieldTeamName),
		CollegeName:     rec.Get(FieldCollegeName),
		TeamLeaderEmail: rec.Get(FieldEmail),
		TeamSize:        ParseTeamSize(rec.Get(FieldTeamSize), p.Config.DefaultTeamSize),
		TeamMembers:     models.BuildTeamMembers(names, rec.Get(FieldLeaderName)),
		Slot:            p.Config.Slot,
		EventName:       p.Config.EventName,
		ProjectDomain:   rec.Get(FieldProjectDomain),
		ProjectTitle:    rec.Get(FieldProjectTitle),
		TShirtSizes:     rec.Get(FieldTShirtSizes),
		FoodPreference:  rec.Get(FieldFoodPreference),
		CreatedAt:       p.Now().UTC(),
		CreatedBy:       models.CreatedByBulkImport,
	}
}

// persist assigns a fresh ticket id and payload and stores the ticket,
// drawing a new id if the store reports a collision.
func (p *Pipeline) persist(ctx context.Context, ticket *models.Ticket) error {
	for attempt := 1; ; attempt++ {
		ticket.TicketID = p.NewID()
		ticket.QRPayload = p.QR.GeneratePayload(ticket.TicketID, ticket.UserID, ticket.TeamName)

		err := p.Store.AddTicket(ctx, *ticket)
		if err == nil {
			return nil
		}
		if errors.Is(err, db.ErrDuplicateTicketID) && attempt < maxIDAttempts {
			continue
		}
		return err
	}
}

// writePass renders the pass through a per-row temporary QR image, which is
// removed whatever the outcome.
func (p *Pipeline) writePass(ticket models.Ticket) (string, error) {
	qrPath, err := p.QR.WriteTempImage(ticket.QRPayload, p.Config.TempDir)
	if err != nil {
		return "", err
	}
	defer os.Remove(qrPath)

	info := template.PassInfoFromTicket(ticket)
	info.QRPath = qrPath

	doc, err := p.PDF.Generate(info)
	if err != nil {
		return "", err
	}

	path := p.PassPath(ticket)
	if err := utils.WriteFileAtomic(path, doc, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// PassPath is where the pass for ticket is written. Teams whose names
// sanitize to the same string share a path unless DisambiguateFilenames is
// set, in which case the ticket id is appended.
func (p *Pipeline) PassPath(ticket models.Ticket) string {
	name := SanitizeFilename(ticket.TeamName)
	switch {
	case name == "":
		name = ticket.TicketID
	case p.Config.DisambiguateFilenames:
		name = name + "_" + ticket.TicketID
	}
	return filepath.Join(p.Config.OutputDir, name+".pdf")
}

func (p *Pipeline) repairPass(ctx context.Context, rec Record, report *Report) {
	stored, err := p.Store.GetTicketByUserID(ctx, rec.Get(FieldTeamCode))
	if err != nil {
		p.Logger.Warn("IMPORT", fmt.Sprintf("row %d: could not load stored ticket: %v", rec.Index, err))
		return
	}

	if _, err := os.Stat(p.PassPath(*stored)); !errors.Is(err, fs.ErrNotExist) {
		return
	}

	path, err := p.writePass(*stored)
	if err != nil {
		p.fail(report, rec, fmt.Errorf("failed to repair pass for %s: %w", stored.TicketID, err))
		return
	}
	report.Repaired++
	report.Files = append(report.Files, path)
	p.Logger.LogTicket("REPAIRED", stored.TicketID, filepath.Base(path))
}

func (p *Pipeline) fail(report *Report, rec Record, err error) {
	failure := RowFailure{
		Row:      rec.Index,
		TeamCode: rec.Get(FieldTeamCode),
		TeamName: rec.Get(FieldTeamName),
		Err:      err,
	}
	report.Failed = append(report.Failed, failure)
	p.Logger.Error("IMPORT", failure.Error())
}
