package importer_test

import (
	"context"
	"entrypass/internal/importer"
	"entrypass/internal/logger"
	"entrypass/internal/models"
	"entrypass/internal/tickets/db"
	"entrypass/internal/tickets/qr"
	"entrypass/internal/tickets/template"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "Team Code,Team Name,Team Size,Institution Name,Email Address,Team Leader Name," +
	"Team Member 1 Name (Leader),Team Member 2 Name,Team Member 3 Name,Team Member 4 Name," +
	"Project Domain,Project Title,Enter T-Shirt Sizes (Collective Format),Food Preference (Veg / Non-Veg)\n"

type fixture struct {
	store    *db.JSONStore
	pipeline *importer.Pipeline
	outDir   string
	tempDir  string
	qr       *qr.QRGenerator
}

func newFixture(t *testing.T) *fixture {
	root := t.TempDir()
	store, err := db.NewJSONStore(filepath.Join(root, "data", "tickets.json"))
	require.NoError(t, err)

	f := &fixture{
		store:   store,
		outDir:  filepath.Join(root, "pdf"),
		tempDir: filepath.Join(root, "tmp"),
		qr:      qr.NewQRGenerator("test-secret", 256),
	}
	require.NoError(t, os.MkdirAll(f.tempDir, 0755))

	f.pipeline = importer.NewPipeline(store, f.qr, template.NewTicketPDFGenerator(), importer.Config{
		OutputDir:           f.outDir,
		TempDir:             f.tempDir,
		EventName:           "HACKFEST2K26",
		Slot:                "20 Feb 9:00 AM - 21 Feb 9:00 AM",
		DefaultTeamSize:     3,
		MaxMembers:          4,
		RepairMissingPasses: true,
	}, logger.Discard())
	f.pipeline.Now = func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) run(t *testing.T, csv string) *importer.Report {
	table, err := importer.ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	report, err := f.pipeline.Run(context.Background(), table)
	require.NoError(t, err)
	return report
}

func (f *fixture) tickets(t *testing.T) []models.Ticket {
	tickets, err := f.store.GetAllTickets(context.Background())
	require.NoError(t, err)
	return tickets
}

func sequentialIDs(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

const scenario = header +
	"tc01,Team Alpha,4,Institute of Testing,alpha@example.com,Asha,Asha,Ravi,,Meera,AI,Smart Gate,2M 2L,Veg\n" +
	"TC02,,3,Other College,b@example.com,Bala,Bala,,,,nan,nan,nan,nan\n" +
	"TC01,Team Beta,2,Another,c@example.com,Chen,Chen,,,,,,,\n"

func TestRunScenario(t *testing.T) {
	f := newFixture(t)

	report := f.run(t, scenario)

	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 1, report.SkippedMissing)
	assert.Equal(t, 1, report.SkippedDuplicate)
	assert.Empty(t, report.Failed)
	assert.Equal(t, f.outDir, report.OutputDir)

	assert.FileExists(t, filepath.Join(f.outDir, "Team Alpha.pdf"))
	assert.NoFileExists(t, filepath.Join(f.outDir, "Team Beta.pdf"))
	assert.Equal(t, []string{filepath.Join(f.outDir, "Team Alpha.pdf")}, report.Files)

	tickets := f.tickets(t)
	require.Len(t, tickets, 1)
	ticket := tickets[0]
	assert.Equal(t, "TC01", ticket.UserID)
	assert.Equal(t, "Team Alpha", ticket.TeamName)
	assert.Equal(t, 4, ticket.TeamSize)
	assert.Equal(t, "HACKFEST2K26", ticket.EventName)
	assert.Equal(t, models.CreatedByBulkImport, ticket.CreatedBy)
	assert.Equal(t, "Smart Gate", ticket.ProjectTitle)
	assert.Len(t, ticket.TicketID, 8)
	assert.Equal(t, []models.TeamMember{
		{Name: "Asha", Position: models.PositionLeader, MemberID: 1},
		{Name: "Ravi", Position: "Member 2", MemberID: 2},
		{Name: "Meera", Position: "Member 3", MemberID: 3},
	}, ticket.TeamMembers)

	claims, err := f.qr.DecodePayload(ticket.QRPayload)
	require.NoError(t, err)
	assert.Equal(t, qr.Claims{TicketID: ticket.TicketID, UserID: "TC01", TeamName: "Team Alpha"}, claims)

	pdf, err := os.ReadFile(filepath.Join(f.outDir, "Team Alpha.pdf"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))

	entries, err := os.ReadDir(f.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary QR images must be removed")
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t)

	first := f.run(t, scenario)
	second := f.run(t, scenario)

	assert.Equal(t, 0, second.Created)
	assert.Equal(t, first.Created+first.Skipped, second.Skipped)
	assert.Equal(t, 0, second.Repaired)
	assert.Len(t, f.tickets(t), 1)
}

func TestRunResumesPartialImport(t *testing.T) {
	f := newFixture(t)

	f.run(t, header+"TC01,Team Alpha,,,,,,,,,,,,\n")
	report := f.run(t, header+
		"TC01,Team Alpha,,,,,,,,,,,,\n"+
		"TC02,Team Beta,,,,,,,,,,,,\n")

	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.SkippedDuplicate)
	assert.Len(t, f.tickets(t), 2)
}

func TestRunTeamSizeAndMembersFallbacks(t *testing.T) {
	f := newFixture(t)

	f.run(t, header+
		"TC01,Five,5,,,,,,,,,,,\n"+
		"TC02,Decimal,5.0,,,,,,,,,,,\n"+
		"TC03,Words,five,,,Lead Only,,,,,,,,\n"+
		"TC04,Nobody,,,,,,,,,,,,\n")

	byCode := map[string]models.Ticket{}
	for _, ticket := range f.tickets(t) {
		byCode[ticket.UserID] = ticket
	}

	assert.Equal(t, 5, byCode["TC01"].TeamSize)
	assert.Equal(t, 5, byCode["TC02"].TeamSize)
	assert.Equal(t, 3, byCode["TC03"].TeamSize)
	assert.Equal(t, 3, byCode["TC04"].TeamSize)

	assert.Equal(t, []models.TeamMember{{Name: "Lead Only", Position: models.PositionLeader, MemberID: 1}}, byCode["TC03"].TeamMembers)
	assert.Empty(t, byCode["TC04"].TeamMembers)
}

func TestRunNormalizesPlaceholders(t *testing.T) {
	f := newFixture(t)

	report := f.run(t, header+
		"TC01,Team Alpha,4,NaN,none,,,,,,NULL,#N/A,nan,None\n"+
		"nan,Team Ghost,4,,,,,,,,,,,\n")

	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.SkippedMissing)

	ticket := f.tickets(t)[0]
	assert.Empty(t, ticket.CollegeName)
	assert.Empty(t, ticket.TeamLeaderEmail)
	assert.Empty(t, ticket.ProjectDomain)
	assert.Empty(t, ticket.ProjectTitle)
	assert.Empty(t, ticket.TShirtSizes)
	assert.Empty(t, ticket.FoodPreference)
}

type failingStore struct {
	db.Store
	failFor string
}

func (s *failingStore) AddTicket(ctx context.Context, ticket models.Ticket) error {
	if ticket.UserID == s.failFor {
		return errors.New("disk full")
	}
	return s.Store.AddTicket(ctx, ticket)
}

func TestRunIsolatesRowFailures(t *testing.T) {
	f := newFixture(t)
	f.pipeline.Store = &failingStore{Store: f.store, failFor: "TC01"}

	report := f.run(t, header+
		"TC01,Team Alpha,,,,,,,,,,,,\n"+
		"TC02,Team Beta,,,,,,,,,,,,\n")

	assert.Equal(t, 1, report.Created)
	require.Len(t, report.Failed, 1)
	failure := report.Failed[0]
	assert.Equal(t, 1, failure.Row)
	assert.Equal(t, "TC01", failure.TeamCode)
	assert.Equal(t, "Team Alpha", failure.TeamName)
	assert.ErrorContains(t, failure.Err, "disk full")
	assert.Contains(t, report.Summary(), "Failed: 1")

	assert.NoFileExists(t, filepath.Join(f.outDir, "Team Alpha.pdf"))
	assert.FileExists(t, filepath.Join(f.outDir, "Team Beta.pdf"))
}

func TestRunKeepsTicketWhenPassWriteFails(t *testing.T) {
	f := newFixture(t)

	// A non-empty directory where the pass belongs makes the rename fail.
	blocked := filepath.Join(f.outDir, "Team Alpha.pdf")
	require.NoError(t, os.MkdirAll(blocked, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(blocked, "keep"), []byte("x"), 0644))

	report := f.run(t, scenario)
	assert.Equal(t, 0, report.Created)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "TC01", report.Failed[0].TeamCode)
	assert.ErrorContains(t, report.Failed[0], "stored but pass not written")

	tickets := f.tickets(t)
	require.Len(t, tickets, 1)
	assert.Equal(t, "TC01", tickets[0].UserID)

	entries, err := os.ReadDir(f.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary QR images must be removed")

	entries, err = os.ReadDir(f.outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no partial pass left behind")
	assert.True(t, entries[0].IsDir())

	require.NoError(t, os.RemoveAll(blocked))
	report = f.run(t, scenario)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Repaired)
	assert.Empty(t, report.Failed)
	assert.Len(t, f.tickets(t), 1)
	assert.FileExists(t, blocked)
}

func TestRunImportsTeamsNamedLikePlaceholders(t *testing.T) {
	f := newFixture(t)

	report := f.run(t, "Team Code,Team Name\nTC01,None\nTC02,Null\nTC03,nan\n")
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 1, report.SkippedMissing)

	tickets := f.tickets(t)
	require.Len(t, tickets, 2)
	assert.Equal(t, "None", tickets[0].TeamName)
	assert.Equal(t, "Null", tickets[1].TeamName)
	assert.FileExists(t, filepath.Join(f.outDir, "None.pdf"))
	assert.FileExists(t, filepath.Join(f.outDir, "Null.pdf"))
}

// racingStore lets another writer claim a team code just before the
// pipeline's own insert.
type racingStore struct {
	db.Store
	other  db.Store
	claims map[string]models.Ticket
}

func (s *racingStore) AddTicket(ctx context.Context, ticket models.Ticket) error {
	if claim, ok := s.claims[ticket.UserID]; ok {
		delete(s.claims, ticket.UserID)
		if err := s.other.AddTicket(ctx, claim); err != nil {
			return err
		}
	}
	return s.Store.AddTicket(ctx, ticket)
}

func TestRunSkipsCodeClaimedByOtherSQLiteWriter(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tickets.db")
	open := func() *db.DB {
		store, err := db.OpenSQLite(path)
		require.NoError(t, err)
		require.NoError(t, store.Migrate(ctx))
		t.Cleanup(func() { store.Close() })
		return store
	}
	mine, theirs := open(), open()

	f := newFixture(t)
	f.pipeline.Store = &racingStore{Store: mine, other: theirs, claims: map[string]models.Ticket{
		"TC01": {TicketID: "OTHER001", UserID: "TC01", TeamName: "Team Alpha", CreatedAt: time.Now().UTC()},
	}}

	report := f.run(t, header+
		"TC01,Team Alpha,,,,,,,,,,,,\n"+
		"TC02,Team Beta,,,,,,,,,,,,\n")

	assert.Empty(t, report.Failed)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.SkippedDuplicate)

	tickets, err := mine.GetAllTickets(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	got, err := mine.GetTicketByUserID(ctx, "TC01")
	require.NoError(t, err)
	assert.Equal(t, "OTHER001", got.TicketID)
}

func TestRunRetriesTicketIDCollision(t *testing.T) {
	f := newFixture(t)
	f.pipeline.NewID = sequentialIDs("AAAA0001", "AAAA0001", "BBBB0002")

	report := f.run(t, header+
		"TC01,Team Alpha,,,,,,,,,,,,\n"+
		"TC02,Team Beta,,,,,,,,,,,,\n")

	assert.Equal(t, 2, report.Created)
	ids := []string{}
	for _, ticket := range f.tickets(t) {
		ids = append(ids, ticket.TicketID)
	}
	assert.ElementsMatch(t, []string{"AAAA0001", "BBBB0002"}, ids)
}

func TestRunFilenameCollisions(t *testing.T) {
	rows := header +
		"TC01,Team/Alpha,,,,,,,,,,,,\n" +
		"TC02,TeamAlpha!,,,,,,,,,,,,\n" +
		"TC03,!!!,,,,,,,,,,,,\n"

	t.Run("last write wins", func(t *testing.T) {
		f := newFixture(t)
		report := f.run(t, rows)

		assert.Equal(t, 3, report.Created)
		entries, err := os.ReadDir(f.outDir)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
		assert.FileExists(t, filepath.Join(f.outDir, "TeamAlpha.pdf"))
	})

	t.Run("disambiguated", func(t *testing.T) {
		f := newFixture(t)
		f.pipeline.Config.DisambiguateFilenames = true
		f.pipeline.NewID = sequentialIDs("AAAA0001", "BBBB0002", "CCCC0003")

		f.run(t, rows)

		assert.FileExists(t, filepath.Join(f.outDir, "TeamAlpha_AAAA0001.pdf"))
		assert.FileExists(t, filepath.Join(f.outDir, "TeamAlpha_BBBB0002.pdf"))
		assert.FileExists(t, filepath.Join(f.outDir, "CCCC0003.pdf"))
	})
}

func TestRunRepairsMissingPass(t *testing.T) {
	f := newFixture(t)
	f.run(t, scenario)

	path := filepath.Join(f.outDir, "Team Alpha.pdf")
	require.NoError(t, os.Remove(path))

	report := f.run(t, scenario)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Repaired)
	assert.FileExists(t, path)

	f.pipeline.Config.RepairMissingPasses = false
	require.NoError(t, os.Remove(path))
	report = f.run(t, scenario)
	assert.Equal(t, 0, report.Repaired)
	assert.NoFileExists(t, path)
}

type recordingPublisher struct {
	published []string
	err       error
}

func (p *recordingPublisher) PublishTicketIssued(ctx context.Context, ticket models.Ticket) error {
	p.published = append(p.published, ticket.UserID)
	return p.err
}

func TestRunPublishesCreatedTickets(t *testing.T) {
	f := newFixture(t)
	publisher := &recordingPublisher{err: errors.New("broker down")}
	f.pipeline.Publisher = publisher

	report := f.run(t, scenario)

	assert.Equal(t, []string{"TC01"}, publisher.published)
	assert.Equal(t, 1, report.Created)
	assert.Empty(t, report.Failed)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	table, err := importer.ReadCSV(strings.NewReader(scenario))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.pipeline.Run(ctx, table)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, report.Created)
	assert.Empty(t, f.tickets(t))
}

func TestRunManyRows(t *testing.T) {
	f := newFixture(t)

	var b strings.Builder
	b.WriteString(header)
	for i := 1; i <= 12; i++ {
		fmt.Fprintf(&b, "TC%02d,Team %d,,,,,,,,,,,,\n", i, i)
	}
	b.WriteString("tc05,Again,,,,,,,,,,,,\n")

	report := f.run(t, b.String())
	assert.Equal(t, 12, report.Created)
	assert.Equal(t, 1, report.SkippedDuplicate)
	assert.Len(t, report.Files, 12)
}
