package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"entrypass/internal/logger"
	"entrypass/internal/models"
	"entrypass/internal/tickets/db"
	"entrypass/internal/tickets/qr"
	"entrypass/internal/tickets/template"
	"entrypass/internal/utils"
)

var (
	ErrAlreadyIssued    = errors.New("ticket already issued for this team code")
	ErrInvalidRequest   = errors.New("invalid ticket request")
	ErrUnknownTicket    = errors.New("unknown ticket")
	ErrMalformedPayload = qr.ErrMalformedPayload
)

// maxIDAttempts bounds retries when a generated ticket id collides.
const maxIDAttempts = 3

type TicketDBLayer interface {
	AddTicket(ctx context.Context, ticket models.Ticket) error
	GetAllTickets(ctx context.Context) ([]models.Ticket, error)
	GetTicketByID(ctx context.Context, ticketID string) (*models.Ticket, error)
	GetTicketByUserID(ctx context.Context, userID string) (*models.Ticket, error)
}

type EventInfo struct {
	Name            string
	Slot            string
	DefaultTeamSize int
}

type TicketService struct {
	DB     TicketDBLayer
	QR     *qr.QRGenerator
	PDF    *template.TicketPDFGenerator
	Event  EventInfo
	Logger *logger.Logger

	Now   func() time.Time
	NewID func() string
}

func NewTicketService(store TicketDBLayer, qrGen *qr.QRGenerator, pdf *template.TicketPDFGenerator, event EventInfo, log *logger.Logger) *TicketService {
	return &TicketService{
		DB:     store,
		QR:     qrGen,
		PDF:    pdf,
		Event:  event,
		Logger: log,
		Now:    time.Now,
		NewID:  utils.GenerateTicketID,
	}
}

// IssueRequest is the interactive, single-team counterpart of a spreadsheet row.
type IssueRequest struct {
	TeamCode        string
	TeamName        string
	CollegeName     string
	TeamLeaderEmail string
	TeamSize        int
	LeaderName      string
	MemberNames     []string
	ProjectDomain   string
	ProjectTitle    string
	TShirtSizes     string
	FoodPreference  string
}

func (s *TicketService) IssueTicket(ctx context.Context, req IssueRequest) (*models.Ticket, error) {
	userID := utils.NormalizeTeamCode(req.TeamCode)
	teamName := strings.TrimSpace(req.TeamName)
	if userID == "" || teamName == "" {
		return nil, fmt.Errorf("%w: team code and team name are required", ErrInvalidRequest)
	}

	if _, err := s.DB.GetTicketByUserID(ctx, userID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyIssued, userID)
	} else if !errors.Is(err, db.ErrTicketNotFound) {
		return nil, fmt.Errorf("failed to check team code %s: %w", userID, err)
	}

	teamSize := req.TeamSize
	if teamSize <= 0 {
		teamSize = s.Event.DefaultTeamSize
	}

	ticket := models.Ticket{
		UserID:          userID,
		TeamName:        teamName,
		CollegeName:     strings.TrimSpace(req.CollegeName),
		TeamLeaderEmail: strings.TrimSpace(req.TeamLeaderEmail),
		TeamSize:        teamSize,
		TeamMembers:     models.BuildTeamMembers(trimAll(req.MemberNames), strings.TrimSpace(req.LeaderName)),
		Slot:            s.Event.Slot,
		EventName:       s.Event.Name,
		ProjectDomain:   strings.TrimSpace(req.ProjectDomain),
		ProjectTitle:    strings.TrimSpace(req.ProjectTitle),
		TShirtSizes:     strings.TrimSpace(req.TShirtSizes),
		FoodPreference:  strings.TrimSpace(req.FoodPreference),
		CreatedAt:       s.Now().UTC(),
		CreatedBy:       models.CreatedByInteractive,
	}

	for attempt := 1; ; attempt++ {
		ticket.TicketID = s.NewID()
		ticket.QRPayload = s.QR.GeneratePayload(ticket.TicketID, ticket.UserID, ticket.TeamName)

		err := s.DB.AddTicket(ctx, ticket)
		if err == nil {
			break
		}
		if errors.Is(err, db.ErrDuplicateUserID) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyIssued, userID)
		}
		if errors.Is(err, db.ErrDuplicateTicketID) && attempt < maxIDAttempts {
			continue
		}
		return nil, fmt.Errorf("failed to store ticket for %s: %w", userID, err)
	}

	s.Logger.LogTicket("ISSUED", ticket.TicketID, fmt.Sprintf("%s (%s)", ticket.UserID, ticket.TeamName))
	return &ticket, nil
}

func (s *TicketService) ListTickets(ctx context.Context) ([]models.Ticket, error) {
	tickets, err := s.DB.GetAllTickets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tickets: %w", err)
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	return tickets, nil
}

func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("ticket %s not found: %w", ticketID, err)
	}
	return ticket, nil
}

// VerifyPayload resolves a scanned payload to its ticket. A payload that was
// not signed by us fails with ErrMalformedPayload; a genuine payload with no
// matching record fails with ErrUnknownTicket. Other errors are store failures.
func (s *TicketService) VerifyPayload(ctx context.Context, payload string) (*models.Ticket, error) {
	claims, err := s.QR.DecodePayload(payload)
	if err != nil {
		s.Logger.LogSecurity("MALFORMED_QR", err.Error())
		return nil, err
	}

	ticket, err := s.DB.GetTicketByID(ctx, claims.TicketID)
	if errors.Is(err, db.ErrTicketNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTicket, claims.TicketID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up ticket %s: %w", claims.TicketID, err)
	}

	if ticket.UserID != claims.UserID {
		s.Logger.LogSecurity("QR_MISMATCH", fmt.Sprintf("ticket %s belongs to %s, payload claims %s", ticket.TicketID, ticket.UserID, claims.UserID))
		return nil, fmt.Errorf("%w: %s", ErrUnknownTicket, claims.TicketID)
	}

	s.Logger.LogTicket("VERIFIED", ticket.TicketID, ticket.UserID)
	return ticket, nil
}

// VerifyImage decodes a photographed or uploaded QR image and verifies it.
func (s *TicketService) VerifyImage(ctx context.Context, png []byte) (*models.Ticket, error) {
	payload, err := qr.DecodeImage(png)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return s.VerifyPayload(ctx, payload)
}

// RenderPass builds the PDF entry pass for a stored ticket.
func (s *TicketService) RenderPass(ctx context.Context, ticketID string) ([]byte, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	png, err := s.QR.GenerateImage(ticket.QRPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR for %s: %w", ticketID, err)
	}

	info := template.PassInfoFromTicket(*ticket)
	info.QRImage = png
	return s.PDF.Generate(info)
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
