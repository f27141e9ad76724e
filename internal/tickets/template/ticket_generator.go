package template

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"strconv"

	"entrypass/internal/models"

	"github.com/signintech/gopdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	fontRegular = "goregular"
	fontBold    = "gobold"

	marginLeft = 50.0
	qrSize     = 180.0
)

var ErrMissingField = errors.New("missing required pass field")

// PassInfo is everything printed on an entry pass. The QR code comes from
// QRImage when set, otherwise from the PNG file at QRPath.
type PassInfo struct {
	TicketID        string
	UserID          string
	TeamName        string
	CollegeName     string
	TeamLeaderEmail string
	TeamSize        int
	EventName       string
	Slot            string

	QRImage []byte
	QRPath  string
}

func PassInfoFromTicket(ticket models.Ticket) PassInfo {
	return PassInfo{
		TicketID:        ticket.TicketID,
		UserID:          ticket.UserID,
		TeamName:        ticket.TeamName,
		CollegeName:     ticket.CollegeName,
		TeamLeaderEmail: ticket.TeamLeaderEmail,
		TeamSize:        ticket.TeamSize,
		EventName:       ticket.EventName,
		Slot:            ticket.Slot,
	}
}

type TicketPDFGenerator struct{}

func NewTicketPDFGenerator() *TicketPDFGenerator {
	return &TicketPDFGenerator{}
}

func (g *TicketPDFGenerator) Generate(info PassInfo) ([]byte, error) {
	if info.TicketID == "" {
		return nil, fmt.Errorf("%w: ticket_id", ErrMissingField)
	}
	if info.UserID == "" {
		return nil, fmt.Errorf("%w: user_id", ErrMissingField)
	}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := pdf.AddTTFFontData(fontRegular, goregular.TTF); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	if err := pdf.AddTTFFontData(fontBold, gobold.TTF); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	if err := addHeader(pdf, info); err != nil {
		return nil, err
	}

	pdf.SetY(150)
	if err := addTicketInfo(pdf, info); err != nil {
		return nil, err
	}

	pdf.SetY(pdf.GetY() + 20)
	addQRCode(pdf, info)

	pdf.SetY(760)
	if err := addFooter(pdf); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}

	return buf.Bytes(), nil
}

func addHeader(pdf *gopdf.GoPdf, info PassInfo) error {
	if err := pdf.SetFont(fontBold, "", 26); err != nil {
		return fmt.Errorf("failed to set font: %w", err)
	}
	pdf.SetX(marginLeft)
	pdf.SetY(50)
	eventName := info.EventName
	if eventName == "" {
		eventName = "EVENT"
	}
	pdf.Cell(nil, eventName)

	if err := pdf.SetFont(fontRegular, "", 14); err != nil {
		return fmt.Errorf("failed to set font: %w", err)
	}
	pdf.SetX(marginLeft)
	pdf.SetY(88)
	pdf.Cell(nil, "ENTRY PASS")

	if info.Slot != "" {
		pdf.SetX(marginLeft)
		pdf.SetY(108)
		pdf.Cell(nil, info.Slot)
	}

	pdf.SetLineWidth(1)
	pdf.Line(marginLeft, 132, 545, 132)
	return nil
}

func addTicketInfo(pdf *gopdf.GoPdf, info PassInfo) error {
	teamSize := ""
	if info.TeamSize > 0 {
		teamSize = strconv.Itoa(info.TeamSize)
	}

	rows := []struct {
		Label string
		Value string
	}{
		{"Ticket ID", info.TicketID},
		{"Team Code", info.UserID},
		{"Team Name", info.TeamName},
		{"College", info.CollegeName},
		{"Leader Email", info.TeamLeaderEmail},
		{"Team Size", teamSize},
	}

	for _, item := range rows {
		pdf.SetX(marginLeft)
		if err := pdf.SetFont(fontBold, "", 13); err != nil {
			return fmt.Errorf("failed to set font: %w", err)
		}
		pdf.Cell(nil, item.Label+":")

		pdf.SetX(marginLeft + 120)
		if err := pdf.SetFont(fontRegular, "", 13); err != nil {
			return fmt.Errorf("failed to set font: %w", err)
		}
		pdf.Cell(nil, item.Value)
		pdf.Br(24)
	}
	return nil
}

// addQRCode never fails the pass: an unreadable image prints a notice instead.
func addQRCode(pdf *gopdf.GoPdf, info PassInfo) {
	data := info.QRImage
	if len(data) == 0 && info.QRPath != "" {
		var err error
		data, err = os.ReadFile(info.QRPath)
		if err != nil {
			pdf.SetX(marginLeft)
			pdf.Cell(nil, "Failed to load QR code")
			return
		}
	}
	if len(data) == 0 {
		pdf.SetX(marginLeft)
		pdf.Cell(nil, "QR code unavailable")
		return
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		pdf.SetX(marginLeft)
		pdf.Cell(nil, "Failed to load QR code")
		return
	}

	x := (gopdf.PageSizeA4.W - qrSize) / 2
	rect := &gopdf.Rect{W: qrSize, H: qrSize}
	if err := pdf.ImageFrom(img, x, pdf.GetY(), rect); err != nil {
		pdf.SetX(marginLeft)
		pdf.Cell(nil, "Failed to draw QR code")
		return
	}
	pdf.SetY(pdf.GetY() + qrSize)
}

func addFooter(pdf *gopdf.GoPdf) error {
	if err := pdf.SetFont(fontRegular, "", 10); err != nil {
		return fmt.Errorf("failed to set font: %w", err)
	}
	pdf.SetX(marginLeft)
	pdf.Cell(nil, "Present this pass at check-in. The QR code is verified against the ticket register.")
	return nil
}
