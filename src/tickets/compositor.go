package tickets

import (
	"bytes"
	"errors"
	"esn/src/models"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/yeqown/go-qrcode"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font/gofont/gobold"
)

// ErrNoTemplate means the event has no ticket template configured. The
// caller skips generation without failing the payment flow.
var ErrNoTemplate = errors.New("tickets: event has no ticket template")

var boldFont *truetype.Font

func init() {
	f, err := truetype.Parse(gobold.TTF)
	if err != nil {
		panic(err)
	}
	boldFont = f
}

// Compositor renders personalized ticket images from an event template and
// the admin-authored field layout.
type Compositor struct {
	hc *http.Client
}

func NewCompositor() *Compositor {
	return &Compositor{
		hc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Render draws the requester's details onto the event's template and returns
// the composed ticket as PNG bytes. An empty field layout falls back to the
// legacy fixed layout used by events created before field configuration
// existed. Pure computation apart from the template fetch; deterministic for
// identical inputs except the random ticket id fallback.
func (c *Compositor) Render(req *models.TicketRequest, ev *models.Event, fields []models.TicketField) ([]byte, error) {
	if ev == nil || ev.TicketTemplate == nil || *ev.TicketTemplate == "" {
		return nil, ErrNoTemplate
	}
	tmpl, err := c.loadTemplate(*ev.TicketTemplate)
	if err != nil {
		return nil, err
	}
	dc := gg.NewContextForImage(tmpl)

	if len(fields) == 0 {
		c.renderLegacy(dc, req, ev)
	} else {
		for _, f := range fields {
			if !f.Show {
				continue
			}
			if f.ID == models.FieldQR {
				if err := drawQR(dc, req, f); err != nil {
					return nil, err
				}
				continue
			}
			drawText(dc, fieldValue(f, req, ev), f)
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("tickets: could not encode ticket image: %w", err)
	}
	return buf.Bytes(), nil
}

// renderLegacy draws the pre-field-configuration layout: name at 45% of the
// template height, ticket id below at 52%, event detail at 60%.
func (c *Compositor) renderLegacy(dc *gg.Context, req *models.TicketRequest, ev *models.Event) {
	cx := float64(dc.Width()) / 2
	h := float64(dc.Height())
	black := models.TicketField{Color: "#000000"}

	black.X, black.Y, black.FontSize = cx, 0.45*h, 48
	drawText(dc, req.Name, black)

	black.Y, black.FontSize = 0.52*h, 24
	drawText(dc, ticketLabel(req), black)

	if ev.Title != "" {
		black.Y, black.FontSize = 0.60*h, 20
		drawText(dc, eventDetails(ev), black)
	}
}

func drawText(dc *gg.Context, value string, f models.TicketField) {
	if value == "" {
		return
	}
	face := truetype.NewFace(boldFont, &truetype.Options{Size: f.FontSize})
	dc.SetFontFace(face)
	color := f.Color
	if color == "" {
		color = "#000000"
	}
	dc.SetHexColor(color)
	dc.DrawStringAnchored(value, f.X, f.Y, 0.5, 0.5)
}

// drawQR encodes the requester's contact card as a QR raster of side length
// FontSize pixels and composites it centered on (X, Y).
func drawQR(dc *gg.Context, req *models.TicketRequest, f models.TicketField) error {
	size := int(f.FontSize)
	if size <= 0 {
		return nil
	}
	// one quiet-zone module around the code, matching the module width
	qrc, err := qrcode.New(
		VCardPayload(req),
		qrcode.WithBuiltinImageEncoder(qrcode.PNG_FORMAT),
		qrcode.WithQRWidth(4),
		qrcode.WithBorderWidth(4),
	)
	if err != nil {
		return fmt.Errorf("tickets: could not encode QR payload: %w", err)
	}
	var buf bytes.Buffer
	if err := qrc.SaveTo(&buf); err != nil {
		return fmt.Errorf("tickets: could not render QR code: %w", err)
	}
	img, _, err := image.Decode(&buf)
	if err != nil {
		return fmt.Errorf("tickets: could not decode QR raster: %w", err)
	}
	scaled := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	dc.DrawImageAnchored(scaled, int(f.X), int(f.Y), 0.5, 0.5)
	return nil
}

func fieldValue(f models.TicketField, req *models.TicketRequest, ev *models.Event) string {
	switch f.ID {
	case models.FieldName:
		return req.Name
	case models.FieldNumber:
		return req.Phone
	case models.FieldEmail:
		return req.Email
	case models.FieldAddress:
		return deref(req.Address)
	case models.FieldTitle:
		return deref(req.Title)
	case models.FieldOrganization:
		return deref(req.Organization)
	case models.FieldWebsite:
		return deref(req.Website)
	case models.FieldTicketID:
		return ticketLabel(req)
	case models.FieldTicketDetails:
		return eventDetails(ev)
	}
	return ""
}

func ticketLabel(req *models.TicketRequest) string {
	if req.ID != 0 {
		return fmt.Sprintf("T-%d", req.ID)
	}
	return fmt.Sprintf("T-%d", rand.Intn(1000))
}

func eventDetails(ev *models.Event) string {
	if ev == nil {
		return ""
	}
	if ev.Date.IsZero() {
		return ev.Title
	}
	return fmt.Sprintf("%s | %s", ev.Title, ev.Date.Format("Jan 2, 2006"))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (c *Compositor) loadTemplate(ref string) (image.Image, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		res, err := c.hc.Get(ref)
		if err != nil {
			return nil, fmt.Errorf("tickets: could not fetch template %s: %w", ref, err)
		}
		defer res.Body.Close()
		if res.StatusCode < 200 || res.StatusCode > 299 {
			return nil, fmt.Errorf("tickets: template %s returned status %d", ref, res.StatusCode)
		}
		img, _, err := image.Decode(res.Body)
		if err != nil {
			return nil, fmt.Errorf("tickets: could not decode template %s: %w", ref, err)
		}
		return img, nil
	}
	f, err := os.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("tickets: could not open template %s: %w", ref, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("tickets: could not decode template %s: %w", ref, err)
	}
	return img, nil
}
