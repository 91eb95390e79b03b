package printer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/kami-operation/kamiops/internal/models"
)

const (
	defaultFontSize = 10.0
	fontFamily      = "Helvetica"
	scriptFamily    = "Times"
	ptToMM          = 25.4 / 72
	dateLayout      = "2006-01-02"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// SignatureBlock is what a signature section prints for one signatory
type SignatureBlock struct {
	Order     int
	Name      string
	Label     string
	SignedAt  *time.Time
	Image     []byte // PNG or JPEG
	TypedText string
	Font      string
}

// RenderInput is the document content merged into a template
type RenderInput struct {
	Reference       string
	Title           string
	Status          string
	Date            time.Time
	Data            map[string]interface{}
	Signatories     []SignatureBlock
	VerificationURL string
	// Images holds stored images referenced by image sections, keyed by section content
	Images map[string][]byte
}

// Vars returns the placeholder values: document data plus reference, title, status and date
func (in RenderInput) Vars() map[string]string {
	vars := make(map[string]string, len(in.Data)+4)
	flatten("", in.Data, vars)
	vars["reference"] = in.Reference
	vars["title"] = in.Title
	vars["status"] = in.Status
	if !in.Date.IsZero() {
		vars["date"] = in.Date.Format(dateLayout)
	}
	return vars
}

func flatten(prefix string, data map[string]interface{}, out map[string]string) {
	for k, v := range data {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = FormatValue(v)
	}
}

// Substitute replaces {{key}} placeholders; unknown keys become empty
func Substitute(text string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		key := placeholderRe.FindStringSubmatch(m)[1]
		return vars[key]
	})
}

// FormatValue renders a JSON data value for print
func FormatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, FormatValue(e))
		}
		return strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// renderer holds the state of one Render call
type renderer struct {
	pdf    *gofpdf.Fpdf
	tr     func(string) string
	pageW  float64
	pageH  float64
	in     RenderInput
	vars   map[string]string
	images int
}

// Render draws a template filled with the document into a single-page PDF
func Render(tpl *models.PDFTemplate, in RenderInput) ([]byte, error) {
	orientation := string(tpl.Orientation)
	if orientation == "" {
		orientation = string(models.Portrait)
	}
	size := string(tpl.PageSize)
	if size == "" {
		size = string(models.PageA4)
	}

	pdf := gofpdf.New(orientation, "mm", size, "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(in.Title, true)
	pdf.SetSubject(in.Reference, true)
	pdf.AddPage()

	w, h := pdf.GetPageSize()
	r := &renderer{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		pageW: w,
		pageH: h,
		in:    in,
		vars:  in.Vars(),
	}

	for _, s := range tpl.Sections {
		if err := r.section(s); err != nil {
			return nil, fmt.Errorf("section %s: %w", s.ID, err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// box converts percentage coordinates to millimetres
func (r *renderer) box(s models.Section) (x, y, w, h float64) {
	return s.X / 100 * r.pageW, s.Y / 100 * r.pageH, s.Width / 100 * r.pageW, s.Height / 100 * r.pageH
}

func (r *renderer) section(s models.Section) error {
	x, y, w, h := r.box(s)
	r.applyStyle(s.Style)

	switch s.Type {
	case models.SectionText:
		r.text(x, y, w, Substitute(s.Content, r.vars), s.Style)
	case models.SectionField:
		r.field(x, y, w, s)
	case models.SectionTable:
		r.table(x, y, w, h, s)
	case models.SectionSignature:
		if err := r.signature(x, y, w, h, s); err != nil {
			return err
		}
	case models.SectionQRCode:
		if err := r.qrcode(x, y, w, h); err != nil {
			return err
		}
	case models.SectionLine:
		r.pdf.SetLineWidth(0.3)
		r.pdf.Line(x, y+h/2, x+w, y+h/2)
	case models.SectionImage:
		if data, ok := r.in.Images[s.Content]; ok {
			if err := r.image(data, x, y, w, h); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown section type %q", s.Type)
	}

	if s.Style.Border {
		r.pdf.SetDrawColor(0, 0, 0)
		r.pdf.Rect(x, y, w, h, "D")
	}
	return r.pdf.Error()
}

func (r *renderer) applyStyle(st models.SectionStyle) {
	size := st.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	style := ""
	if st.Bold {
		style += "B"
	}
	if st.Italic {
		style += "I"
	}
	r.pdf.SetFont(fontFamily, style, size)

	red, green, blue := parseColor(st.Color)
	r.pdf.SetTextColor(red, green, blue)
}

func lineHeight(fontSize float64) float64 {
	if fontSize <= 0 {
		fontSize = defaultFontSize
	}
	return fontSize * ptToMM * 1.3
}

func align(a string) string {
	switch strings.ToUpper(a) {
	case "C", "R":
		return strings.ToUpper(a)
	}
	return "L"
}

func (r *renderer) text(x, y, w float64, text string, st models.SectionStyle) {
	r.pdf.SetXY(x, y)
	r.pdf.MultiCell(w, lineHeight(st.FontSize), r.tr(text), "", align(st.Align), false)
}

func (r *renderer) field(x, y, w float64, s models.Section) {
	lh := lineHeight(s.Style.FontSize)
	value := r.vars[s.Binding]

	r.pdf.SetXY(x, y)
	if s.Label != "" {
		size, _ := r.pdf.GetFontSize()
		r.pdf.SetFont(fontFamily, "B", size)
		label := r.tr(s.Label + ": ")
		lw := r.pdf.GetStringWidth(label) + 1
		if lw > w/2 {
			lw = w / 2
		}
		r.pdf.CellFormat(lw, lh, label, "", 0, "L", false, 0, "")
		r.applyStyle(s.Style)
		r.pdf.MultiCell(w-lw, lh, r.tr(value), "", align(s.Style.Align), false)
		return
	}
	r.pdf.MultiCell(w, lh, r.tr(value), "", align(s.Style.Align), false)
}

func (r *renderer) table(x, y, w, h float64, s models.Section) {
	if len(s.Columns) == 0 {
		return
	}
	widths := columnWidths(s.Columns, w)
	lh := lineHeight(s.Style.FontSize) + 1
	size, _ := r.pdf.GetFontSize()

	r.pdf.SetXY(x, y)
	r.pdf.SetFont(fontFamily, "B", size)
	r.pdf.SetFillColor(235, 235, 235)
	for i, c := range s.Columns {
		r.pdf.CellFormat(widths[i], lh, r.tr(c.Header), "1", 0, "L", true, 0, "")
	}
	r.applyStyle(s.Style)

	rows, _ := lookup(r.in.Data, s.Binding).([]interface{})
	maxRows := int(math.Floor((h - lh) / lh))
	for i, row := range rows {
		if i >= maxRows {
			break
		}
		obj, _ := row.(map[string]interface{})
		r.pdf.SetXY(x, y+lh*float64(i+1))
		for j, c := range s.Columns {
			r.pdf.CellFormat(widths[j], lh, r.tr(FormatValue(lookup(obj, c.Binding))), "1", 0, "L", false, 0, "")
		}
	}
}

// columnWidths spreads w over the columns by their percentages, evenly when unset
func columnWidths(cols []models.TableColumn, w float64) []float64 {
	total := 0.0
	for _, c := range cols {
		total += c.Width
	}
	out := make([]float64, len(cols))
	for i, c := range cols {
		if total <= 0 {
			out[i] = w / float64(len(cols))
			continue
		}
		out[i] = c.Width / total * w
	}
	return out
}

func (r *renderer) signature(x, y, w, h float64, s models.Section) error {
	var block *SignatureBlock
	for i := range r.in.Signatories {
		if r.in.Signatories[i].Order == s.SignatoryOrder {
			block = &r.in.Signatories[i]
			break
		}
	}

	captionH := lineHeight(8) * 2
	artH := h - captionH
	if artH < 0 {
		artH = h
		captionH = 0
	}

	if block != nil && block.SignedAt != nil {
		switch {
		case len(block.Image) > 0:
			if err := r.image(block.Image, x, y, w, artH); err != nil {
				return err
			}
		case block.TypedText != "":
			r.pdf.SetFont(typedFont(block.Font), "I", math.Min(24, artH/ptToMM*0.7))
			r.pdf.SetXY(x, y)
			r.pdf.CellFormat(w, artH, r.tr(block.TypedText), "", 0, "C", false, 0, "")
		}
	}

	r.pdf.SetDrawColor(0, 0, 0)
	r.pdf.SetLineWidth(0.2)
	r.pdf.Line(x, y+artH, x+w, y+artH)

	if captionH == 0 {
		return nil
	}
	r.pdf.SetFont(fontFamily, "", 8)
	r.pdf.SetTextColor(0, 0, 0)

	name, detail := s.Label, "Pending signature"
	if block != nil {
		if block.Name != "" {
			name = block.Name
		}
		if block.Label != "" && s.Label == "" {
			name = block.Name + " (" + block.Label + ")"
		}
		if block.SignedAt != nil {
			detail = "Signed " + block.SignedAt.UTC().Format("2006-01-02 15:04 MST")
		}
	}
	r.pdf.SetXY(x, y+artH)
	r.pdf.CellFormat(w, captionH/2, r.tr(name), "", 2, "C", false, 0, "")
	r.pdf.SetX(x)
	r.pdf.CellFormat(w, captionH/2, r.tr(detail), "", 0, "C", false, 0, "")
	return nil
}

// typedFont maps the font chosen for a typed signature to a core PDF family
func typedFont(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "courier", "courier new", "monospace":
		return "Courier"
	case "helvetica", "arial", "sans-serif":
		return "Helvetica"
	default:
		return scriptFamily
	}
}

func (r *renderer) qrcode(x, y, w, h float64) error {
	if r.in.VerificationURL == "" {
		return nil
	}
	png, err := QRCode(r.in.VerificationURL, 256)
	if err != nil {
		return err
	}
	size := math.Min(w, h)
	return r.image(png, x+(w-size)/2, y+(h-size)/2, size, size)
}

// image draws data fitted into the box, keeping its aspect ratio
func (r *renderer) image(data []byte, x, y, w, h float64) error {
	contentType, err := CheckImage(data)
	if err != nil {
		return err
	}
	imageType := "PNG"
	if contentType == "image/jpeg" {
		imageType = "JPG"
	}

	r.images++
	name := fmt.Sprintf("img_%d", r.images)
	opts := gofpdf.ImageOptions{ImageType: imageType, ReadDpi: true}
	info := r.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if err := r.pdf.Error(); err != nil {
		return err
	}

	iw, ih := info.Width(), info.Height()
	if iw <= 0 || ih <= 0 {
		return fmt.Errorf("empty image")
	}
	scale := math.Min(w/iw, h/ih)
	dw, dh := iw*scale, ih*scale
	r.pdf.ImageOptions(name, x+(w-dw)/2, y+(h-dh)/2, dw, dh, false, opts, 0, "")
	return nil
}

// lookup resolves a dotted path inside nested objects
func lookup(data map[string]interface{}, path string) interface{} {
	if data == nil || path == "" {
		return nil
	}
	var cur interface{} = data
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

// parseColor reads #RRGGBB, black on anything else
func parseColor(hex string) (int, int, int) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xFF), int(v >> 8 & 0xFF), int(v & 0xFF)
}
