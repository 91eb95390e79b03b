package printer

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/kami-operation/kamiops/internal/models"
)

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		img.Set(x, 10, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func sampleType() *models.DocumentType {
	return &models.DocumentType{
		Code: "LEAVE",
		Name: "Leave request",
		FieldGroups: []models.FieldGroup{{
			Key: "main", Label: "Main", Order: 1,
			Fields: []models.FieldDefinition{
				{Key: "employee", Label: "Employee", Type: models.FieldText, Order: 1},
				{Key: "days", Label: "Days", Type: models.FieldNumber, Order: 2},
			},
		}},
	}
}

func TestSubstitute(t *testing.T) {
	in := RenderInput{
		Reference: "LEAVE-20260101-ABC123",
		Data: map[string]interface{}{
			"employee": "Ana",
			"days":     float64(3),
			"manager":  map[string]interface{}{"name": "Luis"},
		},
	}
	got := Substitute("{{ reference }}: {{employee}} x{{days}} by {{manager.name}}{{missing}}", in.Vars())
	want := "LEAVE-20260101-ABC123: Ana x3 by Luis"
	if got != want {
		t.Errorf("Substitute = %q, want %q", got, want)
	}
}

func TestFormatValue(t *testing.T) {
	cases := map[string]interface{}{
		"":      nil,
		"Yes":   true,
		"2.5":   2.5,
		"a, b":  []interface{}{"a", "b"},
		"plain": "plain",
	}
	for want, v := range cases {
		if got := FormatValue(v); got != want {
			t.Errorf("FormatValue(%v) = %q, want %q", v, got, want)
		}
	}
}

func TestDefaultTemplateStaysOnPage(t *testing.T) {
	dt := sampleType()
	for i := 0; i < 30; i++ {
		dt.FieldGroups[0].Fields = append(dt.FieldGroups[0].Fields, models.FieldDefinition{Key: "f", Label: "F", Type: models.FieldText, Order: 10 + i})
	}

	tpl := DefaultTemplate(dt, 4)
	signatures := 0
	for _, s := range tpl.Sections {
		if s.X < 0 || s.Y < 0 || s.X+s.Width > 100 || s.Y+s.Height > 100 {
			t.Errorf("section %s out of page: %+v", s.ID, s)
		}
		if s.Type == models.SectionSignature {
			signatures++
		}
	}
	if signatures != 4 {
		t.Errorf("expected 4 signature sections, got %d", signatures)
	}
}

func TestRenderProducesPDF(t *testing.T) {
	signedAt := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	tpl := DefaultTemplate(sampleType(), 2)
	tpl.Sections = append(tpl.Sections,
		models.Section{
			ID: "items", Type: models.SectionTable, X: 8, Y: 40, Width: 84, Height: 20,
			Binding: "items",
			Columns: []models.TableColumn{{Header: "Item", Binding: "name", Width: 70}, {Header: "Qty", Binding: "qty", Width: 30}},
		},
		models.Section{ID: "logo", Type: models.SectionImage, X: 5, Y: 1, Width: 10, Height: 4, Content: "logo.png", Style: models.SectionStyle{Border: true}},
	)

	out, err := Render(tpl, RenderInput{
		Reference: "LEAVE-20260101-ABC123",
		Title:     "Vacaciones de año nuevo",
		Status:    string(models.StatusSigned),
		Date:      signedAt,
		Data: map[string]interface{}{
			"employee": "Ana",
			"days":     float64(3),
			"items":    []interface{}{map[string]interface{}{"name": "Laptop", "qty": float64(1)}},
		},
		Signatories: []SignatureBlock{
			{Order: 1, Name: "Ana", SignedAt: &signedAt, Image: samplePNG(t)},
			{Order: 2, Name: "Luis", SignedAt: &signedAt, TypedText: "Luis P."},
		},
		VerificationURL: "http://localhost:3210/verify/ABC",
		Images:          map[string][]byte{"logo.png": samplePNG(t)},
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Errorf("output is not a PDF: %q", out[:8])
	}
}

func TestRenderRejectsBadImage(t *testing.T) {
	signedAt := time.Now()
	tpl := &models.PDFTemplate{
		PageSize: models.PageA5, Orientation: models.Landscape,
		Sections: []models.Section{{ID: "sig", Type: models.SectionSignature, X: 10, Y: 10, Width: 30, Height: 20, SignatoryOrder: 1}},
	}
	_, err := Render(tpl, RenderInput{Signatories: []SignatureBlock{{Order: 1, SignedAt: &signedAt, Image: []byte("not an image")}}})
	if err == nil {
		t.Error("expected error for unsupported image data")
	}
}

func TestQRCode(t *testing.T) {
	out, err := QRCode("http://localhost/verify/X", 0)
	if err != nil {
		t.Fatalf("QRCode failed: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("\x89PNG")) {
		t.Error("QRCode output is not PNG")
	}
}

func TestParseColor(t *testing.T) {
	r, g, b := parseColor("#1A2B3C")
	if r != 0x1A || g != 0x2B || b != 0x3C {
		t.Errorf("parseColor = %d,%d,%d", r, g, b)
	}
	if r, g, b := parseColor("red"); r+g+b != 0 {
		t.Error("invalid color should be black")
	}
}
