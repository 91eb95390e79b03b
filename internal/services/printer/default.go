package printer

import (
	"fmt"

	"github.com/kami-operation/kamiops/internal/models"
)

const (
	fieldsTop    = 16.0
	fieldsBottom = 68.0
	maxFieldStep = 4.0
	signatureTop = 74.0
	signatureH   = 12.0
)

// DefaultTemplate lays out the type's fields top to bottom, then one signature
// block per signatory and the verification QR code.
func DefaultTemplate(dt *models.DocumentType, signatories int) *models.PDFTemplate {
	tpl := &models.PDFTemplate{
		Name:        "Default",
		PageSize:    models.PageA4,
		Orientation: models.Portrait,
		IsActive:    true,
	}

	add := func(s models.Section) {
		s.ID = fmt.Sprintf("s%d", len(tpl.Sections)+1)
		tpl.Sections = append(tpl.Sections, s)
	}

	add(models.Section{
		Type: models.SectionText, X: 8, Y: 5, Width: 84, Height: 5,
		Content: "{{title}}",
		Style:   models.SectionStyle{FontSize: 16, Bold: true, Align: "C"},
	})
	add(models.Section{
		Type: models.SectionText, X: 8, Y: 10, Width: 84, Height: 3,
		Content: "Reference {{reference}} | {{date}}",
		Style:   models.SectionStyle{FontSize: 9, Align: "C", Color: "#555555"},
	})
	add(models.Section{Type: models.SectionLine, X: 8, Y: 13, Width: 84, Height: 1})

	var fields []models.FieldDefinition
	if dt != nil {
		fields = dt.Fields()
	}
	step := maxFieldStep
	if n := float64(len(fields)); n > 0 && n*step > fieldsBottom-fieldsTop {
		step = (fieldsBottom - fieldsTop) / n
	}
	for i, f := range fields {
		add(models.Section{
			Type: models.SectionField, X: 8, Y: fieldsTop + float64(i)*step, Width: 84, Height: step,
			Label: f.Label, Binding: f.Key,
			Style: models.SectionStyle{FontSize: 10},
		})
	}

	if signatories > 0 {
		perRow := signatories
		if perRow > 3 {
			perRow = 3
		}
		rows := (signatories + perRow - 1) / perRow
		width := 84.0 / float64(perRow)
		height := signatureH
		if avail := (99-signatureTop)/float64(rows) - 1; avail < height {
			height = avail
		}
		for i := 0; i < signatories; i++ {
			row, col := i/perRow, i%perRow
			add(models.Section{
				Type: models.SectionSignature,
				X:    8 + float64(col)*width + 1, Y: signatureTop + float64(row)*(height+1),
				Width: width - 2, Height: height,
				SignatoryOrder: i + 1,
			})
		}
	}

	add(models.Section{Type: models.SectionQRCode, X: 80, Y: 86, Width: 12, Height: 9})
	return tpl
}
