package ocr

import (
	"regexp"
	"strings"
)

// AadhaarFields are the details parsed out of an Aadhaar card scan. Only the
// last four digits of the number are retained.
type AadhaarFields struct {
	Name        string
	DOB         string
	NumberLast4 string
}

var (
	aadhaarNumberRe = regexp.MustCompile(`\b(\d{4})\s?(\d{4})\s?(\d{4})\b`)
	dobRe           = regexp.MustCompile(`\b(\d{2}[/-]\d{2}[/-]\d{4})\b`)
	nameLabelRe     = regexp.MustCompile(`(?i)name\s*[:\-]\s*(.+)`)
)

// ParseAadhaar pulls the Aadhaar number (masked to last 4), date of birth and
// name out of extracted text, preferring structured fields when the backend
// provides them.
func ParseAadhaar(r *Result) AadhaarFields {
	fields := AadhaarFields{}

	if r.Fields != nil {
		fields.Name = r.Fields["name"]
		fields.DOB = r.Fields["dob"]
		if number := r.Fields["aadhaar_number"]; len(number) >= 4 {
			fields.NumberLast4 = number[len(number)-4:]
		}
	}

	if fields.NumberLast4 == "" {
		if m := aadhaarNumberRe.FindStringSubmatch(r.Text); m != nil {
			fields.NumberLast4 = m[3]
		}
	}
	if fields.DOB == "" {
		if m := dobRe.FindStringSubmatch(r.Text); m != nil {
			fields.DOB = m[1]
		}
	}
	if fields.Name == "" {
		for _, line := range strings.Split(r.Text, "\n") {
			if m := nameLabelRe.FindStringSubmatch(line); m != nil {
				fields.Name = strings.TrimSpace(m[1])
				break
			}
		}
	}
	return fields
}
