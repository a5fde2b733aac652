package services

import (
	"sort"
	"strings"

	"github.com/medcode-academy/assignment-service/internal/models"
)

// NormalizeText trims, lowercases and collapses internal whitespace runs to a
// single space. The zero value of every comparison below.
func NormalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// TextEquals compares two scalars by normalized form.
func TextEquals(a, b string) bool {
	return NormalizeText(a) == NormalizeText(b)
}

// SetEquals compares two code lists ignoring order and case but keeping
// duplicates significant: ["a","a"] never equals ["a"].
func SetEquals(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	na := normalizeSorted(a)
	nb := normalizeSorted(b)
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}

func normalizeSorted(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = NormalizeText(v)
	}
	sort.Strings(out)
	return out
}

// keyField is one gradable slot of a StructuredKey, in canonical order.
type keyField struct {
	name   string
	scalar string
	list   []string
	isList bool
}

func structuredKeyFields(k models.StructuredKey) []keyField {
	return []keyField{
		{name: "patient_name", scalar: k.PatientName},
		{name: "age_or_dob", scalar: k.AgeOrDob},
		{name: "icd_codes", list: k.ICDCodes, isList: true},
		{name: "cpt_codes", list: k.CPTCodes, isList: true},
		{name: "pcs_codes", list: k.PCSCodes, isList: true},
		{name: "hcpcs_codes", list: k.HCPCSCodes, isList: true},
		{name: "drg_value", scalar: k.DRGValue},
		{name: "modifiers", list: k.Modifiers, isList: true},
		{name: "notes", scalar: k.Notes},
		{name: "adx", scalar: k.Adx},
	}
}

// gradable reports whether the answer key filled this field in: a non-blank
// scalar or a non-empty list.
func (f keyField) gradable() bool {
	if f.isList {
		return len(f.list) > 0
	}
	return strings.TrimSpace(f.scalar) != ""
}

func gradableKeyFields(k models.StructuredKey) []keyField {
	var out []keyField
	for _, f := range structuredKeyFields(k) {
		if f.gradable() {
			out = append(out, f)
		}
	}
	return out
}

// NormalizeCategory canonicalizes a category label for grouping and lookups.
func NormalizeCategory(category string) string {
	return strings.ToUpper(strings.TrimSpace(category))
}

func roundFloat(val float64, precision int) float64 {
	ratio := 1.0
	for i := 0; i < precision; i++ {
		ratio *= 10
	}
	return float64(int(val*ratio+0.5)) / ratio
}
