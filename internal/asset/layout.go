package asset

import (
	"fmt"
	"sort"
	"strings"
)

// Layout binds record fields to column positions in an input row.
// A field without an entry in Columns is absent in every mapped record.
// A Layout must not be modified once handed to a Mapper.
type Layout struct {
	Columns  map[FieldKey]int
	Hostname int
	Domain   int
	Notes    int // Cell read by the purchase order and fabrication heuristics
}

// ReferenceLayout returns the layout of the facility inventory spreadsheet:
// room, rack, elevation, hostname, domain, model, serial_number, identifier,
// service_tag, uw, csl, morgridge, notes.
func ReferenceLayout() Layout {
	return Layout{
		Columns: map[FieldKey]int{
			{CategoryLocation, "room"}:           0,
			{CategoryLocation, "rack"}:           1,
			{CategoryLocation, "elevation"}:      2,
			{CategoryHardware, "model"}:          5,
			{CategoryHardware, "serial_number"}:  6,
			{CategoryCondoChassis, "identifier"}: 7,
			{CategoryHardware, "service_tag"}:    8,
			{CategoryTags, "uw"}:                 9,
			{CategoryTags, "csl"}:                10,
			{CategoryTags, "morgridge"}:          11,
			{CategoryHardware, "notes"}:          12,
		},
		Hostname: 3,
		Domain:   4,
		Notes:    12,
	}
}

// headerFields maps normalized header names to the field they fill.
var headerFields = map[string]FieldKey{
	"room":          {CategoryLocation, "room"},
	"rack":          {CategoryLocation, "rack"},
	"elevation":     {CategoryLocation, "elevation"},
	"building":      {CategoryLocation, "building"},
	"model":         {CategoryHardware, "model"},
	"serial_number": {CategoryHardware, "serial_number"},
	"service_tag":   {CategoryHardware, "service_tag"},
	"purpose":       {CategoryHardware, "purpose"},
	"notes":         {CategoryHardware, "notes"},
	"identifier":    {CategoryCondoChassis, "identifier"},
	"condo_model":   {CategoryCondoChassis, "model"},
	"uw":            {CategoryTags, "uw"},
	"csl":           {CategoryTags, "csl"},
	"morgridge":     {CategoryTags, "morgridge"},
	"date":          {CategoryAcquisition, "date"},
	"reason":        {CategoryAcquisition, "reason"},
	"owner":         {CategoryAcquisition, "owner"},
}

// LayoutFromHeader builds a layout by matching header cells against field
// names, ignoring case, surrounding spaces, and space/underscore differences.
// Unknown headers are ignored. The hostname, domain, and notes columns are
// required.
func LayoutFromHeader(header []string) (Layout, error) {
	l := Layout{Columns: make(map[FieldKey]int), Hostname: -1, Domain: -1, Notes: -1}

	for i, h := range header {
		// First occurrence wins, like a spreadsheet lookup.
		name := cleanHeader(h)
		switch {
		case name == "hostname" && l.Hostname < 0:
			l.Hostname = i
			continue
		case name == "domain" && l.Domain < 0:
			l.Domain = i
			continue
		case name == "notes" && l.Notes < 0:
			l.Notes = i
		}
		key, ok := headerFields[name]
		if !ok {
			continue
		}
		if _, seen := l.Columns[key]; !seen {
			l.Columns[key] = i
		}
	}

	var missing []string
	if l.Hostname < 0 {
		missing = append(missing, "hostname")
	}
	if l.Domain < 0 {
		missing = append(missing, "domain")
	}
	if l.Notes < 0 {
		missing = append(missing, "notes")
	}
	if len(missing) > 0 {
		return Layout{}, fmt.Errorf("%w: missing required column: %s", ErrInvalidLayout, strings.Join(missing, ", "))
	}
	return l, nil
}

// Validate checks that every index is usable and every bound field is a
// column-backed schema field.
func (l Layout) Validate() error {
	var errs []string

	for _, c := range []struct {
		name string
		idx  int
	}{{"hostname", l.Hostname}, {"domain", l.Domain}, {"notes", l.Notes}} {
		if c.idx < 0 {
			errs = append(errs, fmt.Sprintf("%s column (%d) must be non-negative", c.name, c.idx))
		}
	}

	for key, idx := range l.Columns {
		spec, ok := LookupField(key)
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("unknown field %s", key))
		case spec.Derived:
			errs = append(errs, fmt.Sprintf("field %s is derived and cannot be bound to a column", key))
		case idx < 0:
			errs = append(errs, fmt.Sprintf("field %s column (%d) must be non-negative", key, idx))
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("%w: %s", ErrInvalidLayout, strings.Join(errs, "; "))
	}
	return nil
}

// Width returns the number of columns a row needs to be mapped.
func (l Layout) Width() int {
	max := l.Hostname
	for _, idx := range []int{l.Domain, l.Notes} {
		if idx > max {
			max = idx
		}
	}
	for _, idx := range l.Columns {
		if idx > max {
			max = idx
		}
	}
	return max + 1
}

// cleanHeader normalizes a header cell for matching.
func cleanHeader(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), "_")
}
