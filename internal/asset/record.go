package asset

import "strings"

// Category names a group of fields in a record file.
type Category string

const (
	CategoryAcquisition  Category = "acquisition"
	CategoryHardware     Category = "hardware"
	CategoryCondoChassis Category = "condo_chassis"
	CategoryLocation     Category = "location"
	CategoryTags         Category = "tags"
)

// Categories lists the record categories in file order.
var Categories = []Category{
	CategoryAcquisition,
	CategoryHardware,
	CategoryCondoChassis,
	CategoryLocation,
	CategoryTags,
}

// FieldKey identifies a leaf by category and field name. Two categories may
// use the same field name without colliding.
type FieldKey struct {
	Category Category
	Name     string
}

func (k FieldKey) String() string {
	return string(k.Category) + "." + k.Name
}

// FieldSpec describes one leaf of a record.
type FieldSpec struct {
	Key     FieldKey
	Kind    Kind // KindText or KindFlag
	Derived bool // Computed from other cells, never read from a column
}

func text(c Category, name string) FieldSpec {
	return FieldSpec{Key: FieldKey{c, name}, Kind: KindText}
}

// Schema lists every record leaf in file order.
var Schema = []FieldSpec{
	{Key: FieldKey{CategoryAcquisition, "purchase_order"}, Kind: KindText, Derived: true},
	text(CategoryAcquisition, "date"),
	text(CategoryAcquisition, "reason"),
	text(CategoryAcquisition, "owner"),
	{Key: FieldKey{CategoryAcquisition, "is_fabrication"}, Kind: KindFlag, Derived: true},

	text(CategoryHardware, "model"),
	text(CategoryHardware, "serial_number"),
	text(CategoryHardware, "service_tag"),
	text(CategoryHardware, "purpose"),
	text(CategoryHardware, "notes"),

	text(CategoryCondoChassis, "identifier"),
	text(CategoryCondoChassis, "model"),

	text(CategoryLocation, "rack"),
	text(CategoryLocation, "elevation"),
	text(CategoryLocation, "room"),
	text(CategoryLocation, "building"),

	text(CategoryTags, "csl"),
	text(CategoryTags, "uw"),
	text(CategoryTags, "morgridge"),
}

// Fields returns the schema entries of one category, in file order.
func Fields(c Category) []FieldSpec {
	var out []FieldSpec
	for _, spec := range Schema {
		if spec.Key.Category == c {
			out = append(out, spec)
		}
	}
	return out
}

// LookupField returns the schema entry for key.
func LookupField(key FieldKey) (FieldSpec, bool) {
	for _, spec := range Schema {
		if spec.Key == key {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

type Acquisition struct {
	PurchaseOrder Value `json:"purchase_order"`
	Date          Value `json:"date"`
	Reason        Value `json:"reason"`
	Owner         Value `json:"owner"`
	IsFabrication Value `json:"is_fabrication"`
}

type Hardware struct {
	Model        Value `json:"model"`
	SerialNumber Value `json:"serial_number"`
	ServiceTag   Value `json:"service_tag"`
	Purpose      Value `json:"purpose"`
	Notes        Value `json:"notes"`
}

type CondoChassis struct {
	Identifier Value `json:"identifier"`
	Model      Value `json:"model"`
}

type Location struct {
	Rack      Value `json:"rack"`
	Elevation Value `json:"elevation"`
	Room      Value `json:"room"`
	Building  Value `json:"building"`
}

type Tags struct {
	CSL       Value `json:"csl"`
	UW        Value `json:"uw"`
	Morgridge Value `json:"morgridge"`
}

// Record is the structured form of one inventoried asset.
// Hostname and Domain are not stored in the file body; they make up the
// file name.
type Record struct {
	Hostname string `json:"hostname"`
	Domain   string `json:"domain"`

	Acquisition  Acquisition  `json:"acquisition"`
	Hardware     Hardware     `json:"hardware"`
	CondoChassis CondoChassis `json:"condo_chassis"`
	Location     Location     `json:"location"`
	Tags         Tags         `json:"tags"`
}

// Identity returns the hostname.domain key that names the record's file.
func (r *Record) Identity() string {
	return r.Hostname + "." + r.Domain
}

// Get returns the value stored under key. Unknown keys are absent.
func (r *Record) Get(key FieldKey) Value {
	if p := r.ref(key); p != nil {
		return *p
	}
	return Absent()
}

// Set stores v under key. It reports false for keys outside the schema.
func (r *Record) Set(key FieldKey, v Value) bool {
	p := r.ref(key)
	if p == nil {
		return false
	}
	*p = v
	return true
}

func (r *Record) ref(key FieldKey) *Value {
	switch key.Category {
	case CategoryAcquisition:
		switch key.Name {
		case "purchase_order":
			return &r.Acquisition.PurchaseOrder
		case "date":
			return &r.Acquisition.Date
		case "reason":
			return &r.Acquisition.Reason
		case "owner":
			return &r.Acquisition.Owner
		case "is_fabrication":
			return &r.Acquisition.IsFabrication
		}
	case CategoryHardware:
		switch key.Name {
		case "model":
			return &r.Hardware.Model
		case "serial_number":
			return &r.Hardware.SerialNumber
		case "service_tag":
			return &r.Hardware.ServiceTag
		case "purpose":
			return &r.Hardware.Purpose
		case "notes":
			return &r.Hardware.Notes
		}
	case CategoryCondoChassis:
		switch key.Name {
		case "identifier":
			return &r.CondoChassis.Identifier
		case "model":
			return &r.CondoChassis.Model
		}
	case CategoryLocation:
		switch key.Name {
		case "rack":
			return &r.Location.Rack
		case "elevation":
			return &r.Location.Elevation
		case "room":
			return &r.Location.Room
		case "building":
			return &r.Location.Building
		}
	case CategoryTags:
		switch key.Name {
		case "csl":
			return &r.Tags.CSL
		case "uw":
			return &r.Tags.UW
		case "morgridge":
			return &r.Tags.Morgridge
		}
	}
	return nil
}

// SplitIdentity splits a hostname.domain key at its first dot.
// Domains may contain further dots; hostnames may not.
func SplitIdentity(identity string) (hostname, domain string) {
	hostname, domain, _ = strings.Cut(identity, ".")
	return hostname, domain
}
