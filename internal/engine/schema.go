package engine

// Field types understood by the hosted engine's collection schema.
const (
	TypeString      = "string"
	TypeStringArray = "string[]"
	TypeInt64       = "int64"
	TypeBool        = "bool"
)

// Field describes one collection field.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Facet    bool   `json:"facet"`
	Optional bool   `json:"optional,omitempty"`
}

// CollectionSchema is the body of a collection create request.
type CollectionSchema struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// QueryBy lists the fields a keyphrase is matched against.
var QueryBy = []string{"latestAgenda", "latestMinutes", "body"}

// MeetingSchema returns the meetings collection schema under the given name.
func MeetingSchema(name string) CollectionSchema {
	return CollectionSchema{
		Name: name,
		Fields: []Field{
			{Name: "body", Type: TypeString, Facet: true},
			{Name: "meeting_dt", Type: TypeInt64, Facet: true},
			{Name: "address", Type: TypeString},
			{Name: "filing_dt", Type: TypeInt64},
			{Name: "is_emergency", Type: TypeBool},
			{Name: "is_annual_calendar", Type: TypeBool},
			{Name: "is_public_notice", Type: TypeBool},
			{Name: "is_cancelled", Type: TypeBool},
			{Name: "cancelled_dt", Type: TypeInt64, Optional: true},
			{Name: "cancelled_reason", Type: TypeString, Optional: true},
			{Name: "latestAgenda", Type: TypeStringArray, Optional: true},
			{Name: "latestAgendaLink", Type: TypeString, Optional: true},
			{Name: "latestMinutes", Type: TypeStringArray, Optional: true},
			{Name: "latestMinutesLink", Type: TypeString, Optional: true},
			{Name: "contactPerson", Type: TypeString},
			{Name: "contactEmail", Type: TypeString},
			{Name: "contactPhone", Type: TypeString},
		},
	}
}
