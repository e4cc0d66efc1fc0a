package filters

import "sort"

type FieldType string

const (
	TypeString    FieldType = "string"
	TypeNumeric   FieldType = "numeric"
	TypePort      FieldType = "port"
	TypeIPAddress FieldType = "ip_address"
	TypeDNSType   FieldType = "dns_type"
)

const (
	OpEquals           = "equals"
	OpNotEquals        = "not_equals"
	OpEqualsNumeric    = "equals_numeric"
	OpNotEqualsNumeric = "not_equals_numeric"
	OpRegexMatch       = "regex_match"
	OpNotRegexMatch    = "not_regex_match"
	OpGreaterThan      = "greater_than"
	OpSmallerThan      = "smaller_than"
	OpInCIDR           = "in_cidr"
	OpNotInCIDR        = "not_in_cidr"
	OpIsPrivate        = "is_private"
	OpIsNotPrivate     = "is_not_private"
)

var operatorsByType = map[FieldType][]string{
	TypeString:    {OpEquals, OpNotEquals, OpRegexMatch, OpNotRegexMatch},
	TypeNumeric:   {OpEqualsNumeric, OpNotEqualsNumeric, OpGreaterThan, OpSmallerThan},
	TypePort:      {OpEqualsNumeric, OpNotEqualsNumeric, OpGreaterThan, OpSmallerThan},
	TypeIPAddress: {OpEquals, OpNotEquals, OpInCIDR, OpNotInCIDR, OpIsPrivate, OpIsNotPrivate},
	TypeDNSType:   {OpEquals, OpNotEquals},
}

type Field struct {
	Name  string    `json:"name"`
	Title string    `json:"title"`
	Type  FieldType `json:"type"`
}

// Operators lists the operators the field accepts.
func (f Field) Operators() []string {
	ops := operatorsByType[f.Type]
	out := make([]string, len(ops))
	copy(out, ops)
	return out
}

func (f Field) accepts(op string) bool {
	for _, o := range operatorsByType[f.Type] {
		if o == op {
			return true
		}
	}
	return false
}

// Taxonomy is the set of filterable fields of one data view.
type Taxonomy struct {
	fields map[string]Field
}

func NewTaxonomy(fields ...Field) Taxonomy {
	m := make(map[string]Field, len(fields))
	for _, f := range fields {
		m[f.Name] = f
	}
	return Taxonomy{fields: m}
}

func (t Taxonomy) Field(name string) (Field, bool) {
	f, ok := t.fields[name]
	return f, ok
}

// Fields returns all fields sorted by name.
func (t Taxonomy) Fields() []Field {
	out := make([]Field, 0, len(t.fields))
	for _, f := range t.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DNS is the taxonomy of the DNS transaction log and chart.
var DNS = NewTaxonomy(
	Field{Name: "query_value", Title: "Query Value", Type: TypeString},
	Field{Name: "query_etld", Title: "Query eTLD", Type: TypeString},
	Field{Name: "query_type", Title: "Query Type", Type: TypeDNSType},
	Field{Name: "response_value", Title: "Response Value", Type: TypeString},
	Field{Name: "response_type", Title: "Response Type", Type: TypeDNSType},
	Field{Name: "client_address", Title: "Client Address", Type: TypeIPAddress},
	Field{Name: "client_port", Title: "Client Port", Type: TypePort},
	Field{Name: "server_address", Title: "Server Address", Type: TypeIPAddress},
	Field{Name: "server_port", Title: "Server Port", Type: TypePort},
)
