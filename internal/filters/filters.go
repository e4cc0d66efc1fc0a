package filters

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"nzyme_console/console-go/internal/dnsname"
)

type Filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Set groups filters by field. Filters on the same field are ORed by the backend,
// different fields are ANDed.
type Set map[string][]Filter

// Parse decodes the JSON form used in the "filters" URL parameter. An empty string is
// "no filters" and returns a nil Set.
func Parse(raw string) (Set, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var s Set
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, err
	}
	return s, nil
}

// Encode returns the JSON form of the set, or "" for an empty set.
func (s Set) Encode() string {
	if len(s) == 0 {
		return ""
	}
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b)
}

// Count returns the number of individual filters.
func (s Set) Count() int {
	n := 0
	for _, fs := range s {
		n += len(fs)
	}
	return n
}

// Normalize validates every filter against the taxonomy and returns a copy with
// canonical values (record types upper-cased, addresses re-rendered). All problems are
// reported together.
func (s Set) Normalize(t Taxonomy) (Set, error) {
	if len(s) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(Set, len(s))
	var errs []error
	for _, key := range keys {
		for i, f := range s[key] {
			if f.Field == "" {
				f.Field = key
			}
			if f.Field != key {
				errs = append(errs, fmt.Errorf("%s[%d]: field %q filed under %q", key, i, f.Field, key))
				continue
			}
			nf, err := normalizeOne(t, f)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s[%d]: %w", key, i, err))
				continue
			}
			out[key] = append(out[key], nf)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeOne(t Taxonomy, f Filter) (Filter, error) {
	field, ok := t.Field(f.Field)
	if !ok {
		return Filter{}, fmt.Errorf("unknown field %q", f.Field)
	}
	if !field.accepts(f.Operator) {
		return Filter{}, fmt.Errorf("operator %q not supported for %s fields", f.Operator, field.Type)
	}

	value := strings.TrimSpace(f.Value)
	switch f.Operator {
	case OpIsPrivate, OpIsNotPrivate:
		value = ""
	case OpRegexMatch, OpNotRegexMatch:
		if _, err := regexp.Compile(value); err != nil {
			return Filter{}, fmt.Errorf("invalid regular expression: %w", err)
		}
	case OpInCIDR, OpNotInCIDR:
		p, err := netip.ParsePrefix(value)
		if err != nil {
			return Filter{}, fmt.Errorf("invalid CIDR %q", value)
		}
		value = p.Masked().String()
	case OpEqualsNumeric, OpNotEqualsNumeric, OpGreaterThan, OpSmallerThan:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return Filter{}, fmt.Errorf("value %q is not a number", value)
		}
		if field.Type == TypePort && (n < 0 || n > 65535) {
			return Filter{}, fmt.Errorf("port %d out of range", n)
		}
	default:
		switch field.Type {
		case TypeIPAddress:
			a, err := netip.ParseAddr(value)
			if err != nil {
				return Filter{}, fmt.Errorf("invalid address %q", value)
			}
			value = a.String()
		case TypeDNSType:
			canon, ok := dnsname.CanonicalType(value)
			if !ok {
				return Filter{}, fmt.Errorf("unknown DNS record type %q", value)
			}
			value = canon
		default:
			if value == "" {
				return Filter{}, errors.New("value must not be empty")
			}
		}
	}

	return Filter{Field: f.Field, Operator: f.Operator, Value: value}, nil
}
