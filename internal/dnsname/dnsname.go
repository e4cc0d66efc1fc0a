package dnsname

import (
	"strings"

	"github.com/miekg/dns"
)

// Normalize prepares a captured query value for display: trimmed, lowercased, without
// the trailing root dot. ok is false for values that are not domain names, which are
// then shown raw.
func Normalize(raw string) (display string, ok bool) {
	name := strings.TrimSpace(raw)
	if name == "" || name == "." {
		return "", false
	}
	if _, valid := dns.IsDomainName(name); !valid {
		return name, false
	}
	return strings.ToLower(strings.TrimSuffix(name, ".")), true
}

// ETLD returns the display form of an effective TLD label. An empty or root value
// renders as "n/a".
func ETLD(raw string) string {
	name, ok := Normalize(raw)
	if !ok || name == "" {
		return "n/a"
	}
	return name
}

// Registered splits a normalized name into the part left of the eTLD and the eTLD
// itself, so callers can highlight the registrable part. If etld is not a suffix of
// the name the whole name is returned as prefix.
func Registered(name, etld string) (prefix, suffix string) {
	name, _ = Normalize(name)
	etld, _ = Normalize(etld)
	if etld == "" || name == etld {
		return name, ""
	}
	if !dns.IsSubDomain(dns.Fqdn(etld), dns.Fqdn(name)) {
		return name, ""
	}
	return strings.TrimSuffix(name, "."+etld), etld
}

// Labels counts the labels of a name.
func Labels(name string) int {
	n, ok := Normalize(name)
	if !ok {
		return 0
	}
	return dns.CountLabel(dns.Fqdn(n))
}

// CanonicalType maps a record type mnemonic ("aaaa", " TXT ") to its canonical form.
// Unknown types are rejected.
func CanonicalType(raw string) (string, bool) {
	t := strings.ToUpper(strings.TrimSpace(raw))
	code, ok := dns.StringToType[t]
	if !ok {
		return "", false
	}
	return dns.TypeToString[code], true
}

// IsReverseLookup reports whether the name is a PTR-style reverse lookup name.
func IsReverseLookup(raw string) bool {
	n, ok := Normalize(raw)
	if !ok {
		return false
	}
	return strings.HasSuffix(n, "in-addr.arpa") || strings.HasSuffix(n, "ip6.arpa")
}
