package dnslog

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type L4Geo struct {
	ASNNumber   *int64  `json:"asn_number"`
	ASNName     *string `json:"asn_name"`
	CountryCode *string `json:"country_code"`
}

type L4Context struct {
	MacAddressContextName *string `json:"mac_address_context_name"`
	Hostname              *string `json:"hostname"`
}

type L4Address struct {
	Type    string     `json:"l4_type"`
	MAC     string     `json:"mac"`
	Address string     `json:"address"`
	Port    int        `json:"port"`
	Geo     *L4Geo     `json:"geo"`
	Context *L4Context `json:"context"`
}

// Addr parses Address, returning false for anything that is not an IP.
func (a L4Address) Addr() (netip.Addr, bool) {
	ip, err := netip.ParseAddr(a.Address)
	if err != nil {
		return netip.Addr{}, false
	}
	return ip, true
}

// String renders "address:port", or just the address when hidePort is set or the port
// is unknown.
func (a L4Address) String(hidePort bool) string {
	if a.Address == "" {
		return "n/a"
	}
	if hidePort || a.Port <= 0 {
		return a.Address
	}
	if ip, ok := a.Addr(); ok && ip.Is6() {
		return "[" + a.Address + "]:" + strconv.Itoa(a.Port)
	}
	return a.Address + ":" + strconv.Itoa(a.Port)
}

// LogData is one captured DNS query or response.
type LogData struct {
	UUID          uuid.UUID `json:"uuid"`
	TapUUID       uuid.UUID `json:"tap_uuid"`
	TransactionID int       `json:"transaction_id"`
	Client        L4Address `json:"client"`
	Server        L4Address `json:"server"`
	DataValue     string    `json:"data_value"`
	DataValueETLD *string   `json:"data_value_etld"`
	DataType      string    `json:"data_type"`
	DNSType       string    `json:"dns_type"`
	Timestamp     time.Time `json:"timestamp"`
}

func (d LogData) ETLD() string {
	if d.DataValueETLD == nil {
		return ""
	}
	return *d.DataValueETLD
}

// Entry is a log row. The anomaly scores are only present for entropy log entries.
type Entry struct {
	Query       LogData  `json:"query"`
	Entropy     *float64 `json:"entropy,omitempty"`
	EntropyMean *float64 `json:"entropy_mean,omitempty"`
	ZScore      *float64 `json:"zscore,omitempty"`
}

func (e Entry) Scored() bool {
	return e.Entropy != nil && e.EntropyMean != nil && e.ZScore != nil
}

// TransactionKey identifies the responses belonging to a query. DNS transaction ids are
// 16 bit and repeat, so the query timestamp is part of the key. Timestamps are kept in
// UTC so keys compare with ==.
type TransactionKey struct {
	TransactionID int
	Timestamp     time.Time
}

func (e Entry) Key() TransactionKey {
	return TransactionKey{TransactionID: e.Query.TransactionID, Timestamp: e.Query.Timestamp.UTC()}
}

// String is the wire form, "<id>@<RFC 3339 timestamp>".
func (k TransactionKey) String() string {
	return strconv.Itoa(k.TransactionID) + "@" + k.Timestamp.UTC().Format(time.RFC3339Nano)
}

func ParseTransactionKey(raw string) (TransactionKey, error) {
	id, ts, ok := strings.Cut(strings.TrimSpace(raw), "@")
	if !ok {
		return TransactionKey{}, fmt.Errorf("transaction key %q: want <id>@<timestamp>", raw)
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return TransactionKey{}, fmt.Errorf("transaction key %q: bad id: %w", raw, err)
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return TransactionKey{}, fmt.Errorf("transaction key %q: bad timestamp: %w", raw, err)
	}
	return TransactionKey{TransactionID: n, Timestamp: t.UTC()}, nil
}

const (
	RangeRelative = "relative"
	RangeAbsolute = "absolute"
	RangeAllTime  = "alltime"
)

// TimeRange is the time window shared by a page's widgets. It is passed to the backend
// in its JSON form.
type TimeRange struct {
	Type    string     `json:"type"`
	Minutes int        `json:"minutes,omitempty"`
	From    *time.Time `json:"from,omitempty"`
	To      *time.Time `json:"to,omitempty"`
}

// RelativeHours24 is the default range of the transaction log page.
var RelativeHours24 = TimeRange{Type: RangeRelative, Minutes: 24 * 60}

func ParseTimeRange(raw string) (TimeRange, error) {
	if strings.TrimSpace(raw) == "" {
		return RelativeHours24, nil
	}
	var tr TimeRange
	if err := json.Unmarshal([]byte(raw), &tr); err != nil {
		return TimeRange{}, fmt.Errorf("invalid time range: %w", err)
	}
	return tr, tr.Validate()
}

func (tr TimeRange) Validate() error {
	switch tr.Type {
	case RangeRelative:
		if tr.Minutes <= 0 {
			return fmt.Errorf("relative time range needs positive minutes, got %d", tr.Minutes)
		}
	case RangeAbsolute:
		if tr.From == nil || tr.To == nil {
			return fmt.Errorf("absolute time range needs from and to")
		}
		if tr.To.Before(*tr.From) {
			return fmt.Errorf("absolute time range ends before it starts")
		}
	case RangeAllTime:
	default:
		return fmt.Errorf("unknown time range type %q", tr.Type)
	}
	return nil
}

func (tr TimeRange) Encode() string {
	b, _ := json.Marshal(tr)
	return string(b)
}
