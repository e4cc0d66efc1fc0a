// Package routes is the console's navigation table: logical targets mapped to the path
// strings used for in-app links.
package routes

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Route names. Parameterized templates use {name} placeholders that are filled in order.
const (
	Dashboard          = "dashboard"
	UserProfile        = "userprofile.profile"
	UserPassword       = "userprofile.password"
	SystemVersion      = "system.version"
	NotFound           = "notfound"
	SearchResults      = "search.results"
	EthernetOverview   = "ethernet.overview"
	L4Overview         = "ethernet.l4.overview"
	L4IP               = "ethernet.l4.ip"
	L4ASN              = "ethernet.l4.asn"
	Hostname           = "ethernet.hostnames.hostname"
	DNSIndex           = "ethernet.dns.index"
	DNSTransactionLogs = "ethernet.dns.transaction_logs"
	TunnelsIndex       = "ethernet.tunnels.index"
	SocksTunnel        = "ethernet.tunnels.socks.tunnel_details"
	RemoteIndex        = "ethernet.remote.index"
	SSHSession         = "ethernet.remote.ssh.session_details"
	BeaconsIndex       = "ethernet.beacons.index"
	TapsIndex          = "system.taps.index"
	TapDetails         = "system.taps.details"
	TapMetricDetails   = "system.taps.metric_details"
	LocationDetails    = "system.authentication.management.tenants.locations.details"
	FloorDetails       = "system.authentication.management.tenants.locations.floors.details"
	ClusterNode        = "system.cluster.nodes.details"
	Dot11Client        = "dot11.clients.details"
	Dot11BSSID         = "dot11.networks.bssid"
	Dot11SSID          = "dot11.networks.ssid"
	AlertDetails       = "alerts.details"
)

var ErrUnknownRoute = errors.New("unknown route")

type route struct {
	name     string
	template string
}

var table = []route{
	{Dashboard, "/"},
	{UserProfile, "/profile"},
	{UserPassword, "/profile/password"},
	{SystemVersion, "/system/version"},
	{"system.authentication.management.index", "/system/authentication"},
	{"system.authentication.management.settings", "/system/authentication/settings"},
	{"system.authentication.management.organizations.details", "/system/authentication/organizations/show/{organizationId}"},
	{"system.authentication.management.organizations.create", "/system/authentication/organizations/create"},
	{"system.authentication.management.organizations.edit", "/system/authentication/organizations/show/{organizationId}/edit"},
	{"system.authentication.management.organizations.admins.create", "/system/authentication/organizations/show/{organizationId}/admins/create"},
	{"system.authentication.management.organizations.admins.details", "/system/authentication/organizations/show/{organizationId}/admins/show/{userId}"},
	{"system.authentication.management.organizations.admins.edit", "/system/authentication/organizations/show/{organizationId}/admins/show/{userId}/edit"},
	{"system.authentication.management.organizations.events.index", "/system/authentication/organizations/show/{organizationId}/events"},
	{"system.authentication.management.organizations.events.actions.details", "/system/authentication/organizations/show/{organizationId}/events/actions/show/{actionId}"},
	{"system.authentication.management.organizations.events.actions.create", "/system/authentication/organizations/show/{organizationId}/events/actions/create"},
	{"system.authentication.management.organizations.events.actions.edit", "/system/authentication/organizations/show/{organizationId}/events/actions/show/{actionId}/edit"},
	{"system.authentication.management.organizations.events.subscriptions.details", "/system/authentication/organizations/show/{organizationId}/events/subscriptions/{eventTypeName}"},
	{"system.authentication.management.tenants.details", "/system/authentication/organizations/show/{organizationId}/tenants/show/{tenantId}"},
	{"system.authentication.management.tenants.create", "/system/authentication/organizations/show/{organizationId}/tenants/create"},
	{"system.authentication.management.tenants.edit", "/system/authentication/organizations/show/{organizationId}/tenants/show/{tenantId}/edit"},
	{LocationDetails, "/system/authentication/organizations/show/{organizationId}/tenants/show/{tenantId}/locations/show/{locationId}"},
	{"system.authentication.management.tenants.locations.create", "/system/authentication/organizations/show/{organizationId}/tenants/show/{tenantId}/locations/create"},
	{"system.authentication.management.tenants.locations.edit", "/system/authentication/organizations/show/{organizationId}/tenants/show/{tenantId}/locations/show/{locationId}/edit"},
	{FloorDetails, "/system/authentication/organizations/show/{organizationId}/tenants/show/{tenantId}/locations/show/{locationId}/floors/show/{floorId}"},
	{"system.authentication.management.tenants.locations.floors.create", "/system/authentication/organizations/show/{organizationId}/tenants/show/{tenantId}/locations/show/{locationId}/floors/create"},
	{"system.authentication.management.tenants.locations.floors.edit", "/system/authentication/organizations/show/{organizationId}/tenants/show/{tenantId}/locations/show/{locationId}/floors/show/{floorId}/edit"},
	{"system.authentication.management.users.create", "/system/authentication/organizations/show/{organizationId}/tenants/show/{tenantId}/users/create"},
	{"system.authentication.management.users.details", "/system/authentication/organizations/show/{organizationId}/tenants/show/{tenantId}/users/show/{userId}"},
	{"system.authentication.management.users.edit", "/system/authentication/organizations/show/{organizationId}/tenants/show/{tenantId}/users/show/{userId}/edit"},
	{"system.authentication.management.taps.create", "/system/authentication/organizations/show/{organizationId}/tenants/show/{tenantId}/taps/create"},
	{"system.authentication.management.taps.details", "/system/authentication/organizations/show/{organizationId}/tenants/show/{tenantId}/taps/show/{tapUuid}"},
	{"system.authentication.management.taps.edit", "/system/authentication/organizations/show/{organizationId}/tenants/show/{tenantId}/taps/show/{tapUuid}/edit"},
	{"system.authentication.management.superadmins.create", "/system/authentication/superadmins/create"},
	{"system.authentication.management.superadmins.details", "/system/authentication/superadmins/show/{userId}"},
	{"system.authentication.management.superadmins.edit", "/system/authentication/superadmins/show/{userId}/edit"},
	{TapsIndex, "/system/taps"},
	{"system.taps.proxy_add", "/system/taps/add"},
	{TapDetails, "/system/taps/show/{uuid}"},
	{TapMetricDetails, "/system/taps/show/{uuid}/metrics/show/{metricType}/{metricName}"},
	{"system.crypto.index", "/system/crypto"},
	{"system.crypto.tls.certificate", "/system/crypto/tls/certificate/show/{nodeUuid}"},
	{"system.crypto.tls.wildcard.upload", "/system/crypto/tls/certificate/wildcard/upload"},
	{"system.crypto.tls.wildcard.edit", "/system/crypto/tls/certificate/wildcard/show/{certificateId}"},
	{"system.monitoring.index", "/system/monitoring"},
	{"system.monitoring.prometheus.index", "/system/monitoring/prometheus"},
	{"system.cluster.index", "/system/cluster"},
	{"system.cluster.messaging.index", "/system/cluster/messaging"},
	{ClusterNode, "/system/cluster/nodes/show/{uuid}"},
	{"system.health.index", "/system/health"},
	{"system.database.index", "/system/database"},
	{"system.integrations.index", "/system/integrations"},
	{"system.integrations.geoip.ipinfo", "/system/integrations/geoip/ipinfo"},
	{"system.events.index", "/system/events"},
	{"system.events.actions.details", "/system/events/actions/show/{actionId}"},
	{"system.events.actions.create", "/system/events/actions/create"},
	{"system.events.actions.edit", "/system/events/actions/show/{actionId}/edit"},
	{"system.events.subscriptions.details", "/system/events/subscriptions/show/{eventTypeName}"},
	{"system.connect", "/system/connect"},
	{"system.lookandfeel", "/system/lookandfeel"},
	{SearchResults, "/search/results"},
	{"reporting.index", "/reporting"},
	{"reporting.schedule", "/reporting/schedule"},
	{"reporting.details", "/reporting/show/{name}"},
	{"reporting.execution_log_details", "/reporting/show/{name}/execution/show/{executionId}"},
	{EthernetOverview, "/ethernet/overview"},
	{L4Overview, "/ethernet/l4"},
	{L4IP, "/ethernet/l4/ip/show/{ip}"},
	{L4ASN, "/ethernet/l4/asn/show/{asn}"},
	{Hostname, "/ethernet/hostnames/show/{hostname}"},
	{DNSIndex, "/ethernet/dns"},
	{DNSTransactionLogs, "/ethernet/dns/logs"},
	{TunnelsIndex, "/ethernet/tunnels"},
	{SocksTunnel, "/ethernet/tunnels/socks/tunnels/show/{tunnelId}"},
	{RemoteIndex, "/ethernet/remoteaccess"},
	{SSHSession, "/ethernet/remoteaccess/ssh/sessions/show/{sessionId}"},
	{BeaconsIndex, "/ethernet/beacons"},
	{"dot11.overview", "/dot11/overview"},
	{"dot11.monitoring.index", "/dot11/monitoring"},
	{"dot11.monitoring.create", "/dot11/monitoring/ssids/create"},
	{"dot11.monitoring.ssid_details", "/dot11/monitoring/ssids/show/{uuid}"},
	{"dot11.monitoring.configuration_import", "/dot11/monitoring/ssids/show/{uuid}/configuration/import"},
	{"dot11.monitoring.similar_ssid_configuration", "/dot11/monitoring/ssids/show/{uuid}/configuration/similarssids"},
	{"dot11.monitoring.restricted_substrings_configuration", "/dot11/monitoring/ssids/show/{uuid}/configuration/restrictedsubstrings"},
	{"dot11.monitoring.bandits.builtin_details", "/dot11/monitoring/bandits/builtin/show/{id}"},
	{"dot11.monitoring.bandits.create", "/dot11/monitoring/bandits/custom/organizations/{organizationId}/tenants/{tenantId}/create"},
	{"dot11.monitoring.bandits.custom_details", "/dot11/monitoring/bandits/custom/show/{id}"},
	{"dot11.monitoring.bandits.edit", "/dot11/monitoring/bandits/custom/show/{id}/edit"},
	{"dot11.monitoring.disco.configuration", "/dot11/monitoring/ssids/show/{uuid}/disco/configuration"},
	{"dot11.networks.bssids", "/dot11/bssids"},
	{Dot11BSSID, "/dot11/bssids/show/{bssid}"},
	{Dot11SSID, "/dot11/bssids/show/{bssid}/ssids/show/{ssid}/frequencies/show/{frequency}"},
	{"dot11.clients.index", "/dot11/clients"},
	{Dot11Client, "/dot11/clients/show/{mac}"},
	{"dot11.disco.index", "/dot11/disco"},
	{"bluetooth.devices", "/bluetooth/devices"},
	{"context.mac_addresses.index", "/context/macs"},
	{"context.mac_addresses.show", "/context/macs/organizations/show/{organizationId}/tenants/show/{tenantId}/show/{uuid}"},
	{"context.mac_addresses.edit", "/context/macs/organizations/show/{organizationId}/tenants/show/{tenantId}/show/{uuid}/edit"},
	{"context.mac_addresses.create", "/context/macs/create"},
	{"retro.search.index", "/retro/search"},
	{"retro.service_summary", "/retro/servicesummary"},
	{"retro.configuration", "/retro/configuration"},
	{NotFound, "/notfound"},
	{"alerts.index", "/alerts/overview"},
	{AlertDetails, "/alerts/show/{uuid}"},
	{"alerts.subscriptions.index", "/alerts/subscriptions"},
	{"alerts.subscriptions.details", "/alerts/subscriptions/organizations/show/{organizationId}/types/show/{detectionName}"},
}

// Registry builds paths from the navigation table. It is a value type with no exported
// mutators; the zero value is usable and produces unprefixed paths.
type Registry struct {
	prefix string
}

// New returns a registry whose paths are mounted below prefix (e.g. "/console").
func New(prefix string) Registry {
	return Registry{prefix: strings.TrimRight(prefix, "/")}
}

var byName = func() map[string]string {
	m := make(map[string]string, len(table))
	for _, r := range table {
		if _, dup := m[r.name]; dup {
			panic("routes: duplicate route name " + r.name)
		}
		m[r.name] = r.template
	}
	return m
}()

// Names lists every known route name in sorted order.
func Names() []string {
	out := make([]string, 0, len(byName))
	for name := range byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Params returns the placeholder names of a route, in order.
func Params(name string) ([]string, error) {
	tpl, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownRoute, name)
	}
	var out []string
	for _, seg := range strings.Split(tpl, "/") {
		if isPlaceholder(seg) {
			out = append(out, seg[1:len(seg)-1])
		}
	}
	return out, nil
}

// Path builds the path for name. The number of params must match the template.
func (r Registry) Path(name string, params ...string) (string, error) {
	tpl, ok := byName[name]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownRoute, name)
	}

	segs := strings.Split(tpl, "/")
	next := 0
	for i, seg := range segs {
		if !isPlaceholder(seg) {
			continue
		}
		if next >= len(params) {
			return "", fmt.Errorf("route %q: missing parameter %s", name, seg)
		}
		if params[next] == "" {
			return "", fmt.Errorf("route %q: empty parameter %s", name, seg)
		}
		segs[i] = url.PathEscape(params[next])
		next++
	}
	if next != len(params) {
		return "", fmt.Errorf("route %q: expected %d parameters, got %d", name, next, len(params))
	}

	path := strings.Join(segs, "/")
	if r.prefix == "" {
		return path, nil
	}
	if path == "/" {
		return r.prefix + "/", nil
	}
	return r.prefix + path, nil
}

func (r Registry) mustPath(name string, params ...string) string {
	p, err := r.Path(name, params...)
	if err != nil {
		panic(err)
	}
	return p
}

func isPlaceholder(seg string) bool {
	return len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}'
}

func (r Registry) Dashboard() string { return r.mustPath(Dashboard) }
func (r Registry) EthernetOverview() string { return r.mustPath(EthernetOverview) }
func (r Registry) DNSIndex() string { return r.mustPath(DNSIndex) }
func (r Registry) DNSTransactionLogs() string { return r.mustPath(DNSTransactionLogs) }

func (r Registry) L4IP(ip netip.Addr) string { return r.mustPath(L4IP, ip.String()) }

func (r Registry) Hostname(hostname string) string {
	return r.mustPath(Hostname, hostname)
}

func (r Registry) TapDetails(tap uuid.UUID) string {
	return r.mustPath(TapDetails, tap.String())
}

func (r Registry) LocationDetails(organizationID, tenantID, locationID uuid.UUID) string {
	return r.mustPath(LocationDetails, organizationID.String(), tenantID.String(), locationID.String())
}

func (r Registry) FloorDetails(organizationID, tenantID, locationID, floorID uuid.UUID) string {
	return r.mustPath(FloorDetails, organizationID.String(), tenantID.String(), locationID.String(), floorID.String())
}

func (r Registry) Dot11Client(mac string) string { return r.mustPath(Dot11Client, mac) }
func (r Registry) Dot11BSSID(bssid string) string { return r.mustPath(Dot11BSSID, bssid) }

// Breadcrumb is one entry in a page's navigation trail. Href is empty for the active page.
type Breadcrumb struct {
	Label string `json:"label"`
	Href  string `json:"href,omitempty"`
}

func (r Registry) DNSTransactionLogsBreadcrumbs() []Breadcrumb {
	return []Breadcrumb{
		{Label: "Ethernet", Href: r.EthernetOverview()},
		{Label: "DNS", Href: r.DNSIndex()},
		{Label: "Transaction Log"},
	}
}
