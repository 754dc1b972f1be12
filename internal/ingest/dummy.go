package ingest

import (
	"fmt"
	"math/rand/v2"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/schema"
)

// safePrefixes are the only networks generated targets are drawn from
var safePrefixes = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

type portService struct {
	Port    int
	Service string
}

var commonPorts = []portService{
	{22, "ssh"}, {80, "http"}, {443, "https"}, {21, "ftp"}, {23, "telnet"},
	{25, "smtp"}, {53, "dns"}, {139, "netbios-ssn"}, {445, "microsoft-ds"},
	{3389, "rdp"}, {3306, "mysql"}, {5432, "postgresql"}, {8080, "http-alt"},
}

var vulnerabilityTypes = []string{
	"SQL Injection", "Cross-Site Scripting (XSS)", "Remote Code Execution",
	"Authentication Bypass", "Directory Traversal", "Information Disclosure",
	"Privilege Escalation", "Security Misconfiguration",
}

var testTypes = []string{"port_scan", "web_scan", "vuln_scan", "credential_test", "connectivity_test"}

// Generator produces dummy vulnerability records against private and
// loopback addresses only. The same seed yields the same records, apart
// from the run id.
type Generator struct {
	rng   *rand.Rand
	runID string
	start time.Time
	n     int
}

func NewGenerator(seed uint64, start time.Time) *Generator {
	return &Generator{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		runID: uuid.NewString(),
		start: start.UTC(),
	}
}

// RunID identifies every record produced by this generator
func (g *Generator) RunID() string { return g.runID }

// Next returns the next record. Timestamps advance one second per record.
func (g *Generator) Next() schema.Record {
	ts := g.start.Add(time.Duration(g.n) * time.Second)
	g.n++

	testType := testTypes[g.rng.IntN(len(testTypes))]
	ps := commonPorts[g.rng.IntN(len(commonPorts))]
	extra := map[string]any{
		"run_id":  g.runID,
		"port":    ps.Port,
		"service": ps.Service,
	}

	var sev schema.Severity
	var result string
	switch testType {
	case "connectivity_test":
		sev = schema.SeveritySuccess
		result = fmt.Sprintf("%s reachable on %d/tcp", ps.Service, ps.Port)
	case "port_scan":
		sev = schema.SeverityInfo
		result = fmt.Sprintf("port %d/tcp open (%s)", ps.Port, ps.Service)
	default:
		// success is reserved for connectivity checks
		sev = schema.Severities[g.rng.IntN(len(schema.Severities)-1)]
		result = vulnerabilityTypes[g.rng.IntN(len(vulnerabilityTypes))] + " on " + ps.Service
		if sev == schema.SeverityCritical || sev == schema.SeverityHigh {
			extra["cve"] = fmt.Sprintf("CVE-%d-%04d", 2023+g.rng.IntN(3), 1000+g.rng.IntN(9000))
		}
	}

	return schema.Record{
		Timestamp: ts.Format(schema.TimestampLayout),
		TestType:  testType,
		TargetIP:  g.safeIP().String(),
		Severity:  sev,
		Result:    result,
		Extra:     extra,
	}
}

// Batch returns count records
func (g *Generator) Batch(count int) []schema.Record {
	out := make([]schema.Record, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, g.Next())
	}
	return out
}

func (g *Generator) safeIP() netip.Addr {
	prefix := safePrefixes[g.rng.IntN(len(safePrefixes))]
	addr := prefix.Addr().As4()
	hostBits := 32 - prefix.Bits()
	// keep to the first 1000 hosts of the network
	maxHosts := min((1<<hostBits)-2, 1000)
	host := uint32(1 + g.rng.IntN(maxHosts))

	base := uint32(addr[0])<<24 | uint32(addr[1])<<16 | uint32(addr[2])<<8 | uint32(addr[3])
	v := base + host
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// IsSafeTarget reports whether ip falls inside the generator's networks
func IsSafeTarget(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, p := range safePrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
