package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/osrg/gobgp/v3/pkg/packet/rtr"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"rtr_validator/pkg"
)

func main() {
	// A .env file lets local runs set RTR_* variables without touching the
	// shell environment.
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	flags := flag.NewFlagSet("rtr_validator", flag.ExitOnError)
	defineFlags(flags)
	_ = flags.Parse(os.Args[1:])

	cfg, err := buildConfig(flags)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := setupLogging(cfg.LogLevel); err != nil {
		log.Fatalf("Invalid log level %q: %v", cfg.LogLevel, err)
	}

	prefixText, _ := flags.GetString("prefix")
	if prefixText == "" {
		log.Fatalf("A prefix to validate is required (--prefix)")
	}
	prefix, err := pkg.ParsePrefix(prefixText)
	if err != nil {
		log.Fatalf("Cannot parse prefix: %v", err)
	}

	// The origin AS is optional; without it the tool only reports which
	// ROAs exist for the prefix.
	var asn *uint32
	if flags.Changed("asn") {
		v, _ := flags.GetUint32("asn")
		asn = &v
	}

	addr, err := resolveServerAddr(cfg.Server)
	if err != nil {
		log.Fatalf("Cannot resolve RTR cache %q: %v", cfg.Server, err)
	}

	log.WithFields(log.Fields{
		"cache":   addr,
		"timeout": cfg.Timeout(),
	}).Info("Connecting to RTR cache")

	conn, err := dialCache(addr, cfg)
	if err != nil {
		log.Fatalf("Cannot connect to RTR cache %s: %v", addr, err)
	}
	defer conn.Close()

	collector := pkg.NewRoaCollector()
	client := pkg.NewRTRClient(conn, collector)
	controller := pkg.NewSyncController(client, collector, cfg.Timeout())

	outcome, err := controller.Sync(context.Background())
	if err != nil {
		log.Fatalf("RTR synchronization failed: %v", err)
	}

	set := collector.Set()
	log.WithFields(log.Fields{
		"outcome": outcome.String(),
		"roas":    set.Len(),
		"ipv4":    set.Len4(),
		"ipv6":    set.Len6(),
	}).Info("RTR synchronization finished")

	result := pkg.Evaluate(set, prefix, asn)

	switch cfg.Format {
	case "json":
		if err := writeJSON(os.Stdout, result, asn, set.Len()); err != nil {
			log.Fatalf("Cannot write result: %v", err)
		}
	default:
		writeText(os.Stdout, result, asn, set.Len())
	}
}

func defineFlags(flags *flag.FlagSet) {
	flags.StringP("server", "s", "", "RTR cache address: host, host:port or [ipv6]:port")
	flags.StringP("prefix", "p", "", "prefix to validate, e.g. 192.0.2.0/24 or [2001:db8::]/32")
	flags.Uint32P("asn", "a", 0, "origin AS number to check against the matching ROAs")
	flags.UintP("timeout", "t", 0, "session timeout in seconds")
	flags.Uint("connect-timeout", 0, "connect timeout in seconds")
	flags.StringP("config", "c", "", "path to a YAML config file")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.StringP("format", "f", "", "output format: text or json")
	flags.Bool("tls", false, "connect with TLS")
	flags.Bool("tls-skip-verify", false, "skip TLS certificate verification")
	flags.String("tls-server-name", "", "TLS server name override")
}

// buildConfig layers the tool configuration: built-in defaults, then the
// optional config file, then RTR_* environment variables, then every flag
// the user set explicitly.
func buildConfig(flags *flag.FlagSet) (pkg.Config, error) {
	cfg := pkg.DefaultConfig()

	if path, _ := flags.GetString("config"); path != "" {
		var err error
		cfg, err = pkg.LoadConfig(path, cfg)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	}
	if err := pkg.LoadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("read environment: %w", err)
	}

	if flags.Changed("server") {
		cfg.Server, _ = flags.GetString("server")
	}
	if flags.Changed("timeout") {
		v, _ := flags.GetUint("timeout")
		cfg.TimeoutSeconds = v
	}
	if flags.Changed("connect-timeout") {
		v, _ := flags.GetUint("connect-timeout")
		cfg.ConnectTimeoutSeconds = v
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("format") {
		cfg.Format, _ = flags.GetString("format")
	}
	if flags.Changed("tls") {
		cfg.TLS.Enabled, _ = flags.GetBool("tls")
	}
	if flags.Changed("tls-skip-verify") {
		cfg.TLS.SkipVerify, _ = flags.GetBool("tls-skip-verify")
	}
	if flags.Changed("tls-server-name") {
		cfg.TLS.ServerName, _ = flags.GetString("tls-server-name")
	}

	return cfg, cfg.Validate()
}

func setupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	// Logs go to stderr (the logrus default); only the verdict is printed
	// on stdout.
	log.SetLevel(lvl)
	return nil
}

// resolveServerAddr turns the configured cache endpoint into a dialable
// ip:port. Literal addresses are used as given; hostnames are resolved and
// the first answer wins. An endpoint without a port gets the IANA RTR port.
func resolveServerAddr(server string) (string, error) {
	host, port, err := net.SplitHostPort(server)
	if err != nil {
		host = strings.Trim(server, "[]")
		port = strconv.Itoa(rtr.RPKI_DEFAULT_PORT)
	}

	portNum, err := net.LookupPort("tcp", port)
	if err != nil {
		return "", fmt.Errorf("bad port %q: %w", port, err)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return netip.AddrPortFrom(addr, uint16(portNum)).String(), nil
	}

	addrs, err := net.LookupHost(host)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("no addresses found for %q", host)
	}
	return net.JoinHostPort(addrs[0], strconv.Itoa(portNum)), nil
}

// dialCache establishes the transport connection under the connect-phase
// deadline. The deadline covers the TLS handshake as well when TLS is on.
func dialCache(addr string, cfg pkg.Config) (net.Conn, error) {
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout()}
	if !cfg.TLS.Enabled {
		return dialer.Dial("tcp", addr)
	}
	return tls.DialWithDialer(&dialer, "tcp", addr, &tls.Config{
		InsecureSkipVerify: cfg.TLS.SkipVerify,
		ServerName:         cfg.TLS.ServerName,
	})
}

func writeText(w io.Writer, result pkg.MatchResult, asn *uint32, total int) {
	fmt.Fprintf(w, "Validation results for prefix %s (%d ROAs synchronized)\n", result.Prefix, total)

	if result.Verdict == pkg.VerdictNotFound {
		fmt.Fprintln(w, "NOT FOUND - no ROA registered for this exact prefix")
		return
	}

	fmt.Fprintf(w, "FOUND - %d authorizing ROA(s):\n", len(result.Authorizations))
	for _, a := range result.Authorizations {
		fmt.Fprintf(w, "  AS%d (max length /%d)\n", a.ASN, a.MaxLength)
	}
	if asn == nil {
		return
	}

	switch result.Verdict {
	case pkg.VerdictValid:
		fmt.Fprintf(w, "VALID - AS%d is authorized to announce %s\n", *asn, result.Prefix)
	case pkg.VerdictInvalid:
		fmt.Fprintf(w, "INVALID - AS%d is not authorized to announce %s\n", *asn, result.Prefix)
		fmt.Fprintf(w, "Authorized origins: %s\n", formatASNs(result.ASNs()))
	}
}

func formatASNs(asns []uint32) string {
	parts := make([]string, len(asns))
	for i, asn := range asns {
		parts[i] = fmt.Sprintf("AS%d", asn)
	}
	return strings.Join(parts, ", ")
}

type outputROA struct {
	Prefix    string `json:"prefix"`
	MaxLength int    `json:"max-length"`
	ASN       uint32 `json:"asn"`
}

type outputResult struct {
	Prefix   string      `json:"prefix"`
	ASN      *uint32     `json:"asn,omitempty"`
	Status   string      `json:"status"`
	ROAs     []outputROA `json:"roas,omitempty"`
	RoaCount int         `json:"total-roas"`
}

func writeJSON(w io.Writer, result pkg.MatchResult, asn *uint32, total int) error {
	out := outputResult{
		Prefix:   result.Prefix.String(),
		ASN:      asn,
		Status:   statusString(result.Verdict),
		RoaCount: total,
	}
	for _, a := range result.Authorizations {
		out.ROAs = append(out.ROAs, outputROA{
			Prefix:    result.Prefix.String(),
			MaxLength: int(a.MaxLength),
			ASN:       a.ASN,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func statusString(v pkg.Verdict) string {
	switch v {
	case pkg.VerdictValid:
		return "valid"
	case pkg.VerdictInvalid:
		return "invalid"
	case pkg.VerdictFound:
		return "found"
	default:
		return "not_found"
	}
}
