// FILE: tracewisp/src/cmd/tracewisp/commands/tls.go
package commands

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	ltls "tracewisp/src/internal/tls"
)

// TLSCommand generates certificates for the status endpoint and TLS sinks
type TLSCommand struct {
	output io.Writer
	errOut io.Writer
}

func (c *TLSCommand) Execute(args []string) error {
	cmd := flag.NewFlagSet("tls", flag.ContinueOnError)
	cmd.SetOutput(c.errOut)

	var (
		genCA     = cmd.Bool("ca", false, "Generate CA certificate")
		genServer = cmd.Bool("server", false, "Generate server certificate signed by a CA")
		genClient = cmd.Bool("client", false, "Generate client certificate signed by a CA")
		selfSign  = cmd.Bool("self-signed", false, "Generate self-signed server certificate")

		commonName = cmd.String("cn", "", "Common name (required)")
		org        = cmd.String("org", "TraceWisp", "Organization")
		validDays  = cmd.Int("days", 365, "Validity period in days")
		hosts      = cmd.String("hosts", "", "Comma-separated hostnames/IPs (server certificates)")
		caFile     = cmd.String("ca-cert", "", "CA certificate file (for signing)")
		caKeyFile  = cmd.String("ca-key", "", "CA key file (for signing)")
		certOut    = cmd.String("cert-out", "", "Output certificate file")
		keyOut     = cmd.String("key-out", "", "Output key file")
	)
	cmd.Usage = func() {
		fmt.Fprint(c.errOut, c.Help())
	}

	if err := cmd.Parse(args); err != nil {
		return err
	}
	if *commonName == "" {
		cmd.Usage()
		return errors.New("common name (--cn) is required")
	}

	var kind ltls.CertKind
	var defaultName string
	switch {
	case *genCA:
		kind, defaultName = ltls.KindCA, "ca"
	case *selfSign:
		kind, defaultName = ltls.KindSelfSigned, "server"
	case *genServer:
		kind, defaultName = ltls.KindServer, "server"
	case *genClient:
		kind, defaultName = ltls.KindClient, "client"
	default:
		cmd.Usage()
		return errors.New("specify certificate type: --ca, --self-signed, --server, or --client")
	}

	var issuer *ltls.Issuer
	if kind == ltls.KindServer || kind == ltls.KindClient {
		if *caFile == "" || *caKeyFile == "" {
			return errors.New("--ca-cert and --ca-key are required to sign")
		}
		var err error
		if issuer, err = ltls.LoadIssuer(*caFile, *caKeyFile); err != nil {
			return err
		}
	}

	gen, err := ltls.GenerateCert(ltls.CertRequest{
		Kind:         kind,
		CommonName:   *commonName,
		Organization: *org,
		Hosts:        ltls.ParseHosts(*hosts),
		ValidFor:     time.Duration(*validDays) * 24 * time.Hour,
	}, issuer)
	if err != nil {
		return err
	}

	certFile := coalesceString(*certOut, defaultName+".crt")
	keyFile := coalesceString(*keyOut, defaultName+".key")
	if err := gen.WriteFiles(certFile, keyFile); err != nil {
		return err
	}

	fmt.Fprintln(c.output, "Certificate generated:")
	fmt.Fprintf(c.output, "  Certificate: %s\n", certFile)
	fmt.Fprintf(c.output, "  Private Key: %s (mode 0600)\n", keyFile)
	fmt.Fprintf(c.output, "  Valid for:   %d days\n", *validDays)
	fmt.Fprintf(c.output, "  Common Name: %s\n", *commonName)
	if *hosts != "" {
		fmt.Fprintf(c.output, "  Hosts:       %s\n", *hosts)
	}
	return nil
}

func (c *TLSCommand) Description() string {
	return "Generate TLS certificates (CA, server, client, self-signed)"
}

func (c *TLSCommand) Help() string {
	return `TLS Command - Generate TLS certificates for TraceWisp

Usage:
  tracewisp tls [options]

Certificate Types:
  --ca              Private certificate authority
  --self-signed     Self-signed server certificate
  --server          Server certificate signed by --ca-cert/--ca-key
  --client          Client certificate for mTLS, signed by --ca-cert/--ca-key

Options:
  --cn <name>       Common name (required)
  --org <name>      Organization (default: TraceWisp)
  --days <n>        Validity period in days (default: 365)
  --hosts <list>    Comma-separated DNS names and IPs for server certificates
  --cert-out, --key-out <path>  Output files (default: <type>.crt / <type>.key)

Examples:
  # Self-signed certificate for the status endpoint
  tracewisp tls --self-signed --cn localhost --hosts localhost,127.0.0.1

  # CA plus a signed server certificate
  tracewisp tls --ca --cn "TraceWisp CA"
  tracewisp tls --server --cn collector --hosts collector.internal --ca-cert ca.crt --ca-key ca.key
`
}
