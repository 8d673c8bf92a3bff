// FILE: tracewisp/src/internal/tls/tls_test.go
package tls

import (
	"crypto/tls"
	"io"
	"net"
	"path/filepath"
	"testing"

	"tracewisp/src/internal/config"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pki struct {
	caCert, serverCert, serverKey, clientCert, clientKey string
}

func newTestPKI(t *testing.T) pki {
	t.Helper()
	dir := t.TempDir()
	p := pki{
		caCert:     filepath.Join(dir, "ca.crt"),
		serverCert: filepath.Join(dir, "server.crt"),
		serverKey:  filepath.Join(dir, "server.key"),
		clientCert: filepath.Join(dir, "client.crt"),
		clientKey:  filepath.Join(dir, "client.key"),
	}
	caKey := filepath.Join(dir, "ca.key")

	ca, err := GenerateCert(CertRequest{Kind: KindCA, CommonName: "Test CA"}, nil)
	require.NoError(t, err)
	require.NoError(t, ca.WriteFiles(p.caCert, caKey))

	issuer, err := LoadIssuer(p.caCert, caKey)
	require.NoError(t, err)

	srv, err := GenerateCert(CertRequest{Kind: KindServer, CommonName: "server", Hosts: []string{"localhost", "127.0.0.1"}}, issuer)
	require.NoError(t, err)
	require.NoError(t, srv.WriteFiles(p.serverCert, p.serverKey))

	cli, err := GenerateCert(CertRequest{Kind: KindClient, CommonName: "client"}, issuer)
	require.NoError(t, err)
	require.NoError(t, cli.WriteFiles(p.clientCert, p.clientKey))
	return p
}

func TestManagers_Disabled(t *testing.T) {
	logger := log.NewLogger()

	s, err := NewServerManager(nil, logger)
	assert.NoError(t, err)
	assert.Nil(t, s)
	assert.Nil(t, s.GetConfig())
	assert.Equal(t, false, s.GetStats()["enabled"])

	c, err := NewClientManager(&config.TLSClientConfig{Enabled: false}, logger)
	assert.NoError(t, err)
	assert.Nil(t, c.GetConfig())
}

func TestMutualTLSHandshake(t *testing.T) {
	p := newTestPKI(t)
	logger := log.NewLogger()

	server, err := NewServerManager(&config.TLSServerConfig{
		Enabled:      true,
		CertFile:     p.serverCert,
		KeyFile:      p.serverKey,
		ClientAuth:   true,
		ClientCAFile: p.caCert,
	}, logger)
	require.NoError(t, err)

	client, err := NewClientManager(&config.TLSClientConfig{
		Enabled:        true,
		ServerCAFile:   p.caCert,
		ServerName:     "localhost",
		ClientCertFile: p.clientCert,
		ClientKeyFile:  p.clientKey,
	}, logger)
	require.NoError(t, err)

	ln, err := tls.Listen("tcp", "127.0.0.1:0", server.GetConfig())
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("hello"))
	}()

	conn, err := tls.Dial("tcp", ln.Addr().String(), client.GetConfig())
	require.NoError(t, err)
	defer conn.Close()

	got, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
	assert.Equal(t, "server", conn.ConnectionState().PeerCertificates[0].Subject.CommonName)
}

func TestMutualTLS_RejectsClientWithoutCert(t *testing.T) {
	p := newTestPKI(t)
	logger := log.NewLogger()

	server, err := NewServerManager(&config.TLSServerConfig{
		Enabled: true, CertFile: p.serverCert, KeyFile: p.serverKey,
		ClientAuth: true, ClientCAFile: p.caCert,
	}, logger)
	require.NoError(t, err)
	client, err := NewClientManager(&config.TLSClientConfig{
		Enabled: true, ServerCAFile: p.caCert, ServerName: "localhost",
	}, logger)
	require.NoError(t, err)

	ln, err := tls.Listen("tcp", "127.0.0.1:0", server.GetConfig())
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.(*tls.Conn).Handshake()
	}()

	conn, err := tls.Dial("tcp", ln.Addr().String(), client.GetConfig())
	if err == nil {
		// TLS 1.3 reports the missing certificate on first read
		_, err = conn.Read(make([]byte, 1))
		conn.Close()
	}
	assert.Error(t, err)
}

func TestLoadIssuer_RejectsLeaf(t *testing.T) {
	p := newTestPKI(t)
	_, err := LoadIssuer(p.serverCert, p.serverKey)
	assert.ErrorContains(t, err, "not a CA")
}

func TestGenerateCert_RequiresIssuer(t *testing.T) {
	_, err := GenerateCert(CertRequest{Kind: KindServer, CommonName: "x"}, nil)
	assert.Error(t, err)
	_, err = GenerateCert(CertRequest{Kind: KindCA}, nil)
	assert.ErrorContains(t, err, "common name")
}

func TestParseCipherSuites(t *testing.T) {
	ids, err := parseCipherSuites("TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256, TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384")
	require.NoError(t, err)
	assert.Equal(t, []uint16{
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	}, ids)

	_, err = parseCipherSuites("TLS_RSA_WITH_RC4_128_SHA")
	assert.Error(t, err, "insecure suites are refused")

	assert.Equal(t, uint16(tls.VersionTLS13), parseTLSVersion("tls1.3", tls.VersionTLS12))
	assert.Equal(t, uint16(tls.VersionTLS12), parseTLSVersion("bogus", tls.VersionTLS12))
	assert.Equal(t, "TLS1.3", tlsVersionString(tls.VersionTLS13))
}

func TestParseHosts(t *testing.T) {
	assert.Equal(t, []string{"a", "10.0.0.1"}, ParseHosts(" a, ,10.0.0.1"))
	dns, ips := splitHosts([]string{"a", "10.0.0.1"})
	assert.Equal(t, []string{"a"}, dns)
	require.Len(t, ips, 1)
	assert.True(t, ips[0].Equal(net.ParseIP("10.0.0.1")))
}
