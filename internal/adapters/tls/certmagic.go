// Package tls serves the tile API over HTTPS with certificates managed by CertMagic.
package tls

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/caddyserver/certmagic"
	"github.com/libdns/azure"
)

// Config holds TLS configuration.
type Config struct {
	Domains  []string
	Email    string
	CacheDir string
	Staging  bool // Use Let's Encrypt staging environment
	DNS      DNSConfig
}

// DNSConfig holds Azure DNS provider configuration for DNS-01 challenges.
type DNSConfig struct {
	SubscriptionID    string
	ResourceGroupName string
	ClientID          string // User Assigned Managed Identity client ID (optional)
}

// Server is an HTTPS server whose certificates are obtained with DNS-01 challenges.
type Server struct {
	server  *http.Server
	magic   *certmagic.Config
	domains []string
	logger  *slog.Logger
}

// NewServer creates an HTTPS server for handler on addr.
func NewServer(cfg Config, addr string, handler http.Handler, logger *slog.Logger) (*Server, error) {
	if len(cfg.Domains) == 0 {
		return nil, errors.New("TLS enabled but no domains specified")
	}
	if cfg.Email == "" {
		return nil, errors.New("TLS enabled but no email specified")
	}

	magic := certmagic.NewDefault()
	if cfg.CacheDir != "" {
		magic.Storage = &certmagic.FileStorage{Path: cfg.CacheDir}
	}

	ca := certmagic.LetsEncryptProductionCA
	if cfg.Staging {
		ca = certmagic.LetsEncryptStagingCA
	}
	issuer := certmagic.NewACMEIssuer(magic, certmagic.ACMEIssuer{
		CA:     ca,
		Email:  cfg.Email,
		Agreed: true,
		DNS01Solver: &certmagic.DNS01Solver{
			DNSManager: certmagic.DNSManager{
				DNSProvider: &azure.Provider{
					SubscriptionId:    cfg.DNS.SubscriptionID,
					ResourceGroupName: cfg.DNS.ResourceGroupName,
					ClientId:          cfg.DNS.ClientID, // Empty = System Assigned Managed Identity
				},
			},
		},
	})
	magic.Issuers = []certmagic.Issuer{issuer}

	tlsConfig := magic.TLSConfig()
	tlsConfig.NextProtos = append([]string{"h2", "http/1.1"}, tlsConfig.NextProtos...)

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			TLSConfig:         tlsConfig,
			ReadHeaderTimeout: 10 * time.Second,
		},
		magic:   magic,
		domains: cfg.Domains,
		logger:  logger,
	}, nil
}

// ManageCertificates obtains or renews certificates for the configured domains.
func (s *Server) ManageCertificates(ctx context.Context) error {
	s.logger.Info("obtaining certificates", "domains", s.domains)
	if err := s.magic.ManageSync(ctx, s.domains); err != nil {
		return err
	}
	s.logger.Info("certificates obtained", "domains", s.domains)
	return nil
}

// Start serves HTTPS until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTPS server", "address", s.server.Addr, "domains", s.domains)
	return s.server.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTPS server")
	return s.server.Shutdown(ctx)
}

// TLSConfig returns the TLS configuration.
func (s *Server) TLSConfig() *tls.Config {
	return s.server.TLSConfig
}
