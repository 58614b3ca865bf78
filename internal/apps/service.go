package apps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/payguard/internal/assetlinks"
	"github.com/congo-pay/payguard/internal/logging"
)

// ErrInvalidApp is returned for registrations that fail validation.
var ErrInvalidApp = errors.New("invalid app")

var packageNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)+$`)

// Invalidator drops cached verification outcomes for a package.
type Invalidator interface {
	ForgetPackage(ctx context.Context, packageName string) error
}

// Service manages the app signing registry. It is the certificate source for
// asset links verification.
type Service struct {
	repo        Repository
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService builds an app service. invalidator and logger may be nil.
func NewService(repo Repository, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{repo: repo, invalidator: invalidator, logger: logger}
}

// RegisterInput captures the signing data for a package. Certificates are DER
// encoded and are fingerprinted on registration.
type RegisterInput struct {
	PackageName     string
	Fingerprints    []string
	Certificates    [][]byte
	MultipleSigners bool
}

// Register stores or replaces the signing data for a package.
func (s *Service) Register(ctx context.Context, input RegisterInput) (App, error) {
	pkg := strings.TrimSpace(input.PackageName)
	if !packageNamePattern.MatchString(pkg) {
		return App{}, fmt.Errorf("%w: package name %q", ErrInvalidApp, input.PackageName)
	}

	var fingerprints []string
	seen := make(map[string]bool)
	add := func(fp []byte) {
		text := assetlinks.FormatFingerprint(fp)
		if !seen[text] {
			seen[text] = true
			fingerprints = append(fingerprints, text)
		}
	}
	for _, text := range input.Fingerprints {
		fp, err := assetlinks.ParseFingerprint(strings.TrimSpace(text))
		if err != nil {
			return App{}, fmt.Errorf("%w: %v", ErrInvalidApp, err)
		}
		add(fp)
	}
	for _, der := range input.Certificates {
		if len(der) == 0 {
			return App{}, fmt.Errorf("%w: empty certificate", ErrInvalidApp)
		}
		add(assetlinks.CertificateFingerprint(der))
	}
	if len(fingerprints) == 0 {
		return App{}, fmt.Errorf("%w: at least one fingerprint or certificate is required", ErrInvalidApp)
	}

	app, err := s.repo.Upsert(ctx, App{
		ID:              uuid.NewString(),
		PackageName:     pkg,
		Fingerprints:    fingerprints,
		MultipleSigners: input.MultipleSigners,
		UpdatedAt:       time.Now().UTC(),
	})
	if err != nil {
		return App{}, err
	}

	if s.invalidator != nil {
		if err := s.invalidator.ForgetPackage(ctx, pkg); err != nil {
			s.logger.Warn("failed to invalidate cached verifications", slog.String("package", pkg), slog.Any("error", err))
		}
	}
	s.logger.Info("app registered",
		slog.String("package", pkg),
		slog.Int("certificates", len(fingerprints)),
		slog.Bool("multiple_signers", app.MultipleSigners),
	)
	return app, nil
}

// Get returns the registered app for a package name.
func (s *Service) Get(ctx context.Context, packageName string) (App, error) {
	return s.repo.Get(ctx, packageName)
}

// SigningInfo returns the decoded certificate fingerprints for a package.
func (s *Service) SigningInfo(ctx context.Context, packageName string) (assetlinks.SigningInfo, error) {
	return NewCertificateSource(s.repo).SigningInfo(ctx, packageName)
}

type certificateSource struct {
	repo Repository
}

// NewCertificateSource exposes repo as an asset links certificate source.
func NewCertificateSource(repo Repository) assetlinks.CertificateSource {
	return certificateSource{repo: repo}
}

func (c certificateSource) SigningInfo(ctx context.Context, packageName string) (assetlinks.SigningInfo, error) {
	app, err := c.repo.Get(ctx, packageName)
	if err != nil {
		return assetlinks.SigningInfo{}, err
	}
	info := assetlinks.SigningInfo{MultipleSigners: app.MultipleSigners}
	for _, text := range app.Fingerprints {
		fp, err := assetlinks.ParseFingerprint(text)
		if err != nil {
			return assetlinks.SigningInfo{}, fmt.Errorf("stored fingerprint for %s: %w", packageName, err)
		}
		info.Fingerprints = append(info.Fingerprints, fp)
	}
	return info, nil
}
