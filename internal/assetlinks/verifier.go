package assetlinks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/congo-pay/payguard/internal/logging"
)

// ErrCouldNotVerify means verification could not run to completion: the app
// is unknown, a document could not be fetched, or the caller gave up.
var ErrCouldNotVerify = errors.New("could not verify app")

// SigningInfo describes the certificates an app package is signed with.
type SigningInfo struct {
	// Fingerprints are SHA-256 certificate fingerprints. With a single signer
	// this is the full signing history, newest last.
	Fingerprints [][]byte
	// MultipleSigners requires every fingerprint to be listed.
	MultipleSigners bool
}

// CertificateSource looks up the signing certificates of an installed app.
type CertificateSource interface {
	SigningInfo(ctx context.Context, packageName string) (SigningInfo, error)
}

// AppVerifier checks that a web origin delegates link handling to an app
// package whose signing certificates it lists.
type AppVerifier struct {
	certs  CertificateSource
	loader Loader
	logger *slog.Logger
}

// NewAppVerifier builds an AppVerifier. A nil logger discards output.
func NewAppVerifier(certs CertificateSource, loader Loader, logger *slog.Logger) *AppVerifier {
	if logger == nil {
		logger = logging.Discard()
	}
	return &AppVerifier{certs: certs, loader: loader, logger: logger}
}

// Verify reports whether the statement list published by link's origin
// authorizes packageName. A statement list that is ill-formed or too large
// yields false. Failures that prevent a decision wrap ErrCouldNotVerify.
func (v *AppVerifier) Verify(ctx context.Context, packageName string, link *url.URL) (bool, error) {
	if packageName == "" {
		return false, fmt.Errorf("%w: empty package name", ErrCouldNotVerify)
	}
	info, err := v.certs.SigningInfo(ctx, packageName)
	if err != nil {
		return false, fmt.Errorf("%w: signing info for %s: %w", ErrCouldNotVerify, packageName, err)
	}
	if len(info.Fingerprints) == 0 {
		return false, fmt.Errorf("%w: no signing certificates for %s", ErrCouldNotVerify, packageName)
	}

	// With multiple signers each one needs its own mark; otherwise any
	// certificate from the history satisfies the single mark.
	marks := make([]bool, 1)
	if info.MultipleSigners {
		marks = make([]bool, len(info.Fingerprints))
	}

	parser := NewParser()
	parser.AddMatcher(AndroidAppMatcher(packageName), func(_ StatementMatcher, s Statement) error {
		listed, err := s.TargetStrings(KeySHA256Fingerprints)
		if err != nil {
			return err
		}
		for _, text := range listed {
			fp, err := ParseFingerprint(text)
			if err != nil {
				return err
			}
			for i, known := range info.Fingerprints {
				if !bytes.Equal(fp, known) {
					continue
				}
				if info.MultipleSigners {
					marks[i] = true
				} else {
					marks[0] = true
				}
			}
		}
		return nil
	})

	source, err := WellKnownURI(link)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrCouldNotVerify, err)
	}
	next, err := parser.Start(source)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrCouldNotVerify, err)
	}
	for next != nil {
		if err := ctx.Err(); err != nil {
			return false, fmt.Errorf("%w: %w", ErrCouldNotVerify, err)
		}
		doc, err := v.loader.Load(ctx, next)
		if err != nil {
			return false, fmt.Errorf("%w: load %s: %w", ErrCouldNotVerify, next, err)
		}
		if err := ctx.Err(); err != nil {
			return false, fmt.Errorf("%w: %w", ErrCouldNotVerify, err)
		}

		next, err = parser.DocumentLoaded(next, doc)
		if errors.Is(err, ErrIllFormedStatement) || errors.Is(err, ErrTooManyIncludes) {
			v.logger.Warn("asset links verification failed",
				slog.String("package", packageName),
				slog.String("source", source.String()),
				slog.Any("error", err),
			)
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrCouldNotVerify, err)
		}
	}

	for _, ok := range marks {
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
