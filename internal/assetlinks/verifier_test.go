package assetlinks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPackage = "com.other.app"

var (
	certOld   = CertificateFingerprint([]byte("old signing certificate"))
	certNew   = CertificateFingerprint([]byte("new signing certificate"))
	certOther = CertificateFingerprint([]byte("unrelated certificate"))
)

type staticCerts map[string]SigningInfo

func (s staticCerts) SigningInfo(_ context.Context, pkg string) (SigningInfo, error) {
	info, ok := s[pkg]
	if !ok {
		return SigningInfo{}, errors.New("package not found")
	}
	return info, nil
}

// docServer serves statement lists by path over TLS.
type docServer struct {
	*httptest.Server
	docs  map[string]string
	hits  atomic.Int32
	delay time.Duration
}

func newDocServer(t *testing.T, docs map[string]string) *docServer {
	t.Helper()
	ds := &docServer{docs: docs}
	ds.Server = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ds.hits.Add(1)
		if ds.delay > 0 {
			select {
			case <-time.After(ds.delay):
			case <-r.Context().Done():
				return
			}
		}
		switch r.URL.Path {
		case "/redirect":
			http.Redirect(w, r, "/.well-known/assetlinks.json", http.StatusFound)
			return
		case "/plain.json":
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, ds.docs[r.URL.Path])
			return
		}
		doc, ok := ds.docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, doc)
	}))
	t.Cleanup(ds.Close)
	return ds
}

func (ds *docServer) link(t *testing.T) *url.URL {
	return mustURL(t, ds.URL+"/pay?amount=1")
}

func (ds *docServer) verifier(certs CertificateSource, opts ...LoaderOption) *AppVerifier {
	opts = append([]LoaderOption{WithHTTPClient(ds.Client())}, opts...)
	return NewAppVerifier(certs, NewHTTPLoader(opts...), nil)
}

func appStatement(pkg string, fps ...[]byte) string {
	listed := make([]string, len(fps))
	for i, fp := range fps {
		listed[i] = FormatFingerprint(fp)
	}
	body, _ := json.Marshal(map[string]any{
		"relation": []string{RelationHandleAllURLs},
		"target": map[string]any{
			"namespace":                 NamespaceAndroidApp,
			"package_name":              pkg,
			"sha256_cert_fingerprints": listed,
		},
	})
	return string(body)
}

func list(statements ...string) string {
	return "[" + strings.Join(statements, ",") + "]"
}

func singleSigner() staticCerts {
	return staticCerts{testPackage: {Fingerprints: [][]byte{certOld, certNew}}}
}

func TestAppVerifierSingleSignerHistory(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want bool
	}{
		{"current certificate", list(appStatement(testPackage, certNew)), true},
		{"historic certificate", list(appStatement(testPackage, certOld)), true},
		{"unrelated certificate", list(appStatement(testPackage, certOther)), false},
		{"other package", list(appStatement("com.sample.app", certNew)), false},
		{"empty list", list(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := newDocServer(t, map[string]string{"/.well-known/assetlinks.json": tt.doc})
			ok, err := ds.verifier(singleSigner()).Verify(context.Background(), testPackage, ds.link(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestAppVerifierMultipleSignersRequiresAll(t *testing.T) {
	certs := staticCerts{testPackage: {Fingerprints: [][]byte{certOld, certNew}, MultipleSigners: true}}

	ds := newDocServer(t, map[string]string{"/.well-known/assetlinks.json": list(appStatement(testPackage, certNew))})
	ok, err := ds.verifier(certs).Verify(context.Background(), testPackage, ds.link(t))
	require.NoError(t, err)
	assert.False(t, ok)

	// Marks accumulate across statements and documents.
	ds = newDocServer(t, map[string]string{
		"/.well-known/assetlinks.json": list(appStatement(testPackage, certNew), `{"include":"/more.json"}`),
		"/more.json":                   list(appStatement(testPackage, certOld)),
	})
	ok, err = ds.verifier(certs).Verify(context.Background(), testPackage, ds.link(t))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAppVerifierFollowsIncludes(t *testing.T) {
	ds := newDocServer(t, map[string]string{
		"/.well-known/assetlinks.json": list(`{"include":"nested/links.json"}`),
		"/.well-known/nested/links.json": list(
			`{"relation":["delegate_permission/common.handle_all_urls"],"target":{"namespace":"web","site":"https://example.com"}}`,
			appStatement(testPackage, certNew),
		),
	})
	ok, err := ds.verifier(singleSigner()).Verify(context.Background(), testPackage, ds.link(t))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(2), ds.hits.Load())
}

func TestAppVerifierIllFormedListsAreNotVerified(t *testing.T) {
	includes := make([]string, MaxURIs)
	for i := range includes {
		includes[i] = fmt.Sprintf(`{"include":"/doc%d.json"}`, i)
	}
	tests := map[string]string{
		"extra key":          `[{"relation":["x"],"target":{"namespace":"web"},"comment":"hi"}]`,
		"insecure include":   list(`{"include":"http://example.com/links.json"}`),
		"too many includes":  list(includes...),
		"lower case print":   strings.Replace(list(appStatement(testPackage, certNew)), FormatFingerprint(certNew), strings.ToLower(FormatFingerprint(certNew)), 1),
		"fingerprints absent": list(`{"relation":["delegate_permission/common.handle_all_urls"],"target":{"namespace":"android_app","package_name":"com.other.app"}}`),
		"not json":           `<html></html>`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			ds := newDocServer(t, map[string]string{"/.well-known/assetlinks.json": doc})
			ok, err := ds.verifier(singleSigner()).Verify(context.Background(), testPackage, ds.link(t))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestAppVerifierCouldNotVerify(t *testing.T) {
	ds := newDocServer(t, map[string]string{})
	v := ds.verifier(singleSigner())

	_, err := v.Verify(context.Background(), testPackage, ds.link(t))
	assert.ErrorIs(t, err, ErrCouldNotVerify, "missing document")

	_, err = v.Verify(context.Background(), "com.unknown.app", ds.link(t))
	assert.ErrorIs(t, err, ErrCouldNotVerify, "unknown package")

	_, err = v.Verify(context.Background(), testPackage, mustURL(t, "ftp://example.com/pay"))
	assert.ErrorIs(t, err, ErrCouldNotVerify, "non-http link")

	noCerts := ds.verifier(staticCerts{testPackage: {}})
	_, err = noCerts.Verify(context.Background(), testPackage, ds.link(t))
	assert.ErrorIs(t, err, ErrCouldNotVerify, "no certificates")
}

func TestAppVerifierDoesNotFollowRedirects(t *testing.T) {
	ds := newDocServer(t, map[string]string{
		"/.well-known/assetlinks.json": list(`{"include":"/redirect"}`),
	})
	_, err := ds.verifier(singleSigner()).Verify(context.Background(), testPackage, ds.link(t))
	assert.ErrorIs(t, err, ErrCouldNotVerify)
	assert.Equal(t, int32(2), ds.hits.Load())
}

func TestAppVerifierToleratesContentType(t *testing.T) {
	ds := newDocServer(t, map[string]string{
		"/.well-known/assetlinks.json": list(`{"include":"/plain.json"}`),
		"/plain.json":                  list(appStatement(testPackage, certNew)),
	})
	ok, err := ds.verifier(singleSigner()).Verify(context.Background(), testPackage, ds.link(t))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAppVerifierDocumentSizeCap(t *testing.T) {
	ds := newDocServer(t, map[string]string{
		"/.well-known/assetlinks.json": list(appStatement(testPackage, certNew)),
	})
	_, err := ds.verifier(singleSigner(), WithMaxDocumentSize(16)).Verify(context.Background(), testPackage, ds.link(t))
	assert.ErrorIs(t, err, ErrCouldNotVerify)
}

func TestAppVerifierTimeout(t *testing.T) {
	ds := newDocServer(t, map[string]string{
		"/.well-known/assetlinks.json": list(appStatement(testPackage, certNew)),
	})
	ds.delay = time.Second
	_, err := ds.verifier(singleSigner(), WithLoadTimeout(20*time.Millisecond)).Verify(context.Background(), testPackage, ds.link(t))
	assert.ErrorIs(t, err, ErrCouldNotVerify)
}

func TestAppVerifierCancellation(t *testing.T) {
	ds := newDocServer(t, map[string]string{
		"/.well-known/assetlinks.json": list(appStatement(testPackage, certNew)),
	})
	ds.delay = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := ds.verifier(singleSigner()).Verify(ctx, testPackage, ds.link(t))
		errCh <- err
	}()
	require.Eventually(t, func() bool { return ds.hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrCouldNotVerify)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("verification did not stop after cancellation")
	}

	_, err := ds.verifier(singleSigner()).Verify(ctx, testPackage, ds.link(t))
	assert.ErrorIs(t, err, ErrCouldNotVerify, "already cancelled")
}
