package checksum

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/fetcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const digest = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

// Public key published by the minisign project.
const knownPublicKey = "RWQf6LRCGA9i53mlYecO4IzT51TGPpvWucNSCh1CBM0QTaLn73Y7GFO3"

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"sha256sum output", digest + "  pomowise-x86_64-unknown-linux-gnu.tar.gz\n", digest},
		{"bare digest", digest, digest},
		{"leading whitespace", "\n\t " + digest + " file", digest},
		{"uppercase is lowered", strings.ToUpper(digest) + " file", digest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	inputs := map[string]string{
		"empty":       "",
		"whitespace":  "   \n",
		"short":       digest[:63] + " file",
		"long":        digest + "0 file",
		"not hex":     strings.Repeat("z", 64),
		"html page":   "<html><body>Not Found</body></html>",
		"sha prefix":  "sha256:" + digest,
		"digest last": "file " + digest,
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(in)
			var malformed *MalformedError
			assert.True(t, errors.As(err, &malformed), "got %v", err)
		})
	}
}

func TestResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.sha256":
			_, _ = w.Write([]byte(digest + "  archive.tar.gz\n"))
		case "/bad.sha256":
			_, _ = w.Write([]byte("oops"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := NewResolver(fetcher.New())

	got, err := r.Resolve(context.Background(), srv.URL+"/ok.sha256")
	require.NoError(t, err)
	assert.Equal(t, digest, got)

	_, err = r.Resolve(context.Background(), srv.URL+"/bad.sha256")
	var malformed *MalformedError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, srv.URL+"/bad.sha256", malformed.URL)
	assert.Contains(t, err.Error(), "oops")

	_, err = r.Resolve(context.Background(), srv.URL+"/missing.sha256")
	var statusErr *fetcher.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.False(t, errors.As(err, &malformed))
}

func TestResolveRejectsBadSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".minisig") {
			_, _ = w.Write([]byte("untrusted comment: nope\nnot-a-signature\n"))
			return
		}
		_, _ = w.Write([]byte(digest + "  archive.tar.gz\n"))
	}))
	defer srv.Close()

	v, err := NewSignatureVerifier(knownPublicKey)
	require.NoError(t, err)

	_, err = NewResolver(fetcher.New(), WithSignatureVerifier(v)).Resolve(context.Background(), srv.URL+"/a.sha256")
	assert.Error(t, err)
}

func TestResolveMissingSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".minisig") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(digest))
	}))
	defer srv.Close()

	v, err := NewSignatureVerifier(knownPublicKey)
	require.NoError(t, err)

	_, err = NewResolver(fetcher.New(), WithSignatureVerifier(v)).Resolve(context.Background(), srv.URL+"/a.sha256")
	var statusErr *fetcher.StatusError
	assert.True(t, errors.As(err, &statusErr))
}

func TestNewSignatureVerifierInvalidKey(t *testing.T) {
	_, err := NewSignatureVerifier("not a key")
	assert.Error(t, err)
}
