package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":               ":8080",
		"9090":           ":9090",
		":9090":          ":9090",
		"127.0.0.1:9090": "127.0.0.1:9090",
		" 80 ":           ":80",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeAddr(in), "normalizeAddr(%q)", in)
	}
}

func TestServer_RunAndShutdown(t *testing.T) {
	s := &Server{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})

	errc := make(chan error, 1)
	go func() { errc <- s.Run("127.0.0.1:0", handler) }()

	require.Eventually(t, func() bool { return s.Addr() != "" }, time.Second, 5*time.Millisecond)

	resp, err := http.Get("http://" + s.Addr() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, <-errc)
}

func TestServer_ShutdownBeforeRun(t *testing.T) {
	require.NoError(t, (&Server{}).Shutdown(context.Background()))
}
