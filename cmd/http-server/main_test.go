package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Serve_ListenFailureIsReturned(t *testing.T) {
	// given
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()
	server := &http.Server{Addr: busy.Addr().String(), Handler: http.NotFoundHandler()}

	// when
	err = serve(context.Background(), server, time.Second)

	// then
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on "+busy.Addr().String())
}

func Test_Serve_ShutsDownOnCancel(t *testing.T) {
	// given
	ctx, cancel := context.WithCancel(context.Background())
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	done := make(chan error, 1)

	// when
	go func() { done <- serve(ctx, server, time.Second) }()
	cancel()

	// then
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
