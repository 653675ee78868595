// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package logger

import (
	"net/http"
	"net/http/httputil"

	"github.com/rs/zerolog/log"
)

type loggingTransport struct {
	transport http.RoundTripper
}

func (t *loggingTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	dump, err := httputil.DumpRequestOut(request, true)
	if err != nil {
		return nil, err
	}
	log.Trace().Msg(string(dump))

	response, err := t.transport.RoundTrip(request)
	if err != nil {
		return nil, err
	}

	if dump, err := httputil.DumpResponse(response, true); err == nil {
		log.Trace().Msg(string(dump))
	}
	return response, nil
}

// AttachLoggingTransport wraps the client transport so that every request
// and response is dumped at trace level
func AttachLoggingTransport(client *http.Client) {
	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client.Transport = &loggingTransport{
		transport: transport,
	}
}
