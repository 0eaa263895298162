package napi

import (
	"context"
	"strings"

	"testflow/engine/pkg/http/request"
	"testflow/engine/pkg/httpclient"
	"testflow/engine/pkg/model/mscenario"
)

// HTTPDispatcher is the default Dispatcher: it converts a resolved request
// into an HTTP call through the shared client.
type HTTPDispatcher struct {
	Client httpclient.HttpClient
}

func NewHTTPDispatcher(client httpclient.HttpClient) *HTTPDispatcher {
	if client == nil {
		client = httpclient.New()
	}
	return &HTTPDispatcher{Client: client}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, resolved request.ResolvedRequest) (httpclient.Response, error) {
	headers := make([]httpclient.Header, 0, len(resolved.Headers)+1)
	for k, v := range resolved.Headers {
		headers = append(headers, httpclient.Header{HeaderKey: k, Value: v})
	}

	queries := make([]httpclient.Query, 0, len(resolved.Params))
	for k, v := range resolved.Params {
		queries = append(queries, httpclient.Query{QueryKey: k, Value: v})
	}

	body := resolved.Body
	switch resolved.BodyKind {
	case mscenario.BodyKindJSON:
		if !hasHeader(resolved.Headers, "Content-Type") && len(body) > 0 {
			headers = append(headers, httpclient.Header{HeaderKey: "Content-Type", Value: "application/json"})
		}
	case mscenario.BodyKindFormData:
		encoded, contentType, err := httpclient.EncodeFormData(resolved.Form)
		if err != nil {
			return httpclient.Response{}, err
		}
		body = encoded
		headers = append(headers, httpclient.Header{HeaderKey: "Content-Type", Value: contentType})
	}

	req := &httpclient.Request{
		Method:  resolved.Method,
		URL:     resolved.URL,
		Queries: queries,
		Headers: headers,
		Body:    body,
	}

	return httpclient.SendRequestAndConvertWithContext(ctx, d.Client, req)
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}
