// Package request turns an api node's configuration into a dispatch-ready
// request. Resolution is a pure function over the node config, the target
// environment, and a variable snapshot: templates are applied, env and node
// headers/params merged, and the body materialized. No network or file I/O
// happens here; form-data file parts keep their paths for the dispatcher.
package request

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"testflow/engine/pkg/expression"
	"testflow/engine/pkg/httpclient"
	"testflow/engine/pkg/model/menv"
	"testflow/engine/pkg/model/mscenario"
	"testflow/engine/pkg/varcontext"
)

var ErrEmptyURL = errors.New("request url resolved to empty")

// ResolvedRequest is the dispatch shape of one api step after template
// resolution and environment merging.
type ResolvedRequest struct {
	URL      string
	Method   string
	Headers  map[string]string
	Params   map[string]string
	BodyKind mscenario.BodyKind
	Body     []byte
	Form     []httpclient.FormField
}

// Resolve materializes an api node config against the environment and the
// current variable context.
//
// URL rule: a template-resolved absolute http(s) URL is used verbatim;
// anything else is joined onto the environment domain with exactly one
// slash between them. Env headers/params merge first, node-level second,
// node winning on collision.
func Resolve(cfg *mscenario.APIConfig, env menv.Env, vars *varcontext.Context) (ResolvedRequest, error) {
	if cfg == nil {
		return ResolvedRequest{}, errors.New("nil api config")
	}

	uenv := vars.Env()

	urlStr, err := resolveURL(cfg.URL, env.Domain, uenv)
	if err != nil {
		return ResolvedRequest{}, err
	}

	method := strings.ToUpper(strings.TrimSpace(uenv.Interpolate(cfg.Method)))
	if method == "" {
		method = "GET"
	}

	resolved := ResolvedRequest{
		URL:      urlStr,
		Method:   method,
		Headers:  mergeStringMaps(uenv, env.Headers, cfg.Headers),
		Params:   mergeStringMaps(uenv, env.Params, cfg.Params),
		BodyKind: cfg.Body.Kind,
	}

	switch cfg.Body.Kind {
	case mscenario.BodyKindNone:
		// nothing to do
	case mscenario.BodyKindJSON:
		resolved.Body = resolveJSONBody(cfg.Body.Text, uenv)
	case mscenario.BodyKindRaw:
		resolved.Body = []byte(uenv.Interpolate(cfg.Body.Text))
	case mscenario.BodyKindFormData:
		resolved.Form = resolveFormBody(cfg.Body.Form, uenv)
	default:
		return ResolvedRequest{}, fmt.Errorf("unknown body kind %d", cfg.Body.Kind)
	}

	return resolved, nil
}

func resolveURL(rawURL, domain string, uenv *expression.UnifiedEnv) (string, error) {
	urlStr := strings.TrimSpace(uenv.Interpolate(rawURL))
	if urlStr == "" {
		return "", ErrEmptyURL
	}

	if strings.HasPrefix(urlStr, "http://") || strings.HasPrefix(urlStr, "https://") {
		return urlStr, nil
	}

	base := strings.TrimRight(strings.TrimSpace(uenv.Interpolate(domain)), "/")
	if base == "" {
		return "", fmt.Errorf("relative url %q with empty environment domain", urlStr)
	}
	return base + "/" + strings.TrimLeft(urlStr, "/"), nil
}

// mergeStringMaps interpolates and merges the env-level map first and the
// node-level map second, so node entries override env entries on the same
// key.
func mergeStringMaps(uenv *expression.UnifiedEnv, envMap, nodeMap map[string]string) map[string]string {
	if len(envMap) == 0 && len(nodeMap) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(envMap)+len(nodeMap))
	for k, v := range envMap {
		out[k] = uenv.Interpolate(v)
	}
	for k, v := range nodeMap {
		out[k] = uenv.Interpolate(v)
	}
	return out
}

// resolveJSONBody parses the body text as JSON and interpolates its string
// leaves, so templates inside the document never break quoting. Text that
// does not parse as JSON is passed through opaque.
func resolveJSONBody(text string, uenv *expression.UnifiedEnv) []byte {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return []byte(text)
	}

	interpolated := uenv.InterpolateValue(parsed)
	out, err := json.Marshal(interpolated)
	if err != nil {
		return []byte(text)
	}
	return out
}

// resolveFormBody interpolates text fields; file fields are opaque and keep
// their configured paths.
func resolveFormBody(fields []mscenario.FormField, uenv *expression.UnifiedEnv) []httpclient.FormField {
	out := make([]httpclient.FormField, 0, len(fields))
	for _, f := range fields {
		if f.IsFile {
			out = append(out, httpclient.FormField{
				Name:     f.Name,
				IsFile:   true,
				FilePath: f.FilePath,
			})
			continue
		}
		out = append(out, httpclient.FormField{
			Name:  f.Name,
			Value: uenv.Interpolate(f.Value),
		})
	}
	return out
}
