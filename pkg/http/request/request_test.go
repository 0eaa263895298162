package request

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testflow/engine/pkg/model/menv"
	"testflow/engine/pkg/model/mscenario"
	"testflow/engine/pkg/varcontext"
)

func testVars(extra map[string]any) *varcontext.Context {
	base := map[string]any{
		"user_id": "42",
		"token":   "tkn-1",
	}
	for k, v := range extra {
		base[k] = v
	}
	return varcontext.New(base, nil)
}

func TestResolveURLJoin(t *testing.T) {
	env := menv.Env{Domain: "https://api.example.com/"}

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"absolute http", "http://other.example.com/x", "http://other.example.com/x"},
		{"absolute https", "https://other.example.com/x", "https://other.example.com/x"},
		{"relative with leading slash", "/users/42", "https://api.example.com/users/42"},
		{"relative without leading slash", "users/42", "https://api.example.com/users/42"},
		{"template in path", "/users/{{user_id}}", "https://api.example.com/users/42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &mscenario.APIConfig{Method: "GET", URL: tt.url}
			resolved, err := Resolve(cfg, env, testVars(nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resolved.URL)
		})
	}
}

func TestResolveURLDomainTemplate(t *testing.T) {
	env := menv.Env{Domain: "https://{{host}}"}
	cfg := &mscenario.APIConfig{URL: "/ping"}

	resolved, err := Resolve(cfg, env, testVars(map[string]any{"host": "dyn.example.com"}))
	require.NoError(t, err)
	assert.Equal(t, "https://dyn.example.com/ping", resolved.URL)
}

func TestResolveURLErrors(t *testing.T) {
	_, err := Resolve(&mscenario.APIConfig{URL: "  "}, menv.Env{Domain: "https://x"}, testVars(nil))
	assert.ErrorIs(t, err, ErrEmptyURL)

	_, err = Resolve(&mscenario.APIConfig{URL: "/path"}, menv.Env{}, testVars(nil))
	assert.Error(t, err)
}

func TestResolveMethodDefaultsToGet(t *testing.T) {
	env := menv.Env{Domain: "https://api.example.com"}

	resolved, err := Resolve(&mscenario.APIConfig{URL: "/x"}, env, testVars(nil))
	require.NoError(t, err)
	assert.Equal(t, "GET", resolved.Method)

	resolved, err = Resolve(&mscenario.APIConfig{URL: "/x", Method: "post"}, env, testVars(nil))
	require.NoError(t, err)
	assert.Equal(t, "POST", resolved.Method)
}

func TestResolveHeaderAndParamMerge(t *testing.T) {
	env := menv.Env{
		Domain: "https://api.example.com",
		Headers: map[string]string{
			"Authorization": "Bearer {{token}}",
			"X-Env":         "base",
		},
		Params: map[string]string{
			"version": "v1",
			"shared":  "env",
		},
	}
	cfg := &mscenario.APIConfig{
		URL: "/x",
		Headers: map[string]string{
			"X-Env":  "node-wins",
			"X-Node": "extra",
		},
		Params: map[string]string{
			"shared": "node",
		},
	}

	resolved, err := Resolve(cfg, env, testVars(nil))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Authorization": "Bearer tkn-1",
		"X-Env":         "node-wins",
		"X-Node":        "extra",
	}, resolved.Headers)
	assert.Equal(t, map[string]string{
		"version": "v1",
		"shared":  "node",
	}, resolved.Params)
}

func TestResolveJSONBody(t *testing.T) {
	env := menv.Env{Domain: "https://api.example.com"}
	cfg := &mscenario.APIConfig{
		URL: "/x",
		Body: mscenario.Body{
			Kind: mscenario.BodyKindJSON,
			Text: `{"user":"{{user_id}}","count":3,"nested":{"token":"{{token}}"}}`,
		},
	}

	resolved, err := Resolve(cfg, env, testVars(nil))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(resolved.Body, &got))
	assert.Equal(t, "42", got["user"])
	assert.Equal(t, float64(3), got["count"])
	assert.Equal(t, map[string]any{"token": "tkn-1"}, got["nested"])
}

func TestResolveJSONBodyParseFailureFallsBackToRaw(t *testing.T) {
	env := menv.Env{Domain: "https://api.example.com"}
	cfg := &mscenario.APIConfig{
		URL: "/x",
		Body: mscenario.Body{
			Kind: mscenario.BodyKindJSON,
			Text: `not json {{user_id}}`,
		},
	}

	resolved, err := Resolve(cfg, env, testVars(nil))
	require.NoError(t, err)
	// Opaque: the unparseable text passes through untouched.
	assert.Equal(t, `not json {{user_id}}`, string(resolved.Body))
}

func TestResolveRawBody(t *testing.T) {
	env := menv.Env{Domain: "https://api.example.com"}
	cfg := &mscenario.APIConfig{
		URL: "/x",
		Body: mscenario.Body{
			Kind: mscenario.BodyKindRaw,
			Text: "user={{user_id}}&static=1",
		},
	}

	resolved, err := Resolve(cfg, env, testVars(nil))
	require.NoError(t, err)
	assert.Equal(t, "user=42&static=1", string(resolved.Body))
}

func TestResolveFormDataBody(t *testing.T) {
	env := menv.Env{Domain: "https://api.example.com"}
	cfg := &mscenario.APIConfig{
		URL: "/x",
		Body: mscenario.Body{
			Kind: mscenario.BodyKindFormData,
			Form: []mscenario.FormField{
				{Name: "user", Value: "{{user_id}}"},
				{Name: "upload", IsFile: true, FilePath: "/tmp/{{user_id}}.bin"},
			},
		},
	}

	resolved, err := Resolve(cfg, env, testVars(nil))
	require.NoError(t, err)
	require.Len(t, resolved.Form, 2)

	assert.Equal(t, "42", resolved.Form[0].Value)
	assert.False(t, resolved.Form[0].IsFile)

	// File fields are opaque: the path is never interpolated.
	assert.True(t, resolved.Form[1].IsFile)
	assert.Equal(t, "/tmp/{{user_id}}.bin", resolved.Form[1].FilePath)
}

func TestResolveNoneBody(t *testing.T) {
	env := menv.Env{Domain: "https://api.example.com"}

	resolved, err := Resolve(&mscenario.APIConfig{URL: "/x"}, env, testVars(nil))
	require.NoError(t, err)
	assert.Nil(t, resolved.Body)
	assert.Empty(t, resolved.Form)
}
