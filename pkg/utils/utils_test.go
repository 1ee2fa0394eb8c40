package utils

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistinct(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, Distinct([]string{"b", "a", "b", "c", "a"}))
	assert.Equal(t, []int{1, 2}, Distinct([]int{1, 1, 2}))
	assert.Empty(t, Distinct[string](nil))
	assert.NotNil(t, Distinct[string](nil))
}

func TestRegexpCache(t *testing.T) {
	cache, err := NewRegexpCache(2)
	require.NoError(t, err)
	first, err := cache.Compile(`a+`)
	require.NoError(t, err)
	again, err := cache.Compile(`a+`)
	require.NoError(t, err)
	assert.Same(t, first, again)

	_, err = cache.Compile(`(`)
	assert.Error(t, err)
	assert.Equal(t, 1, cache.Len())

	_, _ = cache.Compile(`b+`)
	_, _ = cache.Compile(`c+`)
	assert.Equal(t, 2, cache.Len())
}

func TestTemplate(t *testing.T) {
	req := httptest.NewRequest("GET", "https://example.com/a/b.html", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	tmpl, err := NewTemplate("test", `{{ .Code }} {{ .Request.Host }}{{ .Request.Path }} {{ .Request.RemoteIP }} {{ "x" | upper }}`)
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, tmpl.Execute(&out, NewTemplateInject(req, map[string]any{"Code": 404})))
	assert.Equal(t, "404 example.com/a/b.html 10.0.0.1 X", out.String())

	_, err = NewTemplate("bad", `{{ .Code `)
	assert.Error(t, err)
	assert.Panics(t, func() { MustTemplate(`{{ end }}`) })
}

func TestGetRemoteIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.2:5555"
	assert.Equal(t, "192.168.1.2", GetRemoteIP(req))
	req.Header.Set("X-Real-IP", "172.16.0.1")
	assert.Equal(t, "172.16.0.1", GetRemoteIP(req))
}

func TestStatusWriter(t *testing.T) {
	recorder := httptest.NewRecorder()
	w := NewStatusWriter(recorder)
	assert.False(t, w.Committed())
	_, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.True(t, w.Committed())
	assert.Equal(t, 200, w.Status)
	assert.Equal(t, int64(5), w.Written)

	w = NewStatusWriter(httptest.NewRecorder())
	w.WriteHeader(404)
	w.WriteHeader(500)
	assert.Equal(t, 404, w.Status)
}
