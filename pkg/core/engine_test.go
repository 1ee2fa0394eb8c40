package core

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(files map[string]string, opts ...EngineOption) *Engine {
	return NewEngine(
		NewLoader(memoryFetcher(files), nil, "config/"),
		NewPipeline(recordHandlers()),
		opts...,
	)
}

func TestLoaderErrors(t *testing.T) {
	loader := NewLoader(memoryFetcher(map[string]string{
		"config/ok.yaml":  `actions: []`,
		"config/bad.yaml": "actions: [\n  - {type: mark",
	}), nil, "config/")
	assert.Equal(t, "config/a.yaml", loader.Path("a.yaml"))
	assert.Equal(t, "config/a.yaml", loader.Path("/a.yaml"))
	assert.Equal(t, "a.yaml", NewLoader(nil, nil, "").Path("a.yaml"))

	value, err := loader.Load(context.Background(), "ok.yaml")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"actions": []any{}}, value)

	_, err = loader.Load(context.Background(), "absent.yaml")
	assert.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, "absent.yaml", err.(*Error).Resource)

	_, err = loader.Load(context.Background(), "bad.yaml")
	assert.ErrorIs(t, err, ErrParse)
}

func TestEngineFallbackToDefaults(t *testing.T) {
	engine := newTestEngine(map[string]string{
		"config/config1.yaml": `actions: [{type: mark, selector: one}]`,
		"config/config2.yaml": `actions: [{type: mark, selector: two}]`,
	}, WithMainConfig("mainConfig.yaml"), WithDefaultResources("config1.yaml", "config2.yaml"), WithSequential(true))
	doc := &recordDocument{}
	result := engine.Apply(context.Background(), doc, NewContext("example.com", "/"))
	require.NoError(t, result.Main)
	assert.Equal(t, []string{"config1.yaml", "config2.yaml"}, result.Resources)
	assert.Equal(t, []string{"one", "two"}, doc.Ops())
	assert.Equal(t, 2, result.Applied())
}

func TestEngineMainConfigRouting(t *testing.T) {
	engine := newTestEngine(map[string]string{
		"config/mainConfig.yaml": `
datasource:
  hosts:
    shop.example.com: [host.yaml]
  urls:
    /list.html: [url.yaml, host.yaml]
  pages:
    list: page.yaml
`,
		"config/host.yaml":    `actions: [{type: mark, selector: host}]`,
		"config/url.yaml":     `actions: [{type: mark, selector: url}]`,
		"config/page.yaml":    `actions: [{type: mark, selector: page}]`,
		"config/config1.yaml": `actions: [{type: mark, selector: default}]`,
	}, WithMainConfig("mainConfig.yaml"), WithDefaultResources("config1.yaml"), WithSequential(true))

	doc := &recordDocument{}
	result := engine.Apply(context.Background(), doc, NewContext("shop.example.com:443", "/list.html"))
	assert.Equal(t, []string{"host.yaml", "url.yaml", "page.yaml"}, result.Resources)
	assert.Equal(t, []string{"host", "url", "page"}, doc.Ops())

	doc = &recordDocument{}
	result = engine.Apply(context.Background(), doc, NewContext("nobody.example.com", "/about.html"))
	assert.Empty(t, result.Resources)
	assert.Empty(t, doc.Ops())
}

func TestEngineBrokenMainConfig(t *testing.T) {
	for name, main := range map[string]string{
		"parse":      "datasource: [\n",
		"datasource": `other: {}`,
		"shape":      `- a.yaml`,
	} {
		t.Run(name, func(t *testing.T) {
			engine := newTestEngine(map[string]string{
				"config/mainConfig.yaml": main,
				"config/config1.yaml":    `actions: [{type: mark, selector: default}]`,
			}, WithMainConfig("mainConfig.yaml"), WithDefaultResources("config1.yaml"))
			doc := &recordDocument{}
			result := engine.Apply(context.Background(), doc, NewContext("example.com", "/"))
			require.Error(t, result.Main)
			assert.Equal(t, "mainConfig.yaml", result.Main.(*Error).Resource)
			assert.Empty(t, result.Resources)
			assert.Empty(t, doc.Ops())
		})
	}
}

func TestEngineIsolatesResources(t *testing.T) {
	engine := newTestEngine(map[string]string{
		"config/good.yaml":    `actions: [{type: mark, selector: good}, {type: fail}]`,
		"config/broken.yaml":  "actions: [\n",
		"config/invalid.yaml": `actions: nope`,
	}, WithDefaultResources("absent.yaml", "broken.yaml", "invalid.yaml", "good.yaml"))
	doc := &recordDocument{}
	result := engine.Apply(context.Background(), doc, NewContext("example.com", "/"))
	require.Len(t, result.Results, 4)
	assert.ErrorIs(t, result.Results[0].Err, ErrLoad)
	assert.ErrorIs(t, result.Results[1].Err, ErrParse)
	assert.ErrorIs(t, result.Results[2].Err, ErrValidation)
	require.NoError(t, result.Results[3].Err)
	assert.Equal(t, 1, result.Results[3].Report.Applied())
	assert.Len(t, result.Results[3].Report.Failed(), 1)
	assert.Equal(t, []string{"good"}, doc.Ops())
	assert.Equal(t, 1, result.Applied())
}

func TestEngineNoMainConfig(t *testing.T) {
	engine := newTestEngine(map[string]string{
		"config/mainConfig.yaml": `datasource: {urls: {/: [x.yaml]}}`,
		"config/config1.yaml":    `actions: [{type: mark, selector: one}]`,
	}, WithDefaultResources("config1.yaml"))
	doc := &recordDocument{}
	result := engine.Apply(context.Background(), doc, NewContext("example.com", "/"))
	assert.Equal(t, []string{"config1.yaml"}, result.Resources)
	assert.Equal(t, []string{"one"}, doc.Ops())
}

// gatedFetcher blocks each path until its gate is closed.
type gatedFetcher struct {
	files map[string]string
	gates map[string]chan struct{}
}

func (g *gatedFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	if gate, ok := g.gates[path]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	data, ok := g.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(data), nil
}

func TestEngineCompletionOrder(t *testing.T) {
	fetcher := &gatedFetcher{
		files: map[string]string{
			"slow.yaml": `actions: [{type: mark, selector: slow1}, {type: mark, selector: slow2}]`,
			"fast.yaml": `actions: [{type: mark, selector: fast1}, {type: mark, selector: fast2}]`,
		},
		gates: map[string]chan struct{}{"slow.yaml": make(chan struct{})},
	}
	engine := NewEngine(NewLoader(fetcher, nil, ""), NewPipeline(recordHandlers()))
	doc := &recordDocument{}
	tasks := engine.Start(context.Background(), doc, []string{"slow.yaml", "fast.yaml"})
	require.Len(t, tasks, 2)
	tasks[1].Wait()
	assert.Equal(t, []string{"fast1", "fast2"}, doc.Ops())
	close(fetcher.gates["slow.yaml"])
	tasks[0].Wait()
	// one resource's actions are never interleaved with another's
	assert.Equal(t, []string{"fast1", "fast2", "slow1", "slow2"}, doc.Ops())
}

func TestEngineSequential(t *testing.T) {
	fetcher := &gatedFetcher{
		files: map[string]string{
			"slow.yaml": `actions: [{type: mark, selector: slow}]`,
			"fast.yaml": `actions: [{type: mark, selector: fast}]`,
		},
		gates: map[string]chan struct{}{"slow.yaml": make(chan struct{})},
	}
	engine := NewEngine(NewLoader(fetcher, nil, ""), NewPipeline(recordHandlers()), WithSequential(true))
	doc := &recordDocument{}
	tasks := engine.Start(context.Background(), doc, []string{"slow.yaml", "fast.yaml"})
	select {
	case <-tasks[1].Done():
		t.Fatal("later resource dispatched before the earlier one")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Empty(t, doc.Ops())
	close(fetcher.gates["slow.yaml"])
	tasks[1].Wait()
	assert.Equal(t, []string{"slow", "fast"}, doc.Ops())
}

func TestEngineCancel(t *testing.T) {
	fetcher := &gatedFetcher{
		files: map[string]string{
			"slow.yaml": `actions: [{type: mark, selector: slow}]`,
			"fast.yaml": `actions: [{type: mark, selector: fast}]`,
		},
		gates: map[string]chan struct{}{"slow.yaml": make(chan struct{})},
	}
	engine := NewEngine(NewLoader(fetcher, nil, ""), NewPipeline(recordHandlers()))
	doc := &recordDocument{}
	tasks := engine.Start(context.Background(), doc, []string{"slow.yaml", "fast.yaml"})
	tasks[0].Cancel()
	slow := tasks[0].Wait()
	fast := tasks[1].Wait()
	assert.ErrorIs(t, slow.Err, ErrLoad)
	assert.ErrorIs(t, slow.Err, context.Canceled)
	require.NoError(t, fast.Err)
	assert.Equal(t, []string{"fast"}, doc.Ops())
}

func TestEngineConcurrentDocuments(t *testing.T) {
	engine := newTestEngine(map[string]string{
		"config/a.yaml": `actions: [{type: mark, selector: a}]`,
		"config/b.yaml": `actions: [{type: mark, selector: b}]`,
	}, WithDefaultResources("a.yaml", "b.yaml"))
	var wg sync.WaitGroup
	docs := make([]*recordDocument, 16)
	for i := range docs {
		docs[i] = &recordDocument{}
		wg.Add(1)
		go func(doc *recordDocument) {
			defer wg.Done()
			engine.Apply(context.Background(), doc, NewContext("example.com", "/"))
		}(docs[i])
	}
	wg.Wait()
	for _, doc := range docs {
		assert.ElementsMatch(t, []string{"a", "b"}, doc.Ops())
	}
}
