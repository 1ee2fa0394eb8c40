package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifyPage(t *testing.T) {
	assert.Equal(t, "list", IdentifyPage("/product/list"))
	assert.Equal(t, "details", IdentifyPage("/product/details/42"))
	assert.Equal(t, "cart", IdentifyPage("/shoppingcart"))
	// list wins over details when both appear
	assert.Equal(t, "list", IdentifyPage("/details/list"))
	assert.Equal(t, "list", IdentifyPage("/wishlist.html"))
	assert.Equal(t, "", IdentifyPage("/"))
	assert.Equal(t, "", IdentifyPage("/about.html"))
}

func TestNewContext(t *testing.T) {
	c := NewContext("Shop.Example.com:8080", "/list.html")
	assert.Equal(t, "shop.example.com", c.Host)
	assert.Equal(t, "/list.html", c.Path)
	assert.Equal(t, "list", c.Page)

	c = NewContext("example.com", "/")
	assert.Equal(t, "example.com", c.Host)
	assert.Equal(t, "", c.Page)
}

func parseMain(t *testing.T, data string) *MainConfig {
	value, err := ParseYAML([]byte(data))
	require.NoError(t, err)
	main, err := DecodeMainConfig(value)
	require.NoError(t, err)
	return main
}

func TestMainConfigResolve(t *testing.T) {
	main := parseMain(t, `
datasource:
  hosts:
    shop.example.com: [a.yaml, b.yaml]
    other.example.com: c.yaml
  urls:
    /list.html: [b.yaml, d.yaml]
  pages:
    list: [a.yaml, e.yaml]
    cart: f.yaml
`)
	assert.Equal(t, []string{"a.yaml", "b.yaml", "d.yaml", "e.yaml"},
		main.Resolve(NewContext("shop.example.com", "/list.html")))
	assert.Equal(t, []string{"c.yaml"},
		main.Resolve(NewContext("other.example.com", "/index.html")))
	assert.Equal(t, []string{"f.yaml"},
		main.Resolve(NewContext("unknown.example.com", "/cart")))
	assert.Empty(t, main.Resolve(NewContext("unknown.example.com", "/")))
}

func TestMainConfigPartialDatasource(t *testing.T) {
	main := parseMain(t, `
datasource:
  urls:
    /: home.yaml
`)
	assert.Equal(t, []string{"home.yaml"}, main.Resolve(NewContext("example.com", "/")))
	assert.Empty(t, main.Resolve(NewContext("example.com", "/list")))

	main = parseMain(t, `datasource: {}`)
	assert.Empty(t, main.Resolve(NewContext("example.com", "/list")))
}

func TestSourcesDecode(t *testing.T) {
	main := parseMain(t, `
datasource:
  hosts:
    a.com: one.yaml
    b.com: [one.yaml, "", two.yaml, null]
    c.com:
    d.com: "  "
`)
	hosts := main.Datasource.Hosts
	assert.Equal(t, Sources{"one.yaml"}, hosts["a.com"])
	assert.Equal(t, Sources{"one.yaml", "two.yaml"}, hosts["b.com"])
	assert.Empty(t, hosts["c.com"])
	assert.Empty(t, hosts["d.com"])

	// malformed entries are dropped one by one, the rest still resolve
	main = parseMain(t, `
datasource:
  hosts:
    a.com: {nested: true}
    b.com: [one.yaml, {nested: true}, [two.yaml], three.yaml]
  pages:
    list: list.yaml
`)
	assert.Empty(t, main.Datasource.Hosts["a.com"])
	assert.Equal(t, Sources{"one.yaml", "three.yaml"}, main.Datasource.Hosts["b.com"])
	assert.Equal(t, []string{"one.yaml", "three.yaml", "list.yaml"},
		main.Resolve(NewContext("b.com", "/product/list.html")))
}

func TestDecodeMainConfigInvalid(t *testing.T) {
	_, err := DecodeMainConfig([]any{"a"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = DecodeMainConfig("datasource")
	assert.ErrorIs(t, err, ErrValidation)

	value, err := ParseYAML([]byte(`other: {}`))
	require.NoError(t, err)
	_, err = DecodeMainConfig(value)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "datasource")
}
