package core

import (
	"regexp"
	"strings"

	"gopkg.d7z.net/page-overlay/pkg/utils"
)

// page markers, tested in this order
var pageMarkers = []string{"list", "details", "cart"}

// IdentifyPage names the kind of page served at path, or returns "" when no
// marker is contained in it. Containment is plain substring matching.
func IdentifyPage(path string) string {
	for _, marker := range pageMarkers {
		if strings.Contains(path, marker) {
			return marker
		}
	}
	return ""
}

// Context is what a request exposes for choosing configuration resources.
type Context struct {
	Host string
	Path string
	Page string
}

var portExp = regexp.MustCompile(`:\d+$`)

func NewContext(host, path string) Context {
	return Context{
		Host: portExp.ReplaceAllString(strings.ToLower(host), ""),
		Path: path,
		Page: IdentifyPage(path),
	}
}

// Resolve lists the resource identifiers that apply to ctx: host entries
// first, then the path, then the page, each identifier once at its first
// position.
func (m *MainConfig) Resolve(ctx Context) []string {
	if m == nil || m.Datasource == nil {
		return []string{}
	}
	ds := m.Datasource
	result := make([]string, 0)
	if ds.Hosts != nil {
		result = append(result, ds.Hosts[ctx.Host]...)
	}
	if ds.URLs != nil {
		result = append(result, ds.URLs[ctx.Path]...)
	}
	if ds.Pages != nil && ctx.Page != "" {
		result = append(result, ds.Pages[ctx.Page]...)
	}
	return utils.Distinct(result)
}
