package actions

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"github.com/pkg/errors"

	"gopkg.d7z.net/page-overlay/pkg/core"
	"gopkg.d7z.net/page-overlay/pkg/utils"
)

// Replacer substitutes every match of pattern in input.
type Replacer interface {
	ReplaceAll(input, pattern, replacement string) (string, error)
}

// ActionInstAlter rewrites the serialized body and rebuilds it from the
// result. Every node under body is recreated, even when nothing matched, so
// state that markup cannot express is lost. newValue must be present but may
// be empty, in which case every match is deleted.
var ActionInstAlter core.ActionInstance = func(config core.Params) (core.ActionHandler, error) {
	var param struct {
		Engine string `json:"engine"`
		Cache  int    `json:"cache"`
	}
	if err := config.Unmarshal(&param); err != nil {
		return nil, err
	}
	replacer, err := NewReplacer(param.Engine, param.Cache)
	if err != nil {
		return nil, err
	}
	return func(doc core.Document, action *core.Action) error {
		if err := action.Require("oldValue"); err != nil {
			return err
		}
		if !action.Present("newValue") {
			return core.ValidationErrorf("alter action missing 'newValue'")
		}
		body, err := doc.BodyMarkup()
		if err != nil {
			return err
		}
		altered, err := replacer.ReplaceAll(body, action.OldValue, action.NewValue)
		if err != nil {
			return err
		}
		return doc.SetBodyMarkup(altered)
	}, nil
}

// NewReplacer returns the pattern engine named by engine: "ecmascript"
// (default) or "re2". cacheSize only applies to re2.
func NewReplacer(engine string, cacheSize int) (Replacer, error) {
	switch strings.ToLower(engine) {
	case "", "ecmascript", "js":
		return &ECMAScriptReplacer{}, nil
	case "re2":
		cache, err := utils.NewRegexpCache(cacheSize)
		if err != nil {
			return nil, err
		}
		return &RE2Replacer{cache: cache}, nil
	default:
		return nil, errors.Errorf("unknown alter engine: %s", engine)
	}
}

// RE2Replacer uses Go regular expressions, which have no lookaround or
// backreferences. The replacement is written in String.prototype.replace
// syntax ($$, $&, $n) and translated before expansion. $` and $' have no
// equivalent and are rejected.
type RE2Replacer struct {
	cache *utils.RegexpCache
}

func (r *RE2Replacer) ReplaceAll(input, pattern, replacement string) (string, error) {
	re, err := r.cache.Compile(pattern)
	if err != nil {
		rel := core.ValidationErrorf("invalid pattern %q", pattern)
		rel.Cause = err
		return "", rel
	}
	template, err := expandTemplate(re, replacement)
	if err != nil {
		return "", err
	}
	return re.ReplaceAllString(input, template), nil
}

// expandTemplate rewrites an ECMAScript replacement string into a
// regexp.Expand template for re. A group reference takes as many digits as
// still name an existing group; anything else after $ stays literal.
func expandTemplate(re *regexp.Regexp, replacement string) (string, error) {
	var b strings.Builder
	groups := re.NumSubexp()
	for i := 0; i < len(replacement); i++ {
		c := replacement[i]
		if c != '$' {
			b.WriteByte(c)
			continue
		}
		if i+1 == len(replacement) {
			b.WriteString("$$")
			continue
		}
		switch next := replacement[i+1]; next {
		case '$':
			b.WriteString("$$")
			i++
		case '&':
			b.WriteString("${0}")
			i++
		case '`', '\'':
			return "", core.ValidationErrorf("replacement %q: $%c is not supported by the re2 engine", replacement, next)
		default:
			n, j := 0, i+1
			for j < len(replacement) && isDigit(replacement[j]) {
				m := n*10 + int(replacement[j]-'0')
				if m > groups {
					break
				}
				n, j = m, j+1
			}
			if n == 0 {
				b.WriteString("$$")
				continue
			}
			b.WriteString("${" + strconv.Itoa(n) + "}")
			i = j - 1
		}
	}
	return b.String(), nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

const ecmaScriptReplace = `input.replace(new RegExp(pattern, "g"), replacement)`

// ECMAScriptReplacer evaluates String.prototype.replace with a global RegExp,
// for patterns written against browser regular expression syntax.
type ECMAScriptReplacer struct{}

func (ECMAScriptReplacer) ReplaceAll(input, pattern, replacement string) (string, error) {
	vm := goja.New()
	for key, value := range map[string]string{
		"input":       input,
		"pattern":     pattern,
		"replacement": replacement,
	} {
		if err := vm.Set(key, value); err != nil {
			return "", err
		}
	}
	result, err := vm.RunString(ecmaScriptReplace)
	if err != nil {
		var exception *goja.Exception
		if errors.As(err, &exception) {
			rel := core.ValidationErrorf("invalid pattern %q", pattern)
			rel.Cause = err
			return "", rel
		}
		return "", err
	}
	return result.String(), nil
}
