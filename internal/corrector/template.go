package corrector

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var tokenPattern = regexp.MustCompile(`\$\{(.+?)\}`)

// expandRequest replaces ${n} with the n-th argument and ${%n} with its URL
// encoded form. Out of range or malformed tokens expand to nothing.
func expandRequest(text string, args []string) string {
	return tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		expr := strings.TrimSpace(tokenPattern.FindStringSubmatch(token)[1])
		encode := strings.HasPrefix(expr, "%")
		expr = strings.TrimPrefix(expr, "%")

		idx, err := strconv.Atoi(expr)
		if err != nil || idx < 0 || idx >= len(args) {
			return ""
		}
		if encode {
			return url.QueryEscape(args[idx])
		}
		return args[idx]
	})
}

// responseValues resolves response template names.
type responseValues struct {
	body    string
	headers map[string]string
	json    bool
}

// expandResponse replaces ${body}, ${h.Name} and, for JSON responses,
// ${j.path} where path is a gjson path into the body. A leading % URL decodes
// the value.
func expandResponse(text string, values responseValues) string {
	return tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		expr := strings.TrimSpace(tokenPattern.FindStringSubmatch(token)[1])
		decode := strings.HasPrefix(expr, "%")
		expr = strings.TrimPrefix(expr, "%")

		value := values.lookup(expr)
		if !decode {
			return value
		}
		decoded, err := url.QueryUnescape(value)
		if err != nil {
			return "[ERROR: " + err.Error() + "]"
		}
		return decoded
	})
}

func (v responseValues) lookup(expr string) string {
	switch {
	case expr == "body":
		return v.body
	case strings.HasPrefix(expr, "h."):
		return v.headers[strings.ToLower(strings.TrimPrefix(expr, "h."))]
	case strings.HasPrefix(expr, "j.") && v.json:
		result := gjson.Get(v.body, strings.TrimPrefix(expr, "j."))
		if !result.Exists() {
			return ""
		}
		if result.IsObject() || result.IsArray() {
			return result.Raw
		}
		return result.String()
	default:
		return ""
	}
}
