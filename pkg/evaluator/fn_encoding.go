package evaluator

import (
	"encoding/base64"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/querata/querata/pkg/types"
)

func fnBase64Encode(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0].(string))), nil
}

func fnBase64Decode(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(args[0].(string))
	if err != nil {
		return nil, types.NewError(types.ErrEncodeURI,
			"malformed input to the base64decode function", -1).WithValue(args[0]).WithCause(err)
	}
	return string(decoded), nil
}

// uriUnreserved are the characters encodeUrlComponent leaves as-is; encodeUrl
// additionally passes the URI delimiters through.
const (
	uriUnreserved = "-_.!~*'()"
	uriDelimiters = ";/?:@&=+$,#"
)

func escapeURI(s string, passthrough string) (string, error) {
	if !utf8.ValidString(s) {
		return "", types.NewError(types.ErrEncodeURI,
			"malformed input to the URL encoding function", -1).WithValue(s)
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case strings.IndexByte(passthrough, c) >= 0:
			b.WriteByte(c)
		default:
			const hex = "0123456789ABCDEF"
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0xf])
		}
	}
	return b.String(), nil
}

func fnEncodeURLComponent(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	return escapeURI(args[0].(string), uriUnreserved)
}

func fnEncodeURL(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	return escapeURI(args[0].(string), uriUnreserved+uriDelimiters)
}

func unescapeURI(s string) (string, error) {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return "", types.NewError(types.ErrEncodeURI,
			"malformed input to the URL decoding function", -1).WithValue(s).WithCause(err)
	}
	return decoded, nil
}

func fnDecodeURLComponent(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	return unescapeURI(args[0].(string))
}

func fnDecodeURL(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	return unescapeURI(args[0].(string))
}
