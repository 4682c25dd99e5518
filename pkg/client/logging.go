package client

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"github.com/charmbracelet/log"
)

var (
	sensitiveHeader = regexp.MustCompile(`(?i)authorization|token|key`)
	sensitiveField  = regexp.MustCompile(`(?i)password|secret|token|key|credential`)
)

/*
Logging logs one line per call: start, then success or error with duration.
Header values under sensitive keys and string fields under sensitive names
are masked before they reach the log.
*/
func Logging(logger *log.Logger) Middleware {
	return func(next Transport) Transport {
		return func(ctx context.Context, req *Request) (*Response, error) {
			start := time.Now()

			logger.Debug("rpc call",
				"method", req.Method,
				"headers", maskHeaders(req.Headers),
				"params", maskParams(req.Params),
			)

			resp, err := next(ctx, req)
			elapsed := time.Since(start)

			if err != nil {
				status := 0
				if resp != nil {
					status = resp.Status
				}
				logger.Error("rpc call failed",
					"method", req.Method, "status", status,
					"duration", elapsed, "error", err)
				return resp, err
			}

			logger.Info("rpc call ok",
				"method", req.Method, "status", resp.Status, "duration", elapsed)

			return resp, nil
		}
	}
}

func maskHeaders(headers map[string][]string) map[string]string {
	masked := make(map[string]string, len(headers))

	for key, values := range headers {
		value := ""
		if len(values) > 0 {
			value = values[0]
		}
		if sensitiveHeader.MatchString(key) {
			value = mask(value)
		}
		masked[key] = value
	}

	return masked
}

// maskParams renders params as JSON with sensitive fields masked at any
// depth.  Anything that fails to marshal is logged as its type only.
func maskParams(params any) string {
	if params == nil {
		return ""
	}

	raw, err := json.Marshal(params)

	if err != nil {
		return "<unserializable>"
	}

	var decoded any

	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "<unserializable>"
	}

	masked, err := json.Marshal(maskValue(decoded, false))

	if err != nil {
		return "<unserializable>"
	}

	return string(masked)
}

func maskValue(value any, sensitive bool) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			out[key] = maskValue(inner, sensitiveField.MatchString(key))
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = maskValue(inner, sensitive)
		}
		return out
	case string:
		if sensitive {
			return mask(v)
		}
		return v
	default:
		return v
	}
}

// mask keeps the first and last four characters, enough to correlate values
// across logs without exposing them.
func mask(value string) string {
	if len(value) <= 8 {
		return "****"
	}

	return value[:4] + "****" + value[len(value)-4:]
}
