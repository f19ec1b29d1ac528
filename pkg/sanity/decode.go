package sanity

import (
	"encoding/json"
	"errors"

	"github.com/samvad-hq/sanity-query/pkg/httpclient"
)

var errNilResponse = errors.New("nil response")

// Result is the envelope returned by the query endpoint.
type Result struct {
	Ms     int             `json:"ms"`
	Query  string          `json:"query"`
	Result json.RawMessage `json:"result"`
}

// GetJSON decodes the whole response body as a generic JSON value.
func GetJSON(resp httpclient.Response) (any, error) {
	if resp == nil {
		return nil, &DecodeError{Err: errNilResponse}
	}
	var v any
	if err := json.Unmarshal(resp.Body(), &v); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return v, nil
}

// DecodeResult decodes the response body into a Result. A missing "result" field decodes as JSON null.
func DecodeResult(resp httpclient.Response) (*Result, error) {
	if resp == nil {
		return nil, &DecodeError{Err: errNilResponse}
	}
	var res Result
	if err := json.Unmarshal(resp.Body(), &res); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if len(res.Result) == 0 {
		res.Result = json.RawMessage("null")
	}
	return &res, nil
}

// CheckStatus returns a *StatusError for any non-2xx response.
func CheckStatus(resp httpclient.Response) error {
	if resp == nil {
		return &StatusError{Body: "<no response>"}
	}
	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}
	return newStatusError(code, resp.Body())
}
