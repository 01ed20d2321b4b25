package utils

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// APIAddrEnv overrides the daemon address given on the command line.
const APIAddrEnv = "PKTPROBE_API_ADDR"

type reqOpts struct {
	addr        string
	method      string
	query       string
	body        io.Reader
	contentType string
	err         error
}

type reqOpt func(opts *reqOpts)

func WithReqAddr(addr string) reqOpt {
	return func(opts *reqOpts) {
		if !strings.HasPrefix(addr, "http") {
			opts.addr = "http://" + addr
		} else {
			opts.addr = addr
		}
	}
}

func WithReqMethod(method string) reqOpt {
	return func(opts *reqOpts) { opts.method = method }
}

func WithReqQuery(s string) reqOpt {
	return func(opts *reqOpts) {
		if opts.query != "" {
			opts.query = fmt.Sprintf("%s&%s", opts.query, s)
		} else {
			opts.query = s
		}
	}
}

func WithReqQueryKV(k string, v any) reqOpt {
	return WithReqQuery(fmt.Sprintf("%s=%v", k, v))
}

func WithReqBody(body io.Reader) reqOpt {
	return func(opts *reqOpts) { opts.body = body }
}

// WithReqJSON sends v encoded as JSON.
func WithReqJSON(v any) reqOpt {
	return func(opts *reqOpts) {
		data, err := json.Marshal(v)
		if err != nil {
			opts.err = errors.Wrap(err, "json.Marshal")
			return
		}
		opts.body = bytes.NewReader(data)
		opts.contentType = "application/json"
	}
}

type BodyToValue[T any] func(body []byte) (*T, error)

func NewHTTPRequestMessage[T any](uri string, b2v BodyToValue[T], opts ...reqOpt) (*T, error) {
	resp, err := NewHTTPRequest(uri, opts...)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return nil, err
	}
	VerbosePrintln("")
	VerbosePrintln(addPrefixToHTTPLine(string(data), "< "))

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return b2v(data)
}

func NewHTTPRequest(uri string, opts ...reqOpt) (*http.Response, error) {
	var o reqOpts
	for _, opt := range opts {
		opt(&o)
	}
	if o.method == "" {
		o.method = http.MethodGet
	}

	if o.err != nil {
		return nil, o.err
	}

	if addr := os.Getenv(APIAddrEnv); addr != "" {
		WithReqAddr(addr)(&o)
	}
	if o.addr == "" {
		return nil, errors.New("empty api address")
	}

	return newHTTPReq(uri, &o)
}

func newHTTPReq(reqURI string, opts *reqOpts) (*http.Response, error) {
	reqURI, err := url.JoinPath(opts.addr, reqURI)
	if err != nil {
		return nil, err
	}

	reqURL := reqURI
	if opts.query != "" {
		reqURL = fmt.Sprintf("%s?%s", reqURI, opts.query)
	}
	req, err := http.NewRequest(opts.method, reqURL, opts.body)
	if err != nil {
		return nil, err
	}
	if opts.contentType != "" {
		req.Header.Set("Content-Type", opts.contentType)
	}

	data, err := httputil.DumpRequest(req, true)
	if err != nil {
		return nil, err
	}
	VerbosePrintln(addPrefixToHTTPLine(string(data), "> "))

	client := http.Client{
		Transport: &http.Transport{
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
			DisableKeepAlives: true,
		},
		Timeout: time.Second * 10,
	}
	resp, err := client.Do(req)
	return resp, errors.Wrap(err, "http.Do")
}

func addPrefixToHTTPLine(s, prefix string) string {
	lines := strings.Split(s, "\r\n")
	for k, line := range lines {
		lines[k] = prefix + line
	}
	return strings.Join(lines, "\r\n")
}
