package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/bft-labs/audioship/pkg/log"
)

// Result is the delivered outcome of an upload.
type Result struct {
	StatusCode int

	// Body is the response text; HasBody is false when the server sent no
	// body or one that is not decodable as text.
	Body    string
	HasBody bool

	Boundary  string
	BytesSent int64
	Duration  time.Duration
}

// Option configures a Client.
type Option func(*options)

type options struct {
	httpClient HTTPClient
	logger     log.Logger
	boundary   BoundaryFunc
}

// WithHTTPClient replaces the default transport.
func WithHTTPClient(c HTTPClient) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBoundaryFunc overrides boundary generation.
func WithBoundaryFunc(f BoundaryFunc) Option {
	return func(o *options) { o.boundary = f }
}

// Client uploads payloads. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient HTTPClient
	logger     log.Logger
	boundary   BoundaryFunc
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = newHTTPClient()
	}
	if o.logger == nil {
		o.logger = log.NewNoopLogger()
	}
	if o.boundary == nil {
		o.boundary = NewBoundary
	}

	return &Client{
		cfg:        cfg,
		httpClient: o.httpClient,
		logger:     o.logger,
		boundary:   o.boundary,
	}, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Upload sends p to the configured destination.
func (c *Client) Upload(ctx context.Context, p Payload) (Result, error) {
	return c.UploadTo(ctx, p, c.cfg.Destination)
}

// UploadTo sends p to destination. It performs at most one HTTP request and
// never retries. Every failure is returned as an *Error.
func (c *Client) UploadTo(ctx context.Context, p Payload, destination string) (Result, error) {
	u, err := ParseDestination(destination)
	if err != nil {
		return Result{}, c.fail(p, err)
	}
	if p.Empty() {
		return Result{}, c.fail(p, validationError("payload is empty"))
	}

	boundary, err := chooseBoundary(c.boundary, p.data)
	if err != nil {
		return Result{}, c.fail(p, err)
	}

	var body bytes.Buffer
	body.Grow(len(p.data) + 256)
	contentType, err := Encode(&body, p, c.cfg.FieldName, boundary)
	if err != nil {
		return Result{}, c.fail(p, asUploadError(err))
	}
	size := int64(body.Len())

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, u.String(), &body)
	if err != nil {
		return Result{}, c.fail(p, &Error{Kind: KindValidation, Message: "build request", Err: err})
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}

	c.logger.Debug("sending upload",
		log.String("file", p.filename),
		log.String("destination", u.Redacted()),
		log.Int64("bytes", size))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, c.fail(p, classifyTransportError(ctx, reqCtx, err))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errorSnippetBytes))
		resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		msg := fmt.Sprintf("server returned %d", resp.StatusCode)
		if snippet := errorSnippet(resp.Body); snippet != "" {
			msg += ": " + snippet
		}
		return Result{}, c.fail(p, &Error{Kind: KindServerRejected, StatusCode: resp.StatusCode, Message: msg})
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		if rerr := classifyReadError(ctx, reqCtx, err); rerr != nil {
			return Result{}, c.fail(p, rerr)
		}
		return Result{}, c.fail(p, &Error{Kind: KindMalformedResponse, StatusCode: resp.StatusCode, Message: "read response body", Err: err})
	}
	res := Result{
		StatusCode: resp.StatusCode,
		Boundary:   boundary,
		BytesSent:  size,
		Duration:   time.Since(start),
	}
	// The server accepted the upload; an oversized reply only loses the body.
	if int64(len(raw)) > c.cfg.MaxResponseBytes {
		c.logger.Warn("response body dropped",
			log.String("file", p.filename),
			log.Int64("limit", c.cfg.MaxResponseBytes))
	} else if len(raw) > 0 {
		res.Body, res.HasBody = decodeText(raw, resp.Header.Get("Content-Type"))
	}

	c.logger.Info("upload delivered",
		log.String("file", p.filename),
		log.Int("status", res.StatusCode),
		log.Int64("bytes", size),
		log.Duration("took", res.Duration))
	return res, nil
}

func (c *Client) fail(p Payload, err error) error {
	uerr := asUploadError(err)
	c.logger.Warn("upload failed",
		log.String("file", p.filename),
		log.String("kind", uerr.Kind.String()),
		log.Bool("retryable", uerr.Retryable()),
		log.Err(uerr))
	return uerr
}

func asUploadError(err error) *Error {
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr
	}
	return &Error{Kind: KindValidation, Message: "encode body", Err: err}
}

// classifyTransportError maps a failed round trip to a Kind. parent is the
// caller's context and reqCtx the per-request one carrying the timeout.
func classifyTransportError(parent, reqCtx context.Context, err error) *Error {
	if perr := parent.Err(); perr != nil {
		if errors.Is(perr, context.DeadlineExceeded) {
			return &Error{Kind: KindTimeout, Message: "caller deadline exceeded", Err: err}
		}
		return &Error{Kind: KindCanceled, Message: "upload canceled", Err: err}
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	return &Error{Kind: KindNetworkUnreachable, Message: "send request", Err: err}
}

// classifyReadError reports timeouts and cancellation that interrupt reading
// a 2xx body; other read failures are malformed responses.
func classifyReadError(parent, reqCtx context.Context, err error) *Error {
	if parent.Err() == nil && reqCtx.Err() == nil {
		return nil
	}
	return classifyTransportError(parent, reqCtx, err)
}
