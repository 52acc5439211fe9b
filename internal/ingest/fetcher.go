package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/georoute/internal/logger"
	"github.com/MrSnakeDoc/georoute/internal/metrics"
	"github.com/MrSnakeDoc/georoute/internal/utils"
)

const (
	defaultUserAgent = "georoute"
	chunkSize = 32 << 10

	// maxPrealloc caps the buffer sized from an untrusted Content-Length
	maxPrealloc = 64 << 20

	// DefaultFetchTimeout bounds one attempt against one mirror
	DefaultFetchTimeout = 2 * time.Minute
	// DefaultSizeEstimate is used for progress when no Content-Length is declared
	DefaultSizeEstimate = 8 << 20
)

// Progress is reported after every chunk read from a mirror.
type Progress struct {
	Mirror     string
	Downloaded int64
	Total      int64
	Estimated  bool // Total is the fallback estimate, not a declared length
}

// FetchResult is the outcome of a successful conditional fetch.
type FetchResult struct {
	Mirror      string
	NotModified bool
	Body        []byte
	ETag        string
}

// FetcherOptions configures mirror access.
type FetcherOptions struct {
	Mirrors      []string
	Timeout      time.Duration
	SizeEstimate int64
	UserAgent    string
	Client       *http.Client
}

// Fetcher downloads the list from the first mirror that answers.
type Fetcher struct {
	client       *http.Client
	mirrors      []string
	timeout      time.Duration
	sizeEstimate int64
	userAgent    string
	log          logger.Logger
	metrics      *metrics.Metrics
}

// NewFetcher creates a fetcher over opts.Mirrors, tried in order
func NewFetcher(opts FetcherOptions, log logger.Logger, m *metrics.Metrics) *Fetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}
	if opts.SizeEstimate <= 0 {
		opts.SizeEstimate = DefaultSizeEstimate
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Fetcher{
		client:       client,
		mirrors:      append([]string(nil), opts.Mirrors...),
		timeout:      opts.Timeout,
		sizeEstimate: opts.SizeEstimate,
		userAgent:    opts.UserAgent,
		log:          log,
		metrics:      m,
	}
}

// Fetch tries each mirror in order with etag as validator. A 304 from any
// mirror ends the walk. The returned error joins every mirror failure.
func (f *Fetcher) Fetch(ctx context.Context, etag string, onProgress func(Progress)) (*FetchResult, error) {
	if len(f.mirrors) == 0 {
		return nil, &NetworkError{Mirror: "-", Err: errors.New("no mirrors configured")}
	}

	var errs []error
	for _, mirror := range f.mirrors {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res, err := f.fetchOne(ctx, mirror, etag, onProgress)
		if err == nil {
			return res, nil
		}

		f.metrics.RecordMirrorFailure(mirror)
		f.log.Warn("mirror failed",
			logger.String("mirror", mirror),
			logger.Error(err))
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("all mirrors failed: %w", errors.Join(errs...))
}

func (f *Fetcher) fetchOne(ctx context.Context, mirror, etag string, onProgress func(Progress)) (*FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mirror, nil)
	if err != nil {
		return nil, &NetworkError{Mirror: mirror, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Mirror: mirror, Err: err}
	}
	defer utils.Close(resp.Body)

	switch resp.StatusCode {
	case http.StatusNotModified:
		return &FetchResult{Mirror: mirror, NotModified: true, ETag: etag}, nil
	case http.StatusOK:
	default:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &NetworkError{Mirror: mirror, Status: resp.StatusCode}
	}

	body, err := f.stream(resp, mirror, onProgress)
	if err != nil {
		return nil, &NetworkError{Mirror: mirror, Status: resp.StatusCode, Err: err}
	}

	return &FetchResult{
		Mirror: mirror,
		Body:   body,
		ETag:   resp.Header.Get("ETag"),
	}, nil
}

// stream reads the body chunk by chunk, reporting progress after each one.
// Partial bodies are never returned.
func (f *Fetcher) stream(resp *http.Response, mirror string, onProgress func(Progress)) ([]byte, error) {
	total, estimated := resp.ContentLength, false
	if total <= 0 {
		total, estimated = f.sizeEstimate, true
	}

	var buf bytes.Buffer
	if !estimated {
		buf.Grow(int(min(total, maxPrealloc)))
	}

	chunk := make([]byte, chunkSize)
	var downloaded int64
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			downloaded += int64(n)
			f.metrics.AddDownloadedBytes(n)
			if onProgress != nil {
				onProgress(Progress{
					Mirror:     mirror,
					Downloaded: downloaded,
					Total:      total,
					Estimated:  estimated,
				})
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read body after %d bytes: %w", downloaded, err)
		}
	}

	if !estimated && downloaded != total {
		return nil, fmt.Errorf("short body: got %d of %d bytes", downloaded, total)
	}
	return buf.Bytes(), nil
}
