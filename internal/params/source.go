package params

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// Source is a parameter transport.
type Source interface {
	// Open returns the JSON document and its size, or -1 if unknown.
	Open(ctx context.Context) (io.ReadCloser, int64, error)
	// String identifies the source in errors and logs.
	String() string
}

// FileSource reads parameters from a local JSON file.
type FileSource struct {
	Path string
}

// Open implements Source.
func (s FileSource) Open(_ context.Context) (io.ReadCloser, int64, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, errors.Wrapf(err, "stat %q", s.Path)
	}
	return f, info.Size(), nil
}

func (s FileSource) String() string { return s.Path }

// HTTPSource fetches parameters with a GET request.
type HTTPSource struct {
	URL    string
	Client *http.Client // http.DefaultClient if nil

	// Progress, if set, receives a progress bar while the body is read.
	Progress io.Writer
}

// Open implements Source. A non-2xx status is an error.
func (s HTTPSource) Open(ctx context.Context) (io.ReadCloser, int64, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "building request for %q", s.URL)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, 0, errors.Errorf("unexpected status %s", resp.Status)
	}
	if s.Progress == nil {
		return resp.Body, resp.ContentLength, nil
	}

	bar := progressbar.NewOptions64(resp.ContentLength,
		progressbar.OptionSetDescription("parameters"),
		progressbar.OptionSetWriter(s.Progress),
		progressbar.OptionShowBytes(true),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.ThemeUnicode),
	)
	return &progressBody{Reader: io.TeeReader(resp.Body, bar), body: resp.Body, bar: bar}, resp.ContentLength, nil
}

func (s HTTPSource) String() string { return s.URL }

// progressBody closes both the response body and its progress bar.
type progressBody struct {
	io.Reader
	body io.Closer
	bar  *progressbar.ProgressBar
}

func (p *progressBody) Close() error {
	_ = p.bar.Finish()
	return p.body.Close()
}

// ParseSource picks HTTPSource for http:// and https:// locations and
// FileSource for everything else.
func ParseSource(location string) Source {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return HTTPSource{URL: location}
	}
	return FileSource{Path: location}
}

// Decode reads a JSON object of key → number[][] from r.
// The document must be a single JSON value; anything but whitespace after it
// is an error.
func Decode(r io.Reader) (RawParameterSet, error) {
	var raw RawParameterSet
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decoding JSON")
	}
	if raw == nil {
		return nil, errors.New("document is null")
	}
	if tok, err := dec.Token(); err != io.EOF {
		if err != nil {
			return nil, errors.Wrap(err, "trailing data after JSON document")
		}
		return nil, errors.Errorf("trailing data after JSON document: %v", tok)
	}
	return raw, nil
}

// LoadFrom reads parameters from src with the default prefixes.
func LoadFrom(ctx context.Context, src Source) (Layers, error) {
	return DefaultLoader.LoadFrom(ctx, src)
}

// LoadFrom opens src once, decodes the document and builds the layer chain.
// Every failure is a *LoadError naming src.
func (l Loader) LoadFrom(ctx context.Context, src Source) (Layers, error) {
	start := time.Now()
	body, size, err := src.Open(ctx)
	if err != nil {
		return nil, &LoadError{Source: src.String(), Err: err}
	}
	defer func() { _ = body.Close() }()

	raw, err := Decode(body)
	if err != nil {
		return nil, &LoadError{Source: src.String(), Err: err}
	}
	layers, err := l.build(raw)
	if err != nil {
		return nil, &LoadError{Source: src.String(), Err: err}
	}

	if klog.V(1).Enabled() {
		sizeStr := "unknown size"
		if size >= 0 {
			sizeStr = humanize.Bytes(uint64(size))
		}
		klog.Infof("params: loaded %d layers (%s parameters, %s) from %s in %s",
			len(layers), humanize.Comma(int64(layers.NumParameters())), sizeStr, src, time.Since(start))
	}
	return layers, nil
}
