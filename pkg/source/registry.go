package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/user/mediaplay/pkg/ports"
)

// headSize is how many leading bytes are offered to openers for probing.
const headSize = 4096

// Registry selects a container backend for a locator.
type Registry struct {
	openers []ports.ContainerOpener
	client  *http.Client
}

// NewRegistry creates a registry with the given openers. Earlier openers win
// ties.
func NewRegistry(openers ...ports.ContainerOpener) *Registry {
	return &Registry{
		openers: openers,
		client:  http.DefaultClient,
	}
}

// Register adds an opener.
func (r *Registry) Register(o ports.ContainerOpener) {
	r.openers = append(r.openers, o)
}

// SetHTTPClient replaces the client used for http(s) locators.
func (r *Registry) SetHTTPClient(c *http.Client) {
	r.client = c
}

// Openers returns the registered openers.
func (r *Registry) Openers() []ports.ContainerOpener {
	return r.openers
}

// resource is a resolved locator.
type resource struct {
	r      io.Reader
	head   []byte
	closer io.Closer
}

func (res *resource) Close() error {
	if res == nil || res.closer == nil {
		return nil
	}
	return res.closer.Close()
}

// Open resolves the locator, picks the best scoring opener and opens the
// container. The returned opener name identifies the backend.
func (r *Registry) Open(locator string, opts ports.ContainerOptions) (ports.Container, string, error) {
	if len(r.openers) == 0 {
		return nil, "", fmt.Errorf("%w: %s: no container backends registered", ErrOpen, locator)
	}

	res, err := r.resolve(locator)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrOpen, locator, err)
	}

	var best ports.ContainerOpener
	bestScore := 0
	for _, o := range r.openers {
		if score := o.Probe(locator, res.headBytes()); score > bestScore {
			best, bestScore = o, score
		}
	}
	if best == nil {
		res.Close()
		return nil, "", fmt.Errorf("%w: %s: unrecognized container format", ErrOpen, locator)
	}

	var reader io.Reader
	if res != nil {
		reader = res.r
	}
	c, err := best.Open(locator, reader, opts)
	if err != nil {
		res.Close()
		if errors.Is(err, ports.ErrNoStreamInfo) {
			return nil, "", fmt.Errorf("%w: %s: %v", ErrStreamInfo, locator, err)
		}
		return nil, "", fmt.Errorf("%w: %s (%s): %v", ErrOpen, locator, best.Name(), err)
	}
	if res != nil && res.closer != nil {
		c = &closingContainer{Container: c, res: res}
	}
	return c, best.Name(), nil
}

func (res *resource) headBytes() []byte {
	if res == nil {
		return nil
	}
	return res.head
}

// resolve opens local files and http(s) URLs. Other schemes resolve to nil
// and are left to openers that handle the locator themselves.
func (r *Registry) resolve(locator string) (*resource, error) {
	u, err := url.Parse(locator)
	scheme := ""
	if err == nil && len(u.Scheme) > 1 {
		scheme = strings.ToLower(u.Scheme)
	}

	switch scheme {
	case "":
		return openFile(locator)
	case "file":
		return openFile(u.Path)
	case "http", "https":
		resp, err := r.client.Get(locator)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("http status %s", resp.Status)
		}
		br := bufio.NewReaderSize(resp.Body, headSize*4)
		head, _ := br.Peek(headSize)
		return &resource{r: br, head: head, closer: resp.Body}, nil
	default:
		return nil, nil
	}
}

func openFile(path string) (*resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	head := make([]byte, headSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return &resource{r: f, head: head[:n], closer: f}, nil
}

// closingContainer closes the resolved resource after the container.
type closingContainer struct {
	ports.Container
	res *resource
}

func (c *closingContainer) Close() error {
	err := c.Container.Close()
	if cerr := c.res.Close(); err == nil {
		err = cerr
	}
	return err
}
