package gocbsessx

import (
	"errors"
	"net"
	"strconv"

	"github.com/couchbaselabs/gocbconnstr/v2"
)

// Endpoint is a single bootstrap candidate.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Origin is the ordered, cursored list of bootstrap candidates a
// session walks while trying to establish a connection.  It is only
// ever touched from the session's connect path.
type Origin struct {
	endpoints []Endpoint
	next      int
}

func NewOrigin(endpoints []Endpoint) (*Origin, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("at least one bootstrap endpoint must be specified")
	}

	return &Origin{
		endpoints: endpoints,
	}, nil
}

// OriginFromConnStr builds an origin from a couchbase:// connection
// string, returning the bucket name embedded in the string (if any).
func OriginFromConnStr(connStr string) (*Origin, string, error) {
	baseSpec, err := gocbconnstr.Parse(connStr)
	if err != nil {
		return nil, "", err
	}

	spec, err := gocbconnstr.Resolve(baseSpec)
	if err != nil {
		return nil, "", err
	}

	var endpoints []Endpoint
	for _, specHost := range spec.MemdHosts {
		endpoints = append(endpoints, Endpoint{
			Host: specHost.Host,
			Port: specHost.Port,
		})
	}

	origin, err := NewOrigin(endpoints)
	if err != nil {
		return nil, "", err
	}

	return origin, spec.Bucket, nil
}

// Exhausted reports whether the cursor has walked past the last candidate.
func (o *Origin) Exhausted() bool {
	return o.next >= len(o.endpoints)
}

// Restart resets the cursor to the first candidate.
func (o *Origin) Restart() {
	o.next = 0
}

// NextAddress returns the candidate under the cursor and advances it.
// Callers must check Exhausted first.
func (o *Origin) NextAddress() Endpoint {
	endpoint := o.endpoints[o.next]
	o.next++
	return endpoint
}
