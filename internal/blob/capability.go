// Package blob moves memory snapshots and analysis artifacts between local
// files and blob storage through short-lived capability URLs. Uploads are
// staged as ordered blocks and committed as one block list; downloads are
// streamed into the destination file.
package blob

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidCapabilityURL is returned before any network call when a
// capability URL lacks a host, a container or its access token.
var ErrInvalidCapabilityURL = errors.New("blob: invalid capability url")

// CapabilityURL is a storage URL carrying its own access signature. It is
// parsed only far enough to address the account, container and blob; the
// signature is kept verbatim and never logged.
type CapabilityURL struct {
	Scheme    string
	Host      string
	Account   string
	Container string
	BlobName  string
	SAS       string
}

// ParseCapabilityURL splits raw into its addressing parts.
func ParseCapabilityURL(raw string) (CapabilityURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return CapabilityURL{}, fmt.Errorf("%w: %w", ErrInvalidCapabilityURL, err)
	}

	if u.Host == "" {
		return CapabilityURL{}, fmt.Errorf("%w: missing host", ErrInvalidCapabilityURL)
	}

	if u.RawQuery == "" {
		return CapabilityURL{}, fmt.Errorf("%w: missing access token", ErrInvalidCapabilityURL)
	}

	container, blobName, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if container == "" {
		return CapabilityURL{}, fmt.Errorf("%w: missing container", ErrInvalidCapabilityURL)
	}

	account, _, _ := strings.Cut(u.Hostname(), ".")

	return CapabilityURL{
		Scheme:    u.Scheme,
		Host:      u.Host,
		Account:   account,
		Container: container,
		BlobName:  strings.TrimSuffix(blobName, "/"),
		SAS:       u.RawQuery,
	}, nil
}

// WithBlob addresses name inside the same container, keeping the signature.
func (c CapabilityURL) WithBlob(name string) CapabilityURL {
	c.BlobName = name

	return c
}

// URL rebuilds the full signed URL of the blob, or of the container when
// BlobName is empty.
func (c CapabilityURL) URL() string {
	path := "/" + c.Container
	if c.BlobName != "" {
		path += "/" + c.BlobName
	}

	u := url.URL{Scheme: c.Scheme, Host: c.Host, Path: path, RawQuery: c.SAS}

	return u.String()
}

// ContainerURL is the signed URL of the container.
func (c CapabilityURL) ContainerURL() string {
	return c.WithBlob("").URL()
}

// String omits the signature.
func (c CapabilityURL) String() string {
	u := url.URL{Scheme: c.Scheme, Host: c.Host, Path: "/" + c.Container}
	if c.BlobName != "" {
		u.Path += "/" + c.BlobName
	}

	return u.String()
}
