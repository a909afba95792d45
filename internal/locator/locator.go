// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package locator turns input lines such as "s3://bucket/path/file.parquet"
// into structured object locators.
package locator

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// DefaultScheme is the scheme accepted by a Resolver built without arguments.
const DefaultScheme = "s3"

var (
	// ErrUnsupportedScheme is returned when the input's scheme is not one the
	// resolver was configured with, including inputs with no scheme at all.
	ErrUnsupportedScheme = errors.New("unsupported scheme")

	// ErrMalformedPath is returned when the container or key is empty.
	ErrMalformedPath = errors.New("malformed path")
)

// ResolutionError records which input failed to resolve and why.
type ResolutionError struct {
	Raw string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Raw)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Locator identifies one object in remote storage.
type Locator struct {
	Scheme    string
	Container string
	Key       string
}

// String renders the locator back into scheme://container/key form.
func (l Locator) String() string {
	return l.Scheme + "://" + l.Container + "/" + l.Key
}

// Resolver parses raw paths for a fixed set of schemes. It holds no
// mutable state and is safe for concurrent use.
type Resolver struct {
	schemes mapset.Set[string]
}

// NewResolver returns a Resolver accepting the given schemes, compared
// case-insensitively. With no schemes it accepts DefaultScheme only.
func NewResolver(schemes ...string) *Resolver {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, s := range schemes {
		set.Add(strings.ToLower(s))
	}
	if set.Cardinality() == 0 {
		set.Add(DefaultScheme)
	}
	return &Resolver{schemes: set}
}

// Schemes returns the accepted schemes in sorted order.
func (r *Resolver) Schemes() []string {
	out := r.schemes.ToSlice()
	slices.Sort(out)
	return out
}

// Resolve parses raw into a Locator. It performs no I/O.
func (r *Resolver) Resolve(raw string) (Locator, error) {
	trimmed := strings.TrimSpace(raw)

	scheme, rest, ok := strings.Cut(trimmed, "://")
	if !ok || scheme == "" {
		return Locator{}, &ResolutionError{Raw: raw, Err: ErrUnsupportedScheme}
	}
	scheme = strings.ToLower(scheme)
	if !r.schemes.Contains(scheme) {
		return Locator{}, &ResolutionError{Raw: raw, Err: ErrUnsupportedScheme}
	}

	container, key, _ := strings.Cut(rest, "/")
	key = strings.TrimLeft(key, "/")
	if container == "" || key == "" {
		return Locator{}, &ResolutionError{Raw: raw, Err: ErrMalformedPath}
	}

	return Locator{
		Scheme:    scheme,
		Container: container,
		Key:       key,
	}, nil
}

// Resolve parses raw using a resolver that accepts only DefaultScheme.
func Resolve(raw string) (Locator, error) {
	return defaultResolver.Resolve(raw)
}

var defaultResolver = NewResolver()
