// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package version compares the dotted-numeric version strings stored as
// installed-data markers.
package version

import (
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Current is the running application version. Release builds override it with
// -ldflags "-X github.com/opentrusty/lifecycle/internal/version.Current=x.y.z".
var Current = "1.0.0"

// Parse parses a version string such as "1.0", "1.2.3" or "v2.0.0-rc.1".
func Parse(v string) (*goversion.Version, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, fmt.Errorf("empty version")
	}
	parsed, err := goversion.NewVersion(v)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", v, err)
	}
	return parsed, nil
}

// Valid reports whether v parses as a version.
func Valid(v string) bool {
	_, err := Parse(v)
	return err == nil
}

// Compare returns -1, 0 or 1 when a is older than, equal to or newer than b.
// Missing trailing segments compare as zero, so "1.0" equals "1.0.0".
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// Less reports whether a is strictly older than b.
func Less(a, b string) (bool, error) {
	c, err := Compare(a, b)
	if err != nil {
		return false, err
	}
	return c < 0, nil
}
