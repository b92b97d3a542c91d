// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"fmt"

	"github.com/bedrock-tools/addonsync/pkg/manifest"
)

// Set holds one registry per installable category.
type Set map[manifest.Category]*Registry

// For returns the registry of c.
func (s Set) For(c manifest.Category) (*Registry, error) {
	r, ok := s[c]
	if !ok || r == nil {
		return nil, fmt.Errorf("no %s registry loaded", c)
	}
	return r, nil
}
