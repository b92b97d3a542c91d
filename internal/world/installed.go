// SPDX-License-Identifier: MPL-2.0

package world

import (
	"github.com/bedrock-tools/addonsync/internal/fsutil"
	"github.com/bedrock-tools/addonsync/pkg/manifest"
)

// InstalledPack is a folder inside an installed-packs directory together
// with the outcome of reading its manifest.
type InstalledPack struct {
	Dir    string
	Result manifest.Result
}

// ID returns the pack identity, or the zero PackID when the manifest could
// not be read.
func (p InstalledPack) ID() manifest.PackID {
	if p.Result.Manifest == nil {
		return ""
	}
	return p.Result.Manifest.ID()
}

// Readable reports whether the folder's manifest yielded an identity.
func (p InstalledPack) Readable() bool {
	return p.Result.Manifest != nil && !p.ID().IsZero()
}

// Installed lists the pack folders in c's installed-packs directory. A
// missing directory yields no packs.
func (l Layout) Installed(c manifest.Category) ([]InstalledPack, error) {
	dir, err := l.PacksDir(c)
	if err != nil {
		return nil, err
	}
	entries, err := fsutil.Snapshot(dir)
	if err != nil {
		return nil, err
	}

	var packs []InstalledPack
	for _, path := range fsutil.Dirs(dir, entries) {
		packs = append(packs, InstalledPack{Dir: path, Result: manifest.Inspect(path)})
	}
	return packs, nil
}

// InstalledIDs returns the canonical keys of every readable installed pack
// in c.
func (l Layout) InstalledIDs(c manifest.Category) (map[string]struct{}, error) {
	packs, err := l.Installed(c)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(packs))
	for _, p := range packs {
		if p.Readable() {
			ids[p.ID().Key()] = struct{}{}
		}
	}
	return ids, nil
}
