// Package track provides the closed set of audio tracks and their resources.
package track

import (
	"path"
	"strings"

	"github.com/cockroachdb/errors"
)

// ID identifies a track. The set of IDs is fixed at compile time.
type ID string

const (
	Home    ID = "home"    // Home screen background music
	Lobby   ID = "lobby"   // Match lobby background music
	Battle  ID = "battle"  // In-match background music
	Victory ID = "victory" // Win jingle
	Defeat  ID = "defeat"  // Loss jingle
)

// DefaultAssetDir is the directory the default catalog resolves files in.
const DefaultAssetDir = "assets/audio"

// ErrUnknownTrack is returned when a name does not match any track.
var ErrUnknownTrack = errors.New("unknown track")

var files = map[ID]string{
	Home:    "home-bgm.mp3",
	Lobby:   "lobby-bgm.mp3",
	Battle:  "battle-bgm.mp3",
	Victory: "victory.mp3",
	Defeat:  "defeat.mp3",
}

// All returns every track in declaration order.
func All() []ID {
	return []ID{Home, Lobby, Battle, Victory, Defeat}
}

// String returns the track name.
func (id ID) String() string {
	return string(id)
}

// Valid reports whether id belongs to the closed set.
func (id ID) Valid() bool {
	_, ok := files[id]
	return ok
}

// Parse converts a user-supplied name into an ID.
func Parse(name string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(name)))
	if !id.Valid() {
		return "", errors.Wrapf(ErrUnknownTrack, "%q", name)
	}
	return id, nil
}

// Catalog maps track IDs to resource URIs. It is immutable once built.
type Catalog struct {
	uris map[ID]string
}

// DefaultCatalog returns the catalog rooted at DefaultAssetDir.
func DefaultCatalog() Catalog {
	return NewCatalog(DefaultAssetDir)
}

// NewCatalog returns a catalog with every track file rooted at baseDir.
func NewCatalog(baseDir string) Catalog {
	if baseDir == "" {
		baseDir = DefaultAssetDir
	}
	uris := make(map[ID]string, len(files))
	for id, file := range files {
		uris[id] = path.Join(baseDir, file)
	}
	return Catalog{uris: uris}
}

// Len returns the number of resolvable tracks.
func (c Catalog) Len() int {
	return len(c.uris)
}

// URI returns the resource for id.
func (c Catalog) URI(id ID) (string, error) {
	uri, ok := c.uris[id]
	if !ok {
		return "", errors.Wrapf(ErrUnknownTrack, "%q", string(id))
	}
	return uri, nil
}

// MustURI returns the resource for id and panics if there is none.
// Track IDs are a closed set, so a miss is a programming error.
func (c Catalog) MustURI(id ID) string {
	uri, ok := c.uris[id]
	if !ok {
		panic(errors.AssertionFailedf("track: no resource for %q", string(id)))
	}
	return uri
}
