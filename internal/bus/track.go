package bus

import (
	"maps"
	"slices"
)

// Track is the subset of a Spotify track object that overlays render.
type Track struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	URI          string            `json:"uri"`
	DurationMS   uint64            `json:"duration_ms"`
	Explicit     bool              `json:"explicit"`
	Artists      []Artist          `json:"artists"`
	Album        Album             `json:"album"`
	ExternalURLs map[string]string `json:"external_urls,omitempty"`
}

type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

type Album struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	URI    string  `json:"uri"`
	Images []Image `json:"images"`
}

type Image struct {
	URL    string `json:"url"`
	Width  *int   `json:"width"`
	Height *int   `json:"height"`
}

// Clone returns a deep copy of t. Clone of a nil track is nil.
func (t *Track) Clone() *Track {
	if t == nil {
		return nil
	}
	c := *t
	c.Artists = slices.Clone(t.Artists)
	c.ExternalURLs = maps.Clone(t.ExternalURLs)
	if t.Album.Images != nil {
		c.Album.Images = make([]Image, len(t.Album.Images))
		for i, img := range t.Album.Images {
			c.Album.Images[i] = Image{URL: img.URL, Width: clonePtr(img.Width), Height: clonePtr(img.Height)}
		}
	}
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
