package dispatch

// Resolution is a frame size in pixels.
type Resolution struct {
	Width  int
	Height int
}

var resolutions = map[string]Resolution{
	"720p":  {Width: 1280, Height: 720},
	"1080p": {Width: 1920, Height: 1080},
	"4k":    {Width: 3840, Height: 2160},
}

// DefaultResolution is used for any tag not in the table.
var DefaultResolution = Resolution{Width: 1920, Height: 1080}

// ResolveResolution maps a tag to its size. Unknown tags, including the
// empty string, fall back to DefaultResolution without error. Lookup is
// case-sensitive: "4K" is unknown.
func ResolveResolution(tag string) Resolution {
	if r, ok := resolutions[tag]; ok {
		return r
	}
	return DefaultResolution
}
