package resolver

import (
	"path"
	"strings"

	"github.com/genricoloni/wozplayer/internal/domain"
)

const (
	videoFolder    = "videos"
	audioFolder    = "audio"
	videoExtension = "mp4"
)

// PathResolver maps cues to asset paths under a fixed root.
// The layout is {root}/videos/{id}.mp4 and {root}/audio/{id}.{ext}; the root
// may be a directory or an http(s) URL, so paths are joined textually.
type PathResolver struct {
	root     string
	audioExt string
}

// NewPathResolver creates a resolver from the application configuration
func NewPathResolver(cfg domain.Config) *PathResolver {
	return New(cfg.GetAssetsRoot(), cfg.GetAudioExtension())
}

// New creates a resolver for an explicit root and audio extension
func New(root, audioExt string) *PathResolver {
	return &PathResolver{
		root:     strings.TrimRight(root, "/"),
		audioExt: strings.TrimPrefix(audioExt, "."),
	}
}

// Resolve returns the asset path of id for the given kind.
// Unknown ids still produce a path; the load reports it missing.
func (r *PathResolver) Resolve(id domain.MediaID, kind domain.MediaKind) string {
	folder, ext := videoFolder, videoExtension
	if kind == domain.KindAudio {
		folder, ext = audioFolder, r.audioExt
	}
	file := folder + "/" + string(id) + "." + ext
	if r.root == "" {
		return file
	}
	return r.root + "/" + file
}

// AssetsRoot returns the configured asset root
func (r *PathResolver) AssetsRoot() string {
	return r.root
}

// IsIdleSource reports whether a surface source holds the idle cue
func IsIdleSource(src string) bool {
	if src == "" {
		return false
	}
	base := path.Base(src)
	return strings.TrimSuffix(base, path.Ext(base)) == string(domain.MediaIdle)
}
