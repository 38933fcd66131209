package preview

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/preview/timeline"
)

// Extensions searched for inside generative version folders, in order.
var (
	imageExtensions = []string{"png", "jpg", "jpeg", "webp"}
	videoExtensions = []string{"mp4", "mov", "mkv", "webm"}
)

// source is a resolved, decodable asset file.
type source struct {
	path   string
	motion bool // decoded per frame index
}

// resolve maps a visual asset to the file to decode. The second result
// is false when the asset produces no pixels or its file cannot be found.
func resolve(asset *timeline.Asset, root string) (source, bool) {
	if !asset.IsVisual() {
		return source{}, false
	}
	src := source{motion: asset.Kind.IsMotion()}

	if !asset.IsGenerative() {
		if asset.Path == "" {
			return source{}, false
		}
		src.path = absPath(asset.Path, root)
		return src, true
	}

	if asset.Folder == "" {
		return source{}, false
	}
	folder := absPath(asset.Folder, root)
	exts := imageExtensions
	if src.motion {
		exts = videoExtensions
	}

	if asset.ActiveVersion != "" {
		for _, ext := range exts {
			p := filepath.Join(folder, asset.ActiveVersion+"."+ext)
			if isFile(p) {
				src.path = p
				return src, true
			}
		}
	}

	p, ok := firstWithExtension(folder, exts)
	if !ok {
		return source{}, false
	}
	src.path = p
	return src, true
}

// firstWithExtension returns the first regular file in dir, in lexical
// name order, whose extension is one of exts (case-insensitive).
func firstWithExtension(dir string, exts []string) (string, bool) {
	entries, err := os.ReadDir(dir) // sorted by name
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ext := strings.TrimPrefix(filepath.Ext(e.Name()), ".")
		for _, want := range exts {
			if strings.EqualFold(ext, want) {
				return filepath.Join(dir, e.Name()), true
			}
		}
	}
	return "", false
}

func absPath(p, root string) string {
	if filepath.IsAbs(p) || root == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

func isFile(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}
