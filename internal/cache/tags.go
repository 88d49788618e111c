// internal/cache/tags.go
package cache

import "schedule-designgen/internal/compiler"

// TagsFor places a tag at the centre of every tagged replacement target.
func TagsFor(replaces []compiler.ReplaceLayer, width, height float64) []Tag {
	tags := []Tag{}
	if width <= 0 || height <= 0 {
		return tags
	}
	for _, r := range replaces {
		if r.Tag == "" {
			continue
		}
		b := r.TargetBounds
		tags = append(tags, Tag{
			X:     clamp((b.X + b.Width/2) / width),
			Y:     clamp((b.Y + b.Height/2) / height),
			Label: r.Tag,
		})
	}
	return tags
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
