package deckhand

import "image/color"

// sourceKind enumerates the closed set of image source shapes.
type sourceKind int

const (
	sourceInvalid sourceKind = iota
	sourceBytes
	sourceFile
	sourceSnapshot
	sourceFill
	sourceBlank
)

// Source is one layer input to an Image load. Sources are combined as an
// ordered list: the first entry is the base layer, later entries composite
// on top in order.
type Source struct {
	kind sourceKind
	data []byte
	path string
	img  *Image
	fill color.Color
}

// Bytes is a source decoded from an in-memory encoded image
// (PNG, JPEG, GIF, WebP, BMP, or SVG).
func Bytes(data []byte) Source {
	return Source{kind: sourceBytes, data: data}
}

// File is a source decoded from an image file on disk.
func File(path string) Source {
	return Source{kind: sourceFile, path: path}
}

// Snapshot is a source taken from another Image's current composited frame
// at resolve time. The snapshot does not track later frame changes.
func Snapshot(img *Image) Source {
	return Source{kind: sourceSnapshot, img: img}
}

// Fill is a solid-color source sized to the target dimensions.
func Fill(c color.Color) Source {
	return Source{kind: sourceFill, fill: c}
}

// Blank is a fully transparent source sized to the target dimensions.
func Blank() Source {
	return Source{kind: sourceBlank}
}
