// Package formats parses the externally authored inputs of a scene load:
// glTF 2.0 / GLB descriptors, the accessor streams they reference, and the
// metadata chunks of PNG images.
//
// ParseSceneFile yields a Descriptor for either container. Accessor data is
// decoded through the Accessor readers, and ScanPNG reads PNG headers without
// decoding pixels.
package formats
