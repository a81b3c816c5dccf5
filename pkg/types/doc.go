// Package types defines the frame-level data shared by the frame source, the
// detection core and the HTTP surface. Coordinates are in frame pixels unless a
// type says otherwise.
package types
