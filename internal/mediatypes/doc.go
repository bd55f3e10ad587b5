// Package mediatypes provides the output formats the service can deliver and
// the metadata attached to each of them.
//
// This package exists as a dependency-free foundation that can be imported by
// other packages without creating import cycles.
//
// # Formats
//
//	mediatypes.FormatMP3 // audio/mpeg, extracted and transcoded audio
//	mediatypes.FormatMP4 // video/mp4, best video and audio merged
//
// Use ParseFormat to turn a route segment into a Format and Lookup to get the
// content type and file extension that go with it.
package mediatypes
