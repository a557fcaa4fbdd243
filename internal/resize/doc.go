// Package resize implements the image transform run by the worker: the
// uploaded image is scaled to half its width and height and re-encoded in
// its original format.
package resize
