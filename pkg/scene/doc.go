// Package scene is the live scene layer: the element store, selection and
// grouping, and the boolean orchestrators that turn selected elements into
// a new compound body through the kernel.
//
// Element slices are copy-on-write: every operation returns a new slice and
// never mutates the one it was given. The object map is the opposite; it is
// shared with the rendering collaborator and mutated in place so that it
// always mirrors the live element set. Operations are not safe for
// concurrent use; callers serialize them.
package scene
