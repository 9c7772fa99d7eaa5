// Package registry is the persisted record of installed extensions. It tracks
// the artifact files each extension copied into the managed directory, the
// extensions each one must be loaded after, and which installed extensions
// claim each distro package. The last mapping is a reference count: a distro
// package whose owner set empties is reported as unneeded.
//
// The registry is stored as packages.json in the managed directory. It is
// loaded once by Open, guarded by an exclusive lock until Close, and written
// after every successful AddExtension or RemoveExtension.
package registry
