// Package storage is the object store behind the file manager unit.
//
// S3Storage talks to AWS S3 or any S3-compatible service (MinIO with
// PathStyle). Folders are common prefixes; an empty folder is kept alive
// by a zero-length marker object whose key ends in "/".
//
//	s, err := storage.New(cfg.Storage)
//	key, err := storage.Join("users/42", dir, name)
//	obj, err := s.Put(ctx, key, file, size, storage.DetectContentType(name, head))
//	link, err := s.URL(ctx, key, 0, name)
//
// Join refuses ".." segments so a caller rooted at one prefix cannot reach
// another. Errors wrap the sentinels in errors.go. MemoryStorage implements
// the same interface in process.
package storage
