// Package storage keeps uploaded workbooks and the files derived from them.
//
// Store is implemented by a local directory backend and an S3 backend.
// Keys are flat object names such as "<uuid>_processed.csv"; anything that
// could escape the backend's namespace is rejected with ErrInvalidKey.
//
// Sweeper removes objects older than the configured retention.
//
// Example usage:
//
//	store, err := storage.New(ctx, cfg.Storage, logger)
//	if err != nil {
//		return err
//	}
//	if err := store.Put(ctx, id+"_processed.csv", &buf); err != nil {
//		return err
//	}
package storage
