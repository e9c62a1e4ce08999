// Package filedepot provides a content-addressed, metadata-tracked file
// store. Uploaded bytes are staged, hashed (SHA-256) and written to a
// BlobStore keyed by the content hash; a Catalog keeps the authoritative
// record of logical files (id, name, hash, size, mime type, timestamps).
//
// Two files with identical bytes share one blob. A blob stays alive as long
// as at least one catalog record references its hash; the reference count is
// derived by querying the catalog, never stored redundantly.
//
// Basic usage:
//
//	svc, err := filedepot.New(
//	    filedepot.WithCatalog(memoryrepo.New()),
//	    filedepot.WithBlobStore(memorystorage.New()),
//	)
//	if err != nil {
//	    return err
//	}
//
//	rec, err := svc.Ingest(ctx, filedepot.IngestRequest{
//	    DisplayName:  "report.pdf",
//	    MimeType:     "application/pdf",
//	    Reader:       file,
//	    DeclaredSize: size,
//	})
package filedepot
