package googledrive

import (
	"context"
	"fmt"
	"io"

	"github.com/gen-mind/echo-mind/internal/core/domain"
	"github.com/gen-mind/echo-mind/internal/core/ports/driven"
	"github.com/gen-mind/echo-mind/internal/providers/google"
)

// MaxExportSize is the hard cap Google enforces on Workspace exports (10 MB).
const MaxExportSize = 10 * 1024 * 1024

// streamChunkSize is the read size used when forwarding regular files to
// storage.
const streamChunkSize = 32 * 1024

// exportMimeTypes maps Workspace document types to their export format.
var exportMimeTypes = map[string]string{
	mimeTypeGoogleDoc:     "text/plain",
	mimeTypeGoogleSheet:   "text/csv",
	mimeTypeGoogleSlides:  "text/plain",
	mimeTypeGoogleDrawing: "image/png",
}

// DownloadFile materialises one file. Workspace documents go through the
// size-capped export path; everything else downloads raw bytes subject to
// the configured size limit, checked both before and after transfer because
// Drive does not always report a size up front.
func (p *Provider) DownloadFile(ctx context.Context, file *domain.FileMetadata, cfg domain.Config) (*domain.DownloadedFile, error) {
	conf := ParseConfig(cfg)

	if isWorkspaceFile(file.MIMEType) {
		content, exportMime, err := p.exportFile(ctx, file)
		if err != nil {
			return nil, err
		}
		return downloadedFrom(file, content, exportMime, ""), nil
	}

	if file.Size != nil && *file.Size > conf.MaxFileSize {
		return nil, &domain.FileTooLargeError{SourceID: file.SourceID, Size: *file.Size, Limit: conf.MaxFileSize}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := p.svc.Files.Get(file.SourceID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, &domain.DownloadError{SourceID: file.SourceID, Err: p.wrapErr(err)}
	}
	defer resp.Body.Close()

	// Read one byte past the limit so an undeclared oversize is caught.
	content, err := io.ReadAll(io.LimitReader(resp.Body, conf.MaxFileSize+1))
	if err != nil {
		return nil, &domain.DownloadError{SourceID: file.SourceID, Err: err}
	}
	if int64(len(content)) > conf.MaxFileSize {
		return nil, &domain.FileTooLargeError{SourceID: file.SourceID, Size: int64(len(content)), Limit: conf.MaxFileSize}
	}

	return downloadedFrom(file, content, file.MIMEType, file.ContentHash), nil
}

// exportFile exports a Workspace document. Google rejects oversized exports
// with a 403, which surfaces here as an ExportError naming the 10 MB limit
// rather than a generic permission failure.
func (p *Provider) exportFile(ctx context.Context, file *domain.FileMetadata) ([]byte, string, error) {
	exportMime, ok := exportMimeTypes[file.MIMEType]
	if !ok {
		return nil, "", &domain.ExportError{
			SourceID: file.SourceID,
			Err:      fmt.Errorf("no export format for %s", file.MIMEType),
		}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}
	resp, err := p.svc.Files.Export(file.SourceID, exportMime).Context(ctx).Download()
	if err != nil {
		if google.IsForbidden(err) {
			return nil, "", &domain.ExportError{
				SourceID: file.SourceID,
				Err:      err,
				Hint:     "file may exceed the 10MB export limit",
			}
		}
		return nil, "", &domain.ExportError{SourceID: file.SourceID, Err: p.wrapErr(err)}
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(io.LimitReader(resp.Body, MaxExportSize))
	if err != nil {
		return nil, "", &domain.ExportError{SourceID: file.SourceID, Err: err}
	}

	return content, exportMime, nil
}

// StreamToStorage forwards content to the storage sink. Workspace exports
// are buffered (the export API has no streaming path); regular files are
// read in bounded chunks with no size cap, accumulated only because the
// sink needs the total length for a single upload call.
func (p *Provider) StreamToStorage(
	ctx context.Context,
	file *domain.FileMetadata,
	cfg domain.Config,
	storage driven.StorageClient,
	bucket, key string,
) (*domain.StreamResult, error) {
	var content []byte
	contentType := file.MIMEType
	contentHash := file.ContentHash

	if isWorkspaceFile(file.MIMEType) {
		exported, exportMime, err := p.exportFile(ctx, file)
		if err != nil {
			return nil, err
		}
		content = exported
		contentType = exportMime
		contentHash = "" // exported content has no provider checksum
	} else {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := p.svc.Files.Get(file.SourceID).SupportsAllDrives(true).Context(ctx).Download()
		if err != nil {
			return nil, &domain.DownloadError{SourceID: file.SourceID, Err: p.wrapErr(err)}
		}
		defer resp.Body.Close()

		buf := make([]byte, streamChunkSize)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				content = append(content, buf[:n]...)
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, &domain.DownloadError{SourceID: file.SourceID, Err: err}
			}
		}
	}

	etag, err := storage.Upload(ctx, bucket, key, content, contentType)
	if err != nil {
		return nil, &domain.DownloadError{SourceID: file.SourceID, Err: fmt.Errorf("upload to storage: %w", err)}
	}

	return &domain.StreamResult{
		StoragePath: fmt.Sprintf("%s/%s", bucket, key),
		ETag:        etag,
		Size:        int64(len(content)),
		ContentHash: contentHash,
	}, nil
}

// downloadedFrom assembles the emitted payload from metadata plus content.
func downloadedFrom(file *domain.FileMetadata, content []byte, mimeType, contentHash string) *domain.DownloadedFile {
	return &domain.DownloadedFile{
		SourceID:    file.SourceID,
		Name:        file.Name,
		Content:     content,
		MIMEType:    mimeType,
		ContentHash: contentHash,
		ModifiedAt:  file.ModifiedAt,
		ParentID:    file.ParentID,
		OriginalURL: file.WebURL,
	}
}
