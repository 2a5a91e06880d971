package service

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/queue"
	"github.com/marmos91/dittofiles/pkg/store/content"
	"github.com/marmos91/dittofiles/pkg/store/metadata"
)

// PageSize is the number of nodes returned by one List call.
const PageSize = 20

// ThumbnailWidths are the variant widths generated for images, in the order
// the worker produces them.
var ThumbnailWidths = []int{500, 250, 100}

// ThumbnailKey returns the blob key of the width variant of a blob.
func ThumbnailKey(localPath string, width int) string {
	return localPath + "_" + strconv.Itoa(width)
}

// NormalizeParentID maps the accepted spellings of the root ("", "0") to
// metadata.RootID.
func NormalizeParentID(parentID string) string {
	parentID = strings.TrimSpace(parentID)
	if parentID == "" || parentID == metadata.RootID {
		return metadata.RootID
	}
	return parentID
}

// CreateRequest carries the fields of a create call as received from a
// client. Kind is validated by the service.
type CreateRequest struct {
	OwnerID  string
	Name     string
	Kind     string
	ParentID string
	IsPublic bool

	// Data is the base64-encoded body. Ignored for folders.
	Data string
}

// Content is an opened blob with the metadata needed to serve it.
type Content struct {
	Node        *metadata.FileNode
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// FileService implements the file tree operations.
type FileService struct {
	files metadata.FileStore
	blobs content.ContentStore
	jobs  queue.Queue
	qm    metrics.QueueMetrics

	// widths are the variant widths ReadContent serves.
	widths []int

	now   func() time.Time
	newID func() string
}

// NewFileService creates a FileService. jobs may be nil, in which case
// uploads never schedule thumbnails. A nil qm discards enqueue metrics.
func NewFileService(files metadata.FileStore, blobs content.ContentStore, jobs queue.Queue, qm metrics.QueueMetrics) *FileService {
	if qm == nil {
		qm = metrics.NewNoopQueueMetrics()
	}
	return &FileService{
		files:  files,
		blobs:  blobs,
		jobs:   jobs,
		qm:     qm,
		widths: append([]int(nil), ThumbnailWidths...),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// SetThumbnailWidths replaces the variant widths ReadContent accepts. It must
// match the widths the thumbnail worker generates. Call before serving.
func (s *FileService) SetThumbnailWidths(widths []int) {
	if len(widths) > 0 {
		s.widths = append([]int(nil), widths...)
	}
}

func (s *FileService) isVariantWidth(width int) bool {
	for _, w := range s.widths {
		if w == width {
			return true
		}
	}
	return false
}

// Create dispatches on the requested kind: folders go to CreateFolder,
// everything else to UploadContent.
func (s *FileService) Create(ctx context.Context, req CreateRequest) (*metadata.FileNode, error) {
	if metadata.FileKind(req.Kind) == metadata.KindFolder {
		return s.CreateFolder(ctx, req.OwnerID, req.Name, req.ParentID, req.IsPublic)
	}
	return s.UploadContent(ctx, req)
}

// CreateFolder creates an empty folder.
//
// Errors: ErrMissingName, ErrParentNotFound, ErrParentNotAFolder.
func (s *FileService) CreateFolder(ctx context.Context, ownerID, name, parentID string, isPublic bool) (*metadata.FileNode, error) {
	if name == "" {
		return nil, ErrMissingName
	}

	parentID = NormalizeParentID(parentID)
	if err := s.checkParent(ctx, ownerID, parentID); err != nil {
		return nil, err
	}

	now := s.now()
	node := &metadata.FileNode{
		ID:        s.newID(),
		OwnerID:   ownerID,
		Name:      name,
		Kind:      metadata.KindFolder,
		IsPublic:  isPublic,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.files.CreateFile(ctx, node); err != nil {
		return nil, internal("create folder", err)
	}

	logger.Debug("Files: folder %s created by %s under %s", node.ID, ownerID, parentID)
	return node, nil
}

// UploadContent stores a file or image.
//
// Validation runs in this order: ErrMissingName, ErrMissingType,
// ErrMissingData, then the parent (ErrParentNotFound, ErrParentNotAFolder),
// then the payload (ErrInvalidData). The blob is written before the
// metadata record, so a visible node always has its content. Images are
// queued for thumbnailing after the node is committed; a failed enqueue is
// logged and does not fail the upload.
func (s *FileService) UploadContent(ctx context.Context, req CreateRequest) (*metadata.FileNode, error) {
	// ========================================================================
	// Step 1: Validate the request
	// ========================================================================

	if req.Name == "" {
		return nil, ErrMissingName
	}

	kind := metadata.FileKind(req.Kind)
	if !kind.Valid() {
		return nil, ErrMissingType
	}
	if kind == metadata.KindFolder {
		return s.CreateFolder(ctx, req.OwnerID, req.Name, req.ParentID, req.IsPublic)
	}
	if req.Data == "" {
		return nil, ErrMissingData
	}

	parentID := NormalizeParentID(req.ParentID)
	if err := s.checkParent(ctx, req.OwnerID, parentID); err != nil {
		return nil, err
	}

	data, err := decodeBase64(req.Data)
	if err != nil {
		return nil, ErrInvalidData
	}

	// ========================================================================
	// Step 2: Write the blob under a fresh key
	// ========================================================================

	localPath := s.newID()
	if err := s.blobs.WriteContent(ctx, localPath, data); err != nil {
		return nil, internal("write content", err)
	}

	// ========================================================================
	// Step 3: Commit the metadata record
	// ========================================================================

	now := s.now()
	node := &metadata.FileNode{
		ID:        s.newID(),
		OwnerID:   req.OwnerID,
		Name:      req.Name,
		Kind:      kind,
		IsPublic:  req.IsPublic,
		ParentID:  parentID,
		LocalPath: localPath,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.files.CreateFile(ctx, node); err != nil {
		// Best effort; the collector removes the blob if this fails too.
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), localPath); delErr != nil {
			logger.Warn("Files: failed to remove blob %s after metadata error: %v", localPath, delErr)
		}
		return nil, internal("create file", err)
	}

	logger.Debug("Files: %s %s uploaded by %s (%d bytes)", kind, node.ID, req.OwnerID, len(data))

	// ========================================================================
	// Step 4: Schedule thumbnails
	// ========================================================================

	if kind == metadata.KindImage {
		s.enqueueThumbnails(ctx, node)
	}

	return node, nil
}

func (s *FileService) enqueueThumbnails(ctx context.Context, node *metadata.FileNode) {
	if s.jobs == nil {
		return
	}

	// The upload has committed; a client disconnect must not drop the job.
	job, err := s.jobs.Enqueue(context.WithoutCancel(ctx), queue.Job{UserID: node.OwnerID, FileID: node.ID})
	s.qm.RecordEnqueue(err)
	if err != nil {
		logger.Error("Files: failed to enqueue thumbnails for %s: %v", node.ID, err)
		return
	}
	logger.Debug("Files: thumbnail job %s queued for %s", job.ID, node.ID)
}

// checkParent accepts the root or an existing folder owned by ownerID.
// Folders of other users are reported as not found.
func (s *FileService) checkParent(ctx context.Context, ownerID, parentID string) error {
	if parentID == metadata.RootID {
		return nil
	}

	parent, err := s.files.GetFile(ctx, parentID)
	if metadata.IsNotFound(err) {
		return ErrParentNotFound
	}
	if err != nil {
		return internal("get parent", err)
	}
	if parent.OwnerID != ownerID {
		return ErrParentNotFound
	}
	if parent.Kind != metadata.KindFolder {
		return ErrParentNotAFolder
	}
	return nil
}

// decodeBase64 accepts padded and unpadded standard encoding.
func decodeBase64(data string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err == nil {
		return decoded, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
}

// Get returns a node visible to requesterID: owned by them, or public.
// requesterID may be empty for anonymous callers.
func (s *FileService) Get(ctx context.Context, requesterID, fileID string) (*metadata.FileNode, error) {
	node, err := s.files.GetFile(ctx, fileID)
	if metadata.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, internal("get file", err)
	}

	if node.OwnerID != requesterID && !node.IsPublic {
		return nil, ErrNotFound
	}
	return node, nil
}

// List returns one page of the requester's nodes under parentID in
// insertion order. Negative pages are treated as page 0.
func (s *FileService) List(ctx context.Context, requesterID, parentID string, page int) ([]*metadata.FileNode, error) {
	if page < 0 {
		page = 0
	}

	nodes, err := s.files.ListFiles(ctx, requesterID, NormalizeParentID(parentID), page*PageSize, PageSize)
	if err != nil {
		return nil, internal("list files", err)
	}
	return nodes, nil
}

// SetPublic changes the visibility of a node owned by requesterID.
// Nodes of other users are ErrNotFound. Setting the current value again
// succeeds and refreshes UpdatedAt.
func (s *FileService) SetPublic(ctx context.Context, requesterID, fileID string, isPublic bool) (*metadata.FileNode, error) {
	node, err := s.files.GetFile(ctx, fileID)
	if metadata.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, internal("get file", err)
	}
	if node.OwnerID != requesterID {
		return nil, ErrNotFound
	}

	updated, err := s.files.SetPublic(ctx, fileID, isPublic, s.now())
	if metadata.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, internal("set public", err)
	}

	logger.Debug("Files: %s public=%t by %s", fileID, isPublic, requesterID)
	return updated, nil
}

// ReadContent opens the content of a visible node. width 0 selects the
// original; a thumbnail width selects that variant. The caller must close
// Content.Body.
//
// Errors: ErrNotFound (invisible, missing, or blob absent), ErrNotAFile,
// ErrInvalidSize.
func (s *FileService) ReadContent(ctx context.Context, requesterID, fileID string, width int) (*Content, error) {
	if width != 0 && !s.isVariantWidth(width) {
		return nil, ErrInvalidSize
	}

	node, err := s.Get(ctx, requesterID, fileID)
	if err != nil {
		return nil, err
	}
	if !node.Kind.HasContent() {
		return nil, ErrNotAFile
	}

	key := node.LocalPath
	if width != 0 {
		key = ThumbnailKey(node.LocalPath, width)
	}

	size, err := s.blobs.GetContentSize(ctx, key)
	if errors.Is(err, content.ErrContentNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, internal("stat content", err)
	}

	body, err := s.blobs.ReadContent(ctx, key)
	if errors.Is(err, content.ErrContentNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, internal("read content", err)
	}

	return &Content{
		Node:        node,
		ContentType: ContentTypeFor(node.Name),
		Size:        size,
		Body:        body,
	}, nil
}

// ContentTypeFor derives a MIME type from the file name extension,
// defaulting to application/octet-stream.
func ContentTypeFor(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
