package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sei-platform/seibackend/logger"
)

// TaskType constants
const (
	TaskThumbnail = "thumbnail"
	TaskDelete    = "delete"
)

const jobTimeout = 2 * time.Minute

// ImageJob is one unit of background work on a stored institution image.
type ImageJob struct {
	InstitutionID        uint
	OriginalRelativePath string
	TaskType             string
}

// ThumbnailGenerator renders a thumbnail for a stored image.
type ThumbnailGenerator interface {
	GenerateThumbnail(ctx context.Context, originalRelPath string, maxSize int) (string, error)
}

// ThumbnailRecorder persists the thumbnail path of an institution.
type ThumbnailRecorder interface {
	SetInstitutionThumbnail(ctx context.Context, id uint, thumbPath string) error
}

// AssetDeleter removes stored assets.
type AssetDeleter interface {
	Delete(ctx context.Context, relativePath string) error
}

type ImageProcessor struct {
	JobQueue chan ImageJob
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[string]bool
	Mutex    sync.Mutex

	generator ThumbnailGenerator
	recorder  ThumbnailRecorder
	deleter   AssetDeleter
	maxSize   int
	log       *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	stopOnce  sync.Once
}

func NewImageProcessor(generator ThumbnailGenerator, recorder ThumbnailRecorder, deleter AssetDeleter, thumbnailMaxSize, queueSize, numWorkers int, log *logger.Logger) *ImageProcessor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	proc := &ImageProcessor{
		JobQueue:  make(chan ImageJob, queueSize),
		StopChan:  make(chan struct{}),
		Pending:   make(map[string]bool),
		generator: generator,
		recorder:  recorder,
		deleter:   deleter,
		maxSize:   thumbnailMaxSize,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
	proc.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go proc.worker(i)
	}
	log.Info("started image workers", "workers", numWorkers, "queue_size", queueSize)
	return proc
}

func pendingKey(job ImageJob) string {
	return fmt.Sprintf("%s:%s", job.OriginalRelativePath, job.TaskType)
}

func (ip *ImageProcessor) worker(id int) {
	defer ip.Wg.Done()
	for {
		select {
		case job, ok := <-ip.JobQueue:
			if !ok {
				ip.log.Debug("image worker stopping: job queue closed", "worker", id)
				return
			}

			switch job.TaskType {
			case TaskThumbnail:
				ip.processThumbnailTask(job)
			case TaskDelete:
				ip.processDeleteTask(job)
			default:
				ip.log.Error("unknown image task type", "worker", id, "task", job.TaskType, "path", job.OriginalRelativePath)
			}

			ip.Mutex.Lock()
			delete(ip.Pending, pendingKey(job))
			ip.Mutex.Unlock()

		case <-ip.StopChan:
			ip.log.Debug("image worker stopping: stop signal received", "worker", id)
			return
		}
	}
}

// processThumbnailTask generates the thumbnail and records it on the institution
func (ip *ImageProcessor) processThumbnailTask(job ImageJob) {
	ctx, cancel := context.WithTimeout(ip.ctx, jobTimeout)
	defer cancel()

	thumbPath, err := ip.generator.GenerateThumbnail(ctx, job.OriginalRelativePath, ip.maxSize)
	if err != nil {
		ip.log.Error("thumbnail generation failed", "institution_id", job.InstitutionID, "path", job.OriginalRelativePath, "error", err)
		return
	}
	if err := ip.recorder.SetInstitutionThumbnail(ctx, job.InstitutionID, thumbPath); err != nil {
		ip.log.Error("failed to record thumbnail", "institution_id", job.InstitutionID, "thumbnail", thumbPath, "error", err)
		// the institution is gone or unreachable; do not leave an orphan behind
		_ = ip.deleter.Delete(ctx, thumbPath)
		return
	}
	ip.log.Info("generated thumbnail", "institution_id", job.InstitutionID, "thumbnail", thumbPath)
}

func (ip *ImageProcessor) processDeleteTask(job ImageJob) {
	ctx, cancel := context.WithTimeout(ip.ctx, jobTimeout)
	defer cancel()

	if err := ip.deleter.Delete(ctx, job.OriginalRelativePath); err != nil {
		ip.log.Warn("failed to delete replaced asset", "path", job.OriginalRelativePath, "error", err)
		return
	}
	ip.log.Debug("deleted replaced asset", "path", job.OriginalRelativePath)
}

// QueueJob queues a specific task if not already pending
func (ip *ImageProcessor) QueueJob(job ImageJob) bool {
	key := pendingKey(job)

	ip.Mutex.Lock()
	if ip.Pending[key] {
		ip.Mutex.Unlock()
		return false
	}
	ip.Pending[key] = true
	ip.Mutex.Unlock()

	select {
	case ip.JobQueue <- job:
		ip.log.Debug("queued image task", "task", job.TaskType, "path", job.OriginalRelativePath)
		return true
	default:
		ip.log.Warn("image job queue full", "task", job.TaskType, "path", job.OriginalRelativePath)
		ip.Mutex.Lock()
		delete(ip.Pending, key)
		ip.Mutex.Unlock()
		return false
	}
}

// QueueThumbnail is a shorthand for the thumbnail task of an institution image.
func (ip *ImageProcessor) QueueThumbnail(institutionID uint, imagePath string) bool {
	return ip.QueueJob(ImageJob{InstitutionID: institutionID, OriginalRelativePath: imagePath, TaskType: TaskThumbnail})
}

// QueueDelete schedules removal of assets that are no longer referenced.
func (ip *ImageProcessor) QueueDelete(paths ...string) {
	for _, p := range paths {
		if p != "" {
			ip.QueueJob(ImageJob{OriginalRelativePath: p, TaskType: TaskDelete})
		}
	}
}

// Stop signals workers to exit and waits for them. Jobs still queued are dropped.
func (ip *ImageProcessor) Stop() {
	ip.stopOnce.Do(func() {
		ip.log.Info("stopping image workers")
		ip.cancel()
		close(ip.StopChan)
		ip.Wg.Wait()
		ip.log.Info("all image workers stopped")
	})
}
